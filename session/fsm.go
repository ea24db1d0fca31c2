package session

import (
	sgerrors "sglx-remote/errors"
	"sglx-remote/status"
)

// Op 是作用于采集状态的操作。
type Op string

const (
	OpStartView          Op = "start_view"
	OpStartRecord        Op = "start_record"
	OpStartViewAndRecord Op = "start_view_and_record"
	OpStopRecording      Op = "stop_recording"
	OpStopAll            Op = "stop_all"
)

// Next 计算采集状态迁移（纯函数，不触碰硬件）。
// 规则：
// - StartView: Idle/Viewing → Viewing；录制中拒绝（会中断录制）
// - StartRecord / StartViewAndRecord: Idle/Viewing → Recording；录制中拒绝
// - StopRecording: Recording → Viewing；其它状态拒绝
// - StopAll: 任意 → Idle
// 返回：
// - status.AcqState: 新状态（出错时返回原状态）
// - error: CodePolicy
func Next(s status.AcqState, op Op) (status.AcqState, error) {
	switch op {
	case OpStartView:
		if s == status.AcqRecording {
			return s, sgerrors.New(sgerrors.CodePolicy, "recording in progress")
		}
		return status.AcqViewing, nil
	case OpStartRecord, OpStartViewAndRecord:
		if s == status.AcqRecording {
			return s, sgerrors.New(sgerrors.CodePolicy, "already recording")
		}
		return status.AcqRecording, nil
	case OpStopRecording:
		if s != status.AcqRecording {
			return s, sgerrors.New(sgerrors.CodePolicy, "not recording")
		}
		return status.AcqViewing, nil
	case OpStopAll:
		return status.AcqIdle, nil
	default:
		return s, sgerrors.New(sgerrors.CodeInternal, "unknown op: "+string(op))
	}
}
