package status

import (
	"encoding/json"
	"fmt"
	"strings"
)

type AcqState string

const (
	AcqIdle      AcqState = "Idle"
	AcqViewing   AcqState = "Viewing"
	AcqRecording AcqState = "Recording"
)

// String 返回采集状态文本。
func (s AcqState) String() string { return string(s) }

// Running 表示采集是否在运行（Viewing 或 Recording）。
func (s AcqState) Running() bool { return s == AcqViewing || s == AcqRecording }

// ParseAcqState 将文本解析为 AcqState。
// 参数：
// - v: 状态文本（Idle/Viewing/Recording）
// 返回：
// - AcqState: 解析结果
// - error: 未知状态时返回错误
func ParseAcqState(v string) (AcqState, error) {
	switch strings.TrimSpace(v) {
	case string(AcqIdle):
		return AcqIdle, nil
	case string(AcqViewing):
		return AcqViewing, nil
	case string(AcqRecording):
		return AcqRecording, nil
	default:
		return "", fmt.Errorf("unknown AcqState: %q", v)
	}
}

// MarshalJSON 将 AcqState 编码为 JSON 字符串。
func (s AcqState) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 AcqState。
func (s *AcqState) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseAcqState(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Controller 是对外汇报的控制器状态，由采集状态与远程标志推导，不单独存储。
type Controller string

const (
	ControllerIdle        Controller = "idle"
	ControllerViewing     Controller = "viewing"
	ControllerRecording   Controller = "recording"
	ControllerRemoteReady Controller = "remote_ready"
	ControllerError       Controller = "error"
)

// String 返回控制器状态文本。
func (s Controller) String() string { return string(s) }

// Derive 按 Recording > Viewing > RemoteReady > Error 的优先级推导控制器状态。
// 参数：
// - acq: 当前采集状态
// - remote: 是否处于远程模式
func Derive(acq AcqState, remote bool) Controller {
	switch {
	case acq == AcqRecording:
		return ControllerRecording
	case acq == AcqViewing:
		return ControllerViewing
	case remote:
		return ControllerRemoteReady
	default:
		return ControllerError
	}
}

// ParseController 将文本解析为 Controller。
func ParseController(v string) (Controller, error) {
	switch strings.TrimSpace(v) {
	case string(ControllerIdle):
		return ControllerIdle, nil
	case string(ControllerViewing):
		return ControllerViewing, nil
	case string(ControllerRecording):
		return ControllerRecording, nil
	case string(ControllerRemoteReady):
		return ControllerRemoteReady, nil
	case string(ControllerError):
		return ControllerError, nil
	default:
		return "", fmt.Errorf("unknown Controller: %q", v)
	}
}

// MarshalJSON 将 Controller 编码为 JSON 字符串。
func (s Controller) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 Controller。
func (s *Controller) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseController(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type LinkState string

const (
	LinkDetached         LinkState = "Detached"
	LinkWaitingForClient LinkState = "WaitingForClient"
	LinkAttached         LinkState = "Attached"
)

// String 返回远程链路状态文本。
func (s LinkState) String() string { return string(s) }

// ParseLinkState 将文本解析为 LinkState。
// 参数：
// - v: 状态文本（Detached/WaitingForClient/Attached）
// 返回：
// - LinkState: 解析结果
// - error: 未知状态时返回错误
func ParseLinkState(v string) (LinkState, error) {
	switch strings.TrimSpace(v) {
	case string(LinkDetached):
		return LinkDetached, nil
	case string(LinkWaitingForClient):
		return LinkWaitingForClient, nil
	case string(LinkAttached):
		return LinkAttached, nil
	default:
		return "", fmt.Errorf("unknown LinkState: %q", v)
	}
}

// MarshalJSON 将 LinkState 编码为 JSON 字符串。
func (s LinkState) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 LinkState。
func (s *LinkState) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseLinkState(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
