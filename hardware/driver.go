package hardware

import (
	sgerrors "sglx-remote/errors"
)

// Driver 是采集硬件的调用边界。每个方法返回成功/失败以及可读的错误文本，
// 实现不需要自带并发保护：调用方保证同一时刻只有一个调用在执行。
type Driver interface {
	IsInitialized() (bool, error)
	IsRunning() (bool, error)
	IsSaving() (bool, error)
	SetNextFileName(path string) error
	SetRecordingEnable(on bool) error
	StartRun(id string) error
	StopRun() error
}

// Failure 构造一个硬件错误，message 原样保留（日志中逐字输出）。
func Failure(op, message string) error {
	return sgerrors.New(sgerrors.CodeHardware, op+": "+message)
}

// New 根据配置名创建驱动。
// 参数：
// - name: 驱动名（目前仅 "sim"）
// 返回：
// - Driver: 驱动实例
// - error: 未知驱动名
func New(name string) (Driver, error) {
	switch name {
	case "", "sim":
		return NewSim(), nil
	default:
		return nil, sgerrors.New(sgerrors.CodeHardware, "unknown hardware driver: "+name)
	}
}
