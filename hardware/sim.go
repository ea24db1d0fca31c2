package hardware

import (
	"fmt"
	"sync"
	"time"

	sglog "sglx-remote/log"
)

// Sim 是内存中的采集硬件模拟器（无 SDK 时的开发模式）。
// 记录每一次改变状态的调用，并可按操作名注入失败。
type Sim struct {
	mu          sync.Mutex
	initialized bool
	running     bool
	saving      bool
	runID       string
	nextFile    string
	runStarted  time.Time
	calls       []string
	failures    map[string]string
}

// NewSim 返回一个已初始化、未运行的模拟器。
func NewSim() *Sim {
	return &Sim{initialized: true, failures: make(map[string]string)}
}

// SetInitialized 设置模拟器是否报告已初始化。
func (s *Sim) SetInitialized(v bool) {
	s.mu.Lock()
	s.initialized = v
	s.mu.Unlock()
}

// FailNext 让指定操作在下一次调用时失败（只生效一次）。
// 参数：
// - op: 操作名，如 "startRun"、"setNextFileName"、"setRecordingEnable"、"stopRun"、"isRunning"
// - message: 返回的错误文本
func (s *Sim) FailNext(op, message string) {
	s.mu.Lock()
	s.failures[op] = message
	s.mu.Unlock()
}

// Calls 返回改变状态的调用记录副本，格式如 startRun("mouse42")。
func (s *Sim) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls 清空调用记录。
func (s *Sim) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// NextFileName 返回最近一次设置的输出文件名。
func (s *Sim) NextFileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFile
}

func (s *Sim) takeFailure(op string) error {
	msg, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return Failure(op, msg)
}

func (s *Sim) IsInitialized() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("isInitialized"); err != nil {
		return false, err
	}
	return s.initialized, nil
}

func (s *Sim) IsRunning() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("isRunning"); err != nil {
		return false, err
	}
	return s.running, nil
}

func (s *Sim) IsSaving() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("isSaving"); err != nil {
		return false, err
	}
	return s.saving, nil
}

func (s *Sim) SetNextFileName(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("setNextFileName(%q)", path))
	if err := s.takeFailure("setNextFileName"); err != nil {
		return err
	}
	s.nextFile = path
	return nil
}

func (s *Sim) SetRecordingEnable(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("setRecordingEnable(%t)", on))
	if err := s.takeFailure("setRecordingEnable"); err != nil {
		return err
	}
	if on && !s.running {
		return Failure("setRecordingEnable", "run not started")
	}
	s.saving = on
	return nil
}

func (s *Sim) StartRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("startRun(%q)", id))
	if err := s.takeFailure("startRun"); err != nil {
		return err
	}
	if !s.initialized {
		return Failure("startRun", "hardware not initialized")
	}
	s.running = true
	s.runID = id
	s.runStarted = time.Now()
	sglog.With(map[string]any{"run": id, "status": "sim_run_started"}).Debug("模拟采集开始运行")
	return nil
}

func (s *Sim) StopRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "stopRun()")
	if err := s.takeFailure("stopRun"); err != nil {
		return err
	}
	if s.running {
		sglog.With(map[string]any{"run": s.runID, "uptime_ms": time.Since(s.runStarted).Milliseconds(), "status": "sim_run_stopped"}).Debug("模拟采集停止运行")
	}
	s.running = false
	s.saving = false
	s.runID = ""
	return nil
}
