package session

import (
	"time"

	sglog "sglx-remote/log"
	"sglx-remote/status"
)

type EventKind string

const (
	EventViewingStarted   EventKind = "viewing_started"
	EventViewingStopped   EventKind = "viewing_stopped"
	EventRecordingStarted EventKind = "recording_started"
	EventRecordingStopped EventKind = "recording_stopped"
	EventCopyListUpdated  EventKind = "copy_list_updated"
	EventRemoteAttached   EventKind = "remote_attached"
	EventRemoteDetached   EventKind = "remote_detached"
)

// Event 是状态机对前端发出的通知。
type Event struct {
	Kind      EventKind
	SessionID string
	State     status.AcqState
	Pending   int
	Elapsed   time.Duration
}

// Observer 订阅状态变化。回调在状态机锁外执行，但不应阻塞。
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc 让普通函数实现 Observer。
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LogObserver 把事件写入日志（无前端时的默认订阅者）。
type LogObserver struct{}

func (LogObserver) OnEvent(e Event) {
	fields := map[string]any{"event": string(e.Kind), "session": e.SessionID, "state": e.State.String()}
	switch e.Kind {
	case EventCopyListUpdated:
		fields["pending"] = e.Pending
	case EventRecordingStopped, EventViewingStopped:
		fields["elapsed_s"] = e.Elapsed.Round(100 * time.Millisecond).Seconds()
	}
	sglog.With(fields).Info("状态变化")
}
