package log

import (
	"io"
	"strings"
	"sync"
	"testing"

	"sglx-remote/config"

	"github.com/sirupsen/logrus"
)

// TestSinkForwardsInfoAndAbove 验证控制台 sink 只接收 INFO 及以上级别，注销后不再接收。
func TestSinkForwardsInfoAndAbove(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.Level = "debug"
	if err := Init(cfg); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []string
	remove := AddSink(logrus.InfoLevel, func(level logrus.Level, msg string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, level.String()+":"+msg)
	})

	L().Debug("hidden")
	L().Info("shown")
	With(logrus.Fields{"session": "m1"}).Warn("warned")
	remove()
	L().Error("after remove")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "info:shown" || got[1] != "warning:warned" {
		t.Fatalf("got=%v", got)
	}
}

// TestCallerHookFields 验证 goid/func/ts_ms 字段被补齐，且 func 指向调用方而不是日志包。
func TestCallerHookFields(t *testing.T) {
	if err := Init(config.DefaultConfig().Logging); err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var entry *logrus.Entry
	h := &captureHook{fn: func(e *logrus.Entry) {
		mu.Lock()
		defer mu.Unlock()
		entry = e
	}}
	L().AddHook(h)
	L().SetOutput(io.Discard)
	With(logrus.Fields{"status": "caller_check"}).Info("caller check")

	mu.Lock()
	defer mu.Unlock()
	if entry == nil {
		t.Fatal("no entry captured")
	}
	if id, _ := entry.Data["goid"].(int64); id <= 0 {
		t.Fatalf("goid=%v", entry.Data["goid"])
	}
	fn, _ := entry.Data["func"].(string)
	if !strings.Contains(fn, "TestCallerHookFields") {
		t.Fatalf("func=%q", fn)
	}
	if _, ok := entry.Data["ts_ms"].(int64); !ok {
		t.Fatalf("ts_ms=%v", entry.Data["ts_ms"])
	}
}

type captureHook struct{ fn func(*logrus.Entry) }

func (h *captureHook) Levels() []logrus.Level { return logrus.AllLevels }
func (h *captureHook) Fire(e *logrus.Entry) error { h.fn(e); return nil }
