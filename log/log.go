package log

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sglx-remote/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	base     = logrus.New()
	hookOnce sync.Once
)

// Init 按配置重建 agent 全局日志（可重复调用，例如测试中切换级别）。
// 参数：
// - cfg: 级别、格式（json|text）、输出（console|file）与文件滚动策略
// 返回：
// - error: 日志目录无法创建
func Init(cfg config.LoggingConfig) error {
	w, err := writerFor(cfg)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	base.SetFormatter(formatterFor(cfg.Format))
	base.SetOutput(w)
	hookOnce.Do(func() { base.AddHook(callerHook{}) })
	return nil
}

func formatterFor(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{TimestampFormat: tsLayout}
	}
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: tsLayout}
}

// writerFor 返回日志输出；file 模式使用 lumberjack 按大小滚动，保留 3 份。
func writerFor(cfg config.LoggingConfig) (io.Writer, error) {
	if !strings.EqualFold(cfg.Output, "file") {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    max(1, int(cfg.MaxSize.Int64()>>20)),
		MaxAge:     max(1, cfg.MaxAge),
		MaxBackups: 3,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

// L 返回全局 Logger。
func L() *logrus.Logger { return base }

// With 返回带结构化字段的 Entry；约定总是带上 "status" 字段。
func With(fields logrus.Fields) *logrus.Entry { return base.WithFields(fields) }

// Sink 接收一条日志消息（供前端控制台显示）。
type Sink func(level logrus.Level, msg string)

// AddSink 注册一个控制台输出：级别不低于 minLevel 的日志同步转发给 sink。
// 界面控制台通常只显示 INFO 及以上，调用方传 logrus.InfoLevel。
// 返回：
// - func(): 注销函数
func AddSink(minLevel logrus.Level, sink Sink) func() {
	h := &sinkHook{levels: logrus.AllLevels[:minLevel+1], sink: sink}
	base.AddHook(h)
	return func() { h.off.Store(true) }
}

type sinkHook struct {
	levels []logrus.Level
	sink   Sink
	off    atomic.Bool
}

func (h *sinkHook) Levels() []logrus.Level { return h.levels }

func (h *sinkHook) Fire(e *logrus.Entry) error {
	if !h.off.Load() {
		h.sink(e.Level, e.Message)
	}
	return nil
}

// callerHook 补齐 goid/func/ts_ms 字段（已显式设置的不覆盖）。
type callerHook struct{}

func (callerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (callerHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["goid"]; !ok {
		e.Data["goid"] = goroutineID()
	}
	if _, ok := e.Data["func"]; !ok {
		if fn := callerName(); fn != "" {
			e.Data["func"] = fn
		}
	}
	if _, ok := e.Data["ts_ms"]; !ok {
		e.Data["ts_ms"] = time.Now().UnixMilli()
	}
	return nil
}

// callerName 跳过 logrus 与本包的栈帧，返回第一个业务函数名。
func callerName() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.Contains(f.Function, "sirupsen/logrus") && !strings.HasSuffix(filepath.ToSlash(f.File), "/log/log.go") {
			return f.Function
		}
		if !more {
			return ""
		}
	}
}

// goroutineID 从栈头 "goroutine N [...]" 中解析 N，仅用于日志辅助字段。
func goroutineID() int64 {
	var buf [64]byte
	head := string(buf[:runtime.Stack(buf[:], false)])
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseInt(fields[1], 10, 64)
	return id
}
