package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sglog "sglx-remote/log"
	"sglx-remote/status"
)

const namespace = "sglx_remote"

var (
	// CommandsTotal 按消息类型统计收到的远程命令（含未知类型）。
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Remote commands received, by message type.",
	}, []string{"type"})

	// RepliesTotal 按状态统计发往远端的回复。
	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_total",
		Help:      "Replies sent to the remote peer, by status.",
	}, []string{"status"})

	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Lines dropped because they could not be decoded.",
	})

	// CopyEntriesTotal 统计每个拷贝条目的结果（ok/fail）。
	CopyEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "copy_entries_total",
		Help:      "Copy queue entries processed, by result.",
	}, []string{"result"})

	RemoteAttached = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "remote_attached",
		Help:      "1 while a remote client is attached.",
	})

	// AcquisitionState 当前采集状态为 1，其余为 0。
	AcquisitionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "acquisition_state",
		Help:      "Current acquisition state (1 for the active state).",
	}, []string{"state"})
)

// SetAcqState 将 AcquisitionState 切换到 s。
func SetAcqState(s status.AcqState) {
	for _, v := range []status.AcqState{status.AcqIdle, status.AcqViewing, status.AcqRecording} {
		val := 0.0
		if v == s {
			val = 1
		}
		AcquisitionState.WithLabelValues(v.String()).Set(val)
	}
}

// SetRemoteAttached 更新远程接入标志。
func SetRemoteAttached(on bool) {
	if on {
		RemoteAttached.Set(1)
		return
	}
	RemoteAttached.Set(0)
}

// Handler 返回 /metrics 与 /healthz 的路由。
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve 在 addr 上提供指标接口，直到 ctx 取消。
// 参数：
// - ctx: 生命周期
// - addr: 监听地址；为空表示不启用，直接等待 ctx 结束
// 返回：
// - error: 监听失败原因（正常关闭返回 nil）
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	sglog.With(map[string]any{"addr": addr, "status": "listen_ok"}).Info("指标接口开始监听")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}
