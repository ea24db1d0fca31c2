package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"sglx-remote/config"
	sglog "sglx-remote/log"
	"sglx-remote/metrics"
	"sglx-remote/protocol"
	"sglx-remote/session"
	"sglx-remote/status"
	"sglx-remote/transport"
)

const idleSleep = 10 * time.Millisecond

// Options 是远程分发循环的节奏参数。
type Options struct {
	// PollInterval 收到一条消息后，至少间隔这么久才读取下一条。
	PollInterval time.Duration
	// ReadTimeout 单次读取的等待上限，决定停止信号的响应粒度。
	ReadTimeout time.Duration
	// AutoRemote 客户端离开后自动重新等待接入。
	AutoRemote bool
}

// OptionsFromConfig 从 agent 配置构造分发参数。
func OptionsFromConfig(cfg config.AgentConfig) Options {
	return Options{PollInterval: cfg.PollInterval, ReadTimeout: cfg.ReadTimeout, AutoRemote: cfg.AutoRemote}
}

// Dispatcher 在远程模式下读取客户端命令并驱动状态机。
// 链路状态：Detached → WaitingForClient → Attached → Detached。
type Dispatcher struct {
	srv  *transport.Server
	m    *session.Machine
	opts Options

	mu         sync.Mutex
	link       status.LinkState
	conn       *transport.Conn
	cancel     context.CancelFunc
	manualExit bool
	wg         sync.WaitGroup
}

// New 创建分发器。
func New(srv *transport.Server, m *session.Machine, opts Options) *Dispatcher {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	}
	return &Dispatcher{srv: srv, m: m, opts: opts, link: status.LinkDetached}
}

// State 返回当前链路状态。
func (d *Dispatcher) State() status.LinkState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.link
}

// Peer 返回已接入客户端的地址与最近一次收到消息的时间；未接入时 ok 为 false。
func (d *Dispatcher) Peer() (peer string, last time.Time, ok bool) {
	if d.State() != status.LinkAttached || !d.srv.Connected() {
		return "", time.Time{}, false
	}
	c := d.srv.Conn()
	return c.Peer(), c.LastActivity(), true
}

// EnterRemoteMode 开始等待客户端接入；接入后标记远程模式、发送 status:ready 并启动轮询。
// 已处于等待或接入状态时直接返回。
// 参数：
// - ctx: 远程模式的生命周期；取消等同于 ExitRemoteMode
// 返回：
// - error: 监听失败（CodeBind）等
func (d *Dispatcher) EnterRemoteMode(ctx context.Context) error {
	d.mu.Lock()
	d.manualExit = false
	d.mu.Unlock()
	return d.arm(ctx)
}

func (d *Dispatcher) arm(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link != status.LinkDetached || d.manualExit {
		return nil
	}
	ch, err := d.srv.AcceptAsync(ctx)
	if err != nil {
		return err
	}
	rctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.link = status.LinkWaitingForClient
	d.wg.Add(1)
	go d.serve(ctx, rctx, ch)
	sglog.With(map[string]any{"addr": addrString(d.srv), "status": "waiting"}).Info("进入远程模式，等待客户端")
	return nil
}

// serve 等待接入并运行轮询循环，结束时退出远程模式（必要时重新等待）。
func (d *Dispatcher) serve(parent, ctx context.Context, ch <-chan *transport.Conn) {
	defer d.wg.Done()
	var c *transport.Conn
	select {
	case c = <-ch:
	case <-ctx.Done():
		d.srv.AbortAccept()
		c = <-ch
	}
	if c == nil || ctx.Err() != nil {
		if c != nil {
			_ = c.Close()
		}
		d.teardown("accept_aborted")
		return
	}

	d.mu.Lock()
	d.conn = c
	d.link = status.LinkAttached
	d.mu.Unlock()
	d.m.SetRemote(func(msg protocol.Message) { d.sendTo(c, msg) })
	d.sendTo(c, protocol.StatusMsg(protocol.StatusReady))
	sglog.With(map[string]any{"conn": c.ID(), "peer": c.Peer(), "status": "attached"}).Info("远程客户端已接入")

	reason := d.poll(ctx, c)
	d.teardown(reason)

	if reason != "stopped" && d.opts.AutoRemote && parent.Err() == nil {
		if err := d.arm(parent); err != nil {
			sglog.With(map[string]any{"status": "rearm_error"}).WithError(err).Error("重新进入远程模式失败")
		}
	}
}

// poll 按间隔读取并分发消息，返回退出原因。
func (d *Dispatcher) poll(ctx context.Context, c *transport.Conn) string {
	var last time.Time
	for {
		if ctx.Err() != nil {
			return "stopped"
		}
		if time.Since(last) < d.opts.PollInterval {
			time.Sleep(idleSleep)
			continue
		}
		if !c.Connected() {
			sglog.With(map[string]any{"conn": c.ID(), "status": "peer_lost"}).Error("客户端已断开")
			return "peer_lost"
		}
		line, err := c.ReceiveLine(d.opts.ReadTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrPeerClosed) {
				sglog.With(map[string]any{"conn": c.ID(), "status": "peer_lost"}).Error("客户端已断开")
				return "peer_lost"
			}
			if errors.Is(err, transport.ErrLineTooLong) {
				metrics.DecodeErrorsTotal.Inc()
			}
			continue
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			metrics.DecodeErrorsTotal.Inc()
			sglog.With(map[string]any{"conn": c.ID(), "line": string(line), "status": "decode_error"}).WithError(err).Warn("消息解析失败，丢弃")
			continue
		}
		last = time.Now()
		metrics.CommandsTotal.WithLabelValues(string(msg.Type)).Inc()
		if d.dispatch(c, msg) {
			return "client_disconnected"
		}
	}
}

// dispatch 按消息类型驱动状态机；返回 true 表示客户端请求断开。
func (d *Dispatcher) dispatch(c *transport.Conn, msg protocol.Message) bool {
	fields := map[string]any{"conn": c.ID(), "type": string(msg.Type)}
	if msg.SessionID != "" {
		fields["session"] = msg.SessionID
	}
	l := sglog.With(fields)
	id := msg.SessionID
	if id == "" {
		id = session.DefaultRemoteSessionID
	}
	switch msg.Type {
	case protocol.MsgStartRec:
		l.Info("收到开始录制命令")
		_ = d.m.Record(id)
	case protocol.MsgStartViewing:
		l.Info("收到开始预览命令")
		_ = d.m.StartViewing(id)
	case protocol.MsgStop:
		l.Info("收到停止命令")
		_ = d.m.StopRecordingOnly()
	case protocol.MsgStatusPoll:
		d.sendTo(c, d.m.PollStatus())
	case protocol.MsgCopyFiles:
		l.Debug("收到拷贝命令")
		_ = d.m.EnqueueOrCopyNow(msg.SessionID, msg.SessionPath)
	case protocol.MsgPurgeFiles:
		l.Debug("收到清理命令")
		_ = d.m.Purge()
	case protocol.MsgDisconnected:
		l.Info("客户端通知断开")
		return true
	default:
		if !msg.Type.Known() {
			l.Warn("未知消息类型，丢弃")
			break
		}
		l.Debug("忽略未处理的消息类型")
	}
	return false
}

func (d *Dispatcher) sendTo(c *transport.Conn, msg protocol.Message) {
	b, err := protocol.Encode(msg)
	if err != nil {
		sglog.With(map[string]any{"conn": c.ID(), "status": "encode_error"}).WithError(err).Error("消息编码失败")
		return
	}
	if err := c.Send(b); err != nil {
		return
	}
	metrics.RepliesTotal.WithLabelValues(string(msg.Status)).Inc()
}

// teardown 关闭当前连接并清除远程标志（幂等）。
func (d *Dispatcher) teardown(reason string) {
	d.mu.Lock()
	if d.link == status.LinkDetached {
		d.mu.Unlock()
		return
	}
	c := d.conn
	cancel := d.cancel
	d.conn = nil
	d.cancel = nil
	d.link = status.LinkDetached
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		_ = c.Close()
	}
	d.m.ClearRemote()
	sglog.With(map[string]any{"reason": reason, "acq": d.m.State().String(), "status": "detached"}).Info("退出远程模式")
}

// ExitRemoteMode 停止等待/轮询、关闭连接、清除远程标志（幂等）。
// 正在进行的录制不受影响。
func (d *Dispatcher) ExitRemoteMode() {
	d.mu.Lock()
	d.manualExit = true
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	d.teardown("stopped")
}

func addrString(srv *transport.Server) string {
	if a := srv.Addr(); a != nil {
		return a.String()
	}
	return ""
}
