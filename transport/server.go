package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	sgerrors "sglx-remote/errors"
	sglog "sglx-remote/log"
)

var errAcceptTimeout = errors.New("accept timeout")

type acceptor interface {
	accept(timeout time.Duration) (net.Conn, error)
	close() error
	addr() net.Addr
}

// Server 是单客户端监听器：同一时刻最多持有一条存活连接。
type Server struct {
	network    string
	address    string
	acceptPoll time.Duration

	mu     sync.Mutex
	acc    acceptor
	conn   *Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer 创建单客户端监听器（不立即监听）。
// 参数：
// - network: "tcp" 或 "srt"
// - host/port: 监听地址
// - acceptPoll: 接受轮询间隔，决定取消信号的响应粒度
func NewServer(network, host string, port int, acceptPoll time.Duration) *Server {
	if acceptPoll <= 0 {
		acceptPoll = 100 * time.Millisecond
	}
	return &Server{
		network:    network,
		address:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		acceptPoll: acceptPoll,
	}
}

// Listen 绑定并开始监听（幂等）。
// 返回：
// - error: 地址被占用等情况返回 CodeBind；调用方记录后可重试
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc != nil {
		return nil
	}
	var (
		acc acceptor
		err error
	)
	switch s.network {
	case "srt":
		acc, err = listenSRT(s.address)
	default:
		acc, err = listenTCP(s.address)
	}
	if err != nil {
		sglog.With(map[string]any{"addr": s.address, "network": s.network, "status": "bind_error"}).WithError(err).Warn("监听地址不可用")
		return sgerrors.Wrap(sgerrors.CodeBind, "listen failed", err)
	}
	s.acc = acc
	sglog.With(map[string]any{"addr": acc.addr().String(), "network": s.network, "status": "listen_ok"}).Info("控制端口开始监听")
	return nil
}

// Addr 返回实际监听地址（未监听时为 nil）。
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil {
		return nil
	}
	return s.acc.addr()
}

// AcceptAsync 在后台等待一个客户端接入。
// 使用说明：
// - 接入成功时连接写入返回的通道后通道关闭
// - ctx 取消或调用 AbortAccept 时，通道直接关闭（无连接）
// 参数：
// - ctx: 取消信号
// 返回：
// - <-chan *Conn: 接入结果
// - error: 监听失败，或已有接受任务在运行
func (s *Server) AcceptAsync(ctx context.Context) (<-chan *Conn, error) {
	if err := s.Listen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, sgerrors.New(sgerrors.CodeTransport, "accept already running")
	}
	actx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	acc := s.acc
	s.mu.Unlock()

	out := make(chan *Conn, 1)
	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			if s.done == done {
				s.cancel = nil
				s.done = nil
			}
			s.mu.Unlock()
			close(out)
			close(done)
		}()
		s.acceptLoop(actx, acc, out)
	}()
	return out, nil
}

// acceptLoop 以 acceptPoll 为粒度轮询接入，期间观察取消信号。
func (s *Server) acceptLoop(ctx context.Context, acc acceptor, out chan<- *Conn) {
	lastLog := time.Now()
	for {
		select {
		case <-ctx.Done():
			sglog.With(map[string]any{"addr": s.address, "status": "accept_aborted"}).Debug("停止等待连接")
			return
		default:
		}
		if time.Since(lastLog) > 5*time.Second {
			lastLog = time.Now()
			sglog.With(map[string]any{"addr": s.address, "status": "waiting"}).Debug("等待远程连接")
		}
		raw, err := acc.accept(s.acceptPoll)
		if err != nil {
			if errors.Is(err, errAcceptTimeout) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			sglog.With(map[string]any{"addr": s.address, "status": "accept_error"}).WithError(err).Warn("接受连接失败")
			continue
		}
		c := newConn(raw)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.conn = c
		s.mu.Unlock()
		sglog.With(map[string]any{"conn": c.ID(), "peer": c.Peer(), "status": "connected"}).Info("远程客户端已连接")
		out <- c
		return
	}
}

// AbortAccept 取消正在进行的接受任务，并等待其退出（最多一个轮询间隔）。
func (s *Server) AbortAccept() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Conn 返回当前连接（可能为 nil 或已失效）。
func (s *Server) Conn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Connected 表示当前是否持有存活连接。
func (s *Server) Connected() bool {
	c := s.Conn()
	return c != nil && c.Connected()
}

// Close 停止接受、关闭当前连接并释放监听 socket（幂等）。
func (s *Server) Close() {
	s.AbortAccept()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.acc != nil {
		_ = s.acc.close()
		s.acc = nil
	}
}

type tcpAcceptor struct {
	ln *net.TCPListener
}

// listenTCP 在 address 上启动 TCP 监听。
func listenTCP(address string) (*tcpAcceptor, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &tcpAcceptor{ln: ln.(*net.TCPListener)}, nil
}

// accept 带超时地等待一个连接；超时返回 errAcceptTimeout。
func (a *tcpAcceptor) accept(timeout time.Duration) (net.Conn, error) {
	_ = a.ln.SetDeadline(time.Now().Add(timeout))
	c, err := a.ln.Accept()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, errAcceptTimeout
		}
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return c, nil
}

func (a *tcpAcceptor) close() error   { return a.ln.Close() }
func (a *tcpAcceptor) addr() net.Addr { return a.ln.Addr() }
