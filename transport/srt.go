package transport

import (
	"net"
	"sync"
	"time"

	srt "github.com/datarhei/gosrt"
)

type srtAccepted struct {
	conn net.Conn
	err  error
}

// srtAcceptor 把 gosrt 的阻塞式 Accept2 适配为带超时的 accept。
type srtAcceptor struct {
	ln       srt.Listener
	incoming chan srtAccepted
	done     chan struct{}
	once     sync.Once
}

// listenSRT 在 address 上启动 SRT 监听，控制消息以同样的行协议承载。
func listenSRT(address string) (*srtAcceptor, error) {
	cfg := srt.DefaultConfig()
	ln, err := srt.Listen("srt", address, cfg)
	if err != nil {
		return nil, err
	}
	a := &srtAcceptor{
		ln:       ln,
		incoming: make(chan srtAccepted),
		done:     make(chan struct{}),
	}
	go a.pump()
	return a, nil
}

func (a *srtAcceptor) pump() {
	for {
		req, err := a.ln.Accept2()
		if err != nil {
			select {
			case a.incoming <- srtAccepted{err: net.ErrClosed}:
			case <-a.done:
			}
			return
		}
		conn, err := req.Accept()
		if err != nil {
			continue
		}
		select {
		case a.incoming <- srtAccepted{conn: conn}:
		case <-a.done:
			_ = conn.Close()
			return
		}
	}
}

func (a *srtAcceptor) accept(timeout time.Duration) (net.Conn, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-a.incoming:
		return r.conn, r.err
	case <-a.done:
		return nil, net.ErrClosed
	case <-t.C:
		return nil, errAcceptTimeout
	}
}

func (a *srtAcceptor) close() error {
	a.once.Do(func() {
		close(a.done)
		a.ln.Close()
	})
	return nil
}

func (a *srtAcceptor) addr() net.Addr { return a.ln.Addr() }
