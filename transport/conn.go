package transport

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	sgerrors "sglx-remote/errors"
	sglog "sglx-remote/log"
)

var (
	// ErrNoData 表示读超时内没有完整的一行（正常情况，不是错误）。
	ErrNoData = sgerrors.New(sgerrors.CodeTransport, "no data yet")
	// ErrPeerClosed 表示对端关闭或连接被重置，当前连接已失效。
	ErrPeerClosed = sgerrors.New(sgerrors.CodeTransport, "peer closed")
	// ErrLineTooLong 表示一行超过 MaxLineSize，整行已丢弃，连接仍可用。
	ErrLineTooLong = sgerrors.New(sgerrors.CodeDecode, "line too long")
)

// MaxLineSize 是单条消息（含 \n）的最大字节数。
const MaxLineSize = 64 << 10

const writeTimeout = 2 * time.Second

type lineResult struct {
	line []byte
	err  error
}

// Conn 封装一条已建立的连接：按 \n 分帧读取，写入整块发送。
type Conn struct {
	id   string
	raw  net.Conn
	peer string

	wmu   sync.Mutex
	lines chan lineResult
	done  chan struct{}

	alive      atomic.Bool
	lastActive atomic.Int64
	closeOnce  sync.Once
}

// newConn 包装 raw 连接并启动后台读循环。
func newConn(raw net.Conn) *Conn {
	c := &Conn{
		id:    uuid.NewString(),
		raw:   raw,
		lines: make(chan lineResult, 16),
		done:  make(chan struct{}),
	}
	if ra := raw.RemoteAddr(); ra != nil {
		c.peer = ra.String()
	}
	c.alive.Store(true)
	c.lastActive.Store(time.Now().UnixMilli())
	go c.readLoop()
	return c
}

// readLoop 将连接上的字节流重组为行并投递到 lines；读错误（含 EOF）投递后退出。
// 超过 MaxLineSize 的行一直丢弃到下一个 \n，投递 ErrLineTooLong。
// 未以 \n 结尾的残余字节随连接关闭一起丢弃。
func (c *Conn) readLoop() {
	defer close(c.lines)
	r := bufio.NewReaderSize(c.raw, MaxLineSize)
	discarding := false
	for {
		chunk, err := r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if !discarding {
				discarding = true
				sglog.With(map[string]any{"conn": c.id, "peer": c.peer, "limit": MaxLineSize, "status": "line_too_long"}).Warn("消息过长，丢弃")
			}
			continue
		case err != nil:
			c.deliver(lineResult{err: err})
			return
		case discarding:
			discarding = false
			if !c.deliver(lineResult{err: ErrLineTooLong}) {
				return
			}
			continue
		}
		line := bytes.Clone(bytes.TrimRight(chunk, "\r\n"))
		if !c.deliver(lineResult{line: line}) {
			return
		}
	}
}

// deliver 投递一个读结果；连接已关闭时返回 false。
func (c *Conn) deliver(r lineResult) bool {
	select {
	case c.lines <- r:
		return true
	case <-c.done:
		return false
	}
}

// ID 返回连接标识（用于日志关联）。
func (c *Conn) ID() string { return c.id }

// Peer 返回对端地址。
func (c *Conn) Peer() string { return c.peer }

// Connected 表示连接是否仍然存活。
func (c *Conn) Connected() bool { return c.alive.Load() }

// LastActivity 返回最近一次收到完整消息的时间。
func (c *Conn) LastActivity() time.Time { return time.UnixMilli(c.lastActive.Load()) }

// ReceiveLine 读取一行（不含分隔符）。
// 参数：
// - timeout: 本次等待上限；超时返回 ErrNoData
// 返回：
// - []byte: 一行数据
// - error: ErrNoData（暂无数据）、ErrLineTooLong（该行已丢弃）或 ErrPeerClosed（连接已失效）
func (c *Conn) ReceiveLine(timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r, ok := <-c.lines:
		if !ok {
			c.markDead()
			return nil, ErrPeerClosed
		}
		if r.err == ErrLineTooLong {
			return nil, ErrLineTooLong
		}
		if r.err != nil {
			if c.alive.Load() {
				sglog.With(map[string]any{"conn": c.id, "peer": c.peer, "status": "peer_closed"}).WithError(r.err).Warn("客户端断开连接")
			}
			c.markDead()
			return nil, ErrPeerClosed
		}
		c.lastActive.Store(time.Now().UnixMilli())
		return r.line, nil
	case <-t.C:
		if !c.alive.Load() {
			return nil, ErrPeerClosed
		}
		return nil, ErrNoData
	}
}

// Send 写出全部字节（线程安全）。
// 写失败（对端重置/管道断开）会记录日志并把连接标记为失效。
// 返回：
// - error: 发送失败原因，调用方通常只需记录
func (c *Conn) Send(b []byte) error {
	if !c.alive.Load() {
		return ErrPeerClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.raw.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.raw.Write(b); err != nil {
		sglog.With(map[string]any{"conn": c.id, "peer": c.peer, "status": "send_error"}).WithError(err).Error("连接被对端重置")
		c.markDead()
		return sgerrors.Wrap(sgerrors.CodeTransport, "send failed", err)
	}
	return nil
}

// Close 关闭连接（幂等）。
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.alive.Store(false)
		close(c.done)
		err = c.raw.Close()
	})
	return err
}

// markDead 标记连接失效并释放底层 socket。
func (c *Conn) markDead() {
	c.alive.Store(false)
	_ = c.Close()
}
