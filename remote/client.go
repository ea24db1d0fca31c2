package remote

import (
	"errors"
	"time"

	sgerrors "sglx-remote/errors"
	"sglx-remote/protocol"
	"sglx-remote/transport"
)

// Client 是控制端：连接 agent、发送命令、读取回复。
type Client struct {
	conn *transport.Conn
}

// Dial 连接 agent。
// 参数：
// - network: "tcp" 或 "srt"
// - addr: host:port
// - timeout: 连接超时
func Dial(network, addr string, timeout time.Duration) (*Client, error) {
	c, err := transport.Dial(network, addr, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: c}, nil
}

// Send 发送一条消息。
func (c *Client) Send(m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return c.conn.Send(b)
}

// SendRaw 发送原始字节（调试与测试畸形输入用）。
func (c *Client) SendRaw(b []byte) error { return c.conn.Send(b) }

// Receive 等待下一条可解码的消息；无法解码的行被跳过。
// 返回：
// - protocol.Message: 收到的消息
// - error: 超时返回 transport.ErrNoData；连接断开返回 transport.ErrPeerClosed
func (c *Client) Receive(timeout time.Duration) (protocol.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protocol.Message{}, transport.ErrNoData
		}
		line, err := c.conn.ReceiveLine(min(remaining, 100*time.Millisecond))
		if err != nil {
			if errors.Is(err, transport.ErrNoData) || errors.Is(err, transport.ErrLineTooLong) {
				continue
			}
			return protocol.Message{}, err
		}
		m, err := protocol.Decode(line)
		if err != nil {
			continue
		}
		return m, nil
	}
}

// Request 发送命令并等待一条回复。
func (c *Client) Request(m protocol.Message, timeout time.Duration) (protocol.Message, error) {
	if err := c.Send(m); err != nil {
		return protocol.Message{}, err
	}
	return c.Receive(timeout)
}

// WaitReady 等待 agent 接入后的 status:ready。
func (c *Client) WaitReady(timeout time.Duration) error {
	m, err := c.Receive(timeout)
	if err != nil {
		return err
	}
	if m.Type != protocol.MsgStatus || m.Status != protocol.StatusReady {
		return sgerrors.New(sgerrors.CodeTransport, "unexpected greeting: "+string(m.Type)+"/"+string(m.Status))
	}
	return nil
}

// Disconnect 通知 agent 断开后关闭连接。
func (c *Client) Disconnect() error {
	_ = c.Send(protocol.Message{Type: protocol.MsgDisconnected})
	return c.conn.Close()
}

// Close 直接关闭连接（agent 视为对端断开）。
func (c *Client) Close() error { return c.conn.Close() }
