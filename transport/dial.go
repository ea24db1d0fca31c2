package transport

import (
	"net"
	"time"

	srt "github.com/datarhei/gosrt"

	sgerrors "sglx-remote/errors"
)

// Dial 以控制端身份连接 agent。
// 参数：
// - network: "tcp" 或 "srt"
// - addr: host:port
// - timeout: 连接超时（仅 tcp 生效，srt 使用握手超时）
// 返回：
// - *Conn: 已建立的连接（与服务端使用同样的行读取语义）
// - error: CodeTransport
func Dial(network, addr string, timeout time.Duration) (*Conn, error) {
	var (
		raw net.Conn
		err error
	)
	switch network {
	case "srt":
		cfg := srt.DefaultConfig()
		if timeout > 0 {
			cfg.ConnectionTimeout = timeout
		}
		raw, err = srt.Dial("srt", addr, cfg)
	default:
		raw, err = net.DialTimeout("tcp", addr, timeout)
	}
	if err != nil {
		return nil, sgerrors.Wrap(sgerrors.CodeTransport, "dial failed", err)
	}
	return newConn(raw), nil
}
