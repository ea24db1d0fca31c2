package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"sglx-remote/protocol"
	"sglx-remote/remote"
	"sglx-remote/transport"
)

// main 启动远程控制客户端：接入 agent、等待 status:ready、发送一条命令并打印回复。
// 使用说明：
// - --type 为空时只做接入检查
// - stop/copy_files 等命令的回复可能是多条，读取持续 --wait 时间
// - 结束时（包括出错时）发送 disconnected，agent 退出远程模式
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("sglx-ctl", pflag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8800", "agent control address")
	network := fs.String("network", "tcp", "tcp or srt")
	typ := fs.String("type", "status_poll", "message type to send")
	sessionID := fs.String("session_id", "", "session id for start_rec/start_viewing")
	sessionPath := fs.String("session_path", "", "destination for copy_files")
	wait := fs.Duration("wait", 2*time.Second, "how long to collect replies")
	keep := fs.Bool("keep", false, "do not send disconnected before exiting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := remote.Dial(*network, *addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer func() {
		if *keep {
			_ = c.Close()
			return
		}
		_ = c.Disconnect()
	}()

	if err := c.WaitReady(*wait); err != nil {
		return fmt.Errorf("agent not ready: %w", err)
	}
	_, _ = out.Write(protocol.MustEncode(protocol.StatusMsg(protocol.StatusReady)))
	if *typ == "" {
		return nil
	}

	msg := protocol.Message{
		Type:        protocol.MessageType(*typ),
		SessionID:   *sessionID,
		SessionPath: *sessionPath,
	}
	if err := c.Send(msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		reply, err := c.Receive(time.Until(deadline))
		if err != nil {
			if errors.Is(err, transport.ErrNoData) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		_, _ = out.Write(protocol.MustEncode(reply))
	}
	return nil
}
