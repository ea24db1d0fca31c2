package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"sglx-remote/remote"
	"sglx-remote/session"
	"sglx-remote/status"
)

const consoleHelp = `命令：
  run [id]       开始预览
  rec [id]       开始录制（未运行时先启动采集）
  stoprec        停止录制，保持预览
  stop           停止采集
  status         显示当前状态与拷贝列表
  remote         进入/退出远程模式
  copy [dest]    拷贝当前录制到 dest；不带参数时拷贝整个列表
  compress       压缩拷贝列表
  clear          清空拷贝列表
  purge          删除当前录制
  quit           退出`

// console 是本地交互控制台：与远程客户端使用同一套状态机接口。
// 远程模式下只允许 stop/status/remote/quit/help。
type console struct {
	m    *session.Machine
	d    *remote.Dispatcher
	out  io.Writer
	quit func()
}

func newConsole(m *session.Machine, d *remote.Dispatcher, out io.Writer, quit func()) *console {
	return &console{m: m, d: d, out: out, quit: quit}
}

// run 逐行读取命令直到输入结束或 ctx 取消。
func (c *console) run(ctx context.Context, in io.Reader) {
	c.printf("%s\n", consoleHelp)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if c.handle(ctx, sc.Text()) {
			c.quit()
			return
		}
	}
}

func (c *console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *console) remoteActive() bool {
	return c.d.State() != status.LinkDetached
}

// handle 执行一条命令；返回 true 表示退出。
func (c *console) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, arg := strings.ToLower(fields[0]), ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.printf("%s\n", consoleHelp)
		return false
	case "status":
		c.printStatus()
		return false
	case "remote":
		if c.remoteActive() {
			c.d.ExitRemoteMode()
			c.printf("已退出远程模式\n")
			return false
		}
		if err := c.d.EnterRemoteMode(ctx); err != nil {
			c.printf("进入远程模式失败: %v\n", err)
			return false
		}
		c.printf("远程模式：等待客户端接入\n")
		return false
	case "stop":
		c.report(c.m.StopAll())
		return false
	}

	if c.remoteActive() {
		c.printf("远程模式下本地命令被禁用（可用 stop/status/remote/quit）\n")
		return false
	}
	switch cmd {
	case "run":
		c.report(c.m.StartViewing(arg))
	case "rec":
		c.report(c.m.Record(arg))
	case "stoprec":
		c.report(c.m.StopRecordingOnly())
	case "copy":
		if arg == "" {
			c.report(c.m.CopyPending())
		} else {
			c.report(c.m.EnqueueOrCopyNow("", arg))
		}
	case "compress":
		c.report(c.m.CompressPending())
	case "clear":
		c.m.ClearPending()
		c.report(nil)
	case "purge":
		c.report(c.m.Purge())
	default:
		c.printf("未知命令: %s（输入 help 查看）\n", cmd)
	}
	return false
}

func (c *console) report(err error) {
	if err != nil {
		c.printf("失败: %v\n", err)
		return
	}
	c.printf("ok\n")
}

func (c *console) printStatus() {
	snap := c.m.Snapshot()
	c.printf("state=%s controller=%s link=%s session=%s elapsed=%s\n",
		snap.State, snap.Controller, c.d.State(), snap.Session.ID, snap.Elapsed.Round(time.Second))
	if peer, last, ok := c.d.Peer(); ok {
		c.printf("peer=%s last_message=%s\n", peer, last.Format(time.TimeOnly))
	}
	if len(snap.Pending) == 0 {
		return
	}
	b, err := json.MarshalIndent(snap.Pending, "", "  ")
	if err != nil {
		return
	}
	c.printf("pending=%s\n", b)
}
