package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"sglx-remote/hardware"
	"sglx-remote/remote"
	"sglx-remote/session"
	"sglx-remote/status"
	"sglx-remote/transport"
)

// TestConsoleCommands 验证本地控制台驱动状态机，远程模式下只放行 stop，status 显示已接入的客户端。
func TestConsoleCommands(t *testing.T) {
	m := session.New(hardware.NewSim(), session.Options{
		SavePath:  t.TempDir(),
		Colocated: true,
		SubFolder: "ephys",
	}, nil, nil)
	srv := transport.NewServer("tcp", "127.0.0.1", 0, 20*time.Millisecond)
	defer srv.Close()
	d := remote.New(srv, m, remote.Options{PollInterval: 20 * time.Millisecond, ReadTimeout: 20 * time.Millisecond})
	defer d.ExitRemoteMode()

	var out bytes.Buffer
	quit := false
	c := newConsole(m, d, &out, func() { quit = true })
	ctx := context.Background()

	c.handle(ctx, "run m1")
	if m.State() != status.AcqViewing {
		t.Fatalf("state=%s", m.State())
	}
	c.handle(ctx, "rec m1")
	if m.State() != status.AcqRecording {
		t.Fatalf("state=%s", m.State())
	}
	c.handle(ctx, "status")
	if !strings.Contains(out.String(), "state=Recording") {
		t.Fatalf("status output: %s", out.String())
	}

	c.handle(ctx, "remote")
	if d.State() != status.LinkWaitingForClient {
		t.Fatalf("link=%s", d.State())
	}
	out.Reset()
	c.handle(ctx, "status")
	if strings.Contains(out.String(), "peer=") {
		t.Fatalf("no peer while waiting: %s", out.String())
	}
	cl, err := remote.Dial("tcp", srv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Close()
	if err := cl.WaitReady(2 * time.Second); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return d.State() == status.LinkAttached })
	out.Reset()
	c.handle(ctx, "status")
	if !strings.Contains(out.String(), "peer=127.0.0.1:") {
		t.Fatalf("status must show the attached peer: %s", out.String())
	}

	out.Reset()
	c.handle(ctx, "stoprec")
	if m.State() != status.AcqRecording || !strings.Contains(out.String(), "远程模式下本地命令被禁用") {
		t.Fatalf("local command must be refused in remote mode: %s", out.String())
	}
	c.handle(ctx, "stop")
	if m.State() != status.AcqIdle {
		t.Fatalf("stop must be allowed in remote mode, state=%s", m.State())
	}
	c.handle(ctx, "remote")
	if d.State() != status.LinkDetached {
		t.Fatalf("link=%s", d.State())
	}

	out.Reset()
	c.handle(ctx, "bogus")
	if !strings.Contains(out.String(), "未知命令") {
		t.Fatalf("out=%s", out.String())
	}
	c.run(ctx, strings.NewReader("clear\nquit\n"))
	if !quit {
		t.Fatalf("quit not propagated")
	}
}
