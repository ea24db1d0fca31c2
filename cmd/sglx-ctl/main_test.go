package main

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeAgent 接受一个连接，发送 greeting，并把之后收到的每一行送入返回的通道。
func fakeAgent(t *testing.T, greeting string, replies ...string) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	lines := make(chan string, 8)
	go func() {
		defer close(lines)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte(greeting + "\n"))
		sc := bufio.NewScanner(c)
		for sc.Scan() {
			lines <- sc.Text()
			for _, r := range replies {
				_, _ = c.Write([]byte(r + "\n"))
			}
			replies = nil
		}
	}()
	return ln.Addr().String(), lines
}

func next(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case l := <-lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("no line from client")
		return ""
	}
}

// TestRunPrintsReplies 验证发送命令、打印回复并在结束时通知断开。
func TestRunPrintsReplies(t *testing.T) {
	addr, lines := fakeAgent(t, `{"type":"status","status":"ready"}`, `{"type":"response","status":"recording_ok"}`)
	var out bytes.Buffer
	if err := run([]string{"--addr", addr, "--type", "start_rec", "--session_id", "m1", "--wait", "300ms"}, &out); err != nil {
		t.Fatal(err)
	}
	if got := next(t, lines); got != `{"type":"start_rec","session_id":"m1"}` {
		t.Fatalf("sent=%q", got)
	}
	if got := next(t, lines); got != `{"type":"disconnected"}` {
		t.Fatalf("want disconnected, got %q", got)
	}
	want := "{\"type\":\"status\",\"status\":\"ready\"}\n{\"type\":\"response\",\"status\":\"recording_ok\"}\n"
	if out.String() != want {
		t.Fatalf("out=%q", out.String())
	}
}

// TestRunErrorStillDisconnects 验证等待 ready 失败时返回错误，且仍发送 disconnected。
func TestRunErrorStillDisconnects(t *testing.T) {
	addr, lines := fakeAgent(t, `{"type":"status","status":"error"}`)
	err := run([]string{"--addr", addr, "--wait", "300ms"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "agent not ready") {
		t.Fatalf("err=%v", err)
	}
	if got := next(t, lines); got != `{"type":"disconnected"}` {
		t.Fatalf("want disconnected, got %q", got)
	}
}
