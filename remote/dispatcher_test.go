package remote

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"sglx-remote/hardware"
	"sglx-remote/metrics"
	"sglx-remote/protocol"
	"sglx-remote/session"
	"sglx-remote/status"
	"sglx-remote/transport"
)

type harness struct {
	srv  *transport.Server
	m    *session.Machine
	sim  *hardware.Sim
	d    *Dispatcher
	save string
}

// newHarness 启动一个监听在临时端口、使用模拟硬件的分发器。
func newHarness(t *testing.T, auto bool) *harness {
	t.Helper()
	save := t.TempDir()
	sim := hardware.NewSim()
	m := session.New(sim, session.Options{
		SavePath:   save,
		CopyDirect: true,
		Colocated:  true,
		SubFolder:  "ephys",
		FreeSpace:  func(string) (uint64, error) { return 1 << 40, nil },
	}, nil, nil)
	srv := transport.NewServer("tcp", "127.0.0.1", 0, 20*time.Millisecond)
	d := New(srv, m, Options{PollInterval: 20 * time.Millisecond, ReadTimeout: 20 * time.Millisecond, AutoRemote: auto})
	if err := d.EnterRemoteMode(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.State() != status.LinkWaitingForClient {
		t.Fatalf("state=%s", d.State())
	}
	return &harness{srv: srv, m: m, sim: sim, d: d, save: save}
}

func (h *harness) close() {
	h.d.ExitRemoteMode()
	h.srv.Close()
}

// attach 连接并等待 status:ready。
func (h *harness) attach(t *testing.T) *Client {
	t.Helper()
	c, err := Dial("tcp", h.srv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WaitReady(2 * time.Second); err != nil {
		t.Fatalf("ready: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return h.d.State() == status.LinkAttached })
	return c
}

// expect 读取下一条回复并与期望行逐字节比较。
func expect(t *testing.T, c *Client, want string) {
	t.Helper()
	m, err := c.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("want %s: %v", want, err)
	}
	b, _ := protocol.Encode(m)
	if string(b) != want+"\n" {
		t.Fatalf("got=%q want=%q", b, want)
	}
}

// expectSilence 验证一段时间内没有回复。
func expectSilence(t *testing.T, c *Client, d time.Duration) {
	t.Helper()
	if m, err := c.Receive(d); err == nil {
		t.Fatalf("unexpected reply %+v", m)
	}
}

// TestStartRecScenario 验证 start_rec(mouse42) 的硬件调用顺序与唯一的线路回复。
func TestStartRecScenario(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, false)
	defer h.close()
	c := h.attach(t)
	defer c.Close()

	if err := c.SendRaw([]byte("{\"type\":\"start_rec\",\"session_id\":\"mouse42\"}\n")); err != nil {
		t.Fatal(err)
	}
	expect(t, c, `{"type":"response","status":"recording_ok"}`)
	expectSilence(t, c, 100*time.Millisecond)

	file := filepath.ToSlash(filepath.Join(h.save, "mouse42", "mouse42"))
	want := []string{
		`startRun("mouse42")`,
		`setNextFileName("` + file + `")`,
		`setRecordingEnable(true)`,
	}
	if h.sim.NextFileName() != file {
		t.Fatalf("next file=%q", h.sim.NextFileName())
	}
	got := h.sim.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: got=%s want=%s", i, got[i], want[i])
		}
	}
}

// TestCommandSequence 验证 start_viewing → start_rec → stop 的回复与每一步 status_poll 的结果。
func TestCommandSequence(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, false)
	defer h.close()
	c := h.attach(t)
	defer c.Close()

	poll := protocol.Message{Type: protocol.MsgStatusPoll}
	steps := []struct {
		send protocol.Message
		want []string
	}{
		{poll, []string{`{"type":"status","status":"ready"}`}},
		{protocol.Message{Type: protocol.MsgStartViewing, SessionID: "m1"}, []string{`{"type":"response","status":"viewing_ok"}`}},
		{poll, []string{`{"type":"status","status":"viewing"}`}},
		{protocol.Message{Type: protocol.MsgStartRec, SessionID: "m1"}, []string{`{"type":"response","status":"recording_ok"}`}},
		{poll, []string{`{"type":"status","status":"recording"}`}},
		{protocol.Message{Type: protocol.MsgStartRec, SessionID: "m1"}, []string{`{"type":"status","status":"error"}`}},
		{protocol.Message{Type: protocol.MsgStop}, []string{`{"type":"response","status":"stop_ok"}`}},
		{poll, []string{`{"type":"status","status":"viewing"}`}},
		{protocol.Message{Type: protocol.MsgCopyFiles, SessionPath: filepath.Join(t.TempDir(), "absent")}, []string{`{"type":"response","status":"copy_fail"}`}},
	}
	for i, s := range steps {
		if err := c.Send(s.send); err != nil {
			t.Fatal(err)
		}
		for _, w := range s.want {
			expect(t, c, w)
		}
		if i == 5 && h.m.State() != status.AcqRecording {
			t.Fatalf("rejected start_rec must not change state")
		}
	}
}

// TestDecodeErrorsAndUnknownTypes 验证非法行、超长行、未知类型、缺少 session_path 的 copy_files 都不产生回复，循环继续。
func TestDecodeErrorsAndUnknownTypes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, false)
	defer h.close()
	c := h.attach(t)
	defer c.Close()

	before := testutil.ToFloat64(metrics.DecodeErrorsTotal)
	for _, line := range []string{
		"{not json\n",
		strings.Repeat("x", transport.MaxLineSize+10) + "\n",
		"{\"type\":\"copy_files\",\"session_id\":\"m1\"}\n",
		"{\"type\":\"start_laser\"}\n",
		"{\"type\":\"start_pulses\",\"fps\":30,\"pulse_lag\":5}\n",
	} {
		if err := c.SendRaw([]byte(line)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Send(protocol.Message{Type: protocol.MsgStatusPoll}); err != nil {
		t.Fatal(err)
	}
	expect(t, c, `{"type":"status","status":"ready"}`)
	if got := testutil.ToFloat64(metrics.DecodeErrorsTotal) - before; got != 3 {
		t.Fatalf("decode errors=%v", got)
	}
	if len(h.sim.Calls()) != 0 {
		t.Fatalf("no hardware calls expected: %v", h.sim.Calls())
	}
	if h.d.State() != status.LinkAttached {
		t.Fatalf("loop must survive bad input")
	}
}

// TestPeerLossKeepsRecording 验证录制中客户端断开只退出远程模式，录制继续。
func TestPeerLossKeepsRecording(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, false)
	defer h.close()
	c := h.attach(t)

	if err := c.Send(protocol.Message{Type: protocol.MsgStartRec, SessionID: "m1"}); err != nil {
		t.Fatal(err)
	}
	expect(t, c, `{"type":"response","status":"recording_ok"}`)
	_ = c.Close()

	waitFor(t, 2*time.Second, func() bool { return h.d.State() == status.LinkDetached })
	if h.m.State() != status.AcqRecording {
		t.Fatalf("recording must continue, state=%s", h.m.State())
	}
	if h.m.RemoteAttached() {
		t.Fatalf("remote flag must be cleared")
	}
	if saving, _ := h.sim.IsSaving(); !saving {
		t.Fatalf("hardware must still be saving")
	}
}

// TestDisconnectedMessage 验证 disconnected 命令无回复并退出远程模式；再次进入后可重新接入。
func TestDisconnectedMessage(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, false)
	defer h.close()
	c := h.attach(t)
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return h.d.State() == status.LinkDetached })

	if err := h.d.EnterRemoteMode(context.Background()); err != nil {
		t.Fatal(err)
	}
	c2 := h.attach(t)
	defer c2.Close()
	h.d.ExitRemoteMode()
	h.d.ExitRemoteMode()
	if h.d.State() != status.LinkDetached || h.m.RemoteAttached() {
		t.Fatalf("exit must detach")
	}
}

// TestAutoRemoteRearms 验证开启自动远程时客户端离开后重新等待接入。
func TestAutoRemoteRearms(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, true)
	defer h.close()

	c := h.attach(t)
	_ = c.Close()
	waitFor(t, 2*time.Second, func() bool { return h.d.State() == status.LinkWaitingForClient })

	c2 := h.attach(t)
	defer c2.Close()
	if err := c2.Send(protocol.Message{Type: protocol.MsgStatusPoll}); err != nil {
		t.Fatal(err)
	}
	expect(t, c2, `{"type":"status","status":"ready"}`)
}

// TestExitWhileWaiting 验证等待接入期间退出远程模式会结束后台任务。
func TestExitWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, true)
	h.d.ExitRemoteMode()
	if h.d.State() != status.LinkDetached {
		t.Fatalf("state=%s", h.d.State())
	}
	h.srv.Close()
}

// waitFor 在超时前轮询条件。
func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
