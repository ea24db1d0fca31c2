package session

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"sglx-remote/config"
	sgerrors "sglx-remote/errors"
	"sglx-remote/fsops"
	"sglx-remote/hardware"
	sglog "sglx-remote/log"
	"sglx-remote/metrics"
	"sglx-remote/protocol"
	"sglx-remote/status"
)

// DefaultRemoteSessionID 是远程命令未携带 session_id 时使用的会话名（属于测试会话）。
const DefaultRemoteSessionID = fsops.TestSessionMarker

// Options 是状态机的运行策略。
type Options struct {
	SavePath          string
	MinFreeSpace      uint64
	FailOnLowDisk     bool
	CopyDirect        bool
	Colocated         bool
	SubFolder         string
	KeepFailed        bool
	CopyAfterCompress bool

	// FreeSpace/Now 为空时使用 fsops.FreeSpace 与 time.Now。
	FreeSpace func(path string) (uint64, error)
	Now       func() time.Time
}

// OptionsFromConfig 从配置构造状态机策略。
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SavePath:          cfg.Recording.SavePath,
		MinFreeSpace:      uint64(max(cfg.Recording.MinFreeSpace.Int64(), 0)),
		FailOnLowDisk:     cfg.Recording.FailOnLowDisk,
		CopyDirect:        cfg.Copy.Direct,
		Colocated:         cfg.Copy.Colocated,
		SubFolder:         cfg.Copy.SubFolder,
		KeepFailed:        cfg.Copy.KeepFailed,
		CopyAfterCompress: cfg.Copy.CopyAfterCompress,
	}
}

// Session 是当前会话信息。
type Session struct {
	ID            string    `json:"session_id"`
	RecordingFile string    `json:"recording_file"`
	FilesCopied   bool      `json:"files_copied"`
	StartedAt     time.Time `json:"started_at"`
}

// Snapshot 是供前端展示的只读状态快照。
type Snapshot struct {
	State      status.AcqState    `json:"state"`
	Controller status.Controller  `json:"controller"`
	Remote     bool               `json:"remote"`
	Session    Session            `json:"session"`
	Pending    []PendingCopyEntry `json:"pending"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// ReplyFunc 把一条消息发给已接入的远端。
type ReplyFunc func(protocol.Message)

// Machine 是采集状态的唯一权威：串行化所有开始/停止/拷贝/清理操作，
// 也是唯一调用硬件驱动的组件。远程模式下，操作结果通过 ReplyFunc 回传。
type Machine struct {
	mu    sync.Mutex
	hw    hardware.Driver
	opts  Options
	comp  fsops.Compressor
	store *Store

	state     status.AcqState
	remote    bool
	reply     ReplyFunc
	sess      Session
	queue     []PendingCopyEntry
	events    []Event
	observers []Observer
}

// New 创建状态机。
// 参数：
// - hw: 硬件驱动
// - opts: 运行策略
// - comp: 压缩能力（可为 nil，表示不支持压缩）
// - store: 队列持久化（可为 nil）
func New(hw hardware.Driver, opts Options, comp fsops.Compressor, store *Store) *Machine {
	if opts.FreeSpace == nil {
		opts.FreeSpace = fsops.FreeSpace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Machine{hw: hw, opts: opts, comp: comp, store: store, state: status.AcqIdle}
	if store != nil {
		q, err := store.Load()
		if err != nil {
			sglog.With(map[string]any{"path": store.Path(), "status": "queue_load_error"}).WithError(err).Warn("拷贝队列恢复失败")
		} else if len(q) > 0 {
			m.queue = q
			sglog.With(map[string]any{"path": store.Path(), "pending": len(q), "status": "queue_restored"}).Info("已恢复拷贝队列")
		}
	}
	metrics.SetAcqState(m.state)
	return m
}

// AddObserver 订阅状态变化事件。
func (m *Machine) AddObserver(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

// run 在锁内执行 fn，解锁后把期间产生的事件分发给订阅者。
func (m *Machine) run(fn func() error) error {
	m.mu.Lock()
	err := fn()
	evs := m.events
	m.events = nil
	obs := append([]Observer(nil), m.observers...)
	metrics.SetAcqState(m.state)
	m.mu.Unlock()
	for _, e := range evs {
		for _, o := range obs {
			o.OnEvent(e)
		}
	}
	return err
}

func (m *Machine) emit(kind EventKind) {
	e := Event{Kind: kind, SessionID: m.sess.ID, State: m.state, Pending: len(m.queue)}
	if !m.sess.StartedAt.IsZero() {
		e.Elapsed = m.opts.Now().Sub(m.sess.StartedAt)
	}
	m.events = append(m.events, e)
}

// send 仅在远程接入时回传消息。
func (m *Machine) send(msg protocol.Message) {
	if m.remote && m.reply != nil {
		m.reply(msg)
	}
}

func (m *Machine) sendError() { m.send(protocol.StatusMsg(protocol.StatusError)) }

func (m *Machine) fields(extra map[string]any) map[string]any {
	f := map[string]any{"session": m.sess.ID, "state": m.state.String(), "remote": m.remote}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// hardwareFailure 记录硬件错误（错误文本原样输出），并在 ok=false 时补一个错误。
func (m *Machine) hardwareFailure(op string, err error, what string) error {
	if err == nil {
		err = hardware.Failure(op, what)
	}
	sglog.With(m.fields(map[string]any{"op": op, "status": "hardware_error"})).WithError(err).Error("采集硬件调用失败")
	return err
}

func (m *Machine) policyFailure(msg string) error {
	sglog.With(m.fields(map[string]any{"status": "rejected"})).Warn(msg)
	return sgerrors.New(sgerrors.CodePolicy, msg)
}

func defaultSessionID(now time.Time) string {
	return fsops.TestSessionMarker + "Test_" + now.Format("20060102_150405")
}

// SetRemote 标记远程接入，之后的操作结果通过 reply 回传。
func (m *Machine) SetRemote(reply ReplyFunc) {
	_ = m.run(func() error {
		m.remote = true
		m.reply = reply
		metrics.SetRemoteAttached(true)
		m.emit(EventRemoteAttached)
		return nil
	})
}

// ClearRemote 清除远程接入标志（不影响采集状态）。
func (m *Machine) ClearRemote() {
	_ = m.run(func() error {
		if !m.remote {
			return nil
		}
		m.remote = false
		m.reply = nil
		metrics.SetRemoteAttached(false)
		m.emit(EventRemoteDetached)
		return nil
	})
}

// RemoteAttached 表示是否处于远程模式。
func (m *Machine) RemoteAttached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remote
}

// State 返回当前采集状态。
func (m *Machine) State() status.AcqState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StartViewing 开始预览（startRun）。
// 参数：
// - id: 会话名；为空时按当前时间生成
// 返回：
// - error: CodeHardware（未初始化或 startRun 失败）/ CodePolicy（录制中）
func (m *Machine) StartViewing(id string) error {
	return m.run(func() error {
		ok, err := m.hw.IsInitialized()
		if err != nil || !ok {
			m.sendError()
			return m.hardwareFailure("isInitialized", err, "acquisition not initialized")
		}
		next, err := Next(m.state, OpStartView)
		if err != nil {
			m.sendError()
			return m.policyFailure("录制中不能重新开始预览")
		}
		if id == "" {
			id = defaultSessionID(m.opts.Now())
		}
		if err := m.hw.StartRun(id); err != nil {
			m.sendError()
			return m.hardwareFailure("startRun", err, "")
		}
		m.state = next
		m.sess.ID = id
		m.sess.StartedAt = m.opts.Now()
		sglog.With(m.fields(map[string]any{"status": "viewing_ok"})).Info("开始预览")
		m.send(protocol.Response(protocol.StatusViewingOK))
		m.emit(EventViewingStarted)
		return nil
	})
}

// StartRecording 在已运行的采集上开始录制。
// 流程：
// - 检查硬件在运行、检查磁盘空间
// - 创建 <save_path>/<id>，设置输出文件名 <save_path>/<id>/<id>，开启录制
// 返回：
// - error: 任一步失败返回对应错误，状态不迁移
func (m *Machine) StartRecording() error {
	return m.run(func() error { return m.startRecordingLocked(m.sess.ID) })
}

// StartViewingAndRecording 从空闲直接进入录制（startRun 后开启录制），不先查询运行状态。
func (m *Machine) StartViewingAndRecording() error {
	return m.run(func() error { return m.startViewAndRecordLocked("") })
}

// Record 是远程 start_rec 的入口：已在录制则拒绝；采集在运行则开始录制，否则先启动再录制。
// 会话名只在采集启动或录制开启成功后才生效，失败时保留上一次会话。
// 参数：
// - id: 会话名；为空时按当前时间生成
func (m *Machine) Record(id string) error {
	return m.run(func() error {
		if m.state == status.AcqRecording {
			m.sendError()
			return m.policyFailure("收到开始录制命令，但已在录制")
		}
		running, err := m.hw.IsRunning()
		if err != nil {
			m.sendError()
			return m.hardwareFailure("isRunning", err, "")
		}
		if running {
			return m.startRecordingLocked(id)
		}
		return m.startViewAndRecordLocked(id)
	})
}

func (m *Machine) startRecordingLocked(id string) error {
	next, err := Next(m.state, OpStartRecord)
	if err != nil {
		m.sendError()
		return m.policyFailure("已在录制")
	}
	running, err := m.hw.IsRunning()
	if err != nil || !running {
		m.sendError()
		return m.hardwareFailure("isRunning", err, "acquisition not running")
	}
	if err := m.checkDiskLocked(); err != nil {
		return err
	}
	if id == "" {
		id = defaultSessionID(m.opts.Now())
	}
	if err := m.armRecordingLocked(id); err != nil {
		m.sendError()
		return err
	}
	m.state = next
	m.recordingStartedLocked()
	return nil
}

func (m *Machine) startViewAndRecordLocked(id string) error {
	next, err := Next(m.state, OpStartViewAndRecord)
	if err != nil {
		m.sendError()
		return m.policyFailure("已在录制")
	}
	if err := m.checkDiskLocked(); err != nil {
		return err
	}
	if id == "" {
		id = defaultSessionID(m.opts.Now())
	}
	if err := m.hw.StartRun(id); err != nil {
		m.sendError()
		return m.hardwareFailure("startRun", err, "")
	}
	m.state = status.AcqViewing
	m.sess.ID = id
	m.sess.StartedAt = m.opts.Now()
	m.emit(EventViewingStarted)
	if err := m.armRecordingLocked(id); err != nil {
		m.sendError()
		return err
	}
	m.state = next
	m.recordingStartedLocked()
	return nil
}

// armRecordingLocked 创建会话目录、设置输出文件名并开启录制；全部成功后才切换到会话 id。
func (m *Machine) armRecordingLocked(id string) error {
	dir := filepath.Join(m.opts.SavePath, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = sgerrors.Wrap(sgerrors.CodeFilesystem, "create session directory", err)
		sglog.With(m.fields(map[string]any{"dir": dir, "status": "mkdir_error"})).WithError(err).Error("创建会话目录失败")
		return err
	}
	file := filepath.ToSlash(filepath.Join(dir, id))
	if err := m.hw.SetNextFileName(file); err != nil {
		return m.hardwareFailure("setNextFileName", err, "")
	}
	if err := m.hw.SetRecordingEnable(true); err != nil {
		return m.hardwareFailure("setRecordingEnable", err, "")
	}
	m.sess.ID = id
	m.sess.RecordingFile = dir
	m.sess.FilesCopied = false
	return nil
}

func (m *Machine) recordingStartedLocked() {
	m.sess.StartedAt = m.opts.Now()
	sglog.With(m.fields(map[string]any{"dir": m.sess.RecordingFile, "status": "recording_ok"})).Info("开始录制")
	m.send(protocol.Response(protocol.StatusRecordingOK))
	m.emit(EventRecordingStarted)
}

// checkDiskLocked 检查保存路径所在卷的可用空间。
// 低于阈值时记录警告，远程模式下主动发送 recording_fail；仅在 FailOnLowDisk 时拒绝录制。
func (m *Machine) checkDiskLocked() error {
	if m.opts.MinFreeSpace == 0 {
		return nil
	}
	free, err := m.opts.FreeSpace(m.opts.SavePath)
	if err != nil {
		sglog.With(m.fields(map[string]any{"path": m.opts.SavePath, "status": "disk_unknown"})).WithError(err).Warn("无法查询磁盘空间")
		return nil
	}
	if free >= m.opts.MinFreeSpace {
		return nil
	}
	sglog.With(m.fields(map[string]any{
		"path":      m.opts.SavePath,
		"free":      humanize.IBytes(free),
		"threshold": humanize.IBytes(m.opts.MinFreeSpace),
		"status":    "low_disk",
	})).Warn("磁盘空间不足")
	m.send(protocol.Response(protocol.StatusRecordingFail))
	if m.opts.FailOnLowDisk {
		return sgerrors.New(sgerrors.CodePolicy, "insufficient disk space")
	}
	return nil
}

// StopRecordingOnly 停止写文件但保持预览（Recording → Viewing）。
func (m *Machine) StopRecordingOnly() error {
	return m.run(func() error {
		saving, err := m.hw.IsSaving()
		if err != nil {
			m.sendError()
			return m.hardwareFailure("isSaving", err, "")
		}
		if !saving {
			m.sendError()
			return m.policyFailure("当前没有在录制")
		}
		next, err := Next(m.state, OpStopRecording)
		if err != nil {
			next = status.AcqViewing
		}
		if err := m.hw.SetRecordingEnable(false); err != nil {
			m.sendError()
			return m.hardwareFailure("setRecordingEnable", err, "")
		}
		elapsed := m.opts.Now().Sub(m.sess.StartedAt)
		m.emit(EventRecordingStopped)
		m.state = next
		sglog.With(m.fields(map[string]any{"elapsed_s": elapsed.Round(100 * time.Millisecond).Seconds(), "status": "stop_ok"})).Info("停止录制")
		m.send(protocol.Response(protocol.StatusStopOK))
		return nil
	})
}

// StopAll 无条件停止采集（stopRun）并回到 Idle；若正在录制则先回复 stop_ok。
func (m *Machine) StopAll() error {
	return m.run(m.stopAllLocked)
}

func (m *Machine) stopAllLocked() error {
	wasRecording := m.state == status.AcqRecording
	wasRunning := m.state.Running()
	if err := m.hw.StopRun(); err != nil {
		m.sendError()
		return m.hardwareFailure("stopRun", err, "")
	}
	if wasRecording {
		sglog.With(m.fields(map[string]any{"elapsed_s": m.opts.Now().Sub(m.sess.StartedAt).Round(100 * time.Millisecond).Seconds(), "status": "stop_ok"})).Info("停止录制")
		m.send(protocol.Response(protocol.StatusStopOK))
		m.emit(EventRecordingStopped)
	}
	m.state, _ = Next(m.state, OpStopAll)
	if wasRunning {
		m.emit(EventViewingStopped)
	}
	return nil
}

// PollStatus 返回当前状态消息（Recording > Viewing > RemoteReady > Error）。
func (m *Machine) PollStatus() protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return protocol.StatusMsg(wireStatus(status.Derive(m.state, m.remote)))
}

func wireStatus(c status.Controller) protocol.Status {
	switch c {
	case status.ControllerRecording:
		return protocol.StatusRecording
	case status.ControllerViewing:
		return protocol.StatusViewing
	case status.ControllerRemoteReady:
		return protocol.StatusReady
	default:
		return protocol.StatusError
	}
}

// EnqueueOrCopyNow 处理拷贝请求：立即拷贝，或加入待拷贝队列。
// 前置条件：不在录制、存在录制目录、目标通过同址校验；不满足时回复 copy_fail 且不做任何文件操作。
// 参数：
// - sessionID: 会话名；为空时使用当前录制所属的会话
// - dest: 目标会话目录
func (m *Machine) EnqueueOrCopyNow(sessionID, dest string) error {
	return m.run(func() error {
		if m.state == status.AcqRecording {
			m.send(protocol.Response(protocol.StatusCopyFail))
			return m.policyFailure("录制中不能拷贝")
		}
		if m.sess.RecordingFile == "" {
			m.send(protocol.Response(protocol.StatusCopyFail))
			return m.policyFailure("没有可拷贝的录制")
		}
		if !fsops.Colocated(dest, m.opts.Colocated) {
			m.send(protocol.Response(protocol.StatusCopyFail))
			return m.policyFailure("目标路径未通过同址校验")
		}
		if m.sess.FilesCopied {
			sglog.With(m.fields(map[string]any{"dst": dest, "status": "already_copied"})).Info("录制文件已拷贝")
			m.send(protocol.Response(protocol.StatusCopyOK))
			return nil
		}
		if sessionID == "" {
			// 录制目录以录制时的会话名命名，之后的预览可能已换了会话名
			sessionID = filepath.Base(m.sess.RecordingFile)
		}
		entry := PendingCopyEntry{SessionID: sessionID, SourcePath: m.sess.RecordingFile, DestinationPath: dest}
		if m.opts.CopyDirect {
			if err := m.copyEntryLocked(entry); err != nil {
				m.send(protocol.Response(protocol.StatusCopyFail))
				return err
			}
			m.send(protocol.Response(protocol.StatusCopyOK))
			return nil
		}
		m.queue = append(m.queue, entry)
		m.persistLocked()
		sglog.With(m.fields(map[string]any{"src": entry.SourcePath, "dst": dest, "pending": len(m.queue), "status": "queued"})).Info("已加入拷贝列表")
		m.emit(EventCopyListUpdated)
		m.send(protocol.Response(protocol.StatusCopyOK))
		return nil
	})
}

func (m *Machine) copyEntryLocked(e PendingCopyEntry) error {
	if _, err := fsops.CopySession(e.SourcePath, e.DestinationPath, e.SessionID, m.opts.SubFolder); err != nil {
		metrics.CopyEntriesTotal.WithLabelValues("fail").Inc()
		sglog.With(m.fields(map[string]any{"src": e.SourcePath, "dst": e.DestinationPath, "status": "copy_fail"})).WithError(err).Error("拷贝文件失败")
		return err
	}
	metrics.CopyEntriesTotal.WithLabelValues("ok").Inc()
	if m.sess.RecordingFile != "" && (e.SourcePath == m.sess.RecordingFile || e.SourcePath == m.sess.RecordingFile+fsops.CompressedSuffix) {
		m.sess.FilesCopied = true
	}
	return nil
}

// CopyPending 拷贝队列中的全部条目。
// 规则：
// - 任一条目失败，整批回复 copy_fail，其余条目继续尝试
// - 队列默认无条件清空；KeepFailed 时保留失败条目
func (m *Machine) CopyPending() error {
	return m.run(m.copyPendingLocked)
}

func (m *Machine) copyPendingLocked() error {
	if len(m.queue) == 0 {
		sglog.With(m.fields(map[string]any{"status": "queue_empty"})).Info("拷贝列表为空")
		return nil
	}
	var (
		failed   []PendingCopyEntry
		firstErr error
	)
	for _, e := range m.queue {
		if err := m.copyEntryLocked(e); err != nil {
			failed = append(failed, e)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	total := len(m.queue)
	if m.opts.KeepFailed {
		m.queue = failed
	} else {
		m.queue = nil
	}
	m.persistLocked()
	m.emit(EventCopyListUpdated)
	if firstErr != nil {
		sglog.With(m.fields(map[string]any{"failed": len(failed), "total": total, "status": "copy_fail"})).Warn("部分拷贝失败")
		m.send(protocol.Response(protocol.StatusCopyFail))
		return firstErr
	}
	sglog.With(m.fields(map[string]any{"total": total, "status": "copy_ok"})).Info("拷贝列表全部完成")
	m.send(protocol.Response(protocol.StatusCopyOK))
	return nil
}

// CompressPending 压缩队列中尚未压缩的条目；成功的条目改为指向压缩目录。
// CopyAfterCompress 时随后直接拷贝整个队列。
func (m *Machine) CompressPending() error {
	return m.run(func() error {
		if m.comp == nil {
			return sgerrors.New(sgerrors.CodeInternal, "compression not configured")
		}
		var firstErr error
		changed := false
		for i := range m.queue {
			e := &m.queue[i]
			if e.Compressed {
				continue
			}
			out, err := m.comp.Compress(e.SourcePath)
			if err != nil {
				sglog.With(m.fields(map[string]any{"src": e.SourcePath, "status": "compress_fail"})).WithError(err).Warn("压缩失败，保留原条目")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			e.SourcePath = out
			e.Compressed = true
			changed = true
		}
		if changed {
			m.persistLocked()
			m.emit(EventCopyListUpdated)
		}
		if m.opts.CopyAfterCompress {
			return m.copyPendingLocked()
		}
		return firstErr
	})
}

// Purge 删除当前录制目录（不可恢复）。
// 录制中或未通过同址校验时回复 copy_fail；成功时不回复。
func (m *Machine) Purge() error {
	return m.run(func() error {
		if m.state == status.AcqRecording {
			m.send(protocol.Response(protocol.StatusCopyFail))
			return m.policyFailure("录制中不能清理")
		}
		path := m.sess.RecordingFile
		if path == "" {
			sglog.With(m.fields(map[string]any{"status": "nothing_to_purge"})).Info("没有可清理的录制")
			return nil
		}
		if !fsops.Colocated(path, m.opts.Colocated) {
			m.send(protocol.Response(protocol.StatusCopyFail))
			return m.policyFailure("录制路径未通过同址校验")
		}
		if err := fsops.RemoveTree(path); err != nil {
			m.send(protocol.Response(protocol.StatusCopyFail))
			sglog.With(m.fields(map[string]any{"dir": path, "status": "purge_fail"})).WithError(err).Error("清理录制文件失败")
			return err
		}
		compressed := path + fsops.CompressedSuffix
		if _, err := os.Stat(compressed); err == nil {
			_ = fsops.RemoveTree(compressed)
		}
		sglog.With(m.fields(map[string]any{"dir": path, "status": "purged"})).Info("已清理录制文件")
		m.sess.RecordingFile = ""
		m.sess.FilesCopied = false

		kept := m.queue[:0]
		for _, e := range m.queue {
			if e.SourcePath != path && e.SourcePath != compressed {
				kept = append(kept, e)
			}
		}
		if len(kept) != len(m.queue) {
			m.queue = kept
			m.persistLocked()
			m.emit(EventCopyListUpdated)
		}
		return nil
	})
}

// ClearPending 清空待拷贝队列（不删除任何文件）。
func (m *Machine) ClearPending() {
	_ = m.run(func() error {
		m.queue = nil
		m.persistLocked()
		m.emit(EventCopyListUpdated)
		return nil
	})
}

// Pending 返回待拷贝队列副本。
func (m *Machine) Pending() []PendingCopyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PendingCopyEntry(nil), m.queue...)
}

// Elapsed 返回当前预览/录制已持续的时间（Idle 时为 0）。
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *Machine) elapsedLocked() time.Duration {
	if !m.state.Running() || m.sess.StartedAt.IsZero() {
		return 0
	}
	return m.opts.Now().Sub(m.sess.StartedAt)
}

// Snapshot 返回当前状态快照。
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:      m.state,
		Controller: status.Derive(m.state, m.remote),
		Remote:     m.remote,
		Session:    m.sess,
		Pending:    append([]PendingCopyEntry(nil), m.queue...),
		Elapsed:    m.elapsedLocked(),
	}
}

// Close 释放硬件前停止仍在运行的采集。
func (m *Machine) Close() error {
	return m.run(func() error {
		if !m.state.Running() {
			return nil
		}
		sglog.With(m.fields(map[string]any{"status": "closing"})).Warn("退出前停止采集")
		return m.stopAllLocked()
	})
}

func (m *Machine) persistLocked() {
	if m.store == nil {
		return
	}
	if err := m.store.Save(m.queue); err != nil {
		sglog.With(map[string]any{"path": m.store.Path(), "status": "queue_save_error"}).WithError(err).Warn("拷贝队列保存失败")
	}
}
