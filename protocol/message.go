package protocol

type MessageType string

const (
	MsgStartRec      MessageType = "start_rec"
	MsgStartViewing  MessageType = "start_viewing"
	MsgStop          MessageType = "stop"
	MsgStatusPoll    MessageType = "status_poll"
	MsgCopyFiles     MessageType = "copy_files"
	MsgPurgeFiles    MessageType = "purge_files"
	MsgDisconnected  MessageType = "disconnected"
	MsgStatus        MessageType = "status"
	MsgResponse      MessageType = "response"
	MsgStartPulses   MessageType = "start_pulses"
	MsgStopPulses    MessageType = "stop_pulses"
	MsgStartCalibRec MessageType = "start_calibrec"
)

// Known 表示该类型是否属于已知词表（未知类型可以解码，但不会被分发）。
func (t MessageType) Known() bool {
	switch t {
	case MsgStartRec, MsgStartViewing, MsgStop, MsgStatusPoll, MsgCopyFiles, MsgPurgeFiles,
		MsgDisconnected, MsgStatus, MsgResponse, MsgStartPulses, MsgStopPulses, MsgStartCalibRec:
		return true
	}
	return false
}

type Status string

const (
	StatusReady         Status = "ready"
	StatusError         Status = "error"
	StatusViewing       Status = "viewing"
	StatusRecording     Status = "recording"
	StatusViewingOK     Status = "viewing_ok"
	StatusRecordingOK   Status = "recording_ok"
	StatusRecordingFail Status = "recording_fail"
	StatusStopOK        Status = "stop_ok"
	StatusPulsingOK     Status = "pulsing_ok"
	StatusCalibOK       Status = "calib_ok"
	StatusCopyOK        Status = "copy_ok"
	StatusCopyFail      Status = "copy_fail"
)

// Message 是线路上的一条记录。字段顺序即编码顺序，空字段不输出。
// setting_file/frame_rate/fps/pulse_lag 属于兄弟采集通道的参数，这里只透传。
type Message struct {
	Type        MessageType `json:"type"`
	Status      Status      `json:"status,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	SessionPath string      `json:"session_path,omitempty"`
	SettingFile string      `json:"setting_file,omitempty"`
	FrameRate   float64     `json:"frame_rate,omitempty"`
	FPS         float64     `json:"fps,omitempty"`
	PulseLag    int         `json:"pulse_lag,omitempty"`
}

// StatusMsg 构造 {"type":"status","status":...}。
func StatusMsg(s Status) Message { return Message{Type: MsgStatus, Status: s} }

// Response 构造 {"type":"response","status":...}。
func Response(s Status) Message { return Message{Type: MsgResponse, Status: s} }
