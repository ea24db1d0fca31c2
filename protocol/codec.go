package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	sgerrors "sglx-remote/errors"
)

// Encode 将消息编码为一行 UTF-8 JSON（末尾带 \n）。
// 返回：
// - []byte: 可直接写入连接的字节
// - error: 编码失败原因（仅在字段含非法浮点值时出现）
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, sgerrors.Wrap(sgerrors.CodeInternal, "encode message", err)
	}
	return append(b, '\n'), nil
}

// MustEncode 编码固定的状态/响应消息（这些消息不会编码失败）。
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode 解析一行 JSON 消息（允许带或不带末尾换行）。
// 规则：
// - 非法 JSON 或缺少 type：CodeDecode
// - copy_files 缺少 session_path：CodeDecode（该条命令不执行、不回复）
// - 未知字段忽略；未知 type 正常返回，由分发层忽略
// 参数：
// - line: 一行原始字节
// 返回：
// - Message: 解码结果
// - error: *errors.CodeError（CodeDecode）
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, sgerrors.New(sgerrors.CodeDecode, "empty message")
	}
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, sgerrors.Wrap(sgerrors.CodeDecode, "invalid message json", err)
	}
	m.Type = MessageType(strings.TrimSpace(string(m.Type)))
	if m.Type == "" {
		return Message{}, sgerrors.New(sgerrors.CodeDecode, "missing message type")
	}
	if m.Type == MsgCopyFiles && strings.TrimSpace(m.SessionPath) == "" {
		return Message{}, sgerrors.New(sgerrors.CodeDecode, "copy_files requires session_path")
	}
	return m, nil
}
