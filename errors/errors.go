package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrCode 是 agent 的错误分类码。每一类都在发现处被转换为回传消息或日志，
// 不向上冒泡为进程级故障。
type ErrCode int

const (
	CodeInternal   ErrCode = 500
	CodeTransport  ErrCode = 601 // 监听/接受/收发失败，仅影响当前连接
	CodeBind       ErrCode = 602 // 监听地址被占用
	CodeDecode     ErrCode = 603 // 消息格式错误，丢弃该条消息
	CodeHardware   ErrCode = 604 // 采集硬件调用失败，状态不迁移
	CodeFilesystem ErrCode = 605 // 拷贝/清理时目录缺失或 I/O 失败
	CodePolicy     ErrCode = 606 // 同址校验失败、录制中重复开始等策略冲突
)

var codeNames = map[ErrCode]string{
	CodeInternal:   "internal",
	CodeTransport:  "transport",
	CodeBind:       "bind",
	CodeDecode:     "decode",
	CodeHardware:   "hardware",
	CodeFilesystem: "filesystem",
	CodePolicy:     "policy",
}

// String 返回分类名（日志字段 "code_name" 使用）。
func (c ErrCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "code_" + strconv.Itoa(int(c))
}

// CodeError 携带分类码、描述与可选的底层错误。
type CodeError struct {
	Code    ErrCode
	Message string
	Err     error
}

// Error 格式为 "<code> <message>[: <cause>]"，例如 "604 startRun: imec probe not found"。
func (e *CodeError) Error() string {
	if e == nil {
		return ""
	}
	s := strconv.Itoa(int(e.Code)) + " " + e.Message
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *CodeError) Unwrap() error { return e.Err }

// New 构造不带底层错误的 CodeError。
func New(code ErrCode, msg string) *CodeError { return &CodeError{Code: code, Message: msg} }

// Newf 同 New，消息按 fmt 格式化。
func Newf(code ErrCode, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 把底层错误归入某一分类。
// 参数：
// - code: 分类码
// - msg: 发生了什么（如 "listen failed"）
// - err: 底层错误，可为 nil
func Wrap(code ErrCode, msg string, err error) *CodeError {
	return &CodeError{Code: code, Message: msg, Err: err}
}

// WithMessage 替换描述但保留分类与底层错误；非 CodeError 以 %w 包装。
func WithMessage(err error, msg string) error {
	var ce *CodeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return &CodeError{Code: ce.Code, Message: msg, Err: ce.Err}
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// Code 取错误链上第一个 CodeError 的分类码。
// 返回：
// - 0: err 为 nil
// - CodeInternal: 链上没有 CodeError
func Code(err error) ErrCode {
	if err == nil {
		return 0
	}
	if ce := (*CodeError)(nil); errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// Is 判断 err 是否属于某一分类。
func Is(err error, code ErrCode) bool { return err != nil && Code(err) == code }
