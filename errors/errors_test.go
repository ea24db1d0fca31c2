package errors

import (
	"errors"
	"testing"
)

// TestCodeAndWrap 验证 Wrap/Code/errors.Is 的基础行为。
func TestCodeAndWrap(t *testing.T) {
	base := errors.New("x")
	e := Wrap(CodeHardware, "startRun failed", base)
	if Code(e) != CodeHardware {
		t.Fatalf("code=%d", Code(e))
	}
	if !errors.Is(e, base) {
		t.Fatalf("unwrap failed")
	}
	if !Is(e, CodeHardware) || Is(e, CodePolicy) {
		t.Fatalf("Is mismatch")
	}
}

// TestWithMessageAndCodeFallback 验证 WithMessage 及默认错误码回退。
func TestWithMessageAndCodeFallback(t *testing.T) {
	base := errors.New("x")
	w := WithMessage(base, "ctx")
	if w == nil {
		t.Fatalf("expected error")
	}
	if Code(base) != CodeInternal {
		t.Fatalf("expected default code")
	}
	if Code(nil) != 0 {
		t.Fatalf("expected code 0 for nil")
	}
	if Is(nil, CodeInternal) {
		t.Fatalf("nil must not match any code")
	}
}

// TestNewAndWithMessageOnCodeError 验证 CodeError 的 New/WithMessage/Wrap 组合行为。
func TestNewAndWithMessageOnCodeError(t *testing.T) {
	ce := New(CodeDecode, "missing type")
	if Code(ce) != CodeDecode {
		t.Fatalf("code=%d", Code(ce))
	}
	if ce.Error() == "" {
		t.Fatalf("expected message")
	}
	if ce.Unwrap() != nil {
		t.Fatalf("expected nil unwrap")
	}
	w := WithMessage(ce, "ctx")
	if Code(w) != CodeDecode {
		t.Fatalf("code=%d", Code(w))
	}
	w2 := Wrap(CodeFilesystem, "ctx", nil)
	if Code(w2) != CodeFilesystem {
		t.Fatalf("code=%d", Code(w2))
	}
}

// TestCodeNames 验证分类名与错误文本格式。
func TestCodeNames(t *testing.T) {
	if CodeHardware.String() != "hardware" || ErrCode(999).String() != "code_999" {
		t.Fatalf("names: %s %s", CodeHardware, ErrCode(999))
	}
	e := Newf(CodePolicy, "session %q already copied", "m1")
	if e.Error() != `606 session "m1" already copied` {
		t.Fatalf("text=%q", e.Error())
	}
	w := Wrap(CodeFilesystem, "copy failed", errors.New("no space"))
	if w.Error() != "605 copy failed: no space" {
		t.Fatalf("text=%q", w.Error())
	}
}
