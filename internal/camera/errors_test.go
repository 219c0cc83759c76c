package camera

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorIsMatchesCode(t *testing.T) {
	err := NewReadError("front", io.EOF)

	if !errors.Is(err, ErrRead) {
		t.Error("read error should match ErrRead")
	}
	if errors.Is(err, ErrConnect) {
		t.Error("read error should not match ErrConnect")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("cause should be reachable")
	}

	wrapped := fmt.Errorf("3 consecutive read failures: %w", err)
	var ce *Error
	if !errors.As(wrapped, &ce) || ce.CameraID != "front" {
		t.Errorf("errors.As through wrapping failed: %v", wrapped)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewUnknownCameraError("gate"), "camera gate: camera is not configured"},
		{NewConnectError("gate", io.ErrUnexpectedEOF), "camera gate: connect failed: unexpected EOF"},
		{&Error{Code: CodeStaleSource}, "STALE_SOURCE"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestStatePredicates(t *testing.T) {
	for _, s := range []State{StateConnecting, StateStreaming, StateReconnecting} {
		if !s.Active() || s.Terminal() {
			t.Errorf("%s should be active and not terminal", s)
		}
	}
	for _, s := range []State{StateStopped, StateFailed} {
		if s.Active() || !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StateUnknown.Active() || StateUnknown.Terminal() {
		t.Error("unknown is neither active nor terminal")
	}
}
