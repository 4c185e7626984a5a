package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseStream,
				Kind:   KindIO,
				Op:     "read",
				Detail: "callback failed",
			},
			contains: []string{"[stream]", "io", "in read", "callback failed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseReader,
				Kind:  KindLockContention,
			},
			contains: []string{"[reader]", "lock_contention"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEngine,
				Kind:   KindEngine,
				Detail: "bad manifest",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[engine]", "engine", "bad manifest", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseSigner,
		Kind:  KindConfiguration,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should follow the cause chain")
	}
}

func TestError_Is(t *testing.T) {
	err := IO(PhaseStream, "seek", -1)

	if !errors.Is(err, &Error{Phase: PhaseStream, Kind: KindIO}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseSigner, Kind: KindIO}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseStream, Kind: KindFFI}) {
		t.Error("Is should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBuilder, KindEngine).
		Op("sign").
		Code(CodeNotFound).
		Value(42).
		Cause(cause).
		Detail("missing %s %q", "resource", "thumb").
		Build()

	if err.Phase != PhaseBuilder {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBuilder)
	}
	if err.Kind != KindEngine {
		t.Errorf("Kind = %v, want %v", err.Kind, KindEngine)
	}
	if err.Op != "sign" {
		t.Errorf("Op = %v, want sign", err.Op)
	}
	if err.Code != CodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, CodeNotFound)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != `missing resource "thumb"` {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
		code Code
	}{
		{"IO", IO(PhaseStream, "write", -5), KindIO, CodeOther},
		{"Configuration", Configuration(PhaseSigner, "unsupported algorithm", nil), KindConfiguration, CodeOther},
		{"LockContention", LockContention(PhaseReader, "read"), KindLockContention, CodeOther},
		{"Engine", Engine(PhaseEngine, "read", errors.New("x")), KindEngine, CodeOther},
		{"NotFound", NotFound(PhaseReader, "resource"), KindEngine, CodeNotFound},
		{"FFI", FFI(PhaseBoundary, "sign", "overflow"), KindFFI, CodeOther},
		{"NilHandle", NilHandle(PhaseBoundary, "release_stream"), KindFFI, CodeOther},
		{"InvalidText", InvalidText(PhaseBoundary, "error", []byte("a\x00b")), KindFFI, CodeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if got := CodeOf(tt.err); got != tt.code {
				t.Errorf("CodeOf = %v, want %v", got, tt.code)
			}
		})
	}

	if v := IO(PhaseStream, "read", -3).Value; v != int64(-3) {
		t.Errorf("IO Value = %v, want -3", v)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != KindEngine {
		t.Error("foreign errors should classify as engine")
	}

	wrapped := fmt.Errorf("outer: %w", LockContention(PhaseBuilder, "sign"))
	if KindOf(wrapped) != KindLockContention {
		t.Errorf("KindOf(wrapped) = %v", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindLockContention) {
		t.Error("IsKind should see through wrapping")
	}
	if IsKind(nil, KindEngine) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestCodeOf_Cause(t *testing.T) {
	err := Engine(PhaseReader, "resource", NotFound(PhaseEngine, "manifest"))
	if CodeOf(err) != CodeNotFound {
		t.Errorf("CodeOf = %v, want NotFound", CodeOf(err))
	}
	if CodeOf(errors.New("x")) != CodeOther {
		t.Error("plain errors should map to Other")
	}
}

func TestInvalidText_Preview(t *testing.T) {
	data := []byte(strings.Repeat("a", 100))
	err := InvalidText(PhaseBoundary, "version", data)
	if !strings.Contains(err.Detail, strconv.Quote(strings.Repeat("a", 32))) {
		t.Errorf("preview missing: %s", err.Detail)
	}
	if strings.Contains(err.Detail, strings.Repeat("a", 33)) {
		t.Errorf("preview should be truncated to 32 bytes: %s", err.Detail)
	}
}
