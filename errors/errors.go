package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates which component raised the error
type Phase string

const (
	PhaseStream   Phase = "stream"   // stream bridge callbacks
	PhaseSigner   Phase = "signer"   // signer configuration and signing
	PhaseHandle   Phase = "handle"   // handle table
	PhaseReader   Phase = "reader"   // manifest reader facade
	PhaseBuilder  Phase = "builder"  // manifest builder facade
	PhaseEngine   Phase = "engine"   // provenance engine
	PhaseBoundary Phase = "boundary" // C boundary conversions
	PhaseHost     Phase = "host"     // wasm host module
)

// Kind is the closed error taxonomy exposed to foreign callers
type Kind string

const (
	KindIO             Kind = "io"
	KindConfiguration  Kind = "configuration"
	KindLockContention Kind = "lock_contention"
	KindEngine         Kind = "engine"
	KindFFI            Kind = "ffi"
)

// Code is the response-envelope error code
type Code string

const (
	CodeNotFound     Code = "NotFound"
	CodeOffline      Code = "Offline"
	CodeOther        Code = "Other"
	CodePermission   Code = "Permission"
	CodeUnauthorized Code = "Unauthorized"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Code   Code
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Code sets the response-envelope code
func (b *Builder) Code(c Code) *Builder {
	b.err.Code = c
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// IO creates an error for a callback that returned a negative sentinel
func IO(phase Phase, op string, ret int64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Op:     op,
		Value:  ret,
		Detail: fmt.Sprintf("%s callback reported failure (%d)", op, ret),
	}
}

// Configuration creates a configuration error
func Configuration(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConfiguration,
		Detail: detail,
		Cause:  cause,
	}
}

// LockContention creates an error for a guard that is already held
func LockContention(phase Phase, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLockContention,
		Op:     op,
		Detail: "another operation is in progress",
	}
}

// Engine wraps a provenance engine failure
func Engine(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindEngine,
		Op:    op,
		Cause: cause,
	}
}

// NotFound creates an engine error for a missing manifest, resource or store
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEngine,
		Code:   CodeNotFound,
		Detail: what + " not found",
	}
}

// FFI creates a boundary contract error
func FFI(phase Phase, op, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFFI,
		Op:     op,
		Detail: detail,
	}
}

// NilHandle creates an error for a null handle where one was required
func NilHandle(phase Phase, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFFI,
		Op:     op,
		Detail: "null handle",
	}
}

// InvalidText creates an error for text that cannot cross the boundary
// as a NUL-terminated UTF-8 string
func InvalidText(phase Phase, op string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindFFI,
		Op:     op,
		Detail: fmt.Sprintf("text is not a valid C string: %q", preview),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf reports the taxonomy kind of err.
// Errors raised outside the bridge are engine errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEngine
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf reports the response-envelope code of err
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return CodeOther
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Cause != nil {
		var inner *Error
		if errors.As(e.Cause, &inner) && inner.Code != "" {
			return inner.Code
		}
	}
	return CodeOther
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
