// Package errors provides the structured error type shared by every layer of
// the bridge.
//
// Errors are categorized by Phase (which component raised them) and Kind (the
// closed taxonomy a foreign caller can rely on): io, configuration,
// lock_contention, engine and ffi. An optional Code refines the kind for the
// JSON response envelope.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseStream, errors.KindIO).
//		Op("read").
//		Value(int64(-1)).
//		Detail("read callback reported failure").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.IO(errors.PhaseStream, "seek", -1)
//	err := errors.LockContention(errors.PhaseReader, "json")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
