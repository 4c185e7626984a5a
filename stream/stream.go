package stream

import (
	"io"
	"sync/atomic"

	"github.com/wippyai/c2pa-bridge/errors"
)

// Stream is a synchronous byte stream backed by foreign callbacks.
type Stream struct {
	cb       Callbacks
	busy     atomic.Bool
	released atomic.Bool
}

var (
	_ io.ReadWriteSeeker = (*Stream)(nil)
	_ io.Closer          = (*Stream)(nil)
)

// New binds callbacks to a stream. The stream owns the callbacks' context
// from now on and releases it once on Close.
func New(cb Callbacks) *Stream {
	return &Stream{cb: cb}
}

// Callbacks returns the bound callbacks.
func (s *Stream) Callbacks() Callbacks {
	return s.cb
}

func (s *Stream) enter(op string) error {
	if s.released.Load() {
		return errors.FFI(errors.PhaseStream, op, "stream used after release")
	}
	if !s.busy.CompareAndSwap(false, true) {
		if s.released.Load() {
			return errors.FFI(errors.PhaseStream, op, "stream used after release")
		}
		return errors.LockContention(errors.PhaseStream, op)
	}
	return nil
}

func (s *Stream) leave() {
	s.busy.Store(false)
}

// Read invokes the read callback once with a buffer of len(p) bytes.
// A zero-length result is io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.enter("read"); err != nil {
		return 0, err
	}
	defer s.leave()

	n := s.cb.Read(p)
	switch {
	case n < 0:
		return 0, errors.IO(errors.PhaseStream, "read", n)
	case n == 0:
		return 0, io.EOF
	case n > int64(len(p)):
		return 0, errors.New(errors.PhaseStream, errors.KindIO).
			Op("read").
			Value(n).
			Detail("read callback reported %d bytes for a %d byte buffer", n, len(p)).
			Build()
	}
	return int(n), nil
}

// Seek invokes the seek callback with the mode code matching whence and
// returns the new absolute position.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var mode SeekMode
	switch whence {
	case io.SeekStart:
		mode = SeekStart
	case io.SeekCurrent:
		mode = SeekCurrent
	case io.SeekEnd:
		mode = SeekEnd
	default:
		return 0, errors.New(errors.PhaseStream, errors.KindIO).
			Op("seek").
			Value(whence).
			Detail("invalid whence %d", whence).
			Build()
	}

	if err := s.enter("seek"); err != nil {
		return 0, err
	}
	defer s.leave()

	pos := s.cb.Seek(offset, mode)
	if pos < 0 {
		return 0, errors.IO(errors.PhaseStream, "seek", pos)
	}
	return pos, nil
}

// WriteSome invokes the write callback exactly once and returns the number
// of bytes it accepted, which may be less than len(p).
func (s *Stream) WriteSome(p []byte) (int, error) {
	if err := s.enter("write"); err != nil {
		return 0, err
	}
	defer s.leave()

	n := s.cb.Write(p)
	switch {
	case n < 0:
		return 0, errors.IO(errors.PhaseStream, "write", n)
	case n > int64(len(p)):
		return 0, errors.New(errors.PhaseStream, errors.KindIO).
			Op("write").
			Value(n).
			Detail("write callback reported %d bytes for %d offered", n, len(p)).
			Build()
	}
	return int(n), nil
}

// Write retries WriteSome with the remainder until p is written.
// A callback that makes no progress yields io.ErrShortWrite.
func (s *Stream) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := s.WriteSome(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Size seeks to the end to learn the stream length and restores the
// current position.
func (s *Stream) Size() (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// Close releases the foreign context. Later operations fail without
// invoking any callback. Closing twice is a no-op. Closing while an
// operation is in flight fails with lock_contention.
func (s *Stream) Close() error {
	if s.released.Load() {
		return nil
	}
	// the busy flag is never cleared again, so no callback can start
	if !s.busy.CompareAndSwap(false, true) {
		if s.released.Load() {
			return nil
		}
		return errors.LockContention(errors.PhaseStream, "close")
	}
	s.released.Store(true)
	if r, ok := s.cb.(Releaser); ok {
		r.Release()
	}
	return nil
}

// Drop lets the handle table close the stream on release.
func (s *Stream) Drop() error {
	return s.Close()
}

// Released reports whether Close has run.
func (s *Stream) Released() bool {
	return s.released.Load()
}
