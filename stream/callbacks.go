package stream

import (
	"io"
)

// SeekMode is the numeric whence code passed to a seek callback.
// The values match C fseek and io.Seek*.
type SeekMode int32

const (
	SeekStart   SeekMode = 0
	SeekCurrent SeekMode = 1
	SeekEnd     SeekMode = 2
)

func (m SeekMode) String() string {
	switch m {
	case SeekStart:
		return "start"
	case SeekCurrent:
		return "current"
	case SeekEnd:
		return "end"
	default:
		return "invalid"
	}
}

// Callbacks is the foreign side of a stream. Each method returns a negative
// value on failure.
type Callbacks interface {
	Read(p []byte) int64
	Seek(offset int64, mode SeekMode) int64
	Write(p []byte) int64
}

// Releaser is implemented by callbacks that own a context which must be
// released exactly once when the stream is closed.
type Releaser interface {
	Release()
}

// Funcs adapts plain functions to Callbacks. A nil function reports failure.
type Funcs struct {
	ReadFunc    func(p []byte) int64
	SeekFunc    func(offset int64, mode SeekMode) int64
	WriteFunc   func(p []byte) int64
	ReleaseFunc func()
}

func (f *Funcs) Read(p []byte) int64 {
	if f.ReadFunc == nil {
		return -1
	}
	return f.ReadFunc(p)
}

func (f *Funcs) Seek(offset int64, mode SeekMode) int64 {
	if f.SeekFunc == nil {
		return -1
	}
	return f.SeekFunc(offset, mode)
}

func (f *Funcs) Write(p []byte) int64 {
	if f.WriteFunc == nil {
		return -1
	}
	return f.WriteFunc(p)
}

func (f *Funcs) Release() {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc()
	}
}

// maxEmptyReads bounds retries when a Go reader returns (0, nil).
const maxEmptyReads = 100

type ioCallbacks struct {
	r io.Reader
	w io.Writer
	s io.Seeker
}

// FromIO adapts Go I/O values to Callbacks. Operations the value does not
// implement report failure. The value is not closed on release.
func FromIO(v any) Callbacks {
	c := &ioCallbacks{}
	c.r, _ = v.(io.Reader)
	c.w, _ = v.(io.Writer)
	c.s, _ = v.(io.Seeker)
	return c
}

func (c *ioCallbacks) Read(p []byte) int64 {
	if c.r == nil {
		return -1
	}
	for i := 0; i < maxEmptyReads; i++ {
		n, err := c.r.Read(p)
		if n > 0 {
			return int64(n)
		}
		if err == io.EOF {
			return 0
		}
		if err != nil {
			return -1
		}
	}
	return -1
}

func (c *ioCallbacks) Seek(offset int64, mode SeekMode) int64 {
	if c.s == nil {
		return -1
	}
	pos, err := c.s.Seek(offset, int(mode))
	if err != nil {
		return -1
	}
	return pos
}

func (c *ioCallbacks) Write(p []byte) int64 {
	if c.w == nil {
		return -1
	}
	n, err := c.w.Write(p)
	if err != nil && n == 0 {
		return -1
	}
	return int64(n)
}
