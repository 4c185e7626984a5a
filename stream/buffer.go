package stream

import "sync"

// Buffer is an in-memory Callbacks implementation. Writes past the end grow
// the buffer; writes inside it overwrite. Seeking past the end is allowed and
// a later write fills the gap with zeros.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	pos  int64
}

// NewBuffer returns a Buffer positioned at the start of a copy of data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: append([]byte(nil), data...)}
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Len returns the buffer size.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *Buffer) Read(p []byte) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pos >= int64(len(b.data)) {
		return 0
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return int64(n)
}

func (b *Buffer) Seek(offset int64, mode SeekMode) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var base int64
	switch mode {
	case SeekStart:
	case SeekCurrent:
		base = b.pos
	case SeekEnd:
		base = int64(len(b.data))
	default:
		return -1
	}
	pos := base + offset
	if pos < 0 {
		return -1
	}
	b.pos = pos
	return pos
}

func (b *Buffer) Write(p []byte) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := b.pos + int64(len(p))
	if size := int64(len(b.data)); end > size {
		if end > int64(cap(b.data)) {
			grown := make([]byte, size, end*2)
			copy(grown, b.data)
			b.data = grown
		}
		b.data = b.data[:end]
		if b.pos > size {
			clear(b.data[size:b.pos])
		}
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return int64(len(p))
}
