package host

import (
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/c2pa-bridge/stream"
)

// maxChunk bounds a single transfer through guest memory.
const maxChunk = 64 << 10

// guestStream forwards stream callbacks to the guest dispatchers, passing
// the context value the guest bound to the stream.
type guestStream struct {
	g   *guest
	ctx uint32
}

func (s *guestStream) Read(p []byte) int64 {
	if len(p) == 0 {
		return 0
	}
	if len(p) > maxChunk {
		p = p[:maxChunk]
	}
	n := uint32(len(p))
	ptr, err := s.g.alloc.Alloc(n, 1)
	if err != nil {
		s.g.log.Warn("stream read: cannot allocate guest buffer", zap.Error(err))
		return -1
	}
	defer s.g.alloc.Free(ptr, n, 1)

	ret := s.g.dispatch(StreamRead, uint64(s.ctx), uint64(ptr), uint64(n))
	if ret <= 0 {
		return ret
	}
	if ret > int64(n) {
		s.g.log.Warn("stream read: guest reported more bytes than requested",
			zap.Int64("returned", ret), zap.Uint32("requested", n))
		return -1
	}
	data, err := s.g.mem.Read(ptr, uint32(ret))
	if err != nil {
		s.g.log.Warn("stream read: guest buffer unreadable", zap.Error(err))
		return -1
	}
	return int64(copy(p, data))
}

func (s *guestStream) Seek(offset int64, mode stream.SeekMode) int64 {
	return s.g.dispatch(StreamSeek, uint64(s.ctx), api.EncodeI64(offset), api.EncodeI32(int32(mode)))
}

func (s *guestStream) Write(p []byte) int64 {
	if len(p) == 0 {
		return 0
	}
	if len(p) > maxChunk {
		p = p[:maxChunk]
	}
	n := uint32(len(p))
	ptr, err := s.g.alloc.Alloc(n, 1)
	if err != nil {
		s.g.log.Warn("stream write: cannot allocate guest buffer", zap.Error(err))
		return -1
	}
	defer s.g.alloc.Free(ptr, n, 1)

	if err := s.g.mem.Write(ptr, p); err != nil {
		s.g.log.Warn("stream write: guest buffer unwritable", zap.Error(err))
		return -1
	}
	ret := s.g.dispatch(StreamWrite, uint64(s.ctx), uint64(ptr), uint64(n))
	if ret > int64(n) {
		s.g.log.Warn("stream write: guest reported more bytes than offered",
			zap.Int64("returned", ret), zap.Uint32("offered", n))
		return -1
	}
	return ret
}

// Release tells the guest its context is no longer referenced. The
// dispatcher is optional.
func (s *guestStream) Release() {
	fn, err := s.g.export(StreamRelease)
	if err != nil {
		return
	}
	if _, err := fn.Call(s.g.alloc.context(), uint64(s.ctx)); err != nil {
		s.g.log.Warn("stream release trapped", zap.Uint32("context", s.ctx), zap.Error(err))
	}
}

// guestSigner forwards signing to the guest's c2pa_sign dispatcher.
type guestSigner struct {
	g   *guest
	ctx uint32
}

func (s *guestSigner) Sign(data, sig []byte) int64 {
	dataLen := uint32(len(data))
	sigCap := uint32(len(sig))

	dataPtr, err := s.g.alloc.Alloc(max(dataLen, 1), 1)
	if err != nil {
		s.g.log.Warn("sign: cannot allocate guest buffer", zap.Error(err))
		return -1
	}
	defer s.g.alloc.Free(dataPtr, max(dataLen, 1), 1)
	if err := s.g.mem.Write(dataPtr, data); err != nil {
		s.g.log.Warn("sign: guest buffer unwritable", zap.Error(err))
		return -1
	}

	sigPtr, err := s.g.alloc.Alloc(max(sigCap, 1), 1)
	if err != nil {
		s.g.log.Warn("sign: cannot allocate guest buffer", zap.Error(err))
		return -1
	}
	defer s.g.alloc.Free(sigPtr, max(sigCap, 1), 1)

	ret := s.g.dispatch(Sign, uint64(s.ctx), uint64(dataPtr), uint64(dataLen), uint64(sigPtr), uint64(sigCap))
	if ret <= 0 || ret > int64(sigCap) {
		// the signer reports an oversized result itself
		return ret
	}
	out, err := s.g.mem.Read(sigPtr, uint32(ret))
	if err != nil {
		s.g.log.Warn("sign: guest signature unreadable", zap.Error(err))
		return -1
	}
	return int64(copy(sig, out))
}

var (
	_ stream.Callbacks = (*guestStream)(nil)
	_ stream.Releaser  = (*guestStream)(nil)
)
