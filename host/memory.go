package host

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	c2pabridge "github.com/wippyai/c2pa-bridge"
	"github.com/wippyai/c2pa-bridge/errors"
)

// Memory wraps a guest's linear memory. Out-of-bounds accesses are
// reported as FFI errors rather than traps.
type Memory struct {
	mem api.Memory
}

func outOfBounds(op string, offset, length uint32) *errors.Error {
	return errors.New(errors.PhaseHost, errors.KindFFI).
		Op(op).
		Detail("guest memory out of bounds: offset=%d, length=%d", offset, length).
		Build()
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, outOfBounds("read", offset, length)
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds("read", offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(offset, data) {
		return outOfBounds("write", offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if m.mem == nil {
		return 0, outOfBounds("read", offset, 4)
	}
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds("read", offset, 4)
	}
	return val, nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil || !m.mem.WriteUint32Le(offset, value) {
		return outOfBounds("write", offset, 4)
	}
	return nil
}

func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// String copies a (ptr, len) string out of guest memory. A nil pointer is
// absent and yields "" without touching memory.
func (m *Memory) String(ptr, length uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	data, err := m.Read(ptr, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Bytes copies a (ptr, len) byte list out of guest memory. A nil pointer
// yields nil.
func (m *Memory) Bytes(ptr, length uint32) ([]byte, error) {
	if ptr == 0 {
		return nil, nil
	}
	data, err := m.Read(ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// allocator allocates in guest memory through the guest's cabi_realloc.
// Host functions run with the context of the guest call that entered them.
type allocator struct {
	fn       api.Function
	ctx      context.Context
	stackBuf [4]uint64
	mu       sync.Mutex
}

func (a *allocator) setContext(ctx context.Context) context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.ctx
	a.ctx = ctx
	return prev
}

func (a *allocator) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

func (a *allocator) Alloc(size, align uint32) (uint32, error) {
	if a.fn == nil {
		return 0, errors.FFI(errors.PhaseHost, "alloc", "guest does not export "+CabiRealloc)
	}
	ctx := a.context()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stackBuf[0] = 0
	a.stackBuf[1] = 0
	a.stackBuf[2] = uint64(align)
	a.stackBuf[3] = uint64(size)
	if err := a.fn.CallWithStack(ctx, a.stackBuf[:]); err != nil {
		return 0, errors.New(errors.PhaseHost, errors.KindFFI).Op("alloc").Cause(err).Build()
	}
	ptr := uint32(a.stackBuf[0])
	if ptr == 0 && size > 0 {
		return 0, errors.FFI(errors.PhaseHost, "alloc", "guest allocator returned null")
	}
	return ptr, nil
}

func (a *allocator) Free(ptr, size, align uint32) {
	if a.fn == nil || ptr == 0 {
		return
	}
	ctx := a.context()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stackBuf[0] = uint64(ptr)
	a.stackBuf[1] = uint64(size)
	a.stackBuf[2] = uint64(align)
	a.stackBuf[3] = 0
	if err := a.fn.CallWithStack(ctx, a.stackBuf[:]); err != nil {
		Logger().Warn("free: failed to call cabi_realloc for deallocation",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

var (
	_ c2pabridge.GuestMemory    = (*Memory)(nil)
	_ c2pabridge.GuestAllocator = (*allocator)(nil)
)
