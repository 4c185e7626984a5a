package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed            = errors.New("handle table closed")
	ErrInvalidHandle     = errors.New("handle is not live")
	ErrTypeMismatch      = errors.New("handle refers to a different kind of object")
	ErrOutstandingBorrow = errors.New("cannot release handle with an outstanding loan")
	ErrTableFull         = errors.New("handle table is full")
)

// LocalBackend is an in-memory slot store with loan tracking.
type LocalBackend struct {
	entries  []entry
	freeList []int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value     any
	typeID    TypeID
	loanCount uint32
	gen       uint8
	valid     bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]int, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typeID TypeID, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.freeList) > 0 {
		slot := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[slot]
		*e = entry{typeID: typeID, value: value, gen: e.gen, valid: true}
		return makeHandle(slot, e.gen), nil
	}

	if len(b.entries) >= MaxHandles {
		return 0, ErrTableFull
	}
	b.entries = append(b.entries, entry{typeID: typeID, value: value, valid: true})
	return makeHandle(len(b.entries)-1, 0), nil
}

// lookup returns the live entry for handle. Caller holds mu.
func (b *LocalBackend) lookup(handle Handle) (*entry, error) {
	if b.closed {
		return nil, ErrClosed
	}
	slot := handle.slot()
	if slot < 0 || slot >= len(b.entries) {
		return nil, ErrInvalidHandle
	}
	e := &b.entries[slot]
	if !e.valid || e.gen != handle.generation() {
		return nil, ErrInvalidHandle
	}
	return e, nil
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, err := b.lookup(handle)
	if err != nil {
		return nil, false
	}
	return e.value, true
}

// TypeID returns the type of a live handle.
func (b *LocalBackend) TypeID(handle Handle) (TypeID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, err := b.lookup(handle)
	if err != nil {
		return TypeInvalid, false
	}
	return e.typeID, true
}

// Borrow loans out the value behind a handle of the expected type.
// The handle cannot be released until every loan is returned.
func (b *LocalBackend) Borrow(handle Handle, typeID TypeID) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.lookup(handle)
	if err != nil {
		return nil, err
	}
	if e.typeID != typeID {
		return nil, ErrTypeMismatch
	}
	e.loanCount++
	return e.value, nil
}

// ReturnBorrow ends one loan on a handle.
func (b *LocalBackend) ReturnBorrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.lookup(handle)
	if err != nil || e.loanCount == 0 {
		return false
	}
	e.loanCount--
	return true
}

// Drop frees the slot for a handle of the expected type and returns its value.
func (b *LocalBackend) Drop(handle Handle, typeID TypeID) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.lookup(handle)
	if err != nil {
		return nil, err
	}
	if typeID != TypeInvalid && e.typeID != typeID {
		return nil, ErrTypeMismatch
	}
	if e.loanCount > 0 {
		return nil, ErrOutstandingBorrow
	}

	value := e.value
	*e = entry{gen: e.gen + 1}
	b.freeList = append(b.freeList, handle.slot())

	return value, nil
}

// Len returns the number of live handles.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live handles.
func (b *LocalBackend) Each(fn func(Handle, TypeID, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(i, e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}

// Live describes a handle still held when the backend closed.
type Live struct {
	Value  any
	Handle Handle
	TypeID TypeID
}

// Close invalidates every slot and refuses further operations.
// Live values are returned so the caller can drop them outside the lock.
func (b *LocalBackend) Close() []Live {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var live []Live
	for i, e := range b.entries {
		if e.valid {
			live = append(live, Live{Value: e.value, Handle: makeHandle(i, e.gen), TypeID: e.typeID})
		}
	}

	b.entries = nil
	b.freeList = nil
	return live
}
