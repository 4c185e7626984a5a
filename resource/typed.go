package resource

import (
	"fmt"

	"github.com/wippyai/c2pa-bridge/errors"
)

// Typed is a view of a UnifiedTable restricted to one kind of object.
// Failures are reported as ffi errors: a bad handle is a caller contract
// violation, never a recoverable engine condition.
type Typed[T any] struct {
	table  *UnifiedTable
	typeID TypeID
}

// NewTyped binds a view of table to typeID.
func NewTyped[T any](table *UnifiedTable, typeID TypeID) *Typed[T] {
	return &Typed[T]{table: table, typeID: typeID}
}

// TypeID returns the kind this view is bound to.
func (t *Typed[T]) TypeID() TypeID {
	return t.typeID
}

// Insert takes ownership of v and returns its handle.
func (t *Typed[T]) Insert(v T) (Handle, error) {
	h, err := t.table.Insert(t.typeID, v)
	if err != nil {
		return 0, t.fail("create", err)
	}
	return h, nil
}

// Get returns the value behind h without loaning it.
func (t *Typed[T]) Get(h Handle) (T, error) {
	var zero T
	if h == 0 {
		return zero, errors.NilHandle(errors.PhaseHandle, t.op("get"))
	}
	v, ok := t.table.GetTyped(h, t.typeID)
	if !ok {
		return zero, t.fail("get", ErrInvalidHandle)
	}
	return v.(T), nil
}

// Borrow loans out the value behind h. The returned function hands the
// loan back and must be called exactly once.
func (t *Typed[T]) Borrow(h Handle) (T, func(), error) {
	var zero T
	if h == 0 {
		return zero, nil, errors.NilHandle(errors.PhaseHandle, t.op("borrow"))
	}
	v, err := t.table.Borrow(h, t.typeID)
	if err != nil {
		return zero, nil, t.fail("borrow", err)
	}
	return v.(T), func() { t.table.Return(h) }, nil
}

// With runs fn with the value behind h on loan. The loan is returned on
// every path, so h stays valid for the next call.
func (t *Typed[T]) With(h Handle, fn func(T) error) error {
	v, done, err := t.Borrow(h)
	if err != nil {
		return err
	}
	defer done()
	return fn(v)
}

// Release consumes h. The value's Drop runs once; h is dead afterwards.
func (t *Typed[T]) Release(h Handle) error {
	if h == 0 {
		return errors.NilHandle(errors.PhaseHandle, t.op("release"))
	}
	_, err := t.table.Remove(h, t.typeID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidHandle) || errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrOutstandingBorrow) || errors.Is(err, ErrClosed) {
		return t.fail("release", err)
	}
	// slot is freed; only the value's own cleanup failed
	return err
}

// Len returns the number of live handles of this kind.
func (t *Typed[T]) Len() int {
	n := 0
	t.table.Each(func(_ Handle, id TypeID, _ any) bool {
		if id == t.typeID {
			n++
		}
		return true
	})
	return n
}

func (t *Typed[T]) op(name string) string {
	return fmt.Sprintf("%s %s", name, t.typeID)
}

func (t *Typed[T]) fail(name string, cause error) error {
	return errors.New(errors.PhaseHandle, errors.KindFFI).
		Op(t.op(name)).
		Cause(cause).
		Build()
}
