package resource

import (
	"errors"
	"sync"
)

// UnifiedTable maps handles to bridge objects of every kind and
// notifies observers of lifecycle transitions.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *UnifiedTable) Insert(typeID TypeID, value any) (Handle, error) {
	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *UnifiedTable) GetTyped(handle Handle, typeID TypeID) (any, bool) {
	actual, ok := t.backend.TypeID(handle)
	if !ok || actual != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Borrow loans out a value. Every successful Borrow must be paired with Return.
func (t *UnifiedTable) Borrow(handle Handle, typeID TypeID) (any, error) {
	value, err := t.backend.Borrow(handle, typeID)
	if err != nil {
		return nil, err
	}

	t.notify(Event{
		Type:   EventBorrowed,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return value, nil
}

// Return ends a loan started by Borrow.
func (t *UnifiedTable) Return(handle Handle) bool {
	typeID, _ := t.backend.TypeID(handle)
	if !t.backend.ReturnBorrow(handle) {
		return false
	}

	t.notify(Event{
		Type:   EventReturned,
		Handle: handle,
		TypeID: typeID,
	})

	return true
}

// Remove releases a handle and drops its value. The slot is freed even
// when the value's Drop fails; that error is returned alongside the value.
// TypeInvalid skips the type check.
func (t *UnifiedTable) Remove(handle Handle, typeID TypeID) (any, error) {
	actual, _ := t.backend.TypeID(handle)
	value, err := t.backend.Drop(handle, typeID)
	if err != nil {
		return nil, err
	}

	dropErr := drop(value)

	t.notify(Event{
		Type:   EventReleased,
		Handle: handle,
		TypeID: actual,
		Value:  value,
		Err:    dropErr,
	})

	return value, dropErr
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Each iterates over all live handles.
func (t *UnifiedTable) Each(fn func(Handle, TypeID, any) bool) {
	t.backend.Each(fn)
}

// Close drops every handle still live, including ones on loan, and stops
// accepting operations. Observers see one EventReleased per leaked handle.
func (t *UnifiedTable) Close() error {
	var errs []error
	for _, l := range t.backend.Close() {
		err := drop(l.Value)
		if err != nil {
			errs = append(errs, err)
		}
		t.notify(Event{
			Type:   EventReleased,
			Handle: l.Handle,
			TypeID: l.TypeID,
			Value:  l.Value,
			Err:    err,
		})
	}
	return errors.Join(errs...)
}

func drop(value any) error {
	if d, ok := value.(Dropper); ok {
		return d.Drop()
	}
	return nil
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
