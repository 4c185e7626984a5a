// Package lasterror holds the most recent failure per calling thread for
// boundary functions that can only return a sentinel value.
//
// A boundary function that returns a null handle or a negative integer
// writes the cause here first. The caller checks the sentinel and then
// peeks the message. Only the latest error survives; there is no history.
//
// The channel is not a substitute for returned errors. Go callers should use
// the error values returned by the facades directly.
package lasterror

import (
	"sync"
)

// Scope identifies one logical calling thread.
type Scope uint64

// Channel is a set of single-slot error cells keyed by scope.
// The zero value is ready to use. A slot lives until Take or Clear, so a
// scope that goes away, such as an exiting thread, must clear its slot.
type Channel struct {
	mu    sync.Mutex
	slots map[Scope]error
}

// Set overwrites the slot for scope. A nil error clears it.
func (c *Channel) Set(scope Scope, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.slots, scope)
		return
	}
	if c.slots == nil {
		c.slots = make(map[Scope]error)
	}
	c.slots[scope] = err
}

// Last returns the error in the slot for scope without clearing it.
func (c *Channel) Last(scope Scope) (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err, ok := c.slots[scope]
	return err, ok
}

// Message returns the text of the last error for scope without clearing it.
func (c *Channel) Message(scope Scope) (string, bool) {
	err, ok := c.Last(scope)
	if !ok {
		return "", false
	}
	return err.Error(), true
}

// Take removes and returns the last error for scope, or nil.
func (c *Channel) Take(scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.slots[scope]
	delete(c.slots, scope)
	return err
}

// Clear empties the slot for scope.
func (c *Channel) Clear(scope Scope) {
	c.Set(scope, nil)
}

// Len returns the number of scopes holding an error.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

var std Channel

// Default returns the process-wide channel.
func Default() *Channel {
	return &std
}

// Set overwrites the calling thread's slot in the process-wide channel.
func Set(err error) {
	std.Set(ThreadScope(), err)
}

// Message peeks the calling thread's last error text.
func Message() (string, bool) {
	return std.Message(ThreadScope())
}

// Take removes and returns the calling thread's last error.
func Take() error {
	return std.Take(ThreadScope())
}
