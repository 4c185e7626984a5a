//go:build linux

package lasterror

import "golang.org/x/sys/unix"

// ThreadScope returns the scope of the calling OS thread.
//
// Calls arriving from C through cgo stay on the caller's thread for their
// whole duration, so the scope matches the foreign thread. Goroutines that
// want a stable scope must call runtime.LockOSThread.
func ThreadScope() Scope {
	return Scope(unix.Gettid())
}
