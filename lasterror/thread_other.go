//go:build !linux

package lasterror

// ThreadScope returns a single process-wide scope on platforms without a
// cheap thread id.
func ThreadScope() Scope {
	return 1
}
