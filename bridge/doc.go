// Package bridge exposes the provenance engine to foreign callers.
//
// Reader and Builder are the facades a caller drives across repeated
// boundary calls. Each guards its state with a non-blocking read/write
// guard, so overlapping calls on the same object fail with
// lock_contention instead of deadlocking.
//
// API is the boundary surface itself. It owns a handle table for streams,
// signers, readers and builders and turns every failure into a sentinel
// return plus an entry in the last-error channel. The cgo library and the
// WebAssembly host module are thin adapters over API.
//
//	runtime.LockOSThread()
//	api := bridge.New()
//	defer api.Close()
//
//	in := api.CreateStream(stream.NewBuffer(asset))
//	r := api.NewReader()
//	report, ok := api.ReaderRead(r, "image/jpeg", in)
//	if !ok {
//	    log.Print(api.Error())
//	}
//
// By default the last error is kept per OS thread. A goroutine that reads
// it must call runtime.LockOSThread first, or the API must be built with
// WithScope and a scope the goroutine controls.
//
// Go callers that do not need handles should use Reader and Builder
// directly and inspect the returned errors.
package bridge
