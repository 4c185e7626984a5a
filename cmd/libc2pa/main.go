//go:build cgo

// Command libc2pa builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libc2pa.so ./cmd/libc2pa
//
// c2pa.h declares the exported functions. Setting C2PA_LOG to a zap level
// ("debug", "warn", ...) sends the bridge's logs to stderr.
package main

/*
#include <stdlib.h>
#include "c2pa_types.h"
*/
import "C"

import (
	"os"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/c2pa-bridge/bridge"
	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/resource"
)

// api is the process-wide boundary. Last errors are kept per OS thread.
var api = newAPI()

func newAPI() *bridge.API {
	if level := os.Getenv("C2PA_LOG"); level != "" {
		cfg := zap.NewDevelopmentConfig()
		if l, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
		if log, err := cfg.Build(); err == nil {
			bridge.SetLogger(log)
		}
	}
	return bridge.New()
}

func main() {}

// Handles cross the boundary boxed in malloc'd structs whose only field is
// the table handle, so every box type shares one layout.

func box[T any](h resource.Handle) *T {
	if h == 0 {
		return nil
	}
	p := C.malloc(C.size_t(unsafe.Sizeof(C.uint32_t(0))))
	*(*C.uint32_t)(p) = C.uint32_t(h)
	return (*T)(p)
}

func unbox[T any](b *T) resource.Handle {
	if b == nil {
		return 0
	}
	return resource.Handle(*(*C.uint32_t)(unsafe.Pointer(b)))
}

func freeBox[T any](b *T) {
	C.free(unsafe.Pointer(b))
}

// release drops the handle in b and frees the box once the table accepted
// the release. Releasing NULL does nothing.
func release[T any](b *T, fn func(resource.Handle) int) C.int {
	if b == nil {
		return bridge.OK
	}
	st := fn(unbox(b))
	if st == bridge.OK {
		freeBox(b)
	}
	return C.int(st)
}

// loan takes the box out of *slot for the duration of fn and puts it back
// on every path.
func loan[T any](op string, slot **T, fn func(resource.Handle)) bool {
	if slot == nil || *slot == nil {
		api.Record(op, errors.NilHandle(errors.PhaseBoundary, op))
		return false
	}
	b := *slot
	defer func() { *slot = b }()
	fn(unbox(b))
	return true
}

func goText(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func cText(s string, ok bool) *C.char {
	if !ok {
		return nil
	}
	return C.CString(s)
}
