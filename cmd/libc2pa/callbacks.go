//go:build cgo

package main

/*
#include "c2pa_types.h"

static inline intptr_t c2pa_call_read(ReadCallback fn, void *ctx, uint8_t *data, intptr_t len) {
	return fn(ctx, data, len);
}

static inline intptr_t c2pa_call_seek(SeekCallback fn, void *ctx, intptr_t offset, int32_t mode) {
	return fn(ctx, offset, mode);
}

static inline intptr_t c2pa_call_write(WriteCallback fn, void *ctx, const uint8_t *data, intptr_t len) {
	return fn(ctx, data, len);
}

static inline void c2pa_call_release(ReleaseCallback fn, void *ctx) {
	fn(ctx);
}

static inline intptr_t c2pa_call_sign(SignerCallback fn, void *ctx, const uint8_t *data, uintptr_t len,
                                      uint8_t *sig, uintptr_t sig_len) {
	return fn(ctx, data, len, sig, sig_len);
}
*/
import "C"

import (
	"unsafe"

	"github.com/wippyai/c2pa-bridge/signer"
	"github.com/wippyai/c2pa-bridge/stream"
)

// cStream calls the C function pointers bound at c2pa_create_stream with
// the caller's context. A NULL function pointer reports failure.
type cStream struct {
	ctx     unsafe.Pointer
	read    C.ReadCallback
	seek    C.SeekCallback
	write   C.WriteCallback
	release C.ReleaseCallback
}

func bytePtr(p []byte) *C.uint8_t {
	if len(p) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&p[0]))
}

func (s *cStream) Read(p []byte) int64 {
	if s.read == nil {
		return -1
	}
	if len(p) == 0 {
		return 0
	}
	return int64(C.c2pa_call_read(s.read, s.ctx, bytePtr(p), C.intptr_t(len(p))))
}

func (s *cStream) Seek(offset int64, mode stream.SeekMode) int64 {
	if s.seek == nil {
		return -1
	}
	return int64(C.c2pa_call_seek(s.seek, s.ctx, C.intptr_t(offset), C.int32_t(mode)))
}

func (s *cStream) Write(p []byte) int64 {
	if s.write == nil {
		return -1
	}
	if len(p) == 0 {
		return 0
	}
	return int64(C.c2pa_call_write(s.write, s.ctx, bytePtr(p), C.intptr_t(len(p))))
}

func (s *cStream) Release() {
	if s.release != nil {
		C.c2pa_call_release(s.release, s.ctx)
	}
}

type cSigner struct {
	ctx  unsafe.Pointer
	sign C.SignerCallback
}

func (s *cSigner) Sign(data, sig []byte) int64 {
	return int64(C.c2pa_call_sign(s.sign, s.ctx,
		bytePtr(data), C.uintptr_t(len(data)),
		bytePtr(sig), C.uintptr_t(len(sig))))
}

var (
	_ stream.Callbacks = (*cStream)(nil)
	_ stream.Releaser  = (*cStream)(nil)
	_ signer.Callback  = (*cSigner)(nil)
)
