//go:build cgo

package main

/*
#include <stdlib.h>
#include "c2pa_types.h"
*/
import "C"

import (
	"bytes"
	"unsafe"

	"github.com/wippyai/c2pa-bridge/bridge"
	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/resource"
	"github.com/wippyai/c2pa-bridge/signer"
)

//export c2pa_version
func c2pa_version() *C.char {
	return C.CString(api.Version())
}

//export c2pa_supported_extensions
func c2pa_supported_extensions() *C.char {
	return C.CString(api.SupportedExtensions())
}

// c2pa_error returns the calling thread's last error, or "" when there is
// none. The text must be released.
//
//export c2pa_error
func c2pa_error() *C.char {
	return C.CString(api.Error())
}

//export c2pa_error_json
func c2pa_error_json() *C.char {
	msg := api.ErrorJSON()
	return cText(msg, msg != "")
}

// c2pa_clear_error empties the calling thread's last error and returns 1
// when there was one. Threads that fail calls should clear before exiting.
//
//export c2pa_clear_error
func c2pa_clear_error() C.int {
	return C.int(api.ClearError())
}

//export c2pa_release_string
func c2pa_release_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

//export c2pa_release_bytes
func c2pa_release_bytes(b *C.uint8_t) {
	C.free(unsafe.Pointer(b))
}

//export c2pa_create_stream
func c2pa_create_stream(ctx unsafe.Pointer, read C.ReadCallback, seek C.SeekCallback, write C.WriteCallback, rel C.ReleaseCallback) *C.C2paStream {
	h := api.CreateStream(&cStream{ctx: ctx, read: read, seek: seek, write: write, release: rel})
	return box[C.C2paStream](h)
}

//export c2pa_release_stream
func c2pa_release_stream(s *C.C2paStream) C.int {
	return release(s, api.ReleaseStream)
}

//export c2pa_create_signer
func c2pa_create_signer(ctx unsafe.Pointer, sign C.SignerCallback, cfg *C.C2paSignerConfig) *C.C2paSigner {
	const op = "create_signer"
	if sign == nil || cfg == nil {
		api.Record(op, errors.NilHandle(errors.PhaseBoundary, op))
		return nil
	}
	h := api.CreateSigner(&cSigner{ctx: ctx, sign: sign}, signer.Config{
		Algorithm:        goText(cfg.alg),
		Certs:            []byte(goText(cfg.certs)),
		TimeAuthorityURL: goText(cfg.time_authority_url),
		ReserveSize:      int(cfg.reserve_size),
	})
	return box[C.C2paSigner](h)
}

//export c2pa_release_signer
func c2pa_release_signer(s *C.C2paSigner) C.int {
	return release(s, api.ReleaseSigner)
}

//export c2pa_verify_stream
func c2pa_verify_stream(s *C.C2paStream) *C.char {
	return cText(api.VerifyStream(unbox(s)))
}

//export c2pa_has_manifest
func c2pa_has_manifest(s *C.C2paStream) C.int {
	return C.int(api.HasManifest(unbox(s)))
}

// c2pa_verify_file_json never returns NULL: failures are reported inside
// the response envelope.
//
//export c2pa_verify_file_json
func c2pa_verify_file_json(path *C.char) *C.char {
	return C.CString(api.VerifyFileJSON(goText(path)))
}

// c2pa_ingredient_from_file describes the file at path as an ingredient
// inside the response envelope. When data_dir is not NULL the manifest
// store and thumbnail are written there.
//
//export c2pa_ingredient_from_file
func c2pa_ingredient_from_file(path, dataDir *C.char) *C.char {
	return C.CString(api.IngredientFromFileJSON(goText(path), goText(dataDir)))
}

//export c2pa_manifest_reader_new
func c2pa_manifest_reader_new() *C.C2paReader {
	return box[C.C2paReader](api.NewReader())
}

//export c2pa_manifest_reader_read
func c2pa_manifest_reader_read(r **C.C2paReader, format *C.char, s *C.C2paStream) *C.char {
	var text string
	ok := false
	loan("manifest_reader_read", r, func(h resource.Handle) {
		text, ok = api.ReaderRead(h, goText(format), unbox(s))
	})
	return cText(text, ok)
}

//export c2pa_manifest_reader_json
func c2pa_manifest_reader_json(r **C.C2paReader) *C.char {
	var text string
	ok := false
	loan("manifest_reader_json", r, func(h resource.Handle) {
		text, ok = api.ReaderJSON(h)
	})
	return cText(text, ok)
}

//export c2pa_manifest_reader_resource
func c2pa_manifest_reader_resource(r **C.C2paReader, manifest, id *C.char, out *C.C2paStream) C.int {
	st := bridge.Failed
	loan("manifest_reader_resource", r, func(h resource.Handle) {
		st = api.ReaderResource(h, goText(manifest), goText(id), unbox(out))
	})
	return C.int(st)
}

//export c2pa_release_manifest_reader
func c2pa_release_manifest_reader(r *C.C2paReader) C.int {
	return release(r, api.ReleaseReader)
}

//export c2pa_create_manifest_builder
func c2pa_create_manifest_builder(settings, manifest *C.char) *C.C2paBuilder {
	const op = "create_manifest_builder"
	if manifest == nil {
		api.Record(op, errors.NilHandle(errors.PhaseBoundary, op))
		return nil
	}
	return box[C.C2paBuilder](api.CreateBuilder(goText(settings), goText(manifest)))
}

//export c2pa_manifest_builder_add_resource
func c2pa_manifest_builder_add_resource(b **C.C2paBuilder, id *C.char, data *C.uint8_t, n C.uintptr_t) C.int {
	const op = "manifest_builder_add_resource"
	var payload []byte
	if data != nil {
		size, err := bufferLen(op, uint64(n))
		if err != nil {
			api.Record(op, err)
			return bridge.Failed
		}
		payload = bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(data)), size))
	}
	st := bridge.Failed
	loan(op, b, func(h resource.Handle) {
		st = api.BuilderAddResource(h, goText(id), payload)
	})
	return C.int(st)
}

// c2pa_manifest_builder_sign signs input into output. When manifest_bytes
// and manifest_len are both set they receive a copy of the signed bytes,
// released with c2pa_release_bytes.
//
//export c2pa_manifest_builder_sign
func c2pa_manifest_builder_sign(b **C.C2paBuilder, s *C.C2paSigner, in, out *C.C2paStream, manifestBytes **C.uint8_t, manifestLen *C.uintptr_t) C.int {
	var signed []byte
	st := bridge.Failed
	if !loan("manifest_builder_sign", b, func(h resource.Handle) {
		signed, st = api.BuilderSign(h, unbox(s), unbox(in), unbox(out))
	}) || st != bridge.OK {
		return bridge.Failed
	}
	if manifestBytes != nil && manifestLen != nil {
		*manifestBytes = (*C.uint8_t)(C.CBytes(signed))
		*manifestLen = C.uintptr_t(len(signed))
	}
	return bridge.OK
}

//export c2pa_release_manifest_builder
func c2pa_release_manifest_builder(b *C.C2paBuilder) C.int {
	return release(b, api.ReleaseBuilder)
}
