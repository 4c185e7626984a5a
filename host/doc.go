// Package host serves the bridge to WebAssembly guests running under wazero.
//
// Guests import the "c2pa" module. Arguments use the canonical ABI's flat
// lowering: handles and pointers are u32, strings and byte lists are a
// (ptr, len) pair, and a null pointer for an optional string means absent.
//
// Text the host returns is allocated in guest memory through the guest's
// cabi_realloc export, NUL-terminated, and must be handed back with
// release_text. Signed bytes are returned the same way and released with
// release_bytes. Releasing a pointer the host did not lend fails with -1.
//
// Reader and builder operations take the guest address of the slot holding
// the handle. The host reads the handle, runs the operation and writes it
// back on every path.
//
// Stream and signer callbacks run in the guest. create_stream and
// create_signer take a context value, usually an index into the guest's
// function table, which the host passes back to the guest's dispatcher
// exports:
//
//	c2pa_stream_read(ctx, buf, len) -> i64
//	c2pa_stream_seek(ctx, offset i64, mode) -> i64
//	c2pa_stream_write(ctx, buf, len) -> i64
//	c2pa_stream_release(ctx)                 (optional)
//	c2pa_sign(ctx, data, len, sig, cap) -> i64
//
// Each guest instance has its own handle table and last-error slot.
package host
