// Package c2pabridge bridges a content-provenance engine to foreign callers.
//
// Callers on the other side of the boundary supply I/O and signing as
// callbacks, hold engine objects as opaque handles, and learn about failures
// through sentinel return values plus a per-thread last-error channel.
//
// # Architecture Overview
//
//	c2pabridge/          Root package with the GuestMemory and GuestAllocator interfaces
//	├── errors/          Closed error taxonomy (phase + kind) and builder
//	├── lasterror/       Per-scope last-error channel
//	├── resource/        Handle table with loan-and-return borrowing
//	├── stream/          Callback streams adapted to io.Reader/Seeker/Writer
//	├── signer/          Signer configuration and callback signing
//	├── provenance/      Engine interface and the in-process JPEG/sidecar engine
//	├── bridge/          Reader and Builder facades and the sentinel API surface
//	├── host/            wazero host module exposing the API to wasm guests
//	└── cmd/
//	    ├── libc2pa/     cgo shared library with the C API
//	    └── c2pa-bridge/ command line tool
//
// # Quick Start
//
// Sign an asset and read it back from Go:
//
//	engine := provenance.NewLocalEngine()
//	b := bridge.NewBuilder(engine, bridge.Settings{})
//	if err := b.Load(`{"claim_generator":"demo/1.0","title":"photo.jpg"}`); err != nil {
//	    return err
//	}
//	signed, err := b.Sign(s, asset, nil)
//	if err != nil {
//	    return err
//	}
//
//	r := bridge.NewReader(engine)
//	report, err := r.Read("image/jpeg", bytes.NewReader(signed))
//
// # Error Handling
//
// Go callers get *errors.Error values carrying a phase and a kind:
//
//	if errors.IsKind(err, errors.KindLockContention) {
//	    // another call is using the same reader
//	}
//
// Foreign callers get the same errors through bridge.API, which turns each
// failure into a sentinel and records it for the calling thread.
package c2pabridge
