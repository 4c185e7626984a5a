// Package resource manages the opaque handles that cross the bridge boundary.
//
// Every stream, signer, reader and builder handed to a foreign caller lives in
// a single UnifiedTable slot and is referred to by a Handle. Handle 0 is never
// issued, so it doubles as the null sentinel.
//
// # Lifecycle
//
// Handles follow a single-owner protocol:
//
//	create  - Insert returns an owning handle
//	loan    - Borrow/With reclaim the value for one call and hand it back
//	release - Remove consumes the handle and runs the value's Drop once
//
// A handle on loan cannot be released. Releasing twice, releasing a handle of
// another kind, or releasing a handle this table never issued is reported as
// an ffi error instead of corrupting the table.
//
// # Typed views
//
//	streams := resource.NewTyped[*stream.Stream](table, resource.TypeStream)
//
//	h, _ := streams.Insert(s)
//	err := streams.With(h, func(s *stream.Stream) error {
//		_, err := s.Seek(0, io.SeekEnd)
//		return err
//	})
//	err = streams.Release(h)
//
// # Observers
//
// Observers receive created, borrowed, returned and released events, which the
// bridge uses for debug logging and for reporting leaked handles on Close.
package resource
