// Package stream turns foreign read, seek and write callbacks into an
// ordinary synchronous Go byte stream.
//
// A foreign callback signals failure with a negative return value. A
// non-negative value is the number of bytes moved (read, write) or the new
// absolute position (seek). Stream converts every negative sentinel into an
// io-kind error and otherwise behaves as an io.ReadWriteSeeker:
//
//	s := stream.New(callbacks)
//	defer s.Close()
//
//	data, err := io.ReadAll(s)
//
// A read that returns zero bytes is end of stream. Short reads are legal.
// WriteSome issues exactly one write callback and may write less than asked;
// Write loops over WriteSome for callers that want the io.Writer contract.
//
// Only one operation may be in flight on a Stream. An overlapping call fails
// with a lock_contention error instead of invoking the callbacks.
package stream
