package c2pabridge

// GuestMemory is the host's view of a WebAssembly guest's linear memory.
// Strings and byte lists cross the boundary as (ptr, len) pairs; a zero
// pointer is absent and is never read.
type GuestMemory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	String(ptr, length uint32) (string, error)
	Bytes(ptr, length uint32) ([]byte, error)
	Size() uint32
}

// GuestAllocator allocates in guest linear memory for buffers the host
// lends to the guest or passes to guest callbacks.
type GuestAllocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
