package resource

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid.
//
// The low 24 bits address a slot and the high 8 bits carry the slot's
// generation, so a released handle stays dead after its slot is reused.
// A stale handle is only mistaken for a live one after 256 reuses of the
// same slot.
type Handle uint32

const (
	slotBits = 24
	slotMask = 1<<slotBits - 1

	// MaxHandles is the number of objects a table can hold at once.
	MaxHandles = slotMask
)

func makeHandle(slot int, gen uint8) Handle {
	return Handle(uint32(gen)<<slotBits | uint32(slot+1))
}

// slot returns the entry index of h, or -1 for the null slot.
func (h Handle) slot() int {
	return int(uint32(h)&slotMask) - 1
}

func (h Handle) generation() uint8 {
	return uint8(uint32(h) >> slotBits)
}

// TypeID tags the kind of object a handle refers to.
type TypeID uint32

const (
	TypeInvalid TypeID = iota
	TypeStream
	TypeSigner
	TypeReader
	TypeBuilder
)

func (t TypeID) String() string {
	switch t {
	case TypeStream:
		return "stream"
	case TypeSigner:
		return "signer"
	case TypeReader:
		return "reader"
	case TypeBuilder:
		return "builder"
	default:
		return "invalid"
	}
}

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
	EventBorrowed
	EventReturned
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	case EventBorrowed:
		return "borrowed"
	case EventReturned:
		return "returned"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Err    error
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that own foreign resources.
// Drop runs exactly once, when the handle is released or the table closes.
type Dropper interface {
	Drop() error
}
