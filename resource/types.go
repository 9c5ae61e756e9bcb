package resource

// Handle is an opaque token handed to native code as callback user data.
// Handle 0 is reserved and always invalid. The low bits index a slot and the
// high bits carry the slot generation, so a token from an earlier call never
// resolves to a value inserted later into the same slot.
type Handle uint32

const (
	slotBits = 20
	slotMask = 1<<slotBits - 1
	genMask  = 1<<(32-slotBits) - 1

	// MaxLive is the most handles a table holds at once.
	MaxLive = slotMask - 1
)

func makeHandle(slot int, gen uint32) Handle {
	return Handle(gen&genMask)<<slotBits | Handle(slot+1)
}

func (h Handle) slot() int {
	return int(h&slotMask) - 1
}

func (h Handle) gen() uint32 {
	return uint32(h>>slotBits) & genMask
}

// UserData returns the handle as the pointer-sized value passed through C.
func (h Handle) UserData() uintptr {
	return uintptr(h)
}

// FromUserData recovers a handle from callback user data. Values that do not
// fit a handle map to the invalid handle 0.
func FromUserData(ud uintptr) Handle {
	if ud > uintptr(^uint32(0)) {
		return 0
	}
	return Handle(ud)
}

// EventType is a token lifecycle notification kind.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a token lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about token lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// token is removed.
type Dropper interface {
	Drop()
}
