package scroll

import "time"

// Linux input event type and relative axis codes used by the classifier
// (from <linux/input-event-codes.h>).
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02

	RelX           = 0x00
	RelY           = 0x01
	RelHWheel      = 0x06
	RelWheel       = 0x08
	RelWheelHiRes  = 0x0b
	RelHWheelHiRes = 0x0c

	SynReport = 0x00
)

// Event is a single input event as read from (or written to) an evdev node.
//
// Time is the kernel timestamp of the physical event. Events produced by the
// classifier for the virtual device carry a zero Time; the kernel stamps them
// when they are emitted.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// Category is the classifier's view of an event.
type Category int

const (
	// CategoryOther covers pointer motion, buttons, sync markers and anything else.
	CategoryOther Category = iota
	// CategoryHiResWheel is a high-resolution vertical wheel delta.
	CategoryHiResWheel
	// CategoryLoResWheel is the legacy vertical wheel companion event.
	CategoryLoResWheel
)

func (c Category) String() string {
	switch c {
	case CategoryHiResWheel:
		return "hi_res_wheel"
	case CategoryLoResWheel:
		return "lo_res_wheel"
	default:
		return "other"
	}
}

// Classify returns the category of ev by its (type, code) pair.
func Classify(ev Event) Category {
	if ev.Type != EvRel {
		return CategoryOther
	}
	switch ev.Code {
	case RelWheelHiRes:
		return CategoryHiResWheel
	case RelWheel:
		return CategoryLoResWheel
	default:
		return CategoryOther
	}
}
