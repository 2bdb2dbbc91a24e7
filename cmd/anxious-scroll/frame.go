package main

import "anxiousscroll/scroll"

// maxPendingEvents bounds a frame that never sees its SYN_REPORT.
const maxPendingEvents = 256

// frameBuffer regroups reads into whole frames. A read may stop in the
// middle of a frame when the kernel queue backs up.
type frameBuffer struct {
	pending []scroll.Event
}

// push adds events and returns everything up to and including the last
// SYN_REPORT, or nil when no frame is complete yet. If the pending tail
// reaches maxPendingEvents it is returned as is.
func (f *frameBuffer) push(events []scroll.Event) []scroll.Event {
	f.pending = append(f.pending, events...)

	end := -1
	for i := len(f.pending) - 1; i >= 0; i-- {
		if isSynReport(f.pending[i]) {
			end = i + 1
			break
		}
	}
	if end < 0 {
		if len(f.pending) < maxPendingEvents {
			return nil
		}
		end = len(f.pending)
	}

	out := make([]scroll.Event, end)
	copy(out, f.pending[:end])
	n := copy(f.pending, f.pending[end:])
	f.pending = f.pending[:n]
	return out
}
