package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"anxiousscroll/scroll"
)

// inputEvent is the Linux input_event record in native byte order:
// struct input_event { __kernel_ulong_t sec, usec; __u16 type; __u16 code; __s32 value; };
// It is 24 bytes on 64-bit platforms and 16 on 32-bit ones.
type inputEvent struct {
	Sec   timevalWord
	Usec  timevalWord
	Type  uint16
	Code  uint16
	Value int32
}

// encodeEvents writes batch as input_event records with a zero timestamp;
// the kernel stamps emission time. Sources deliver whole frames, so a batch
// normally ends in SYN_REPORT; one is appended when it does not.
func encodeEvents(w io.Writer, batch []scroll.Event) error {
	if len(batch) == 0 {
		return nil
	}
	for _, ev := range batch {
		rec := inputEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value}
		if err := binary.Write(w, binary.NativeEndian, &rec); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
	if isSynReport(batch[len(batch)-1]) {
		return nil
	}
	syn := inputEvent{Type: EV_SYN, Code: SYN_REPORT}
	if err := binary.Write(w, binary.NativeEndian, &syn); err != nil {
		return fmt.Errorf("encode SYN_REPORT: %w", err)
	}
	return nil
}

func isSynReport(ev scroll.Event) bool {
	return ev.Type == EV_SYN && ev.Code == SYN_REPORT
}
