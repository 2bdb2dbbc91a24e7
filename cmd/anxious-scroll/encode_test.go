package main

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
	"unsafe"

	"anxiousscroll/scroll"
)

func decodeRecords(t *testing.T, b []byte) []inputEvent {
	t.Helper()
	size := binary.Size(inputEvent{})
	if len(b)%size != 0 {
		t.Fatalf("encoded length %d is not a multiple of %d", len(b), size)
	}
	recs := make([]inputEvent, len(b)/size)
	if err := binary.Read(bytes.NewReader(b), binary.NativeEndian, recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return recs
}

func TestEncodeEvents_AppendsSynReport(t *testing.T) {
	batch := []scroll.Event{
		{Type: EV_REL, Code: REL_WHEEL_HI_RES, Value: 1301},
		{Time: time.Now(), Type: EV_REL, Code: REL_X, Value: -10},
	}

	var buf bytes.Buffer
	if err := encodeEvents(&buf, batch); err != nil {
		t.Fatalf("encodeEvents: %v", err)
	}

	if want := 8 + 2*int(unsafe.Sizeof(timevalWord(0))); binary.Size(inputEvent{}) != want {
		t.Fatalf("input_event record size = %d, want %d", binary.Size(inputEvent{}), want)
	}

	recs := decodeRecords(t, buf.Bytes())
	want := []inputEvent{
		{Type: EV_REL, Code: REL_WHEEL_HI_RES, Value: 1301},
		{Type: EV_REL, Code: REL_X, Value: -10},
		{Type: EV_SYN, Code: SYN_REPORT},
	}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, recs[i], want[i])
		}
	}
}

func TestEncodeEvents_KeepsExistingSynReport(t *testing.T) {
	batch := []scroll.Event{
		{Type: EV_KEY, Code: 0x110, Value: 1},
		{Type: EV_SYN, Code: SYN_REPORT},
	}

	var buf bytes.Buffer
	if err := encodeEvents(&buf, batch); err != nil {
		t.Fatalf("encodeEvents: %v", err)
	}
	if recs := decodeRecords(t, buf.Bytes()); len(recs) != 2 {
		t.Errorf("got %d records, want 2 (no extra SYN_REPORT)", len(recs))
	}
}

func TestEncodeEvents_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeEvents(&buf, nil); err != nil {
		t.Fatalf("encodeEvents: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("encoded %d bytes for an empty batch", buf.Len())
	}
}

func TestLooksLikeWheelMouse(t *testing.T) {
	tests := []struct {
		name string
		axes []int
		want bool
	}{
		{"full_mouse", []int{REL_X, REL_Y, REL_HWHEEL, REL_WHEEL, REL_WHEEL_HI_RES}, true},
		{"no_hwheel", []int{REL_X, REL_Y, REL_WHEEL}, false},
		{"dial_only", []int{0x07}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeWheelMouse(tt.axes); got != tt.want {
				t.Errorf("looksLikeWheelMouse(%v) = %v, want %v", tt.axes, got, tt.want)
			}
		})
	}
}
