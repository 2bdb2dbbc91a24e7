package scroll

import "math"

// BatchStats counts how a batch was routed.
type BatchStats struct {
	Transformed int
	Dropped     int
	Passed      int
}

// Add accumulates o into b.
func (b *BatchStats) Add(o BatchStats) {
	b.Transformed += o.Transformed
	b.Dropped += o.Dropped
	b.Passed += o.Passed
}

// Process classifies a batch of events read from the physical device and
// returns the batch to emit on the virtual device:
//   - high-resolution wheel events get their value rescaled by Transform
//     (type and code kept, timestamp cleared for the emitter to stamp);
//   - low-resolution wheel events are dropped;
//   - everything else is passed through unchanged.
//
// Retained events keep their relative order. Only high-resolution wheel
// events touch s.
func Process(events []Event, p Params, s *State) []Event {
	return AppendProcess(make([]Event, 0, len(events)), events, p, s)
}

// AppendProcess is Process appending into dst, for callers reusing a buffer.
func AppendProcess(dst, events []Event, p Params, s *State) []Event {
	dst, _ = appendProcessed(dst, events, p, s, math.Exp, nil)
	return dst
}

func appendProcessed(dst, events []Event, p Params, s *State, exp func(float64) float64, observe func(Sample)) ([]Event, BatchStats) {
	var st BatchStats
	for _, ev := range events {
		switch Classify(ev) {
		case CategoryHiResWheel:
			smp := transform(float64(ev.Value), ev.Time, p, s, exp)
			if observe != nil {
				observe(smp)
			}
			dst = append(dst, Event{Type: ev.Type, Code: ev.Code, Value: smp.Out})
			st.Transformed++
		case CategoryLoResWheel:
			st.Dropped++
		default:
			dst = append(dst, ev)
			st.Passed++
		}
	}
	return dst, st
}
