package main

import (
	"math"
	"sync"
	"time"

	"anxiousscroll/scroll"
)

// scrollSample is a transform observation published to telemetry consumers.
type scrollSample struct {
	Raw         int32
	Out         int32
	Elapsed     time.Duration
	Fallback    bool
	Velocity    float64 // +Inf when the gap was under a millisecond
	Sensitivity float64
	At          time.Time
}

// statsSnapshot is a copy of the session counters, safe to hand to other goroutines.
type statsSnapshot struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	Batches     uint64    `json:"batches"`
	Transformed uint64    `json:"transformed"`
	Dropped     uint64    `json:"dropped"`
	Passed      uint64    `json:"passed"`
	Fallbacks   uint64    `json:"fallbacks"`
	Last        *wsSample `json:"last_sample,omitempty"`
}

// sessionStats accumulates counters for one device session.
//
// The session goroutine writes; status handlers read snapshots. Samples are
// also offered to an optional channel without blocking the session.
type sessionStats struct {
	mu sync.Mutex

	id        string
	startedAt time.Time

	batches     uint64
	transformed uint64
	dropped     uint64
	passed      uint64
	fallbacks   uint64

	last    scrollSample
	hasLast bool

	samples chan<- scrollSample
	now     func() time.Time
}

func newSessionStats(id string, startedAt time.Time, samples chan<- scrollSample) *sessionStats {
	return &sessionStats{
		id:        id,
		startedAt: startedAt,
		samples:   samples,
		now:       time.Now,
	}
}

// observe is the pipeline observer: it runs on the session goroutine for every transform.
func (s *sessionStats) observe(smp scroll.Sample) {
	ss := scrollSample{
		Raw:         int32(smp.Value),
		Out:         smp.Out,
		Elapsed:     smp.Elapsed,
		Fallback:    smp.Fallback,
		Velocity:    smp.Velocity,
		Sensitivity: smp.Sensitivity,
		At:          s.now(),
	}

	s.mu.Lock()
	s.last = ss
	s.hasLast = true
	if smp.Fallback {
		s.fallbacks++
	}
	s.mu.Unlock()

	if s.samples != nil {
		select {
		case s.samples <- ss:
		default:
			// Telemetry is best-effort; never stall the input path.
		}
	}
}

// recordBatch adds one processed batch to the counters.
func (s *sessionStats) recordBatch(st scroll.BatchStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.transformed += uint64(st.Transformed)
	s.dropped += uint64(st.Dropped)
	s.passed += uint64(st.Passed)
}

func (s *sessionStats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := statsSnapshot{
		SessionID:   s.id,
		StartedAt:   s.startedAt,
		Batches:     s.batches,
		Transformed: s.transformed,
		Dropped:     s.dropped,
		Passed:      s.passed,
		Fallbacks:   s.fallbacks,
	}
	if s.hasLast {
		w := toWSSample(s.last)
		snap.Last = &w
	}
	return snap
}

// finiteOrNil returns nil for values JSON cannot represent.
func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
