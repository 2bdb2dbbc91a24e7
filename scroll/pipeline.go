package scroll

import "math"

// Pipeline binds one session's timing state to its curve parameters and
// reuses an output buffer between batches.
//
// A Pipeline is not safe for concurrent use: the session loop calls Process
// once per batch and emits the result before reading the next batch.
type Pipeline struct {
	params  Params
	state   *State
	exp     func(float64) float64
	observe func(Sample)
	buf     []Event
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExpTable evaluates the curve's exponential through t instead of math.Exp.
func WithExpTable(t *ExpTable) Option {
	return func(pl *Pipeline) {
		if t != nil {
			pl.exp = t.Exp
		}
	}
}

// WithObserver registers fn to receive every transform sample. fn runs on
// the caller's goroutine inside Process and must not block.
func WithObserver(fn func(Sample)) Option {
	return func(pl *Pipeline) {
		pl.observe = fn
	}
}

// NewPipeline returns a pipeline for one device session.
func NewPipeline(p Params, s *State, opts ...Option) *Pipeline {
	pl := &Pipeline{
		params: p,
		state:  s,
		exp:    math.Exp,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Params returns the curve parameters.
func (pl *Pipeline) Params() Params { return pl.params }

// Process classifies a batch like the package-level Process and reports how
// events were routed. The returned slice is reused by the next call.
func (pl *Pipeline) Process(events []Event) ([]Event, BatchStats) {
	out, st := appendProcessed(pl.buf[:0], events, pl.params, pl.state, pl.exp, pl.observe)
	pl.buf = out
	return out, st
}
