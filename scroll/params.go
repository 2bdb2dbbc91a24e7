package scroll

import (
	"errors"
	"fmt"
	"time"
)

// Default curve parameters.
const (
	DefaultBaseSens   = 1.0
	DefaultMaxSens    = 15.0
	DefaultRampUpRate = 0.3
)

// Params are the tunables of the sensitivity curve.
//
// They are built once at startup and never mutated afterwards. The curve
// assumes MaxSens > BaseSens > 0 and RampUpRate > 0; Validate reports a
// violation but Transform itself does not check.
type Params struct {
	// BaseSens is the sensitivity at zero velocity (the floor).
	BaseSens float64
	// MaxSens is the sensitivity the curve tapers off towards.
	MaxSens float64
	// RampUpRate controls how quickly the logistic curve climbs.
	RampUpRate float64
}

// DefaultParams returns a fully populated Params with the default curve.
func DefaultParams() Params {
	return Params{
		BaseSens:   DefaultBaseSens,
		MaxSens:    DefaultMaxSens,
		RampUpRate: DefaultRampUpRate,
	}
}

// WithBaseSens returns a copy of p with BaseSens replaced.
func (p Params) WithBaseSens(v float64) Params {
	p.BaseSens = v
	return p
}

// WithMaxSens returns a copy of p with MaxSens replaced.
func (p Params) WithMaxSens(v float64) Params {
	p.MaxSens = v
	return p
}

// WithRampUpRate returns a copy of p with RampUpRate replaced.
func (p Params) WithRampUpRate(v float64) Params {
	p.RampUpRate = v
	return p
}

// Validate checks the curve invariants.
func (p Params) Validate() error {
	if !(p.BaseSens > 0) {
		return fmt.Errorf("base_sens must be > 0 (got %g)", p.BaseSens)
	}
	if !(p.MaxSens > p.BaseSens) {
		return fmt.Errorf("max_sens must be > base_sens (got %g <= %g)", p.MaxSens, p.BaseSens)
	}
	if !(p.RampUpRate > 0) {
		return errors.New("ramp_up_rate must be > 0")
	}
	return nil
}

// State is the timing state threaded through successive Transform calls:
// the timestamp of the most recently transformed event.
//
// It is owned by the goroutine driving the device session and must not be
// shared across concurrent Process calls.
type State struct {
	PrevTime time.Time
}

// NewState returns a State whose previous timestamp is now.
func NewState(now time.Time) *State {
	return &State{PrevTime: now}
}
