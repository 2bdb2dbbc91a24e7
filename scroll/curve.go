package scroll

import (
	"math"
	"time"
)

// FallbackElapsed is the elapsed time assumed when an event's timestamp does
// not advance past the previous one (clock adjustment, reordering or a
// duplicate timestamp). It reads as a slow scroll, so the sensitivity stays
// near BaseSens.
const FallbackElapsed = 1000 * time.Millisecond

// Sample records the intermediate values of a single Transform call.
type Sample struct {
	Value       float64       // raw delta
	Out         int32         // rescaled delta
	Elapsed     time.Duration // elapsed time used for the velocity
	Fallback    bool          // true when FallbackElapsed was substituted
	Velocity    float64       // |Value| per millisecond, +Inf for sub-millisecond gaps
	Sensitivity float64
}

// Transform rescales a high-resolution wheel delta according to the scroll
// velocity implied by the time since the previous transformed event.
//
// The logistic curve is
//
//	sens(v) = MaxSens / (1 + C * e^(-RampUpRate * v)),  C = MaxSens/BaseSens - 1
//
// which starts at BaseSens for v = 0 and tends to MaxSens as v grows.
// s.PrevTime is advanced to ts on every call, including the fallback path.
// Transform never fails: degenerate timings saturate the curve and the
// result is clamped to the int32 range.
func Transform(value float64, ts time.Time, p Params, s *State) int32 {
	return transform(value, ts, p, s, math.Exp).Out
}

func transform(value float64, ts time.Time, p Params, s *State, exp func(float64) float64) Sample {
	smp := Sample{Value: value}

	if ts.After(s.PrevTime) {
		smp.Elapsed = ts.Sub(s.PrevTime)
	} else {
		smp.Elapsed = FallbackElapsed
		smp.Fallback = true
	}
	s.PrevTime = ts

	if value == 0 {
		smp.Sensitivity = p.BaseSens
		return smp
	}

	// Whole milliseconds; a zero divisor gives +Inf, which saturates the curve.
	ms := float64(smp.Elapsed.Milliseconds())
	smp.Velocity = math.Abs(value) / ms
	smp.Sensitivity = sensitivity(smp.Velocity, p, exp)
	smp.Out = truncateInt32(value * smp.Sensitivity)
	return smp
}

// Sensitivity evaluates the logistic velocity-to-sensitivity curve.
func Sensitivity(velocity float64, p Params) float64 {
	return sensitivity(velocity, p, math.Exp)
}

func sensitivity(velocity float64, p Params, exp func(float64) float64) float64 {
	if velocity == 0 {
		return p.BaseSens
	}
	c := p.MaxSens/p.BaseSens - 1
	return p.MaxSens / (1 + c*exp(-p.RampUpRate*velocity))
}

// truncateInt32 truncates toward zero and saturates at the int32 bounds.
// Go leaves out-of-range float to int conversions implementation-defined.
func truncateInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}
