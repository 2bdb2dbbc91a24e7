package scroll

import (
	"fmt"
	"math"
)

// Default lookup table domain. The curve only evaluates exp at
// -RampUpRate*velocity <= 0, so the positive half is rarely used.
const (
	DefaultExpTableStart = -20.0
	DefaultExpTableEnd   = 20.0
	DefaultExpTableSteps = 1000
)

// ExpTable approximates math.Exp over [Start, End] by linear interpolation
// between precomputed points. Outside the domain it defers to math.Exp.
//
// An ExpTable is immutable after construction and safe for concurrent use.
type ExpTable struct {
	start, end float64
	step       float64
	values     []float64
}

// NewExpTable builds a table of steps intervals over [start, end].
func NewExpTable(start, end float64, steps int) (*ExpTable, error) {
	if steps < 2 {
		return nil, fmt.Errorf("exp table steps must be >= 2 (got %d)", steps)
	}
	if !(end > start) {
		return nil, fmt.Errorf("exp table end must be > start (got [%g, %g])", start, end)
	}
	t := &ExpTable{
		start:  start,
		end:    end,
		step:   (end - start) / float64(steps),
		values: make([]float64, steps+1),
	}
	for i := range t.values {
		t.values[i] = math.Exp(start + float64(i)*t.step)
	}
	return t, nil
}

// DefaultExpTable returns the table over the default domain.
func DefaultExpTable() *ExpTable {
	t, err := NewExpTable(DefaultExpTableStart, DefaultExpTableEnd, DefaultExpTableSteps)
	if err != nil {
		panic(err) // constants above are valid
	}
	return t
}

// Exp returns the interpolated value of e^x.
func (t *ExpTable) Exp(x float64) float64 {
	if !(x >= t.start && x <= t.end) {
		return math.Exp(x)
	}
	pos := (x - t.start) / t.step
	i := int(pos)
	if i >= len(t.values)-1 {
		return t.values[len(t.values)-1]
	}
	frac := pos - float64(i)
	return t.values[i] + (t.values[i+1]-t.values[i])*frac
}
