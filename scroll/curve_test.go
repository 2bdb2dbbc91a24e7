package scroll

import (
	"math"
	"testing"
	"time"
)

var baseTime = time.Unix(1_000_000_000, 0)

func stateAt(t time.Time) *State {
	return &State{PrevTime: t}
}

func TestTransform_ZeroValue(t *testing.T) {
	params := DefaultParams()

	tests := []struct {
		name string
		ts   time.Time
	}{
		{"later", baseTime.Add(10 * time.Millisecond)},
		{"sub_millisecond", baseTime.Add(time.Microsecond)},
		{"same", baseTime},
		{"earlier", baseTime.Add(-50 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateAt(baseTime)
			if got := Transform(0, tt.ts, params, s); got != 0 {
				t.Errorf("Transform(0) = %d, want 0", got)
			}
			if !s.PrevTime.Equal(tt.ts) {
				t.Errorf("PrevTime = %v, want %v", s.PrevTime, tt.ts)
			}
		})
	}
}

func TestTransform_SignPreserved(t *testing.T) {
	params := DefaultParams()
	elapsed := []time.Duration{time.Microsecond, time.Millisecond, 10 * time.Millisecond, time.Second, 0, -time.Second}

	for _, v := range []float64{1, 10, 120, 1000} {
		for _, d := range elapsed {
			pos := Transform(v, baseTime.Add(d), params, stateAt(baseTime))
			neg := Transform(-v, baseTime.Add(d), params, stateAt(baseTime))
			if pos <= 0 {
				t.Errorf("Transform(%v, +%v) = %d, want > 0", v, d, pos)
			}
			if neg >= 0 {
				t.Errorf("Transform(%v, +%v) = %d, want < 0", -v, d, neg)
			}
			if pos != -neg {
				t.Errorf("Transform not symmetric for %v at +%v: %d vs %d", v, d, pos, neg)
			}
		}
	}
}

func TestTransform_Monotonic(t *testing.T) {
	params := DefaultParams()
	const value = 120.0

	// Shrinking gaps imply higher velocity, so the magnitude must not drop.
	gaps := []time.Duration{
		1000 * time.Millisecond,
		500 * time.Millisecond,
		100 * time.Millisecond,
		50 * time.Millisecond,
		20 * time.Millisecond,
		10 * time.Millisecond,
		5 * time.Millisecond,
		2 * time.Millisecond,
		1 * time.Millisecond,
		100 * time.Microsecond,
	}

	floor := int32(value * params.BaseSens)
	prev := int32(0)
	for _, gap := range gaps {
		got := Transform(value, baseTime.Add(gap), params, stateAt(baseTime))
		if got < prev {
			t.Errorf("gap %v: got %d, smaller than %d at a longer gap", gap, got, prev)
		}
		if got < floor {
			t.Errorf("gap %v: got %d, below base sensitivity floor %d", gap, got, floor)
		}
		prev = got
	}
}

func TestTransform_OutOfOrderUsesFallback(t *testing.T) {
	params := DefaultParams()

	s := stateAt(baseTime.Add(100 * time.Millisecond))
	ts := baseTime.Add(50 * time.Millisecond)
	got := Transform(120, ts, params, s)

	want := Transform(120, baseTime.Add(FallbackElapsed), params, stateAt(baseTime))
	if got != want {
		t.Errorf("out-of-order Transform = %d, want %d (explicit 1000ms)", got, want)
	}
	if got <= 0 || got >= 2000 {
		t.Errorf("out-of-order Transform = %d, want a slow-scroll value in (0, 2000)", got)
	}
	if !s.PrevTime.Equal(ts) {
		t.Errorf("PrevTime = %v, want it advanced to %v", s.PrevTime, ts)
	}
}

func TestTransform_DuplicateTimestampUsesFallback(t *testing.T) {
	params := DefaultParams()

	got := Transform(120, baseTime, params, stateAt(baseTime))
	want := Transform(120, baseTime.Add(FallbackElapsed), params, stateAt(baseTime))
	if got != want {
		t.Errorf("duplicate timestamp Transform = %d, want %d", got, want)
	}
}

func TestTransform_NumericScenario(t *testing.T) {
	params := Params{BaseSens: 1.0, MaxSens: 15.0, RampUpRate: 0.3}

	got := Transform(120, baseTime.Add(10*time.Millisecond), params, stateAt(baseTime))

	// velocity = 12, C = 14, sens = 15 / (1 + 14e^-3.6) ~= 10.85
	sens := 15 / (1 + 14*math.Exp(-3.6))
	want := int32(120 * sens)
	if got != want {
		t.Errorf("Transform(120, 10ms) = %d, want %d", got, want)
	}
	if got < 1300 || got > 1303 {
		t.Errorf("Transform(120, 10ms) = %d, want ~1302", got)
	}
}

func TestTransform_SubMillisecondSaturates(t *testing.T) {
	params := DefaultParams()

	got := Transform(10, baseTime.Add(time.Microsecond), params, stateAt(baseTime))
	if want := int32(10 * params.MaxSens); got != want {
		t.Errorf("Transform(10, 1us) = %d, want %d (max sensitivity)", got, want)
	}
}

func TestTransform_ClampsToInt32(t *testing.T) {
	params := DefaultParams()

	hi := Transform(math.MaxInt32, baseTime.Add(time.Millisecond), params, stateAt(baseTime))
	if hi != math.MaxInt32 {
		t.Errorf("Transform(MaxInt32) = %d, want %d", hi, int32(math.MaxInt32))
	}
	lo := Transform(math.MinInt32, baseTime.Add(time.Millisecond), params, stateAt(baseTime))
	if lo != math.MinInt32 {
		t.Errorf("Transform(MinInt32) = %d, want %d", lo, int32(math.MinInt32))
	}
}

func TestTransform_ParameterConfigurations(t *testing.T) {
	ts := baseTime.Add(10 * time.Millisecond)

	def := Transform(10, ts, DefaultParams(), stateAt(baseTime))
	high := Transform(10, ts, Params{BaseSens: 1.0, MaxSens: 30.0, RampUpRate: 0.5}, stateAt(baseTime))
	low := Transform(10, ts, Params{BaseSens: 0.5, MaxSens: 5.0, RampUpRate: 0.1}, stateAt(baseTime))

	if def <= 0 || high <= 0 || low <= 0 {
		t.Fatalf("expected positive results, got default=%d high=%d low=%d", def, high, low)
	}
	if high <= low {
		t.Errorf("high sensitivity (%d) should exceed low sensitivity (%d)", high, low)
	}
}

func TestSensitivity_Bounds(t *testing.T) {
	params := DefaultParams()

	if got := Sensitivity(0, params); got != params.BaseSens {
		t.Errorf("Sensitivity(0) = %v, want exactly %v", got, params.BaseSens)
	}
	if got := Sensitivity(math.Inf(1), params); got != params.MaxSens {
		t.Errorf("Sensitivity(+Inf) = %v, want %v", got, params.MaxSens)
	}

	prev := params.BaseSens
	for _, v := range []float64{0.01, 0.1, 1, 2, 5, 10, 20, 40} {
		got := Sensitivity(v, params)
		if got <= prev {
			t.Errorf("Sensitivity(%v) = %v, not above %v", v, got, prev)
		}
		if got <= params.BaseSens || got >= params.MaxSens {
			t.Errorf("Sensitivity(%v) = %v, outside (%v, %v)", v, got, params.BaseSens, params.MaxSens)
		}
		prev = got
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"default", DefaultParams(), false},
		{"zero_base", Params{BaseSens: 0, MaxSens: 15, RampUpRate: 0.3}, true},
		{"negative_base", Params{BaseSens: -1, MaxSens: 15, RampUpRate: 0.3}, true},
		{"max_equal_base", Params{BaseSens: 2, MaxSens: 2, RampUpRate: 0.3}, true},
		{"max_below_base", Params{BaseSens: 2, MaxSens: 1, RampUpRate: 0.3}, true},
		{"zero_ramp", Params{BaseSens: 1, MaxSens: 15, RampUpRate: 0}, true},
		{"nan_ramp", Params{BaseSens: 1, MaxSens: 15, RampUpRate: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParams_Builders(t *testing.T) {
	def := DefaultParams()
	p := def.WithBaseSens(0.5).WithMaxSens(5).WithRampUpRate(0.1)

	if p != (Params{BaseSens: 0.5, MaxSens: 5, RampUpRate: 0.1}) {
		t.Errorf("builders produced %+v", p)
	}
	if def != DefaultParams() {
		t.Errorf("builders mutated the receiver: %+v", def)
	}
}
