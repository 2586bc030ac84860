package kinematics

import (
	"math"
	"testing"
)

const tol = 1e-9

func TestConstantAccelerationSteps(t *testing.T) {
	m := ConstantAcceleration{Acceleration: 1, Deceleration: 2, TopSpeed: 30}
	tests := []struct {
		name      string
		step      func() (float64, float64)
		wantDist  float64
		wantSpeed float64
	}{
		{"accelerate", func() (float64, float64) { return m.AccelerateStep(0, 10, 2) }, 2, 2},
		{"reach target mid-step", func() (float64, float64) { return m.AccelerateStep(9, 10, 2) }, 9.5 + 10, 10},
		{"already at target", func() (float64, float64) { return m.AccelerateStep(10, 10, 1) }, 10, 10},
		{"brake", func() (float64, float64) { return m.DecelerateStep(10, 0, 1) }, 9, 8},
		{"brake to target mid-step", func() (float64, float64) { return m.DecelerateStep(2, 0, 2) }, 1, 0},
		{"brake to point", func() (float64, float64) { return m.BrakeToPoint(10, 50, 1) }, 9.5, 9},
		{"brake to point overshoot", func() (float64, float64) { return m.BrakeToPoint(2, 1, 5) }, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, v := tt.step()
			if math.Abs(d-tt.wantDist) > tol || math.Abs(v-tt.wantSpeed) > tol {
				t.Errorf("got (%g, %g), want (%g, %g)", d, v, tt.wantDist, tt.wantSpeed)
			}
		})
	}
}

func TestBrakingDistances(t *testing.T) {
	m := ConstantAcceleration{Acceleration: 1, Deceleration: 2, TopSpeed: 30}
	if got := m.BrakingDistance(10); got != 25 {
		t.Errorf("BrakingDistance(10) = %g", got)
	}
	if got := m.BrakingDistanceTo(10, 6); got != 16 {
		t.Errorf("BrakingDistanceTo(10, 6) = %g", got)
	}
	if got := m.SpeedAfterBraking(10, 16); math.Abs(got-6) > tol {
		t.Errorf("SpeedAfterBraking(10, 16) = %g", got)
	}
	if got := m.MaxSpeedToStopWithin(25); math.Abs(got-10) > tol {
		t.Errorf("MaxSpeedToStopWithin(25) = %g", got)
	}
}

func TestSpecBuild(t *testing.T) {
	m, err := Spec{Acceleration: 1, Deceleration: 1, MaxSpeed: 20}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if m.MaxSpeed() != 20 {
		t.Errorf("MaxSpeed() = %g", m.MaxSpeed())
	}
	if _, err := (Spec{Model: "magic", Acceleration: 1, Deceleration: 1, MaxSpeed: 1}).Build(); err == nil {
		t.Error("unknown model should fail")
	}
	if _, err := (Spec{Acceleration: 1, MaxSpeed: 1}).Build(); err == nil {
		t.Error("zero deceleration should fail")
	}
}

func TestProfileLookups(t *testing.T) {
	var p Profile
	p.Advance(1, 10) // 0 -> 50 m, 10 m/s
	p.Advance(0, 5)  // 50 -> 100 m
	p.Advance(-2, 5) // 100 -> 125 m, stopped
	p.Wait(30)       // dwell
	p.Advance(1, 2)  // 125 -> 127 m

	if len(p.Segments()) != 5 {
		t.Fatalf("segments = %d, want 5", len(p.Segments()))
	}
	if p.Distance() != 127 || p.Duration() != 52 {
		t.Fatalf("end state = %g m at %g s", p.Distance(), p.Duration())
	}
	for _, tt := range []struct{ distance, time float64 }{
		{0, 0}, {50, 10}, {75, 12.5}, {100, 15}, {125, 20}, {125.5, 51}, {127, 52},
	} {
		if got := p.TimeAt(tt.distance); math.Abs(got-tt.time) > 1e-6 {
			t.Errorf("TimeAt(%g) = %g, want %g", tt.distance, got, tt.time)
		}
		if got := p.DistanceAt(tt.time); math.Abs(got-tt.distance) > 1e-6 {
			t.Errorf("DistanceAt(%g) = %g, want %g", tt.time, got, tt.distance)
		}
	}
	if got := p.DistanceAt(35); got != 125 {
		t.Errorf("DistanceAt during dwell = %g", got)
	}
	if got := p.SpeedAt(12); got != 10 {
		t.Errorf("SpeedAt(12) = %g", got)
	}

	prev := -1.0
	for d := 0.0; d <= p.Distance(); d += 0.5 {
		tm := p.TimeAt(d)
		if tm < prev {
			t.Fatalf("TimeAt decreases at %g", d)
		}
		prev = tm
	}
}

func TestProfileJump(t *testing.T) {
	var p Profile
	p.Advance(0, 1) // standing start, nothing covered
	p.Jump(10)
	p.Advance(0, 2) // 0 -> 20 m
	if len(p.Segments()) != 2 {
		t.Fatalf("segments = %d, want a break at the jump", len(p.Segments()))
	}
	if got := p.TimeAt(10); math.Abs(got-2) > 1e-9 {
		t.Errorf("TimeAt(10) = %g, want 2", got)
	}
	if p.Speed() != 10 || p.Distance() != 20 {
		t.Errorf("end state = %g m/s, %g m", p.Speed(), p.Distance())
	}
}
