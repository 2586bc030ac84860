package kinematics

import "math"

// ConstantModelName is the Spec.Model value for ConstantAcceleration.
const ConstantModelName = "constant"

// ConstantAcceleration implements MotionModel with fixed traction and braking rates.
type ConstantAcceleration struct {
	Acceleration float64 // m/s²
	Deceleration float64 // m/s², positive
	TopSpeed     float64 // m/s
}

func (c ConstantAcceleration) MaxSpeed() float64 { return c.TopSpeed }

func (c ConstantAcceleration) BrakingDistance(v float64) float64 {
	return c.BrakingDistanceTo(v, 0)
}

func (c ConstantAcceleration) BrakingDistanceTo(v, target float64) float64 {
	if c.Deceleration <= 0 {
		return math.Inf(1)
	}
	if v <= target {
		return 0
	}
	return (v*v - target*target) / (2 * c.Deceleration)
}

func (c ConstantAcceleration) SpeedAfterBraking(v0, dist float64) float64 {
	if c.Deceleration <= 0 {
		return v0
	}
	return math.Sqrt(math.Max(0, v0*v0-2*c.Deceleration*dist))
}

func (c ConstantAcceleration) MaxSpeedToStopWithin(dist float64) float64 {
	if dist <= 0 {
		return 0
	}
	return math.Sqrt(2 * c.Deceleration * dist)
}

func (c ConstantAcceleration) AccelerateStep(v, target, dt float64) (float64, float64) {
	if c.Acceleration <= 0 || v >= target {
		return target * dt, target
	}
	if t := (target - v) / c.Acceleration; t <= dt {
		return v*t + 0.5*c.Acceleration*t*t + target*(dt-t), target
	}
	return v*dt + 0.5*c.Acceleration*dt*dt, v + c.Acceleration*dt
}

func (c ConstantAcceleration) DecelerateStep(v, target, dt float64) (float64, float64) {
	if c.Deceleration <= 0 || v <= target {
		return target * dt, target
	}
	if t := (v - target) / c.Deceleration; t <= dt {
		return math.Max(0, v*t-0.5*c.Deceleration*t*t) + target*(dt-t), target
	}
	return math.Max(0, v*dt-0.5*c.Deceleration*dt*dt), v - c.Deceleration*dt
}

func (c ConstantAcceleration) BrakeToPoint(v, remaining, dt float64) (float64, float64) {
	if remaining <= 0 || v <= 0 {
		return 0, 0
	}
	a := v * v / (2 * remaining)
	if t := v / a; t <= dt {
		return remaining, 0
	}
	return math.Min(remaining, v*dt-0.5*a*dt*dt), v - a*dt
}
