// Package kinematics defines the MotionModel interface for vehicle traction and braking,
// the built-in constant acceleration model and the piecewise constant-acceleration
// Profile used for timetables.
//
// Distances are in metres, speeds in m/s and times in seconds.
package kinematics

import "fmt"

// MotionModel is the physics contract every kinematics implementation must satisfy.
type MotionModel interface {
	// MaxSpeed returns the vehicle's own speed cap.
	MaxSpeed() float64

	// BrakingDistance returns the minimum distance needed to stop from v.
	BrakingDistance(v float64) float64

	// BrakingDistanceTo returns the distance needed to slow from v to target.
	// Returns 0 if v <= target.
	BrakingDistanceTo(v, target float64) float64

	// SpeedAfterBraking returns the speed left after braking from v0 over dist.
	SpeedAfterBraking(v0, dist float64) float64

	// MaxSpeedToStopWithin is the highest speed from which the vehicle can still stop
	// in dist.
	MaxSpeedToStopWithin(dist float64) float64

	// AccelerateStep advances toward target over dt. If target is reached before dt
	// expires the vehicle holds target for the remainder.
	// Returns (distance travelled, new speed).
	AccelerateStep(v, target, dt float64) (dist, newV float64)

	// DecelerateStep brakes toward target (>= 0) over dt, holding target once reached.
	// Returns (distance travelled, new speed).
	DecelerateStep(v, target, dt float64) (dist, newV float64)

	// BrakeToPoint brakes uniformly so the vehicle stops exactly remaining metres
	// ahead. Returns (distance travelled, new speed).
	BrakeToPoint(v, remaining, dt float64) (dist, newV float64)
}

// Spec is the serialisable choice of model. Model defaults to "constant".
type Spec struct {
	Model        string  `json:"model,omitempty" yaml:"model" validate:"omitempty,oneof=constant"`
	Acceleration float64 `json:"acceleration" yaml:"acceleration" validate:"gt=0"` // m/s²
	Deceleration float64 `json:"deceleration" yaml:"deceleration" validate:"gt=0"` // m/s², positive
	MaxSpeed     float64 `json:"max_speed" yaml:"maxSpeed" validate:"gt=0"`        // m/s
}

// Build returns the model named by s.
func (s Spec) Build() (MotionModel, error) {
	switch s.Model {
	case "", ConstantModelName:
		if s.Acceleration <= 0 || s.Deceleration <= 0 || s.MaxSpeed <= 0 {
			return nil, fmt.Errorf("constant model needs positive acceleration, deceleration and max speed")
		}
		return ConstantAcceleration{Acceleration: s.Acceleration, Deceleration: s.Deceleration, TopSpeed: s.MaxSpeed}, nil
	default:
		return nil, fmt.Errorf("unknown motion model %q", s.Model)
	}
}
