// Package vehicle advances one vehicle along a generated path each tick: dispatch,
// dwell with door timers, signal lookahead, and acceleration or braking toward the
// track limit or the nearest point it must stop at.
package vehicle

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/kinematics"
	"github.com/cxd309/railsim/internal/rail"
)

// State describes the current motion state of a vehicle.
type State string

const (
	StateWaiting      State = "waiting"
	StateDwelling     State = "dwelling"
	StateAccelerating State = "accelerating"
	StateDecelerating State = "decelerating"
	StateCruising     State = "cruising"
	StateStopped      State = "stopped"
	StateFinished     State = "finished"
)

// NoRepeat marks a path that does not loop.
const NoRepeat = -1

// arrival tolerance in metres
const epsilon = 1e-6

// probeMargin extends the signal lookahead so a stationary vehicle still checks the
// rail right in front of it.
const probeMargin = 1.0 // metres

// Config is the immutable part of a vehicle, fixed when it is spawned.
type Config struct {
	ID       uuid.UUID
	DepotID  string
	SidingID string
	Path     rail.Path
	// a looping vehicle arriving at the end of RepeatIndex2 continues from the end of
	// RepeatIndex1
	RepeatIndex1    int
	RepeatIndex2    int
	Length          float64 // metres
	Model           kinematics.MotionModel
	DepartureMillis int64
	DepartureIndex  int
	DoorMillis      int64
	Manual          bool
	MaxManualSpeed  float64 // m/s
}

// Passenger is someone riding the vehicle.
type Passenger struct {
	ID          string `json:"id"`
	Destination string `json:"destination"` // platform id
}

// Vehicle is a Config plus live simulation state.
type Vehicle struct {
	cfg Config

	state        State
	progress     float64 // front of the vehicle, metres along the path
	speed        float64 // m/s
	doors        float64 // 0 closed, 1 open
	nextStop     int     // path index of the next stop, -1 if none
	dwellElapsed int64
	notch        int
	onRoute      bool
	passengers   []Passenger
}

// New places a vehicle with its front Length metres into the first path element.
func New(cfg Config) (*Vehicle, error) {
	if len(cfg.Path) == 0 {
		return nil, errors.New("vehicle path is empty")
	}
	if cfg.Model == nil {
		return nil, errors.New("vehicle has no motion model")
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	v := &Vehicle{
		cfg:      cfg,
		state:    StateWaiting,
		progress: StartProgress(cfg.Path, cfg.Length),
	}
	v.nextStop = v.stopAfter(cfg.Path.IndexAt(v.progress) - 1)
	return v, nil
}

// StartProgress is where a vehicle of the given length starts on path.
func StartProgress(path rail.Path, length float64) float64 {
	if len(path) == 0 {
		return 0
	}
	return math.Min(length, path[0].EndDistance)
}

func (v *Vehicle) ID() uuid.UUID { return v.cfg.ID }
func (v *Vehicle) State() State { return v.state }
func (v *Vehicle) Progress() float64 { return v.progress }
func (v *Vehicle) Speed() float64 { return v.speed }
func (v *Vehicle) Doors() float64 { return v.doors }
func (v *Vehicle) NextStopIndex() int { return v.nextStop }
func (v *Vehicle) DepartureIndex() int { return v.cfg.DepartureIndex }
func (v *Vehicle) OnRoute() bool { return v.onRoute }
func (v *Vehicle) Finished() bool { return v.state == StateFinished }
func (v *Vehicle) Passengers() []Passenger { return v.passengers }

// SetNotch sets the manual power/brake handle: positive powers, negative brakes.
func (v *Vehicle) SetNotch(n int) { v.notch = n }

// Board adds a passenger.
func (v *Vehicle) Board(p Passenger) { v.passengers = append(v.passengers, p) }

// Alight removes and returns the passengers travelling to platformID.
func (v *Vehicle) Alight(platformID string) []Passenger {
	var out, stay []Passenger
	for _, p := range v.passengers {
		if p.Destination == platformID {
			out = append(out, p)
		} else {
			stay = append(stay, p)
		}
	}
	v.passengers = stay
	return out
}

func (v *Vehicle) looping() bool {
	return v.cfg.RepeatIndex1 != NoRepeat && v.cfg.RepeatIndex2 > v.cfg.RepeatIndex1 && v.cfg.RepeatIndex2 < len(v.cfg.Path)
}

// Tick advances the vehicle by dt seconds at world time now (ms).
func (v *Vehicle) Tick(now int64, dt float64) {
	if v.state == StateFinished {
		return
	}
	v.reserveBody()
	if !v.onRoute {
		if !v.dispatch(now) {
			return
		}
	}
	if v.state == StateDwelling {
		if !v.dwell(dt) {
			return
		}
	}
	v.move(dt)
}

func (v *Vehicle) dispatch(now int64) bool {
	if v.cfg.Manual {
		if v.notch <= 0 {
			return false
		}
	} else if now < v.cfg.DepartureMillis || v.probe(0) <= v.progress+epsilon {
		return false
	}
	v.onRoute = true
	v.state = StateAccelerating
	return true
}

// dwell runs the door timers at a stop and reports whether the vehicle may leave.
// Doors only start closing once the rail ahead can be reserved.
func (v *Vehicle) dwell(dt float64) bool {
	stop := v.cfg.Path[v.nextStop]
	v.dwellElapsed += int64(dt * 1000)
	doorStep := 1.0
	if v.cfg.DoorMillis > 0 {
		doorStep = dt * 1000 / float64(v.cfg.DoorMillis)
	}
	if v.dwellElapsed < stop.DwellMillis-v.cfg.DoorMillis {
		v.doors = math.Min(1, v.doors+doorStep)
		return false
	}
	if v.probe(0) <= v.progress+epsilon {
		v.doors = math.Min(1, v.doors+doorStep)
		v.dwellElapsed = max(0, stop.DwellMillis-v.cfg.DoorMillis)
		return false
	}
	v.doors = math.Max(0, v.doors-doorStep)
	if v.doors > 0 || v.dwellElapsed < stop.DwellMillis {
		return false
	}
	v.leaveStop()
	return true
}

func (v *Vehicle) leaveStop() {
	v.dwellElapsed = 0
	v.state = StateAccelerating
	if v.looping() && v.nextStop == v.cfg.RepeatIndex2 {
		p := v.cfg.Path
		v.progress -= p[v.cfg.RepeatIndex2].EndDistance - p[v.cfg.RepeatIndex1].EndDistance
		v.nextStop = v.stopAfter(v.cfg.RepeatIndex1)
		return
	}
	v.nextStop = v.stopAfter(v.nextStop)
}

func (v *Vehicle) stopAfter(i int) int {
	for j := i + 1; j < len(v.cfg.Path); j++ {
		if v.cfg.Path[j].IsStop() {
			return j
		}
	}
	return -1
}

// probe checks the rails within the stopping distance plus extra metres and returns
// the path distance of the first one the vehicle may not enter (+Inf if none).
// The rails are first only checked, then reserved up to the first blocked one, so a
// block that turns out to be obstructed is never partially claimed.
func (v *Vehicle) probe(extra float64) float64 {
	p := v.cfg.Path
	end := v.progress + v.cfg.Model.BrakingDistance(v.speed) + extra + probeMargin
	first := p.IndexAt(v.progress)
	blockedAt := math.Inf(1)
	last := first - 1
	for i := first; i < len(p) && p[i].StartDistance < end; i++ {
		if p[i].Rail.IsBlocked(v.cfg.ID, false) {
			blockedAt = p[i].StartDistance
			break
		}
		last = i
	}
	for i := first; i <= last; i++ {
		if p[i].Rail.IsBlocked(v.cfg.ID, true) {
			return p[i].StartDistance
		}
	}
	return blockedAt
}

// reserveBody claims the rails between the rear and the front of the vehicle.
func (v *Vehicle) reserveBody() {
	p := v.cfg.Path
	for i := p.IndexAt(math.Max(0, v.progress-v.cfg.Length)); i <= p.IndexAt(v.progress); i++ {
		p[i].Rail.IsBlocked(v.cfg.ID, true)
	}
}

// speedLimit is the lowest limit under the vehicle body.
func (v *Vehicle) speedLimit() float64 {
	p := v.cfg.Path
	limit := v.cfg.Model.MaxSpeed()
	if v.cfg.Manual && v.cfg.MaxManualSpeed > 0 {
		limit = math.Min(limit, v.cfg.MaxManualSpeed)
	}
	for i := p.IndexAt(math.Max(0, v.progress-v.cfg.Length)); i <= p.IndexAt(v.progress); i++ {
		limit = math.Min(limit, p[i].SpeedLimit())
	}
	return limit
}

func (v *Vehicle) move(dt float64) {
	p := v.cfg.Path
	m := v.cfg.Model
	limit := v.speedLimit()

	stopAt := math.Inf(1)
	if v.nextStop >= 0 {
		stopAt = p[v.nextStop].EndDistance
	} else if !v.looping() {
		stopAt = p.Length()
	}
	stopAt = math.Min(stopAt, v.probe(v.speed*dt))
	remaining := stopAt - v.progress

	var dist, speed float64
	state := StateCruising
	switch {
	case remaining <= epsilon:
		dist, speed, state = 0, 0, StateStopped
	case v.cfg.Manual:
		dist, speed, state = v.manualStep(limit, dt)
	case remaining <= m.BrakingDistance(v.speed)+v.speed*dt:
		dist, speed = m.BrakeToPoint(v.speed, remaining, dt)
		state = StateDecelerating
	default:
		dist, speed, state = v.autoStep(limit, dt)
	}

	start := v.progress
	v.progress += dist
	v.speed = speed
	v.state = state
	if v.progress >= stopAt-epsilon {
		// a block taken from under the front holds the vehicle where it is
		v.progress = math.Max(stopAt, start)
		v.speed = 0
		v.state = StateStopped
	}
	if v.speed > 0 {
		return
	}
	switch {
	case v.nextStop >= 0 && v.progress >= p[v.nextStop].EndDistance-epsilon:
		v.state = StateDwelling
		v.dwellElapsed = 0
	case v.nextStop < 0 && !v.looping() && v.progress >= p.Length()-epsilon:
		v.state = StateFinished
	}
}

// autoStep slows down for a lower limit ahead, then for the current limit, and
// otherwise accelerates.
func (v *Vehicle) autoStep(limit, dt float64) (float64, float64, State) {
	p := v.cfg.Path
	m := v.cfg.Model
	reach := v.progress + m.BrakingDistance(v.speed) + v.speed*dt
	for i := p.IndexAt(v.progress) + 1; i < len(p) && p[i].StartDistance < reach; i++ {
		lim := p[i].SpeedLimit()
		if lim < v.speed && p[i].StartDistance-v.progress <= m.BrakingDistanceTo(v.speed, lim)+v.speed*dt {
			d, s := m.DecelerateStep(v.speed, lim, dt)
			return d, s, StateDecelerating
		}
	}
	if v.speed > limit {
		d, s := m.DecelerateStep(v.speed, limit, dt)
		return d, s, StateDecelerating
	}
	if !p[p.IndexAt(v.progress)].Rail.CanAccelerate {
		return limit * dt, limit, StateCruising
	}
	if v.speed >= limit {
		return limit * dt, limit, StateCruising
	}
	d, s := m.AccelerateStep(v.speed, limit, dt)
	return d, s, StateAccelerating
}

func (v *Vehicle) manualStep(limit, dt float64) (float64, float64, State) {
	m := v.cfg.Model
	switch {
	case v.notch < 0 || v.speed > limit:
		target := 0.0
		if v.notch >= 0 {
			target = limit
		}
		d, s := m.DecelerateStep(v.speed, target, dt)
		return d, s, StateDecelerating
	case v.notch > 0 && v.speed < limit:
		d, s := m.AccelerateStep(v.speed, limit, dt)
		return d, s, StateAccelerating
	default:
		return v.speed * dt, v.speed, StateCruising
	}
}

// Snapshot is the opaque per-tick state handed to the client sync layer.
type Snapshot struct {
	ID             uuid.UUID     `json:"id"`
	DepotID        string        `json:"depot_id"`
	SidingID       string        `json:"siding_id"`
	State          State         `json:"state"`
	RailID         string        `json:"rail_id"`
	Position       geometry.Vec3 `json:"position"`
	Progress       float64       `json:"progress"` // metres
	Speed          float64       `json:"speed"`    // m/s
	Doors          float64       `json:"doors"`
	NextStopIndex  int           `json:"next_stop_index"`
	DepartureIndex int           `json:"departure_index"`
	OnRoute        bool          `json:"on_route"`
	Manual         bool          `json:"manual,omitempty"`
	Passengers     int           `json:"passengers"`
}

// Snapshot captures the current state.
func (v *Vehicle) Snapshot() Snapshot {
	p := v.cfg.Path
	return Snapshot{
		ID:             v.cfg.ID,
		DepotID:        v.cfg.DepotID,
		SidingID:       v.cfg.SidingID,
		State:          v.state,
		RailID:         p[p.IndexAt(v.progress)].RailID,
		Position:       p.PositionAt(v.progress),
		Progress:       v.progress,
		Speed:          v.speed,
		Doors:          v.doors,
		NextStopIndex:  v.nextStop,
		DepartureIndex: v.cfg.DepartureIndex,
		OnRoute:        v.onRoute,
		Manual:         v.cfg.Manual,
		Passengers:     len(v.passengers),
	}
}
