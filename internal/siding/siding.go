// Package siding owns one vehicle spawn point of a depot. Given the depot's generated
// path it precomputes the run as a kinematic profile, derives the stop-time table from
// it, accepts departures subject to a headway and spawns, ticks and recycles the
// vehicles that serve them.
package siding

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/cxd309/railsim/internal/kinematics"
	"github.com/cxd309/railsim/internal/logger"
	"github.com/cxd309/railsim/internal/rail"
	"github.com/cxd309/railsim/internal/vehicle"
)

const (
	profileStep     = 0.1 // seconds
	maxProfileSteps = 1_000_000
	epsilon         = 1e-6
)

var ErrNoPath = errors.New("siding has no path")

// Data is the persisted part of a siding. A negative MaxVehicles allows any number of
// vehicles out at once.
type Data struct {
	ID             string          `json:"id" yaml:"id" validate:"required"`
	RailID         string          `json:"rail_id" yaml:"railId" validate:"required"`
	MaxVehicles    int             `json:"max_vehicles" yaml:"maxVehicles"`
	VehicleLength  float64         `json:"vehicle_length" yaml:"vehicleLength" validate:"gt=0"`
	Motion         kinematics.Spec `json:"motion" yaml:"motion"`
	Manual         bool            `json:"manual,omitempty" yaml:"manual"`
	MaxManualSpeed float64         `json:"max_manual_speed,omitempty" yaml:"maxManualSpeed"`
}

// StopTime is one call of the precomputed run. Offsets are ms after the vehicle leaves
// the siding.
type StopTime struct {
	PathIndex       int   `json:"path_index"`
	StopIndex       int   `json:"stop_index"`
	ArrivalOffset   int64 `json:"arrival_offset"`
	DepartureOffset int64 `json:"departure_offset"`
}

// Env is what a siding borrows from its depot and world.
type Env struct {
	DepotID    string
	Network    *rail.Network
	DoorMillis int64
	Log        logger.Logger
}

// Siding is a spawn point plus its generated timetable and live vehicles.
type Siding struct {
	Data
	env   Env
	log   logger.Logger
	model kinematics.MotionModel

	path             rail.Path
	repeat1, repeat2 int
	profile          *kinematics.Profile
	stopTimes        []StopTime

	departures  []int64 // ms into the game day, ascending
	vehicles    []*vehicle.Vehicle
	lastChecked int64
}

// New builds a siding from its data. The siding is idle until SetPath succeeds.
func New(d Data, env Env) (*Siding, error) {
	if d.ID == "" {
		return nil, errors.New("siding id is required")
	}
	if d.VehicleLength <= 0 {
		return nil, fmt.Errorf("siding %q: vehicle length must be positive", d.ID)
	}
	model, err := d.Motion.Build()
	if err != nil {
		return nil, fmt.Errorf("siding %q: %w", d.ID, err)
	}
	if env.Log == nil {
		env.Log = logger.Nop()
	}
	return &Siding{
		Data:        d,
		env:         env,
		log:         env.Log.With("siding", d.ID),
		model:       model,
		repeat1:     vehicle.NoRepeat,
		repeat2:     vehicle.NoRepeat,
		lastChecked: -1,
	}, nil
}

// SetPath installs a generated path and precomputes its profile. repeat1 and repeat2
// are the path indices a looping vehicle cycles between, or vehicle.NoRepeat. Any
// previous departures and vehicles are dropped.
func (s *Siding) SetPath(path rail.Path, repeat1, repeat2 int) error {
	s.Reset()
	if len(path) == 0 {
		return ErrNoPath
	}
	if err := path.Validate(); err != nil {
		return fmt.Errorf("siding %q: %w", s.ID, err)
	}
	if repeat1 != vehicle.NoRepeat && (repeat1 < 0 || repeat2 <= repeat1 || repeat2 >= len(path)) {
		return fmt.Errorf("siding %q: bad repeat indices %d..%d", s.ID, repeat1, repeat2)
	}
	s.path, s.repeat1, s.repeat2 = path, repeat1, repeat2
	profile, stops, err := s.buildProfile()
	if err != nil {
		s.path, s.repeat1, s.repeat2 = nil, vehicle.NoRepeat, vehicle.NoRepeat
		return fmt.Errorf("siding %q: %w", s.ID, err)
	}
	s.profile, s.stopTimes = profile, stops
	s.log.Debug("siding path set", "elements", len(path), "stops", len(stops), "roundTripMillis", s.RoundTripMillis())
	return nil
}

// Reset forgets the path and timetable and removes every vehicle.
func (s *Siding) Reset() {
	s.Clear()
	s.path, s.repeat1, s.repeat2 = nil, vehicle.NoRepeat, vehicle.NoRepeat
	s.profile, s.stopTimes = nil, nil
	s.departures = nil
}

// Clear removes every live vehicle and releases its reservations.
func (s *Siding) Clear() {
	for _, v := range s.vehicles {
		s.release(v)
	}
	s.vehicles = nil
}

func (s *Siding) release(v *vehicle.Vehicle) {
	if s.env.Network != nil {
		s.env.Network.Release(v.ID())
	}
}

func (s *Siding) Path() rail.Path { return s.path }
func (s *Siding) Ready() bool { return s.profile != nil }
func (s *Siding) RepeatInfinitely() bool { return s.repeat1 != vehicle.NoRepeat }
func (s *Siding) Profile() *kinematics.Profile { return s.profile }
func (s *Siding) StopTimes() []StopTime { return s.stopTimes }
func (s *Siding) Departures() []int64 { return s.departures }
func (s *Siding) Vehicles() []*vehicle.Vehicle { return s.vehicles }

// RoundTripMillis is the duration of one run from the siding, or of one lap for a
// looping path.
func (s *Siding) RoundTripMillis() int64 {
	if s.profile == nil {
		return 0
	}
	if s.RepeatInfinitely() && len(s.stopTimes) > 0 {
		first, last := s.stopTimes[0], s.stopTimes[len(s.stopTimes)-1]
		if lap := last.DepartureOffset - first.DepartureOffset; lap > 0 {
			return lap
		}
	}
	return millis(s.profile.Duration())
}

// ClearDepartures drops the departure table without touching live vehicles.
func (s *Siding) ClearDepartures() {
	s.departures = nil
}

// AddDeparture offers a departure (ms into the game day). It is accepted when it
// leaves at least one round trip after the last accepted one. Unlimited and looping
// sidings accept every departure; a siding with MaxVehicles 0 accepts none.
func (s *Siding) AddDeparture(t int64) bool {
	if s.profile == nil || s.MaxVehicles == 0 {
		return false
	}
	if n := len(s.departures); s.MaxVehicles > 0 && !s.RepeatInfinitely() && n > 0 {
		if t-s.departures[n-1] < s.RoundTripMillis() {
			return false
		}
	}
	s.departures = append(s.departures, t)
	return true
}

// LeadMillis is how long before its first departure a vehicle leaves the siding.
func (s *Siding) LeadMillis() int64 {
	if len(s.stopTimes) == 0 {
		return 0
	}
	return s.stopTimes[0].DepartureOffset
}

// Tick spawns vehicles for departures that fell due since the last tick, then
// advances every vehicle. day is the length of a game day in ms. A vehicle whose
// tick panics is logged and skipped for this tick; finished vehicles are removed.
func (s *Siding) Tick(now int64, dt float64, day int64) {
	s.dispatchDue(now, day)
	s.vehicles = slices.DeleteFunc(s.vehicles, func(v *vehicle.Vehicle) bool {
		s.tickVehicle(v, now, dt)
		if v.Finished() {
			s.release(v)
			s.log.Debug("vehicle finished", "vehicle", v.ID().String())
			return true
		}
		return false
	})
}

func (s *Siding) tickVehicle(v *vehicle.Vehicle, now int64, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("vehicle tick failed", "vehicle", v.ID().String(), "panic", fmt.Sprint(r))
		}
	}()
	v.Tick(now, dt)
}

func (s *Siding) dispatchDue(now int64, day int64) {
	tod := mod(now, day)
	if s.lastChecked < 0 {
		s.lastChecked = tod - 1
	}
	defer func() { s.lastChecked = tod }()
	if s.profile == nil {
		return
	}
	lead := s.LeadMillis()
	for i, dep := range s.departures {
		if s.due(mod(dep-lead, day), tod) {
			s.spawn(i, now)
		}
	}
}

// due reports whether time of day t lies in (lastChecked, tod], wrapping at midnight.
func (s *Siding) due(t, tod int64) bool {
	if tod >= s.lastChecked {
		return t > s.lastChecked && t <= tod
	}
	return t > s.lastChecked || t <= tod
}

func (s *Siding) spawn(departureIndex int, now int64) {
	if s.MaxVehicles >= 0 && len(s.vehicles) >= s.MaxVehicles {
		s.log.Warn("vehicle limit reached, departure skipped", "departureIndex", departureIndex)
		return
	}
	v, err := vehicle.New(vehicle.Config{
		DepotID:         s.env.DepotID,
		SidingID:        s.ID,
		Path:            s.path,
		RepeatIndex1:    s.repeat1,
		RepeatIndex2:    s.repeat2,
		Length:          s.VehicleLength,
		Model:           s.model,
		DepartureMillis: now,
		DepartureIndex:  departureIndex,
		DoorMillis:      s.env.DoorMillis,
		Manual:          s.Manual,
		MaxManualSpeed:  s.MaxManualSpeed,
	})
	if err != nil {
		s.log.Error("spawning vehicle", "error", err)
		return
	}
	s.vehicles = append(s.vehicles, v)
	s.log.Debug("vehicle spawned", "vehicle", v.ID().String(), "departureIndex", departureIndex)
}

// buildProfile runs the path once with the siding's motion model: accelerate to the
// limit under the vehicle, slow for lower limits ahead, brake onto each stop and wait
// out its dwell. Step lengths are cut so speed targets are hit exactly.
func (s *Siding) buildProfile() (*kinematics.Profile, []StopTime, error) {
	p := s.path
	accel, decel := s.Motion.Acceleration, s.Motion.Deceleration
	start := vehicle.StartProgress(p, s.VehicleLength)
	end := p.Length()
	if s.RepeatInfinitely() {
		end = p[s.repeat2].EndDistance
	}
	var stops []int
	for i, pd := range p {
		if pd.IsStop() && pd.EndDistance > start+epsilon && pd.EndDistance <= end+epsilon {
			stops = append(stops, i)
		}
	}

	prof := &kinematics.Profile{}
	var times []StopTime
	next := 0
	for steps := 0; ; steps++ {
		if steps > maxProfileSteps {
			return nil, nil, fmt.Errorf("profile did not converge after %d steps", steps)
		}
		pos := start + prof.Distance()
		stopAt := end
		if next < len(stops) {
			stopAt = p[stops[next]].EndDistance
		}
		rem := stopAt - pos
		v := prof.Speed()

		if rem <= epsilon {
			if next < len(stops) {
				pd := p[stops[next]]
				st := StopTime{PathIndex: stops[next], StopIndex: pd.StopIndex, ArrivalOffset: millis(prof.Duration())}
				prof.Wait(float64(pd.DwellMillis) / 1000)
				st.DepartureOffset = millis(prof.Duration())
				times = append(times, st)
				next++
			}
			if stopAt >= end-epsilon {
				return prof, times, nil
			}
			continue
		}

		limit := s.limitAt(pos)
		brake := v * v / (2 * decel)
		switch {
		case v > 0 && rem <= brake+v*profileStep+epsilon:
			prof.Advance(-v*v/(2*rem), 2*rem/v)
		case v > limit+epsilon:
			prof.Advance(-decel, math.Min(profileStep, (v-limit)/decel))
		case slowing(p, pos, v, decel, s.model.MaxSpeed()):
			prof.Advance(-decel, profileStep)
		case !p[p.IndexAt(pos)].Rail.CanAccelerate && math.Abs(v-limit) > epsilon:
			prof.Jump(limit)
		case v < limit-epsilon:
			prof.Advance(accel, math.Min(profileStep, (limit-v)/accel))
		case v <= epsilon:
			return nil, nil, fmt.Errorf("no speed limit to move at %.1f m", pos)
		default:
			dt := profileStep
			if gap := rem - brake - v*profileStep; gap > 0 {
				dt = math.Min(dt, gap/v)
			}
			prof.Advance(0, dt)
		}
	}
}

// limitAt is the lowest limit under a vehicle whose front is at pos.
func (s *Siding) limitAt(pos float64) float64 {
	p := s.path
	limit := s.model.MaxSpeed()
	if s.Manual && s.MaxManualSpeed > 0 {
		limit = math.Min(limit, s.MaxManualSpeed)
	}
	for i := p.IndexAt(math.Max(0, pos-s.VehicleLength)); i <= p.IndexAt(pos); i++ {
		limit = math.Min(limit, p[i].SpeedLimit())
	}
	return limit
}

// slowing reports whether a lower limit ahead is within braking distance.
func slowing(p rail.Path, pos, v, decel, maxSpeed float64) bool {
	reach := pos + v*v/(2*decel) + v*profileStep
	for i := p.IndexAt(pos) + 1; i < len(p) && p[i].StartDistance < reach; i++ {
		lim := math.Min(p[i].SpeedLimit(), maxSpeed)
		if lim < v && p[i].StartDistance-pos <= (v*v-lim*lim)/(2*decel)+v*profileStep {
			return true
		}
	}
	return false
}

func millis(seconds float64) int64 { return int64(math.Round(seconds * 1000)) }

func mod(a, m int64) int64 {
	if m <= 0 {
		return a
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
