// Package depot orchestrates the routes served from a set of sidings: it generates the
// path through every platform stop with the rail finder queue, hands each siding its
// vehicle path, builds the departure table and answers arrival queries.
package depot

import (
	"errors"
	"fmt"

	"github.com/cxd309/railsim/internal/config"
	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/logger"
	"github.com/cxd309/railsim/internal/pathfind"
	"github.com/cxd309/railsim/internal/rail"
	"github.com/cxd309/railsim/internal/siding"
	"github.com/cxd309/railsim/internal/transit"
	"github.com/cxd309/railsim/internal/vehicle"
)

// Status is the outcome of the last path generation.
type Status string

const (
	StatusNone                 Status = "NONE"
	StatusSuccessful           Status = "SUCCESSFUL"
	StatusNoSidings            Status = "NO_SIDINGS"
	StatusTwoPlatformsRequired Status = "TWO_PLATFORMS_REQUIRED"
	StatusPathNotFound         Status = "PATH_NOT_FOUND"
	// StatusAborted fails the callback of a generation that was superseded or
	// invalidated while in flight. It is never the depot's own status.
	StatusAborted Status = "ABORTED"
)

// Data is the persisted part of a depot. Frequencies[h] is the number of departures
// per four hours in hour h of the day; RealTimeDepartures are ms into the day.
type Data struct {
	ID                 string             `json:"id" yaml:"id" validate:"required"`
	Name               string             `json:"name" yaml:"name"`
	Mode               rail.TransportMode `json:"mode,omitempty" yaml:"mode"`
	RouteIDs           []string           `json:"route_ids" yaml:"routeIds"`
	Sidings            []siding.Data      `json:"sidings" yaml:"sidings" validate:"dive"`
	RepeatInfinitely   bool               `json:"repeat_infinitely,omitempty" yaml:"repeatInfinitely"`
	UseRealTime        bool               `json:"use_real_time,omitempty" yaml:"useRealTime"`
	RealTimeDepartures []int64            `json:"real_time_departures,omitempty" yaml:"realTimeDepartures"`
	Frequencies        []int              `json:"frequencies,omitempty" yaml:"frequencies" validate:"max=24,dive,gte=0"`
}

// Env is the world a depot works in.
type Env struct {
	Network *rail.Network
	Store   *transit.Store
	Queue   *pathfind.Queue
	Config  config.SimulationConfig
	Log     logger.Logger
}

// routeRef places a depot stop inside one of its routes.
type routeRef struct {
	route *transit.Route
	index int
}

// stop is one platform call of the generated path.
type stop struct {
	platform *transit.Platform
	refs     []routeRef
}

// Depot owns its sidings and the result of the last generation.
type Depot struct {
	Data
	env     Env
	log     logger.Logger
	sidings []*siding.Siding

	status               Status
	failedFrom, failedTo string
	gen                  *generation

	stops      []stop
	main       rail.Path
	stopAt     []int // main path index of each stop
	facing     map[string]geometry.Angle
	departures []int64
	lastSiding int
}

// New builds a depot and its sidings.
func New(d Data, env Env) (*Depot, error) {
	if d.ID == "" {
		return nil, errors.New("depot id is required")
	}
	if env.Network == nil || env.Store == nil || env.Queue == nil {
		return nil, fmt.Errorf("depot %q: network, store and queue are required", d.ID)
	}
	if env.Log == nil {
		env.Log = logger.Nop()
	}
	if d.Mode == "" {
		d.Mode = rail.ModeTrain
	}
	dep := &Depot{
		Data:   d,
		env:    env,
		log:    env.Log.With("depot", d.ID),
		status: StatusNone,
		facing: make(map[string]geometry.Angle),
	}
	for _, sd := range d.Sidings {
		s, err := siding.New(sd, siding.Env{
			DepotID:    d.ID,
			Network:    env.Network,
			DoorMillis: env.Config.DoorMillis,
			Log:        dep.log,
		})
		if err != nil {
			return nil, fmt.Errorf("depot %q: %w", d.ID, err)
		}
		dep.sidings = append(dep.sidings, s)
	}
	return dep, nil
}

func (d *Depot) GenerationStatus() Status { return d.status }
func (d *Depot) Generating() bool { return d.gen != nil }
func (d *Depot) Sidings() []*siding.Siding { return d.sidings }
func (d *Depot) Path() rail.Path { return d.main }
func (d *Depot) Departures() []int64 { return d.departures }

// FailedPlatforms names the stop pair (or siding and platform) that had no path in the
// last generation.
func (d *Depot) FailedPlatforms() (from, to string) { return d.failedFrom, d.failedTo }

// Facing is the heading of vehicles stopped at a platform of the generated path.
func (d *Depot) Facing(platformID string) (geometry.Angle, bool) {
	a, ok := d.facing[platformID]
	return a, ok
}

// Vehicles lists the live vehicles of every siding.
func (d *Depot) Vehicles() []*vehicle.Vehicle {
	var out []*vehicle.Vehicle
	for _, s := range d.sidings {
		out = append(out, s.Vehicles()...)
	}
	return out
}

// Tick advances every siding. A siding that panics is logged and skipped.
func (d *Depot) Tick(now int64, dt float64) {
	for _, s := range d.sidings {
		d.tickSiding(s, now, dt)
	}
}

func (d *Depot) tickSiding(s *siding.Siding, now int64, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("siding tick failed", "siding", s.ID, "panic", fmt.Sprint(r))
		}
	}()
	s.Tick(now, dt, d.env.Config.MillisPerGameDay)
}

// Clear removes every live vehicle, keeping the generated paths and departures.
func (d *Depot) Clear() {
	for _, s := range d.sidings {
		s.Clear()
	}
}

// Invalidate drops the generated state after the network changed. Any generation in
// flight is aborted.
func (d *Depot) Invalidate() {
	d.abort()
	d.reset()
	d.status = StatusNone
}

func (d *Depot) reset() {
	for _, s := range d.sidings {
		s.Reset()
	}
	d.stops, d.main, d.stopAt, d.departures = nil, nil, nil, nil
	d.facing = make(map[string]geometry.Angle)
	d.failedFrom, d.failedTo = "", ""
}

func (d *Depot) owner() string { return "depot:" + d.ID }
