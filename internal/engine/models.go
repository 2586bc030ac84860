package engine

import (
	"github.com/cxd309/railsim/internal/depot"
	"github.com/cxd309/railsim/internal/directions"
	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/rail"
	"github.com/cxd309/railsim/internal/transit"
	"github.com/cxd309/railsim/internal/vehicle"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id" yaml:"simulationId" validate:"required"`
	RunTime      float64 `json:"run_time" yaml:"runTime" validate:"gte=0"`         // seconds
	TimeStep     float64 `json:"time_step" yaml:"timeStep" validate:"gte=0"`       // seconds; 0 uses the configured tick
	StartMillis  int64   `json:"start_millis" yaml:"startMillis" validate:"gte=0"` // game time at t=0
}

// JourneyRequest asks the directions engine for a journey once the run starts.
type JourneyRequest struct {
	ID          string            `json:"id" yaml:"id" validate:"required"`
	Start       geometry.Position `json:"start" yaml:"start"`
	End         geometry.Position `json:"end" yaml:"end"`
	StartMillis int64             `json:"start_millis" yaml:"startMillis"`
}

// SimulationInput is the JSON-serialisable scenario handed to the engine.
type SimulationInput struct {
	Meta      SimulationMeta     `json:"simulation_meta" yaml:"simulationMeta"`
	Rails     []rail.Data        `json:"rails" yaml:"rails" validate:"dive"`
	Platforms []transit.Platform `json:"platforms" yaml:"platforms" validate:"dive"`
	Routes    []transit.Route    `json:"routes" yaml:"routes" validate:"dive"`
	Depots    []depot.Data       `json:"depots" yaml:"depots" validate:"dive"`
	Journeys  []JourneyRequest   `json:"journeys,omitempty" yaml:"journeys" validate:"dive"`
}

// DepotStatus is a depot's generation outcome at one timestep.
type DepotStatus struct {
	ID         string       `json:"id"`
	Status     depot.Status `json:"status"`
	Departures int          `json:"departures"`
	Vehicles   int          `json:"vehicles"`
}

// SimulationLogRow is the state of the world at a single simulation timestep.
type SimulationLogRow struct {
	Timestamp  float64            `json:"timestamp"` // seconds
	GameMillis int64              `json:"game_millis"`
	Vehicles   []vehicle.Snapshot `json:"vehicles"`
	Depots     []DepotStatus      `json:"depots"`
}

// JourneyResult is the answer to a JourneyRequest; Segments is empty when no journey
// was found.
type JourneyResult struct {
	ID       string               `json:"id"`
	Segments []directions.Segment `json:"segments"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta     SimulationMeta     `json:"simulation_meta"`
	Output   []SimulationLogRow `json:"output"`
	Journeys []JourneyResult    `json:"journeys,omitempty"`
}
