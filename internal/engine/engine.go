// Package engine runs a rail simulation scenario.
//
// The simulation advances in fixed timesteps over a World. Each step:
//
//  1. Sync pass - if rails changed, adjacency is rebuilt, dangling platform and route
//     references are pruned and depot paths are invalidated.
//
//  2. Search pass - queued rail path searches and journey plans run within their
//     per-tick wall-clock budgets.
//
//  3. Motion pass - every depot spawns due vehicles and advances the live ones,
//     which reserve signal blocks ahead before moving into them.
package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/cxd309/railsim/internal/config"
	"github.com/cxd309/railsim/internal/directions"
	"github.com/cxd309/railsim/internal/logger"
)

// Simulation drives a World through the timesteps of one run.
type Simulation struct {
	meta     SimulationMeta
	world    *World
	log      logger.Logger
	curTime  float64
	journeys []JourneyResult
	answered []bool
}

// Validate checks the validate: tags of a scenario.
func Validate(input SimulationInput) error {
	if err := validator.New().Struct(input); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	return nil
}

// NewSimulation validates the scenario, builds its world and queues its journey
// requests. A scenario without a time step runs at the configured tick.
func NewSimulation(input SimulationInput, cfg config.SimulationConfig, log logger.Logger) (*Simulation, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := Validate(input); err != nil {
		return nil, err
	}
	log = log.With("simulation", input.Meta.SimulationID)
	w, err := NewWorld(input, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}
	meta := input.Meta
	if meta.TimeStep == 0 {
		meta.TimeStep = float64(cfg.TickMillis) / 1000
	}
	s := &Simulation{
		meta:     meta,
		world:    w,
		log:      log,
		journeys: make([]JourneyResult, len(input.Journeys)),
		answered: make([]bool, len(input.Journeys)),
	}
	for i, j := range input.Journeys {
		s.journeys[i].ID = j.ID
		start := j.StartMillis
		if start == 0 {
			start = input.Meta.StartMillis
		}
		w.AddJourneyRequest(j.Start, j.End, start, func(segments []directions.Segment) {
			s.journeys[i].Segments = segments
			s.answered[i] = true
		})
	}
	return s, nil
}

// World returns the simulated world.
func (s *Simulation) World() *World { return s.world }

// Run executes the full simulation and returns the log.
func (s *Simulation) Run() (SimulationLog, error) {
	out := SimulationLog{Meta: s.meta}
	for s.curTime <= s.meta.RunTime {
		row, err := s.step()
		if err != nil {
			return SimulationLog{}, fmt.Errorf("at t=%.2f: %w", s.curTime, err)
		}
		out.Output = append(out.Output, row)
		s.curTime += s.meta.TimeStep
	}
	for i, ok := range s.answered {
		if !ok {
			s.log.Warn("journey request unanswered at end of run", "journey", s.journeys[i].ID)
		}
	}
	out.Journeys = s.journeys
	return out, nil
}

// step advances the world by one timestep and returns the resulting log row.
func (s *Simulation) step() (SimulationLogRow, error) {
	if s.meta.TimeStep <= 0 || math.IsNaN(s.meta.TimeStep) {
		return SimulationLogRow{}, fmt.Errorf("time step must be positive, got %v", s.meta.TimeStep)
	}
	now := s.meta.StartMillis + int64(math.Round(s.curTime*1000))
	s.world.Tick(now, s.meta.TimeStep)
	return SimulationLogRow{
		Timestamp:  s.curTime,
		GameMillis: now,
		Vehicles:   s.world.Vehicles(),
		Depots:     s.world.DepotStatuses(),
	}, nil
}

// RunJSON is the primary entry point for the CLI and WASM targets. It accepts a
// JSON-encoded SimulationInput, runs it with the default configuration, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	return RunJSONWith(jsonInput, config.Default().Simulation, logger.Nop())
}

// RunJSONWith is RunJSON with an explicit configuration and logger.
func RunJSONWith(jsonInput string, cfg config.SimulationConfig, log logger.Logger) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}
	return RunInput(input, cfg, log)
}

// RunInput runs a decoded scenario and returns the JSON-encoded SimulationLog.
func RunInput(input SimulationInput, cfg config.SimulationConfig, log logger.Logger) (string, error) {
	sim, err := NewSimulation(input, cfg, log)
	if err != nil {
		return "", err
	}
	simLog, err := sim.Run()
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
