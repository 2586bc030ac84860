// Package config loads the simulation configuration from a YAML file, applies
// RAILSIM_* environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig holds the tick loop and search tunables.
type SimulationConfig struct {
	TickMillis               int64   `yaml:"tickMillis" validate:"gt=0"`
	PathfindingBudgetMillis  int64   `yaml:"pathfindingBudgetMillis" validate:"gt=0"`
	DirectionsBudgetMillis   int64   `yaml:"directionsBudgetMillis" validate:"gt=0"`
	MillisPerGameDay         int64   `yaml:"millisPerGameDay" validate:"gt=0"`
	WalkingSpeed             float64 `yaml:"walkingSpeed" validate:"gt=0"`       // m/s
	MaxWalkingDistance       float64 `yaml:"maxWalkingDistance" validate:"gte=0"` // metres
	RemoteConnectionSpeed    float64 `yaml:"remoteConnectionSpeed" validate:"gt=0"`
	MaxTurnArcLength         float64 `yaml:"maxTurnArcLength" validate:"gt=0"` // metres
	ContinuousMovementMillis int64   `yaml:"continuousMovementMillis" validate:"gt=0"`
	DirectionsHorizonMillis  int64   `yaml:"directionsHorizonMillis" validate:"gt=0"`
	DoorMillis               int64   `yaml:"doorMillis" validate:"gte=0"`
	ShuffleSeed              int64   `yaml:"shuffleSeed"`
}

// LoggingConfig selects level and optional rotating log file.
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error disabled off"`
	FilePath string `yaml:"filePath"`
}

// PathfindingBudget is the per-tick wall-clock allowance for rail pathfinding.
func (c SimulationConfig) PathfindingBudget() time.Duration {
	return time.Duration(c.PathfindingBudgetMillis) * time.Millisecond
}

// DirectionsBudget is the per-tick wall-clock allowance for journey planning.
func (c SimulationConfig) DirectionsBudget() time.Duration {
	return time.Duration(c.DirectionsBudgetMillis) * time.Millisecond
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Simulation: SimulationConfig{
			TickMillis:               50,
			PathfindingBudgetMillis:  5,
			DirectionsBudgetMillis:   5,
			MillisPerGameDay:         24 * 60 * 60 * 1000,
			WalkingSpeed:             4,
			MaxWalkingDistance:       160,
			RemoteConnectionSpeed:    60,
			MaxTurnArcLength:         32,
			ContinuousMovementMillis: 8000,
			DirectionsHorizonMillis:  2 * 60 * 60 * 1000,
			DoorMillis:               2000,
			ShuffleSeed:              1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (a missing file yields the defaults), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config %q: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the validate: tags on the configuration.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateSimulation checks the validate: tags on the simulation section alone.
func ValidateSimulation(cfg SimulationConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid simulation config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Simulation
	s.TickMillis = getInt64Env("RAILSIM_TICK_MILLIS", s.TickMillis)
	s.PathfindingBudgetMillis = getInt64Env("RAILSIM_PATHFINDING_BUDGET_MILLIS", s.PathfindingBudgetMillis)
	s.DirectionsBudgetMillis = getInt64Env("RAILSIM_DIRECTIONS_BUDGET_MILLIS", s.DirectionsBudgetMillis)
	s.MillisPerGameDay = getInt64Env("RAILSIM_MILLIS_PER_GAME_DAY", s.MillisPerGameDay)
	s.WalkingSpeed = getFloatEnv("RAILSIM_WALKING_SPEED", s.WalkingSpeed)
	s.MaxWalkingDistance = getFloatEnv("RAILSIM_MAX_WALKING_DISTANCE", s.MaxWalkingDistance)
	s.ShuffleSeed = getInt64Env("RAILSIM_SHUFFLE_SEED", s.ShuffleSeed)
	cfg.Logging.Level = getEnv("RAILSIM_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.FilePath = getEnv("RAILSIM_LOG_FILE", cfg.Logging.FilePath)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt64Env(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
