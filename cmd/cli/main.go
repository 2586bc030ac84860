// Command railsim reads a scenario from a file argument (or stdin), runs the
// simulation, and writes the SimulationLog JSON to stdout.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON. The
// configuration is read from RAILSIM_CONFIG (default config.yaml) after loading .env.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cxd309/railsim/internal/config"
	"github.com/cxd309/railsim/internal/engine"
	"github.com/cxd309/railsim/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}

	configPath := os.Getenv("RAILSIM_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	writers := []io.Writer{logger.ConsoleWriter()}
	if cfg.Logging.FilePath != "" {
		writers = append(writers, logger.FileWriter(cfg.Logging.FilePath))
	}
	log := logger.New(logger.ParseLevel(cfg.Logging.Level), writers...)

	var (
		name string
		data []byte
	)
	if len(os.Args) > 1 {
		name = os.Args[1]
		data, err = os.ReadFile(name)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}

	var result string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var input engine.SimulationInput
		if err := yaml.Unmarshal(data, &input); err != nil {
			fmt.Fprintf(os.Stderr, "invalid input YAML: %v\n", err)
			os.Exit(1)
		}
		result, err = engine.RunInput(input, cfg.Simulation, log)
	default:
		result, err = engine.RunJSONWith(string(data), cfg.Simulation, log)
	}
	if err != nil {
		log.Error("simulation failed", "error", err)
		fmt.Fprintf(os.Stderr, "simulation error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result)
}
