//go:build js && wasm

// Command wasm exposes the rail simulation to the browser via WebAssembly.
// After loading, it registers two global JavaScript functions:
//
//	runSimulation(jsonString) -> jsonString
//	validateScenario(jsonString) -> null | {error}
//
// The input is a JSON-encoded SimulationInput and the output a SimulationLog, the
// same contract the CLI uses.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/cxd309/railsim/internal/engine"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	js.Global().Set("validateScenario", js.FuncOf(validateScenario))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}
	result, err := engine.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}

func validateScenario(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}
	var input engine.SimulationInput
	if err := json.Unmarshal([]byte(args[0].String()), &input); err != nil {
		return map[string]any{"error": err.Error()}
	}
	if err := engine.Validate(input); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return nil
}
