// Package program holds the control programs the runtime can drive.
//
// Real deployments link a program generated from IEC 61131-3 sources; the
// programs registered here stand in for that generated code and are selected
// by name from the runtime configuration.
package program

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/scanrt/internal/engine"
)

// Factory creates a fresh program instance with its own variable storage.
type Factory func() engine.Program

var (
	mu       sync.RWMutex
	registry = map[string]Factory{
		"conveyor": func() engine.Program { return NewConveyor() },
	}
)

// Register adds a program factory under name. Registering an existing name
// is an error.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("register program: name and factory are required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("register program: %q already registered", name)
	}
	registry[name] = f
	return nil
}

// New instantiates the program registered under name.
func New(name string) (engine.Program, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown program %q (available: %v)", name, Names())
	}
	return f(), nil
}

// Names returns the registered program names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
