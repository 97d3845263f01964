package plugin

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/lumen-ml/lumen/internal/autodiff"
	"github.com/lumen-ml/lumen/internal/backend/cpu"
	"github.com/lumen-ml/lumen/internal/tensor"
)

// TrainingBackend is the backend the framework trains under: reverse-mode
// autodiff decorating the CPU backend.
type TrainingBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Env is what a plugin factory receives at construction time.
type Env[B tensor.Backend] struct {
	// Backend runs all tensor computation.
	Backend B
	// RNG seeds weight initialization and latent sampling. Factories must
	// use it instead of a global source so runs are reproducible.
	RNG *rand.Rand
	// ModelArgs is the raw per-model section of the experiment
	// configuration, for the factory to decode and validate.
	ModelArgs map[string]any
}

// Factory constructs a plugin from its environment. Configuration problems
// return an error wrapping ErrInvalidConfig.
type Factory[B tensor.Backend] func(env Env[B]) (ModelPlugin[B], error)

// Registry maps plugin names to factories.
type Registry[B tensor.Backend] struct {
	mu        sync.RWMutex
	factories map[string]Factory[B]
}

// NewRegistry creates an empty registry.
func NewRegistry[B tensor.Backend]() *Registry[B] {
	return &Registry[B]{factories: make(map[string]Factory[B])}
}

// Register adds a factory under a name. Duplicate names are rejected.
func (r *Registry[B]) Register(name string, factory Factory[B]) error {
	if name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin %q: factory must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under a name.
func (r *Registry[B]) Lookup(name string) (Factory[B], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (registered: %v)", name, r.names())
	}
	return factory, nil
}

// Names returns registered plugin names in sorted order.
func (r *Registry[B]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry[B]) names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry is the process-wide registry model packages register into
// at init time.
var defaultRegistry = NewRegistry[TrainingBackend]()

// Register adds a factory to the process-wide registry.
func Register(name string, factory Factory[TrainingBackend]) error {
	return defaultRegistry.Register(name, factory)
}

// MustRegister is Register for init-time use; it panics on error.
func MustRegister(name string, factory Factory[TrainingBackend]) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup returns a factory from the process-wide registry.
func Lookup(name string) (Factory[TrainingBackend], error) {
	return defaultRegistry.Lookup(name)
}

// Names lists the process-wide registry in sorted order.
func Names() []string {
	return defaultRegistry.Names()
}
