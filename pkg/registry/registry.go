package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/distkit/conveyor/pkg/capability"
)

// Constructor builds a plugin instance from its static configuration. The
// instance must be inert: no stage logic runs until the pipeline invokes it.
type Constructor func(cfg Config) (capability.Stage, error)

type entryKey struct {
	kind capability.Kind
	name string
}

// Registry holds the process-wide mapping from (capability, name) to
// constructor. Registration happens at start-up; lookups are read-mostly and
// guarded so lazy registration stays safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[entryKey]Constructor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[entryKey]Constructor),
	}
}

// Register adds a constructor under a (capability, name) pair. Re-registering
// an existing pair fails so registration order cannot silently change
// behavior.
func (r *Registry) Register(kind capability.Kind, name string, ctor Constructor) error {
	if ctor == nil {
		return &ConfigurationError{Plugin: name, Cause: errors.New("constructor cannot be nil")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{kind: kind, name: name}
	if _, exists := r.entries[key]; exists {
		return &DuplicateRegistrationError{Kind: kind, Plugin: name}
	}
	r.entries[key] = ctor
	return nil
}

// MustRegister registers a constructor and panics on conflict. Intended for
// start-up wiring where a duplicate is a programming error.
func (r *Registry) MustRegister(kind capability.Kind, name string, ctor Constructor) {
	if err := r.Register(kind, name, ctor); err != nil {
		panic(err)
	}
}

// Resolve looks up the constructor for a (capability, name) pair and invokes
// it with the configuration. Construction must not start the continuation.
func (r *Registry) Resolve(kind capability.Kind, name string, cfg Config) (capability.Stage, error) {
	r.mu.RLock()
	ctor, ok := r.entries[entryKey{kind: kind, name: name}]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownPluginError{Kind: kind, Plugin: name, Available: r.Plugins(kind)}
	}

	stage, err := ctor(cfg)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &ConfigurationError{Plugin: name, Cause: err}
	}
	return stage, nil
}

// Plugins returns the sorted plugin names registered for a capability.
func (r *Registry) Plugins(kind capability.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for key := range r.entries {
		if key.kind == kind {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry used when a pipeline is not given its
// own.
var Default = New()

// Register adds a constructor to the default registry.
func Register(kind capability.Kind, name string, ctor Constructor) error {
	return Default.Register(kind, name, ctor)
}

// MustRegister adds a constructor to the default registry, panicking on
// conflict.
func MustRegister(kind capability.Kind, name string, ctor Constructor) {
	Default.MustRegister(kind, name, ctor)
}

// Resolve instantiates a plugin from the default registry.
func Resolve(kind capability.Kind, name string, cfg Config) (capability.Stage, error) {
	return Default.Resolve(kind, name, cfg)
}
