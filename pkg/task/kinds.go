package task

import (
	"errors"
	"fmt"
	"sync"
)

// Predefined errors
var (
	// ErrDuplicateKind indicates a context kind is already registered
	ErrDuplicateKind = errors.New("context kind already registered")

	// ErrUnknownKind indicates a context kind was never registered
	ErrUnknownKind = errors.New("unknown context kind")
)

// Factory constructs an empty context of a registered kind, ready for Restore.
type Factory func() Context

var (
	kindMu sync.RWMutex
	kinds  = make(map[string]Factory)
)

// RegisterKind registers a context factory under a kind name. Registration
// happens at process start-up, before any dispatch boundary is crossed.
func RegisterKind(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("context kind %q: factory cannot be nil", name)
	}

	kindMu.Lock()
	defer kindMu.Unlock()

	if _, exists := kinds[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKind, name)
	}
	kinds[name] = factory
	return nil
}

// MustRegisterKind registers a context factory and panics on conflict.
func MustRegisterKind(name string, factory Factory) {
	if err := RegisterKind(name, factory); err != nil {
		panic(err)
	}
}

// NewOfKind constructs an empty context of a registered kind.
func NewOfKind(name string) (Context, error) {
	kindMu.RLock()
	factory, ok := kinds[name]
	kindMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return factory(), nil
}

func init() {
	// Map contexts reconstruct themselves; concrete kinds registered by the
	// application shadow nothing here because names must be unique.
	MustRegisterKind("map", func() Context {
		return NewMapContext("map", nil)
	})
}
