// Package registry maps (capability, name) pairs to plugin constructors and
// instantiates registered plugins on demand.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/distkit/conveyor/pkg/capability"
)

// Predefined errors
var (
	// ErrDuplicateRegistration indicates a (capability, name) pair is already taken
	ErrDuplicateRegistration = errors.New("plugin already registered")

	// ErrUnknownPlugin indicates no entry matches a (capability, name) pair
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrConfiguration indicates a plugin constructor rejected its configuration
	ErrConfiguration = errors.New("invalid plugin configuration")
)

// DuplicateRegistrationError reports an attempt to re-register an existing
// (capability, name) pair. Registration never silently overwrites.
type DuplicateRegistrationError struct {
	Kind   capability.Kind
	Plugin string
}

// Error implements the error interface
func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("plugin %q already registered for capability %s", e.Plugin, e.Kind)
}

// Is matches the ErrDuplicateRegistration sentinel.
func (e *DuplicateRegistrationError) Is(target error) bool {
	return target == ErrDuplicateRegistration
}

// UnknownPluginError reports a resolution miss, carrying the names that are
// registered for the capability.
type UnknownPluginError struct {
	Kind      capability.Kind
	Plugin    string
	Available []string
}

// Error implements the error interface
func (e *UnknownPluginError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no plugin %q for capability %s (none registered)", e.Plugin, e.Kind)
	}
	return fmt.Sprintf("no plugin %q for capability %s (available: %s)",
		e.Plugin, e.Kind, strings.Join(e.Available, ", "))
}

// Is matches the ErrUnknownPlugin sentinel.
func (e *UnknownPluginError) Is(target error) bool {
	return target == ErrUnknownPlugin
}

// ConfigurationError reports a constructor rejecting its configuration, e.g. a
// missing or ill-typed required parameter.
type ConfigurationError struct {
	Plugin string
	Key    string
	Cause  error
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("plugin %q: configuration key %q: %v", e.Plugin, e.Key, e.Cause)
	}
	return fmt.Sprintf("plugin %q: configuration: %v", e.Plugin, e.Cause)
}

// Unwrap returns the underlying error
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches the ErrConfiguration sentinel.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
