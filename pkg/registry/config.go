package registry

import (
	"errors"
	"fmt"
)

// Config is the static configuration mapping recorded in a stage spec and
// passed to a plugin constructor. Values may come from JSON, so numbers can
// arrive as float64.
type Config map[string]any

// String returns the string under key, or def when absent.
func (c Config) String(key, def string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer under key, or def when absent. JSON numbers decode
// as float64 and are accepted when integral.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Bool returns the boolean under key, or def when absent.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// RequireString returns the string under key or a ConfigurationError naming
// the missing key.
func (c Config) RequireString(plugin, key string) (string, error) {
	v, ok := c[key]
	if !ok {
		return "", &ConfigurationError{Plugin: plugin, Key: key, Cause: errors.New("required key missing")}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConfigurationError{Plugin: plugin, Key: key, Cause: fmt.Errorf("expected string, got %T", v)}
	}
	return s, nil
}
