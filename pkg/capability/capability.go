// Package capability defines the closed set of stage contracts a pipeline can
// chain: Execute (synchronous filter) and Dispatch (asynchronous hand-off).
// Both share one call shape and differ only in when the continuation runs.
package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/distkit/conveyor/pkg/task"
)

// Kind tags a stage with its capability. The set is closed: plugins are
// dispatched on the tag, not on open-ended subtyping.
type Kind int

const (
	// KindExecute is a synchronous filter: it runs inline and decides whether
	// and how to call the rest of the chain.
	KindExecute Kind = iota
	// KindDispatch hands the rest of the chain to an external asynchronous
	// substrate and returns an acknowledgement promptly.
	KindDispatch
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindExecute:
		return "execute"
	case KindDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// ParseKind parses the serialized form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "execute":
		return KindExecute, nil
	case "dispatch":
		return KindDispatch, nil
	default:
		return 0, fmt.Errorf("unknown capability kind %q", s)
	}
}

// MarshalJSON serializes the kind as its string form.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the string form of a kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Continuation represents everything downstream of the current stage,
// including the core function as its base case. Built fresh for every run,
// never persisted.
type Continuation func(ctx context.Context, tc task.Context, args ...any) (any, error)

// Stage is the uniform contract every plugin implements. An Execute stage may
// call next and return its result, call next and transform the result, or
// short-circuit by returning without calling next. A Dispatch stage must not
// run next on the calling stack; it submits the pipeline's Handoff to a
// substrate instead and returns the resulting Ack.
type Stage interface {
	Invoke(ctx context.Context, next Continuation, tc task.Context, args ...any) (any, error)
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc func(ctx context.Context, next Continuation, tc task.Context, args ...any) (any, error)

// Invoke calls the wrapped function.
func (f StageFunc) Invoke(ctx context.Context, next Continuation, tc task.Context, args ...any) (any, error) {
	return f(ctx, next, tc, args...)
}

// ShortCircuit is the explicit early-exit primitive for Execute stages: return
// its result instead of calling the continuation to skip every remaining stage
// and the core function.
func ShortCircuit(v any) (any, error) {
	return v, nil
}
