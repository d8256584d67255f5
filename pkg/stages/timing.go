package stages

import (
	"context"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/clock"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// TimingStage records the downstream chain's elapsed time into a context
// field. Configuration: "field" names the target field, default "elapsed_ms".
type TimingStage struct {
	field string
}

// Invoke times the continuation and writes the elapsed milliseconds into the
// context. The downstream result and error pass through untouched.
func (s *TimingStage) Invoke(ctx context.Context, next capability.Continuation, tc task.Context, args ...any) (any, error) {
	c := clock.FromContext(ctx)
	start := c.Now()

	result, err := next(ctx, tc, args...)

	if fields, ok := tc.(task.Fields); ok {
		fields.Set(s.field, c.Since(start).Milliseconds())
	}
	return result, err
}

// RegisterTiming registers the timing plugin under name.
func RegisterTiming(reg *registry.Registry, name string) error {
	return reg.Register(capability.KindExecute, name, func(cfg registry.Config) (capability.Stage, error) {
		return &TimingStage{field: cfg.String("field", "elapsed_ms")}, nil
	})
}
