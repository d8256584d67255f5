package pipeline

import (
	"context"
	"fmt"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// Resume rebuilds a pipeline from a dispatch envelope and runs the remaining
// stage sequence in the original chained order. The core function is supplied
// by the receiving side; live handles excluded from the portable context are
// re-wired through the registry's constructors, not through the envelope.
func Resume(ctx context.Context, reg *registry.Registry, env capability.Envelope, core CoreFunc) (any, error) {
	if env.Resume < 0 || env.Resume > len(env.Stages) {
		return nil, fmt.Errorf("envelope resume index %d out of range [0, %d]", env.Resume, len(env.Stages))
	}

	tc, err := task.NewOfKind(env.ContextKind)
	if err != nil {
		return nil, err
	}
	if err := tc.Restore(env.Context); err != nil {
		return nil, fmt.Errorf("restore context %q: %w", env.ContextKind, err)
	}

	p := New(tc, core, WithRegistry(reg), WithID(env.PipelineID))
	p.specs = env.Stages
	for i, spec := range env.Stages {
		if spec.Kind == capability.KindDispatch {
			p.dispatchAt = i
		}
	}

	return p.runFrom(ctx, env.Resume)
}
