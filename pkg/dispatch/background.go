package dispatch

import (
	"context"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// BackgroundStage is the built-in dispatch plugin: it takes the pipeline's
// handoff from the calling context and submits it to its runner. The
// continuation never runs on the calling stack; the stage returns the
// runner's acknowledgement.
type BackgroundStage struct {
	runner Runner
}

// NewBackgroundStage creates a dispatch stage over a runner.
func NewBackgroundStage(runner Runner) *BackgroundStage {
	return &BackgroundStage{runner: runner}
}

// Invoke submits the pending handoff. The next continuation is deliberately
// unused here: the remaining chain resumes from the envelope on the substrate.
func (s *BackgroundStage) Invoke(ctx context.Context, _ capability.Continuation, _ task.Context, _ ...any) (any, error) {
	h, ok := capability.HandoffFromContext(ctx)
	if !ok {
		return nil, capability.ErrNoHandoff
	}
	return h.SubmitTo(ctx, s.runner)
}

// RegisterBackground registers the background dispatch plugin under name.
// The runner is a live handle, so it is captured by the constructor at
// registration time rather than traveling through the configuration map.
func RegisterBackground(reg *registry.Registry, name string, runner Runner) error {
	return reg.Register(capability.KindDispatch, name, func(registry.Config) (capability.Stage, error) {
		return NewBackgroundStage(runner), nil
	})
}
