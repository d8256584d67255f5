package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/dispatch"
)

// TrackingRunner decorates a runner with job bookkeeping: every submitted
// envelope gets a pending record before the hand-off, and a failed one when
// the substrate refuses it. Pair with Hooks on the replaying side to record
// the outcome.
type TrackingRunner struct {
	inner dispatch.Runner
	store Store
}

// NewTrackingRunner wraps a runner with a job store.
func NewTrackingRunner(inner dispatch.Runner, store Store) *TrackingRunner {
	return &TrackingRunner{inner: inner, store: store}
}

// Submit records the job and forwards to the wrapped runner. The job ID is
// the pipeline ID, so the ack a caller holds looks the job up directly.
func (r *TrackingRunner) Submit(ctx context.Context, env capability.Envelope) (capability.Ack, error) {
	if env.PipelineID == "" {
		env.PipelineID = uuid.NewString()
	}

	if err := r.store.SaveJob(ctx, Record{ID: env.PipelineID, Status: StatusPending}); err != nil {
		return capability.Ack{}, err
	}

	ack, err := r.inner.Submit(ctx, env)
	if err != nil {
		_ = r.store.SaveJob(ctx, Record{
			ID:     env.PipelineID,
			Status: StatusFailed,
			Error:  err.Error(),
		})
		return capability.Ack{}, err
	}
	return ack, nil
}

// Hooks returns replay hooks that move the job through running and into
// completed or failed.
func Hooks(store Store) dispatch.Hooks {
	return dispatch.Hooks{
		OnStart: func(ctx context.Context, env capability.Envelope) {
			_ = store.SaveJob(ctx, Record{ID: env.PipelineID, Status: StatusRunning})
		},
		OnFinish: func(ctx context.Context, env capability.Envelope, result any, err error) {
			rec := Record{ID: env.PipelineID, Status: StatusCompleted, Result: result}
			if err != nil {
				rec = Record{ID: env.PipelineID, Status: StatusFailed, Error: err.Error()}
			}
			_ = store.SaveJob(ctx, rec)
		},
	}
}
