package dispatch

import (
	"context"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/clock"
	"github.com/distkit/conveyor/pkg/worker"
)

// PoolRunner executes dispatched remainders on an in-process worker pool. The
// submitting goroutine returns as soon as the task is queued; replay happens
// on a pool goroutine under the pool's own context, detached from the
// caller's cancellation.
type PoolRunner struct {
	pool     *worker.FixedPool
	replayer *Replayer
	clock    clock.Clock
}

// PoolRunnerOption configures a PoolRunner.
type PoolRunnerOption func(*PoolRunner)

// WithClock sets the clock used for acknowledgement timestamps.
func WithClock(c clock.Clock) PoolRunnerOption {
	return func(r *PoolRunner) {
		r.clock = c
	}
}

// NewPoolRunner creates a runner over a started worker pool.
func NewPoolRunner(pool *worker.FixedPool, replayer *Replayer, opts ...PoolRunnerOption) *PoolRunner {
	r := &PoolRunner{
		pool:     pool,
		replayer: replayer,
		clock:    clock.NewReal(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit queues the envelope for replay. Queue-full and pool-state errors
// surface synchronously at the dispatch call site.
func (r *PoolRunner) Submit(ctx context.Context, env capability.Envelope) (capability.Ack, error) {
	task := worker.NewTaskWithID(env.PipelineID, func(taskCtx context.Context) error {
		_, err := r.replayer.Replay(taskCtx, env)
		return err
	})

	if err := r.pool.Submit(task); err != nil {
		return capability.Ack{}, err
	}

	return capability.Ack{
		ID:          env.PipelineID,
		SubmittedAt: r.clock.Now(),
	}, nil
}
