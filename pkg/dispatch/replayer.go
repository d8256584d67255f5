// Package dispatch provides the asynchronous substrates a pipeline hands its
// remaining stages to, and the replay machinery the receiving side uses to
// resume them.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/pipeline"
	"github.com/distkit/conveyor/pkg/registry"
)

// Runner accepts a serialized envelope for asynchronous execution and returns
// a scheduling acknowledgement synchronously. A Runner satisfies
// capability.Submitter.
type Runner interface {
	Submit(ctx context.Context, env capability.Envelope) (capability.Ack, error)
}

// Hooks observe envelope replay on the receiving side of the boundary.
type Hooks struct {
	// OnStart runs before the remaining chain resumes
	OnStart func(ctx context.Context, env capability.Envelope)

	// OnFinish runs after the remaining chain completed or failed
	OnFinish func(ctx context.Context, env capability.Envelope, result any, err error)
}

// Replayer rebuilds dispatched pipelines from envelopes and resumes them. The
// core function cannot travel inside an envelope, so the receiving side maps
// context kinds to cores at start-up.
type Replayer struct {
	reg   *registry.Registry
	log   *slog.Logger
	hooks Hooks

	mu    sync.RWMutex
	cores map[string]pipeline.CoreFunc
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithLogger sets the replayer's logger.
func WithLogger(log *slog.Logger) ReplayerOption {
	return func(r *Replayer) {
		r.log = log
	}
}

// WithHooks installs replay observation hooks.
func WithHooks(hooks Hooks) ReplayerOption {
	return func(r *Replayer) {
		r.hooks = hooks
	}
}

// NewReplayer creates a replayer resolving plugins against reg.
func NewReplayer(reg *registry.Registry, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		reg:   reg,
		log:   slog.Default(),
		cores: make(map[string]pipeline.CoreFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetCore maps a context kind to the core function that terminates its
// chains. A nil core falls back to the identity default.
func (r *Replayer) SetCore(contextKind string, core pipeline.CoreFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cores[contextKind] = core
}

func (r *Replayer) coreFor(contextKind string) pipeline.CoreFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cores[contextKind]
}

// Replay resumes the remaining stage sequence of an envelope in its original
// chained order.
func (r *Replayer) Replay(ctx context.Context, env capability.Envelope) (any, error) {
	if r.hooks.OnStart != nil {
		r.hooks.OnStart(ctx, env)
	}

	result, err := pipeline.Resume(ctx, r.reg, env, r.coreFor(env.ContextKind))
	if err != nil {
		r.log.Error("pipeline replay failed",
			"pipeline_id", env.PipelineID,
			"context_kind", env.ContextKind,
			"resume", env.Resume,
			"error", err)
	} else {
		r.log.Debug("pipeline replay completed",
			"pipeline_id", env.PipelineID,
			"resume", env.Resume)
	}

	if r.hooks.OnFinish != nil {
		r.hooks.OnFinish(ctx, env, result, err)
	}
	if err != nil {
		return nil, fmt.Errorf("replay pipeline %s: %w", env.PipelineID, err)
	}
	return result, nil
}
