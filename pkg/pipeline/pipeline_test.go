package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// recorder collects stage side effects in execution order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, label)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// newTestRegistry registers the fixtures the pipeline tests chain:
//
//	record  pass-through that appends its label to rec
//	skip    short-circuits with an alternate result, never calls next
//	fail    appends its label, then returns a fixed error
func newTestRegistry(t *testing.T, rec *recorder) *registry.Registry {
	t.Helper()
	reg := registry.New()

	reg.MustRegister(capability.KindExecute, "record", func(cfg registry.Config) (capability.Stage, error) {
		label := cfg.String("label", "?")
		return capability.StageFunc(func(ctx context.Context, next capability.Continuation, tc task.Context, args ...any) (any, error) {
			rec.add(label)
			return next(ctx, tc, args...)
		}), nil
	})

	reg.MustRegister(capability.KindExecute, "skip", func(cfg registry.Config) (capability.Stage, error) {
		alt := cfg.String("result", "skipped")
		return capability.StageFunc(func(context.Context, capability.Continuation, task.Context, ...any) (any, error) {
			return capability.ShortCircuit(alt)
		}), nil
	})

	reg.MustRegister(capability.KindExecute, "fail", func(cfg registry.Config) (capability.Stage, error) {
		label := cfg.String("label", "fail")
		return capability.StageFunc(func(context.Context, capability.Continuation, task.Context, ...any) (any, error) {
			rec.add(label)
			return nil, errStageBoom
		}), nil
	})

	return reg
}

var errStageBoom = errors.New("stage boom")

func TestPipelinePassThroughComposition(t *testing.T) {
	rec := &recorder{}
	reg := newTestRegistry(t, rec)

	core := func(_ context.Context, tc task.Context, _ ...any) (any, error) {
		rec.add("core")
		return "core-result", nil
	}

	p := New(task.NewMapContext("map", nil), core, WithRegistry(reg)).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s0"}).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s1"}).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s2"})
	require.NoError(t, p.Err())

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "core-result", result, "pass-through stages return the core result verbatim")
	assert.Equal(t, []string{"s0", "s1", "s2", "core"}, rec.snapshot())
	assert.Equal(t, StateCompleted, p.State())
}

func TestPipelineDefaultCoreIsIdentity(t *testing.T) {
	tc := task.NewMapContext("map", map[string]any{"path": "/tmp/x"})
	p := New(tc, nil, WithRegistry(registry.New()))

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	portable, ok := result.(task.Portable)
	require.True(t, ok, "default core returns the context's portable form")
	assert.Equal(t, "/tmp/x", portable["path"])
}

func TestPipelineShortCircuit(t *testing.T) {
	rec := &recorder{}
	reg := newTestRegistry(t, rec)

	coreRuns := 0
	core := func(context.Context, task.Context, ...any) (any, error) {
		coreRuns++
		return nil, nil
	}

	p := New(task.NewMapContext("map", nil), core, WithRegistry(reg)).
		Chain(capability.KindExecute, "record", registry.Config{"label": "before"}).
		Chain(capability.KindExecute, "skip", registry.Config{"result": "alternate"}).
		Chain(capability.KindExecute, "record", registry.Config{"label": "after"})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "alternate", result)
	assert.Equal(t, []string{"before"}, rec.snapshot(), "stages after the short circuit never run")
	assert.Zero(t, coreRuns, "core never runs after a short circuit")
	assert.Equal(t, StateCompleted, p.State())
}

func TestPipelineSingleDispatchInvariant(t *testing.T) {
	reg := registry.New()
	p := New(task.NewMapContext("map", nil), nil, WithRegistry(reg)).
		Chain(capability.KindDispatch, "background", nil).
		Chain(capability.KindDispatch, "queue", nil)

	err := p.Err()
	require.Error(t, err, "second dispatch fails at chain time, before any run")
	assert.ErrorIs(t, err, ErrMultipleDispatch)

	var multi *MultipleDispatchError
	require.ErrorAs(t, err, &multi)
	assert.Equal(t, "background", multi.Existing)
	assert.Equal(t, "queue", multi.Added)

	// the run surfaces the same error without executing anything
	_, runErr := p.Run(context.Background())
	assert.ErrorIs(t, runErr, ErrMultipleDispatch)
	assert.Equal(t, StateBuilding, p.State())
}

func TestPipelineOrderingUnderError(t *testing.T) {
	rec := &recorder{}
	reg := newTestRegistry(t, rec)

	coreRuns := 0
	core := func(context.Context, task.Context, ...any) (any, error) {
		coreRuns++
		return nil, nil
	}

	p := New(task.NewMapContext("map", nil), core, WithRegistry(reg)).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s0"}).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s1"}).
		Chain(capability.KindExecute, "fail", registry.Config{"label": "s2"}).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s3"})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errStageBoom, err, "stage errors propagate unmodified")

	assert.Equal(t, []string{"s0", "s1", "s2"}, rec.snapshot(),
		"earlier stages ran, later stages never did")
	assert.Zero(t, coreRuns)
	assert.Equal(t, StateFailed, p.State())
}

func TestPipelineUnknownPluginLeavesStateUnaffected(t *testing.T) {
	rec := &recorder{}
	reg := newTestRegistry(t, rec)

	p := New(task.NewMapContext("map", nil), nil, WithRegistry(reg)).
		Chain(capability.KindExecute, "no-such-plugin", nil)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, registry.ErrUnknownPlugin)
	assert.Equal(t, StateBuilding, p.State(), "failed resolution leaves the pipeline re-runnable")
	assert.Empty(t, rec.snapshot(), "nothing executed")

	// the same pipeline can retry once the plugin exists
	reg.MustRegister(capability.KindExecute, "no-such-plugin", func(registry.Config) (capability.Stage, error) {
		return capability.StageFunc(func(ctx context.Context, next capability.Continuation, tc task.Context, args ...any) (any, error) {
			rec.add("late")
			return next(ctx, tc, args...)
		}), nil
	})

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, rec.snapshot())
	assert.Equal(t, StateCompleted, p.State())
}

func TestPipelineIsSingleUse(t *testing.T) {
	rec := &recorder{}
	reg := newTestRegistry(t, rec)

	p := New(task.NewMapContext("map", nil), nil, WithRegistry(reg)).
		Chain(capability.KindExecute, "record", registry.Config{"label": "s0"})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrPipelineSpent)

	// the chain is frozen too
	p.Chain(capability.KindExecute, "record", registry.Config{"label": "s1"})
	assert.ErrorIs(t, p.Err(), ErrPipelineFrozen)
	assert.Equal(t, []string{"s0"}, rec.snapshot())
}

func TestPipelineArgsReachCore(t *testing.T) {
	reg := registry.New()

	core := func(_ context.Context, _ task.Context, args ...any) (any, error) {
		require.Len(t, args, 2)
		return []any{args[0], args[1]}, nil
	}

	p := New(task.NewMapContext("map", nil), core, WithRegistry(reg))
	result, err := p.Run(context.Background(), "a", 7)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 7}, result)
}

func TestPipelineDispatchHandoff(t *testing.T) {
	rec := &recorder{}
	reg := newTestRegistry(t, rec)

	// a dispatch stage that submits to a collecting substrate
	var submitted []capability.Envelope
	reg.MustRegister(capability.KindDispatch, "collect", func(registry.Config) (capability.Stage, error) {
		return capability.StageFunc(func(ctx context.Context, _ capability.Continuation, _ task.Context, _ ...any) (any, error) {
			h, ok := capability.HandoffFromContext(ctx)
			require.True(t, ok, "pipeline must place a handoff before a dispatch stage")
			return h.SubmitTo(ctx, submitterFunc(func(_ context.Context, env capability.Envelope) (capability.Ack, error) {
				submitted = append(submitted, env)
				return capability.Ack{ID: env.PipelineID}, nil
			}))
		}), nil
	})

	coreRuns := 0
	core := func(context.Context, task.Context, ...any) (any, error) {
		coreRuns++
		return nil, nil
	}

	tc := task.NewMapContext("map", map[string]any{"path": "/tmp/y"})
	p := New(tc, core, WithRegistry(reg)).
		Chain(capability.KindExecute, "record", registry.Config{"label": "pre"}).
		Chain(capability.KindDispatch, "collect", nil).
		Chain(capability.KindExecute, "record", registry.Config{"label": "post"})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	ack, ok := result.(capability.Ack)
	require.True(t, ok, "dispatch returns the acknowledgement to the caller")
	assert.Equal(t, p.ID(), ack.ID)
	assert.Equal(t, StateDispatched, p.State())

	assert.Equal(t, []string{"pre"}, rec.snapshot(), "post-dispatch stages do not run synchronously")
	assert.Zero(t, coreRuns)

	require.Len(t, submitted, 1)
	env := submitted[0]
	assert.Equal(t, p.ID(), env.PipelineID)
	assert.Equal(t, "map", env.ContextKind)
	assert.Equal(t, "/tmp/y", env.Context["path"])
	assert.Equal(t, 2, env.Resume, "resume index points past the dispatch stage")
	require.Len(t, env.Stages, 3, "the full spec list crosses the boundary")
}

func TestPipelineDispatchFailureIsSynchronous(t *testing.T) {
	reg := registry.New()
	unreachable := errors.New("substrate unreachable")

	reg.MustRegister(capability.KindDispatch, "down", func(registry.Config) (capability.Stage, error) {
		return capability.StageFunc(func(ctx context.Context, _ capability.Continuation, _ task.Context, _ ...any) (any, error) {
			h, _ := capability.HandoffFromContext(ctx)
			return h.SubmitTo(ctx, submitterFunc(func(context.Context, capability.Envelope) (capability.Ack, error) {
				return capability.Ack{}, unreachable
			}))
		}), nil
	})

	p := New(task.NewMapContext("map", nil), nil, WithRegistry(reg)).
		Chain(capability.KindDispatch, "down", nil)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, unreachable, "hand-off failure propagates like any run-time error")
	assert.Equal(t, StateFailed, p.State())
}

// submitterFunc adapts a function to capability.Submitter.
type submitterFunc func(ctx context.Context, env capability.Envelope) (capability.Ack, error)

func (f submitterFunc) Submit(ctx context.Context, env capability.Envelope) (capability.Ack, error) {
	return f(ctx, env)
}
