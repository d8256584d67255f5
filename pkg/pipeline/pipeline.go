// Package pipeline assembles an ordered chain of pluggable stages around a
// core function and executes them as nested continuations. Everything up to
// and including the dispatch boundary runs synchronously on the caller's
// stack; at most one stage may hand the remainder to an asynchronous
// substrate.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// State defines the lifecycle state of a Pipeline
type State int32

const (
	// StateBuilding accepts Chain calls
	StateBuilding State = iota
	// StateValidated means the chain resolved against the registry
	StateValidated
	// StateRunning means the continuation chain is executing
	StateRunning
	// StateCompleted means the run finished synchronously
	StateCompleted
	// StateDispatched means the remainder was handed off; terminal for the
	// synchronous caller even though work continues elsewhere
	StateDispatched
	// StateFailed means a stage or the core function returned an error
	StateFailed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "Building"
	case StateValidated:
		return "Validated"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateDispatched:
		return "Dispatched"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// CoreFunc is the terminal function of a chain, invoked with the context once
// every stage has passed control through.
type CoreFunc func(ctx context.Context, tc task.Context, args ...any) (any, error)

// identityCore is the default core: it returns the context's portable form
// unchanged so an empty chain is well-defined.
func identityCore(_ context.Context, tc task.Context, _ ...any) (any, error) {
	return tc.Portable()
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry binds the pipeline to a specific registry instead of the
// process-wide default.
func WithRegistry(reg *registry.Registry) Option {
	return func(p *Pipeline) {
		p.reg = reg
	}
}

// WithID sets the pipeline ID. Used when resuming a dispatched pipeline so
// both sides of the boundary share one identity.
func WithID(id string) Option {
	return func(p *Pipeline) {
		p.id = id
	}
}

// Pipeline is an ordered list of stage specifications bound to a context and
// a core function. It is single-use: once Run reaches a terminal state the
// instance is spent.
type Pipeline struct {
	id    string
	reg   *registry.Registry
	tc    task.Context
	core  CoreFunc
	specs []capability.StageSpec

	dispatchAt int   // index of the dispatch spec, -1 when absent
	state      int32 // atomic State
	chainErr   error
	handoff    *capability.Handoff
}

// New builds a pipeline for the given context. A nil core defaults to the
// identity function over the context's portable form.
func New(tc task.Context, core CoreFunc, opts ...Option) *Pipeline {
	if core == nil {
		core = identityCore
	}

	p := &Pipeline{
		id:         uuid.NewString(),
		reg:        registry.Default,
		tc:         tc,
		core:       core,
		dispatchAt: -1,
		state:      int32(StateBuilding),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the pipeline's unique identifier.
func (p *Pipeline) ID() string {
	return p.id
}

// Context returns the context the pipeline was built from.
func (p *Pipeline) Context() task.Context {
	return p.tc
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	return State(atomic.LoadInt32(&p.state))
}

// Specs returns a copy of the chained stage specifications.
func (p *Pipeline) Specs() []capability.StageSpec {
	specs := make([]capability.StageSpec, len(p.specs))
	copy(specs, p.specs)
	return specs
}

// Err returns the first error recorded while chaining, if any. Chaining a
// second dispatch stage fails here, at append time, before any execution.
func (p *Pipeline) Err() error {
	return p.chainErr
}

// Chain appends a stage specification and returns the pipeline for fluent
// composition. The spec is immutable once appended. A second dispatch spec is
// rejected immediately; the error is available via Err and also fails Run.
func (p *Pipeline) Chain(kind capability.Kind, plugin string, cfg registry.Config) *Pipeline {
	if p.chainErr != nil {
		return p
	}
	if p.State() != StateBuilding {
		p.chainErr = ErrPipelineFrozen
		return p
	}
	if kind == capability.KindDispatch && p.dispatchAt >= 0 {
		p.chainErr = &MultipleDispatchError{
			Existing: p.specs[p.dispatchAt].Plugin,
			Added:    plugin,
		}
		return p
	}

	if kind == capability.KindDispatch {
		p.dispatchAt = len(p.specs)
	}
	p.specs = append(p.specs, capability.StageSpec{
		Kind:   kind,
		Plugin: plugin,
		Config: cfg,
	})
	return p
}

// Run resolves every spec into a live plugin and evaluates the continuation
// chain: stage 0 is outermost and executes first, the core function is the
// innermost base case. Errors from stages or the core propagate unmodified.
// When a dispatch stage hands the remainder off, Run returns the stage's
// acknowledgement and the pipeline ends in StateDispatched.
func (p *Pipeline) Run(ctx context.Context, args ...any) (any, error) {
	return p.runFrom(ctx, 0, args...)
}

func (p *Pipeline) runFrom(ctx context.Context, from int, args ...any) (any, error) {
	if p.chainErr != nil {
		return nil, p.chainErr
	}

	// Resolution failures leave the pipeline re-runnable: state only
	// advances once the whole chain resolved.
	stages, err := p.resolve(from)
	if err != nil {
		return nil, err
	}

	if !atomic.CompareAndSwapInt32(&p.state, int32(StateBuilding), int32(StateValidated)) {
		return nil, ErrPipelineSpent
	}
	atomic.StoreInt32(&p.state, int32(StateRunning))

	result, err := p.step(stages, 0, from)(ctx, p.tc, args...)
	if err != nil {
		atomic.StoreInt32(&p.state, int32(StateFailed))
		return nil, err
	}

	if p.handoff != nil && p.handoff.Submitted() {
		atomic.StoreInt32(&p.state, int32(StateDispatched))
	} else {
		atomic.StoreInt32(&p.state, int32(StateCompleted))
	}
	return result, nil
}

// resolve instantiates the plugins for specs[from:] via the registry. Fresh
// instances every run; nothing is pooled across runs.
func (p *Pipeline) resolve(from int) ([]capability.Stage, error) {
	stages := make([]capability.Stage, 0, len(p.specs)-from)
	for _, spec := range p.specs[from:] {
		stage, err := p.reg.Resolve(spec.Kind, spec.Plugin, spec.Config)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// step builds the continuation for position i of the resolved slice. offset
// maps slice positions back to spec indices when resuming mid-chain. The
// stepper advances an index per call instead of pre-nesting closures, so a
// long chain costs nothing until it executes.
func (p *Pipeline) step(stages []capability.Stage, i, offset int) capability.Continuation {
	return func(ctx context.Context, tc task.Context, args ...any) (any, error) {
		if i >= len(stages) {
			return p.core(ctx, tc, args...)
		}

		spec := p.specs[offset+i]
		next := p.step(stages, i+1, offset)

		if spec.Kind == capability.KindDispatch {
			env, err := p.envelope(offset + i + 1)
			if err != nil {
				return nil, err
			}
			p.handoff = capability.NewHandoff(env)
			ctx = capability.WithHandoff(ctx, p.handoff)
		}

		return stages[i].Invoke(ctx, next, tc, args...)
	}
}

// envelope snapshots the context and the full spec list so the receiving side
// can rebuild the chain and resume at the given index.
func (p *Pipeline) envelope(resume int) (capability.Envelope, error) {
	portable, err := p.tc.Portable()
	if err != nil {
		return capability.Envelope{}, err
	}
	return capability.Envelope{
		PipelineID:  p.id,
		ContextKind: p.tc.Kind(),
		Context:     portable,
		Stages:      p.Specs(),
		Resume:      resume,
	}, nil
}
