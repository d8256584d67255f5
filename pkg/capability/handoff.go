package capability

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/distkit/conveyor/pkg/task"
)

// ErrNoHandoff indicates a dispatch stage ran outside a pipeline: no handoff
// was present in the calling context.
var ErrNoHandoff = errors.New("no pipeline handoff in context")

// StageSpec is the serializable record of one chained stage. The spec list,
// not live closures, is what crosses a dispatch boundary so the receiving side
// can rebuild the chain.
type StageSpec struct {
	Kind   Kind           `json:"kind"`
	Plugin string         `json:"plugin"`
	Config map[string]any `json:"config,omitempty"`
}

// Ack is the lightweight acknowledgement a dispatch stage returns to its
// caller once the remaining chain has been handed off.
type Ack struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Envelope is the serialized hand-off unit: enough to reconstruct the context
// and resume the stage sequence at the correct index on the other side.
type Envelope struct {
	PipelineID  string        `json:"pipeline_id"`
	ContextKind string        `json:"context_kind"`
	Context     task.Portable `json:"context"`
	Stages      []StageSpec   `json:"stages"`
	Resume      int           `json:"resume"`
}

// Submitter accepts an envelope for asynchronous execution and returns a
// scheduling acknowledgement synchronously. Delivery guarantees belong to the
// substrate, not to the pipeline.
type Submitter interface {
	Submit(ctx context.Context, env Envelope) (Ack, error)
}

// Handoff carries the envelope for the single dispatch boundary of a run. The
// pipeline places it in the Go context before invoking a dispatch stage; the
// stage submits it and the pipeline observes whether the hand-off happened.
type Handoff struct {
	env       Envelope
	submitted int32 // atomic
}

// NewHandoff wraps an envelope for submission.
func NewHandoff(env Envelope) *Handoff {
	return &Handoff{env: env}
}

// Envelope returns the envelope to be handed off.
func (h *Handoff) Envelope() Envelope {
	return h.env
}

// SubmitTo submits the envelope to a substrate and marks the hand-off done.
// A submission failure surfaces synchronously at the dispatch call site.
func (h *Handoff) SubmitTo(ctx context.Context, s Submitter) (Ack, error) {
	ack, err := s.Submit(ctx, h.env)
	if err != nil {
		return Ack{}, err
	}
	atomic.StoreInt32(&h.submitted, 1)
	return ack, nil
}

// Submitted reports whether the envelope was handed off.
func (h *Handoff) Submitted() bool {
	return atomic.LoadInt32(&h.submitted) == 1
}

type handoffKey struct{}

// WithHandoff places a handoff in the context for the dispatch stage about to
// be invoked.
func WithHandoff(ctx context.Context, h *Handoff) context.Context {
	return context.WithValue(ctx, handoffKey{}, h)
}

// HandoffFromContext retrieves the pipeline handoff, if any.
func HandoffFromContext(ctx context.Context) (*Handoff, bool) {
	h, ok := ctx.Value(handoffKey{}).(*Handoff)
	return h, ok
}
