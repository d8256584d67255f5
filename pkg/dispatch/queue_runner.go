package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/clock"
)

// DefaultQueue is the redis list queue runners use unless configured.
const DefaultQueue = "conveyor:dispatch"

// QueueRunner hands envelopes to a redis list so a separate worker process
// can replay them. Submit pushes the JSON envelope and returns; Consume is
// the worker side draining the list.
type QueueRunner struct {
	client   redis.UniversalClient
	queue    string
	replayer *Replayer
	clock    clock.Clock
	log      *slog.Logger
}

// QueueRunnerOption configures a QueueRunner.
type QueueRunnerOption func(*QueueRunner)

// WithQueue sets the redis list key.
func WithQueue(name string) QueueRunnerOption {
	return func(r *QueueRunner) {
		r.queue = name
	}
}

// WithQueueClock sets the clock used for acknowledgement timestamps.
func WithQueueClock(c clock.Clock) QueueRunnerOption {
	return func(r *QueueRunner) {
		r.clock = c
	}
}

// WithQueueLogger sets the consumer's logger.
func WithQueueLogger(log *slog.Logger) QueueRunnerOption {
	return func(r *QueueRunner) {
		r.log = log
	}
}

// NewQueueRunner creates a redis-list runner. The replayer may be nil on a
// submit-only process; Consume requires it.
func NewQueueRunner(client redis.UniversalClient, replayer *Replayer, opts ...QueueRunnerOption) *QueueRunner {
	r := &QueueRunner{
		client:   client,
		queue:    DefaultQueue,
		replayer: replayer,
		clock:    clock.NewReal(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit pushes the envelope onto the queue. An unreachable redis surfaces
// here, synchronously, at the dispatch call site.
func (r *QueueRunner) Submit(ctx context.Context, env capability.Envelope) (capability.Ack, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return capability.Ack{}, fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.client.LPush(ctx, r.queue, data).Err(); err != nil {
		return capability.Ack{}, fmt.Errorf("enqueue envelope: %w", err)
	}
	return capability.Ack{
		ID:          env.PipelineID,
		SubmittedAt: r.clock.Now(),
	}, nil
}

// Consume drains the queue with the given number of consumer goroutines until
// the context is canceled. Replay failures are logged and do not stop the
// consumers; the original caller has no channel back to hear about them.
func (r *QueueRunner) Consume(ctx context.Context, consumers int) error {
	if r.replayer == nil {
		return errors.New("queue runner has no replayer")
	}
	if consumers <= 0 {
		consumers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < consumers; i++ {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return nil
				}

				res, err := r.client.BRPop(ctx, time.Second, r.queue).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue // queue empty, poll again
					}
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("dequeue: %w", err)
				}
				if len(res) != 2 {
					continue
				}

				var env capability.Envelope
				if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
					r.log.Error("dropping malformed envelope", "error", err)
					continue
				}
				if _, err := r.replayer.Replay(ctx, env); err != nil {
					r.log.Error("envelope replay failed",
						"pipeline_id", env.PipelineID, "error", err)
				}
			}
		})
	}
	return g.Wait()
}
