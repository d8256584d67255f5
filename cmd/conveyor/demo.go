package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/distkit/conveyor/internal/config"
	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/dispatch"
	"github.com/distkit/conveyor/pkg/events"
	"github.com/distkit/conveyor/pkg/jobs"
	"github.com/distkit/conveyor/pkg/pipeline"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/stages"
	"github.com/distkit/conveyor/pkg/storage"
	"github.com/distkit/conveyor/pkg/task"
	"github.com/distkit/conveyor/pkg/worker"
)

// newDemoCommand creates the demo subcommand
func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a sample chain on an in-process worker pool",
		Long: `Demo chains logging, timing, a blob write, an event publication, and a
background dispatch around a word-count core, entirely in one process:
local filesystem storage, an in-memory event bus, and an in-memory job
store. The dispatch hand-off goes to a worker pool; the command waits
for the replayed remainder and prints the job record.`,
		RunE: runDemo,
	}
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	blobs, err := storage.NewLocalStore(cfg.LocalStoragePath)
	if err != nil {
		return err
	}
	bus := events.NewMemoryBus()
	store := jobs.NewMemoryStore()

	reg := registry.New()
	if err := stages.RegisterLogging(reg, "logging", log); err != nil {
		return err
	}
	if err := stages.RegisterTiming(reg, "timing"); err != nil {
		return err
	}
	if err := storage.RegisterWrite(reg, "blob-write", blobs); err != nil {
		return err
	}
	if err := events.RegisterPublish(reg, "publish", bus); err != nil {
		return err
	}

	pool, err := worker.NewFixedPool(&worker.Config{
		PoolSize:      cfg.PoolSize,
		QueueSize:     cfg.QueueSize,
		SubmitTimeout: 5 * time.Second,
	})
	if err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer pool.Close()

	replayer := dispatch.NewReplayer(reg,
		dispatch.WithLogger(log),
		dispatch.WithHooks(jobs.Hooks(store)))
	replayer.SetCore("map", wordCountCore)

	runner := jobs.NewTrackingRunner(dispatch.NewPoolRunner(pool, replayer), store)
	if err := dispatch.RegisterBackground(reg, "background", runner); err != nil {
		return err
	}

	// print the lifecycle event the chain publishes after the boundary
	subCtx, unsubscribe := context.WithCancel(ctx)
	defer unsubscribe()
	go func() {
		_ = bus.Subscribe(subCtx, "runs", func(_ context.Context, payload map[string]any) {
			fmt.Printf("event on %q: stored at %v\n", "runs", payload["stored_path"])
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the subscriber register before the replay publishes

	tc := task.NewMapContext("map", map[string]any{
		"payload":  "the quick brown fox jumps over the lazy dog",
		"filename": "demo.txt",
	})

	p := pipeline.New(tc, nil, pipeline.WithRegistry(reg)).
		Chain(capability.KindExecute, "logging", registry.Config{"name": "demo"}).
		Chain(capability.KindExecute, "timing", nil).
		Chain(capability.KindDispatch, "background", nil).
		Chain(capability.KindExecute, "blob-write", registry.Config{"bucket": "demo"}).
		Chain(capability.KindExecute, "publish", registry.Config{"topic": "runs"})
	if err := p.Err(); err != nil {
		return err
	}

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	ack := result.(capability.Ack)
	fmt.Printf("dispatched pipeline %s (state %s)\n", ack.ID, p.State())

	rec, err := waitForJob(ctx, store, ack.ID, 10*time.Second)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Printf("job record:\n%s\n", out)
	return nil
}

// wordCountCore counts words in the payload field.
func wordCountCore(_ context.Context, tc task.Context, _ ...any) (any, error) {
	fields, ok := tc.(task.Fields)
	if !ok {
		return nil, fmt.Errorf("context kind %q does not expose fields", tc.Kind())
	}
	v, _ := fields.Get("payload")
	text, _ := v.(string)

	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return map[string]any{"words": count}, nil
}

func waitForJob(ctx context.Context, store jobs.Store, id string, timeout time.Duration) (*jobs.Record, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := store.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec.Status == jobs.StatusCompleted || rec.Status == jobs.StatusFailed {
			return rec, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("job %s did not finish within %s", id, timeout)
}
