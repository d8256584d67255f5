package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
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
)

// newSubmitCommand creates the submit subcommand
func newSubmitCommand() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "submit <text>",
		Short: "Submit a chain whose remainder runs on a worker process",
		Long: `Submit runs the synchronous prefix of a sample chain here and hands the
remainder (blob write, event publication, word-count core) to the redis
dispatch queue. It prints the acknowledgement ID; poll it with
"conveyor job <id>" once a worker picked the envelope up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSubmit(args[0], filename)
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "input.txt", "object name for the stored payload")
	return cmd
}

func runSubmit(text, filename string) error {
	ctx := context.Background()
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer client.Close()

	store := jobs.NewRedisStore(client)
	queue := dispatch.NewQueueRunner(client, nil, dispatch.WithQueue(cfg.DispatchQueue))
	runner := jobs.NewTrackingRunner(queue, store)

	// the whole chain resolves before the run, so the submitting side
	// registers the post-dispatch plugins too even though only the worker
	// invokes them
	blobs, err := blobStore(cfg)
	if err != nil {
		return err
	}
	bus := events.NewRedisBus(client)

	reg := registry.New()
	if err := stages.RegisterLogging(reg, "logging", log); err != nil {
		return err
	}
	if err := dispatch.RegisterBackground(reg, "background", runner); err != nil {
		return err
	}
	if err := storage.RegisterWrite(reg, "blob-write", blobs); err != nil {
		return err
	}
	if err := events.RegisterPublish(reg, "publish", bus); err != nil {
		return err
	}

	tc := task.NewMapContext("map", map[string]any{
		"payload":  text,
		"filename": filename,
	})

	p := pipeline.New(tc, nil, pipeline.WithRegistry(reg)).
		Chain(capability.KindExecute, "logging", registry.Config{"name": "submit"}).
		Chain(capability.KindDispatch, "background", nil).
		Chain(capability.KindExecute, "blob-write", registry.Config{"bucket": "uploads"}).
		Chain(capability.KindExecute, "publish", registry.Config{"topic": "runs"})
	if err := p.Err(); err != nil {
		return err
	}

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	ack := result.(capability.Ack)
	fmt.Printf("submitted: %s\n", ack.ID)
	return nil
}
