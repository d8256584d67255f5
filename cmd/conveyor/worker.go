package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/distkit/conveyor/internal/config"
	"github.com/distkit/conveyor/pkg/dispatch"
	"github.com/distkit/conveyor/pkg/events"
	"github.com/distkit/conveyor/pkg/jobs"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/stages"
	"github.com/distkit/conveyor/pkg/storage"
)

// newWorkerCommand creates the worker subcommand
func newWorkerCommand() *cobra.Command {
	var consumers int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the redis dispatch queue and replay envelopes",
		Long: `Worker drains the redis dispatch queue, rebuilding each envelope's
remaining chain against this process's plugin registry and running it.
Job records land in the shared redis job store so submitters can poll
their acknowledgement IDs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd, consumers)
		},
	}

	cmd.Flags().IntVar(&consumers, "consumers", 2, "number of consumer goroutines")
	return cmd
}

func runWorker(cmd *cobra.Command, consumers int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

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

	blobs, err := blobStore(cfg)
	if err != nil {
		return err
	}
	bus := events.NewRedisBus(client, events.WithLogger(log))
	store := jobs.NewRedisStore(client)

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

	replayer := dispatch.NewReplayer(reg,
		dispatch.WithLogger(log),
		dispatch.WithHooks(jobs.Hooks(store)))
	replayer.SetCore("map", wordCountCore)

	runner := dispatch.NewQueueRunner(client, replayer,
		dispatch.WithQueue(cfg.DispatchQueue),
		dispatch.WithQueueLogger(log))

	log.Info("worker started",
		"queue", cfg.DispatchQueue,
		"consumers", consumers,
		"redis", cfg.RedisAddr)
	return runner.Consume(ctx, consumers)
}

// blobStore picks minio when credentials are configured, the local filesystem
// otherwise.
func blobStore(cfg *config.Settings) (storage.BlobStore, error) {
	if cfg.MinIOAccessKey != "" {
		return storage.NewMinIOStore(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Secure:    cfg.MinIOSecure,
		})
	}
	return storage.NewLocalStore(cfg.LocalStoragePath)
}
