package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/distkit/conveyor/internal/config"
	"github.com/distkit/conveyor/pkg/jobs"
)

// newJobCommand creates the job subcommand
func newJobCommand() *cobra.Command {
	var sqlitePath string

	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Inspect a job record",
		Long: `Job prints the stored record for a dispatched pipeline: its status,
result, and last update time. Records live in the shared redis job store
by default; --sqlite reads a local database instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runJob(args[0], sqlitePath)
		},
	}

	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "read jobs from this sqlite database instead of redis")
	return cmd
}

func runJob(id, sqlitePath string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var store jobs.Store
	if sqlitePath != "" {
		s, err := jobs.NewSQLiteStore(sqlitePath)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	} else {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer client.Close()
		store = jobs.NewRedisStore(client)
	}

	rec, err := store.GetJob(ctx, id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
