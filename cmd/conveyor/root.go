package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conveyor",
		Short: "Conveyor - pluggable stage-chaining execution engine",
		Long: `Conveyor chains pluggable stages around a core function and executes them
as nested continuations. A dispatch stage hands the remaining chain to an
asynchronous substrate: an in-process worker pool or a redis queue drained
by separate worker processes.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file")

	rootCmd.AddCommand(newDemoCommand())
	rootCmd.AddCommand(newWorkerCommand())
	rootCmd.AddCommand(newSubmitCommand())
	rootCmd.AddCommand(newJobCommand())

	return rootCmd
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
