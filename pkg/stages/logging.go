// Package stages holds the generic built-in Execute plugins.
package stages

import (
	"context"
	"log/slog"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/clock"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// LoggingStage logs around the continuation: one line going in, one line with
// duration and outcome coming out. Configuration: "name" labels the chain in
// log lines (default "pipeline"); "log_result" includes the downstream result
// in the exit line (default false, results can be large).
type LoggingStage struct {
	log       *slog.Logger
	name      string
	logResult bool
}

// NewLoggingStage creates a logging stage.
func NewLoggingStage(log *slog.Logger, name string) *LoggingStage {
	return &LoggingStage{log: log, name: name}
}

// Invoke passes through, logging entry and exit.
func (s *LoggingStage) Invoke(ctx context.Context, next capability.Continuation, tc task.Context, args ...any) (any, error) {
	c := clock.FromContext(ctx)
	start := c.Now()

	s.log.Info("chain started", "name", s.name, "context_kind", tc.Kind())

	result, err := next(ctx, tc, args...)
	if err != nil {
		s.log.Error("chain failed", "name", s.name, "duration", c.Since(start), "error", err)
		return nil, err
	}

	if s.logResult {
		s.log.Info("chain finished", "name", s.name, "duration", c.Since(start), "result", result)
	} else {
		s.log.Info("chain finished", "name", s.name, "duration", c.Since(start))
	}
	return result, nil
}

// RegisterLogging registers the logging plugin under name.
func RegisterLogging(reg *registry.Registry, name string, log *slog.Logger) error {
	return reg.Register(capability.KindExecute, name, func(cfg registry.Config) (capability.Stage, error) {
		stage := NewLoggingStage(log, cfg.String("name", "pipeline"))
		stage.logResult = cfg.Bool("log_result", false)
		return stage, nil
	})
}
