package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/flake/internal/config"
	"github.com/Iron-Ham/flake/internal/console"
	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
	"github.com/Iron-Ham/flake/internal/event"
	"github.com/Iron-Ham/flake/internal/launcher"
	"github.com/Iron-Ham/flake/internal/logging"
	"github.com/Iron-Ham/flake/internal/parser"
	"github.com/Iron-Ham/flake/internal/supervisor"
)

// Fallback pseudo-terminal size when stdout is not a terminal
const (
	defaultPtyCols = 120
	defaultPtyRows = 40
)

func runFlake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Protractor.Args = append(slices.Clone(cfg.Protractor.Args), args...)

	out := cmd.OutOrStdout()
	con, err := console.New(out, console.Options{Color: cfg.Color, Verbose: cfg.Verbose})
	if err != nil {
		return flakeerrors.NewConfigError("invalid console color", err).WithKey("color")
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Rotation())
	if err != nil {
		return flakeerrors.NewConfigError("failed to open debug log", err).WithKey("logging.file")
	}
	defer func() { _ = logger.Close() }()

	p, err := parser.New(cfg.Parser, parser.Options{Exclude: cfg.ParserExclude})
	if err != nil {
		return flakeerrors.NewConfigError("failed to create parser", err).WithKey("parser")
	}

	l := launcher.New(launcher.Options{
		NodeBin:        cfg.NodeBin,
		RunnerPath:     cfg.Protractor.Path,
		RunnerArgs:     cfg.Protractor.Args,
		RetryConfig:    cfg.Protractor.RetryConfig,
		Dir:            cfg.Protractor.Spawn.Dir,
		Env:            cfg.Protractor.Spawn.Env,
		AttemptTimeout: cfg.Protractor.Spawn.AttemptTimeout(),
	}, newRunner(cfg, cmd), con, logger)

	sup, err := supervisor.New(supervisor.Config{
		MaxAttempts:     cfg.MaxAttempts,
		AllowRestartAll: cfg.AllowRestartAllSpecs,
		RetryConfig:     cfg.Protractor.RetryConfig,
	}, l, p, con, logger)
	if err != nil {
		return err
	}

	sup.SetEventBus(newEventBus(con, logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := sup.Run(ctx)

	logger.Info("run finished",
		"outcome", result.Outcome.String(),
		"exit_status", result.ExitStatus,
		"attempts", result.Attempts,
	)

	if cfg.Report.File != "" {
		if err := supervisor.WriteReport(cfg.Report.File, supervisor.NewReport(result, runErr)); err != nil {
			con.Logf(console.LevelWarn, "Failed to write report: %v\n", err)
			logger.Warn("failed to write report", "path", cfg.Report.File, "error", err.Error())
		}
	}

	if runErr != nil {
		return runErr
	}
	if result.Outcome == supervisor.Succeeded {
		return nil
	}
	return &ExitError{Code: result.ExitStatus}
}

// loadConfig loads and validates configuration, reporting every failure as
// a configuration error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		if flakeerrors.Is(err, flakeerrors.ErrInvalidConfig) {
			return nil, err
		}
		return nil, flakeerrors.NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// newRunner picks the process runner for the configured spawn mode.
func newRunner(cfg *config.Config, cmd *cobra.Command) launcher.ProcessRunner {
	if !cfg.Protractor.Spawn.TTY {
		return launcher.NewExecRunner()
	}
	cols, rows, ok := console.TerminalSize(cmd.OutOrStdout())
	if !ok {
		cols, rows = defaultPtyCols, defaultPtyRows
	}
	return launcher.NewPtyRunner(uint16(cols), uint16(rows))
}

// newEventBus reports attempt progress as debug console messages, shown
// with --verbose.
func newEventBus(con *console.Console, logger *logging.Logger) *event.Bus {
	bus := event.NewBus(logger)
	bus.Subscribe(event.TypeAttemptStarted, func(e event.Event) {
		ev := e.(event.AttemptStartedEvent)
		if len(ev.Specs) == 0 {
			con.Logf(console.LevelDebug, "Attempt %d: running all specs\n", ev.Attempt)
			return
		}
		con.Logf(console.LevelDebug, "Attempt %d: running %d spec(s)\n", ev.Attempt, len(ev.Specs))
	})
	bus.Subscribe(event.TypeAttemptFinished, func(e event.Event) {
		ev := e.(event.AttemptFinishedEvent)
		msg := fmt.Sprintf("Attempt %d exited with status %d after %s", ev.Attempt, ev.ExitStatus, ev.Duration.Round(time.Millisecond))
		if len(ev.FailedSpecs) > 0 {
			msg += "; failed: " + strings.Join(ev.FailedSpecs, ", ")
		}
		con.Log(console.LevelDebug, msg+"\n")
	})
	bus.Subscribe(event.TypeRunFinished, func(e event.Event) {
		ev := e.(event.RunFinishedEvent)
		con.Logf(console.LevelDebug, "Run %s after %d attempt(s)\n", ev.Outcome, ev.Attempts)
	})
	bus.SubscribeAll(func(e event.Event) {
		logEvent(logger, e)
	})
	return bus
}

// logEvent records a lifecycle event in the debug log.
func logEvent(logger *logging.Logger, e event.Event) {
	args := []any{"event", e.EventType()}
	switch ev := e.(type) {
	case event.AttemptStartedEvent:
		args = append(args, "attempt", ev.Attempt, "retry", ev.Retry, "spec_count", len(ev.Specs))
	case event.AttemptFinishedEvent:
		args = append(args, "attempt", ev.Attempt, "exit_status", ev.ExitStatus,
			"decision", ev.Decision, "timed_out", ev.TimedOut, "failed_count", len(ev.FailedSpecs))
	case event.RunFinishedEvent:
		args = append(args, "outcome", ev.Outcome, "exit_status", ev.ExitStatus, "attempts", ev.Attempts)
		if ev.Err != nil {
			args = append(args, "error", ev.Err.Error())
		}
	}
	logger.Debug("lifecycle event", args...)
}
