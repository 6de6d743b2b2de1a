// Package supervisor drives a flaky test suite to a verdict.
//
// A Supervisor launches the runner, asks the attempt controller what to do
// with the result, and re-launches it restricted to the failed specs until
// the suite passes, attempts run out, or no failed specs can be identified.
// Attempts never overlap: each one has exited and its output is fully
// captured before the next decision is made.
//
// # Outcomes
//
// Run returns a Result whose Outcome is one of:
//   - [Succeeded]: an attempt exited with status 0
//   - [Failed]: every attempt failed; ExitStatus and Output are the last
//     attempt's
//   - [Abandoned]: an attempt failed, no failed specs were found in its
//     output, and restarting all specs is disabled
//
// RunWithCallback offers the completion-callback contract instead, in which
// the callback is not called for an abandoned run.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/flake/internal/attempt"
	"github.com/Iron-Ham/flake/internal/console"
	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
	"github.com/Iron-Ham/flake/internal/event"
	"github.com/Iron-Ham/flake/internal/launcher"
	"github.com/Iron-Ham/flake/internal/logging"
	"github.com/Iron-Ham/flake/internal/parser"
	"github.com/Iron-Ham/flake/internal/util"
)

// Outcome is how a supervised run ended.
type Outcome int

const (
	// Incomplete means the run ended with an error before a verdict.
	Incomplete Outcome = iota
	// Succeeded means an attempt passed.
	Succeeded
	// Failed means attempts were exhausted.
	Failed
	// Abandoned means a failed attempt named no specs to re-run and
	// restarting all specs is disabled.
	Abandoned
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Incomplete:
		return "incomplete"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// debugTailLines bounds how much runner output goes into the debug log.
const debugTailLines = 40

// Launcher runs a single attempt. *launcher.Launcher implements it.
type Launcher interface {
	Launch(ctx context.Context, inv launcher.Invocation) (*launcher.Result, error)
}

// Sink receives flake's own console messages. *console.Console implements it.
type Sink interface {
	Log(level console.Level, text string)
}

// Config holds the retry policy.
type Config struct {
	MaxAttempts     int
	AllowRestartAll bool
	// RetryConfig is only announced on the console; the launcher appends it.
	RetryConfig string
}

// AttemptRecord describes one runner invocation and what followed it.
type AttemptRecord struct {
	Attempt      int           `yaml:"attempt"`
	Retry        bool          `yaml:"retry"`
	Specs        []string      `yaml:"specs,omitempty"`
	ExitStatus   int           `yaml:"exit_status"`
	Duration     time.Duration `yaml:"duration"`
	TimedOut     bool          `yaml:"timed_out,omitempty"`
	Error        string        `yaml:"error,omitempty"`
	FailedSpecs  []string      `yaml:"failed_specs,omitempty"`
	RestartedAll bool          `yaml:"restarted_all,omitempty"`
	Decision     string        `yaml:"decision"`
}

// Result is the verdict of a supervised run.
type Result struct {
	Outcome Outcome
	// ExitStatus is 0 on success, otherwise the last attempt's status.
	ExitStatus int
	// Output is the last attempt's output when the run failed or was
	// abandoned. It is empty on success.
	Output string
	// Attempts is the number of runner invocations.
	Attempts    int
	Parser      string
	MaxAttempts int
	History     []AttemptRecord
}

// Supervisor runs the attempt loop. A Supervisor may be run more than once;
// each Run starts from attempt 1.
type Supervisor struct {
	cfg      Config
	launcher Launcher
	parser   parser.Parser
	console  Sink
	logger   *logging.Logger
	events   *event.Bus
}

// New creates a Supervisor. A nil sink discards console messages and a nil
// logger disables debug logging.
func New(cfg Config, l Launcher, p parser.Parser, sink Sink, logger *logging.Logger) (*Supervisor, error) {
	if cfg.MaxAttempts < 1 {
		return nil, flakeerrors.NewConfigError(
			fmt.Sprintf("max attempts must be at least 1, got %d", cfg.MaxAttempts), nil,
		).WithKey("max_attempts")
	}
	if l == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if p == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if sink == nil {
		sink = console.Discard()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Supervisor{
		cfg:      cfg,
		launcher: l,
		parser:   p,
		console:  sink,
		logger:   logger.WithParser(p.Name()),
	}, nil
}

// Run drives attempts until a terminal decision.
//
// The error is non-nil only when an attempt could not be run: the runner
// failed to start (*errors.SpawnError) or ctx was canceled
// (errors.ErrCanceled). The returned Result is never nil; on error its
// Outcome is Incomplete and History holds the attempts that did finish.
func (s *Supervisor) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		Parser:      s.parser.Name(),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	err := s.run(ctx, result)
	s.publish(event.NewRunFinishedEvent(result.Outcome.String(), result.ExitStatus, result.Attempts, err))
	return result, err
}

func (s *Supervisor) run(ctx context.Context, result *Result) error {
	ctrl, err := attempt.NewController(s.cfg.MaxAttempts, s.parser, s.cfg.AllowRestartAll)
	if err != nil {
		return err
	}

	inv := launcher.Invocation{Attempt: ctrl.Attempt()}
	for {
		s.publish(event.NewAttemptStartedEvent(inv.Attempt, inv.Retry, inv.Specs))
		res, err := s.launcher.Launch(ctx, inv)
		if err != nil {
			s.logger.WithAttempt(inv.Attempt).LogError("attempt did not complete", err)
			return err
		}
		result.Attempts++

		if flakeerrors.Is(res.Err, flakeerrors.ErrTimeout) {
			s.console.Log(console.LevelWarn, "\n"+res.Err.Error()+"\n")
		}

		action := ctrl.Decide(res.ExitStatus, res.Output, res.Specs)
		result.History = append(result.History, newRecord(res, action))
		s.logDecision(res, action)
		s.publish(event.NewAttemptFinishedEvent(res.Attempt, res.ExitStatus, res.Duration, res.TimedOut,
			action.Kind.String(), action.FailedSpecs))

		switch action.Kind {
		case attempt.Succeed:
			result.Outcome = Succeeded
			result.ExitStatus = action.ExitStatus
			return nil

		case attempt.Stop:
			result.Outcome = Failed
			result.ExitStatus = action.ExitStatus
			result.Output = action.Output
			return nil

		case attempt.StopSilent:
			s.announceRetry(ctrl.Attempt())
			s.console.Log(console.LevelInfo, "\nTests failed but no specs were found. Ending.\n")
			result.Outcome = Abandoned
			result.ExitStatus = action.ExitStatus
			result.Output = res.Output
			return nil

		case attempt.Retry:
			s.announceRetry(ctrl.Attempt())
			if action.RestartedAll {
				s.console.Log(console.LevelInfo, "\nTests failed but no specs were found. Specs from past attempt will be run again.\n\n")
			} else {
				s.console.Log(console.LevelInfo, "Re-running the following test files:\n")
				s.console.Log(console.LevelInfo, strings.Join(action.Specs, "\n")+"\n")
			}
			inv = launcher.Invocation{
				Attempt: ctrl.Attempt(),
				Retry:   true,
				Specs:   action.Specs,
			}
		}
	}
}

// RunWithCallback runs the supervisor and reports the verdict through cb:
// cb(0, "") on success and cb(status, output) when attempts are exhausted.
// cb is not called when the run is abandoned or when Run returns an error.
func (s *Supervisor) RunWithCallback(ctx context.Context, cb func(status int, output string)) (*Result, error) {
	result, err := s.Run(ctx)
	if err != nil {
		return result, err
	}
	switch result.Outcome {
	case Succeeded:
		cb(result.ExitStatus, "")
	case Failed:
		cb(result.ExitStatus, result.Output)
	}
	return result, nil
}

// SetEventBus publishes attempt and run lifecycle events to bus. A nil bus
// disables publishing.
func (s *Supervisor) SetEventBus(bus *event.Bus) {
	s.events = bus
}

func (s *Supervisor) publish(e event.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

// announceRetry prints the messages that precede every re-run decision.
func (s *Supervisor) announceRetry(next int) {
	s.console.Log(console.LevelInfo, fmt.Sprintf("\nUsing %s to parse output\n", s.parser.Name()))
	s.console.Log(console.LevelInfo, fmt.Sprintf("Re-running tests: test attempt %d\n", next))
	if s.cfg.RetryConfig != "" {
		s.console.Log(console.LevelInfo, fmt.Sprintf("Using provided protractorRetryConfig: %s\n", s.cfg.RetryConfig))
	}
}

func (s *Supervisor) logDecision(res *launcher.Result, action attempt.Action) {
	logger := s.logger.WithAttempt(res.Attempt)
	logger.Info("attempt decided",
		"exit_status", res.ExitStatus,
		"decision", action.Kind.String(),
		"failed_specs", action.FailedSpecs,
		"restarted_all", action.RestartedAll,
	)
	if action.Kind != attempt.Succeed {
		logger.Debug("attempt output tail",
			"output", util.TruncateString(util.LastLines(res.Output, debugTailLines), 8192),
		)
	}
}

func newRecord(res *launcher.Result, action attempt.Action) AttemptRecord {
	return AttemptRecord{
		Attempt:      res.Attempt,
		Retry:        res.Retry,
		Specs:        res.Specs,
		ExitStatus:   res.ExitStatus,
		Duration:     res.Duration,
		TimedOut:     res.TimedOut,
		Error:        errorText(res.Err),
		FailedSpecs:  action.FailedSpecs,
		RestartedAll: action.RestartedAll,
		Decision:     action.Kind.String(),
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
