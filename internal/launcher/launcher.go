package launcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
	"github.com/Iron-Ham/flake/internal/logging"
)

// TimeoutExitStatus is reported for an attempt stopped by the attempt
// timeout, matching coreutils timeout(1).
const TimeoutExitStatus = 124

// Options configures how the runner is invoked. It is read-only once the
// Launcher is created.
type Options struct {
	// NodeBin is the executable spawned for every attempt.
	NodeBin string
	// RunnerPath is the runner script, passed as the first argument.
	RunnerPath string
	// RunnerArgs are the user's base runner arguments.
	RunnerArgs []string
	// RetryConfig is a runner config file appended to retry attempts.
	RetryConfig string
	// Dir is the working directory. Empty uses the current directory.
	Dir string
	// Env holds KEY=VALUE entries added to the inherited environment. Later
	// entries win over inherited ones.
	Env []string
	// AttemptTimeout stops an attempt that runs longer. Zero disables it.
	AttemptTimeout time.Duration
}

// Sink receives runner output verbatim as it arrives.
type Sink interface {
	Passthrough(text string)
}

// Result is the outcome of one runner invocation.
type Result struct {
	Attempt    int
	Retry      bool
	Args       []string
	ExitStatus int
	// Output is stdout and stderr concatenated in arrival order.
	Output string
	// Specs is the spec filter the attempt ran with.
	Specs    []string
	Duration time.Duration
	// TimedOut is set when the attempt timeout stopped the runner.
	TimedOut bool
	// Err is a *errors.TimeoutError when TimedOut is set, nil otherwise.
	Err error
}

// Launcher builds arguments for an attempt and runs it to completion.
type Launcher struct {
	opts   Options
	runner ProcessRunner
	sink   Sink
	logger *logging.Logger
}

// New creates a Launcher. A nil logger disables debug logging.
func New(opts Options, runner ProcessRunner, sink Sink, logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts.RunnerArgs = slices.Clone(opts.RunnerArgs)
	opts.Env = slices.Clone(opts.Env)
	return &Launcher{
		opts:   opts,
		runner: runner,
		sink:   sink,
		logger: logger,
	}
}

// Options returns the launcher's options.
func (l *Launcher) Options() Options {
	opts := l.opts
	opts.RunnerArgs = slices.Clone(l.opts.RunnerArgs)
	opts.Env = slices.Clone(l.opts.Env)
	return opts
}

// Launch runs one attempt and blocks until the runner has exited and its
// output is fully captured.
//
// A runner that cannot be started returns a *errors.SpawnError. When ctx is
// canceled the error wraps errors.ErrCanceled. A runner exiting non-zero is
// not an error; its status is in the Result.
func (l *Launcher) Launch(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", flakeerrors.ErrCanceled, err)
	}

	args := BuildArgs(l.opts, inv)
	logger := l.logger.WithAttempt(inv.Attempt)
	logger.Info("launching runner",
		"command", l.opts.NodeBin,
		"args", args,
		"retry", inv.Retry,
		"spec_count", len(inv.Specs),
	)

	runCtx := ctx
	if l.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.opts.AttemptTimeout)
		defer cancel()
	}

	capture := &captureWriter{sink: l.sink}
	start := time.Now()
	status, err := l.runner.Run(runCtx, Command{
		Path: l.opts.NodeBin,
		Args: args,
		Dir:  l.opts.Dir,
		Env:  l.environ(),
	}, capture)
	duration := time.Since(start)

	if err != nil {
		var spawnErr *flakeerrors.SpawnError
		if flakeerrors.As(err, &spawnErr) {
			spawnErr.WithAttempt(inv.Attempt)
		}
		logger.LogError("runner failed to start", err)
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("runner interrupted", "exit_status", status)
		return nil, fmt.Errorf("%w: %w", flakeerrors.ErrCanceled, ctxErr)
	}

	result := &Result{
		Attempt:    inv.Attempt,
		Retry:      inv.Retry,
		Args:       args,
		ExitStatus: status,
		Output:     capture.String(),
		Specs:      slices.Clone(inv.Specs),
		Duration:   duration,
	}
	if runCtx.Err() != nil {
		result.TimedOut = true
		result.ExitStatus = TimeoutExitStatus
		result.Err = flakeerrors.NewTimeoutError(fmt.Sprintf("test attempt %d", inv.Attempt), l.opts.AttemptTimeout).
			WithCause(runCtx.Err())
		logger.LogError("attempt timed out", result.Err, "exit_status", status)
	}

	logger.Info("runner exited",
		"exit_status", result.ExitStatus,
		"duration_ms", duration.Milliseconds(),
		"output_bytes", len(result.Output),
		"timed_out", result.TimedOut,
	)
	return result, nil
}

// environ returns nil to inherit the environment unchanged, or the current
// environment followed by the configured entries.
func (l *Launcher) environ() []string {
	if len(l.opts.Env) == 0 {
		return nil
	}
	return append(os.Environ(), l.opts.Env...)
}

// captureWriter forwards each chunk to the sink and accumulates it.
type captureWriter struct {
	mu   sync.Mutex
	sink Sink
	buf  bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink != nil {
		w.sink.Passthrough(string(p))
	}
	return w.buf.Write(p)
}

func (w *captureWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
