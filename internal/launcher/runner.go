package launcher

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
)

// DefaultGracePeriod is how long a canceled runner gets to exit after being
// interrupted before it is killed.
const DefaultGracePeriod = 10 * time.Second

// Command is a fully resolved process to start.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is the complete environment. Nil inherits the current process's.
	Env []string
}

// ProcessRunner starts a command, streams its combined stdout and stderr to
// out, and waits for it.
//
// Implementations must return only after the process has exited and every
// byte it wrote has been delivered to out. A command that cannot be started
// yields a *errors.SpawnError; a command that ran and failed yields its exit
// status and a nil error.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command, out io.Writer) (int, error)
}

// ExecRunner runs commands with plain pipes.
type ExecRunner struct {
	// GracePeriod bounds the wait after an interrupt on cancellation.
	// Zero uses DefaultGracePeriod.
	GracePeriod time.Duration
}

// NewExecRunner creates an ExecRunner with the default grace period.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{GracePeriod: DefaultGracePeriod}
}

// Run implements ProcessRunner.
//
// Stdout and stderr share one writer, so exec multiplexes both streams onto
// a single pipe and chunks reach out in the order the process wrote them.
func (r *ExecRunner) Run(ctx context.Context, c Command, out io.Writer) (int, error) {
	cmd := newCommand(ctx, c, r.GracePeriod)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return -1, flakeerrors.NewSpawnError(c.Path, err)
	}
	// Wait returns after the pipe copy completes.
	return exitStatus(cmd.ProcessState, cmd.Wait())
}

// newCommand builds an exec.Cmd that is interrupted, not killed, when ctx
// ends, and killed if it is still alive after grace.
func newCommand(ctx context.Context, c Command, grace time.Duration) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = gracePeriod(grace)
	return cmd
}

func gracePeriod(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultGracePeriod
	}
	return d
}

// exitStatus converts the result of Wait into a shell-style status. A process
// killed by a signal reports 128 plus the signal number.
func exitStatus(state *os.ProcessState, waitErr error) (int, error) {
	if state == nil {
		if waitErr == nil {
			waitErr = flakeerrors.New("process state unavailable")
		}
		return -1, waitErr
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return state.ExitCode(), nil
}
