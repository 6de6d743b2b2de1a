package launcher

import (
	"context"
	"io"
	"time"

	"github.com/creack/pty"
	"github.com/sourcegraph/conc"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
)

// PtyRunner runs commands attached to a pseudo-terminal, so runners that
// only colour or animate their output on a TTY behave as they would
// interactively. Stdout and stderr are both the terminal, so the captured
// output is already interleaved in write order.
type PtyRunner struct {
	// Cols and Rows set the terminal size. Zero leaves the pty default.
	Cols uint16
	Rows uint16
	// GracePeriod bounds the wait after an interrupt on cancellation.
	GracePeriod time.Duration
}

// NewPtyRunner creates a PtyRunner with the given terminal size.
func NewPtyRunner(cols, rows uint16) *PtyRunner {
	return &PtyRunner{Cols: cols, Rows: rows, GracePeriod: DefaultGracePeriod}
}

// Run implements ProcessRunner.
func (r *PtyRunner) Run(ctx context.Context, c Command, out io.Writer) (int, error) {
	cmd := newCommand(ctx, c, r.GracePeriod)

	var size *pty.Winsize
	if r.Cols > 0 && r.Rows > 0 {
		size = &pty.Winsize{Cols: r.Cols, Rows: r.Rows}
	}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return -1, flakeerrors.NewSpawnError(c.Path, err)
	}
	defer func() { _ = ptmx.Close() }()

	var wg conc.WaitGroup
	wg.Go(func() {
		// Reading the master fails with EIO once the child side is closed,
		// which is how the stream ends on Linux.
		_, _ = io.Copy(out, ptmx)
	})

	waitErr := cmd.Wait()

	// A grandchild can keep the terminal open after the runner exits.
	drain := time.AfterFunc(gracePeriod(r.GracePeriod), func() { _ = ptmx.Close() })
	wg.Wait()
	drain.Stop()

	return exitStatus(cmd.ProcessState, waitErr)
}
