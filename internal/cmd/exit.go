package cmd

import (
	"fmt"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
)

// Process exit codes for failures of flake itself. A failed test run exits
// with the runner's own status instead.
const (
	ExitGeneric      = 1
	ExitConfigError  = 2
	ExitSpawnFailure = 127
	ExitCanceled     = 130
)

// ExitError carries a process exit code. An ExitError without Err is
// silent: the runner already printed everything worth seeing.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if flakeerrors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case flakeerrors.Is(err, flakeerrors.ErrCanceled):
		return ExitCanceled
	case flakeerrors.Is(err, flakeerrors.ErrSpawnFailed):
		return ExitSpawnFailure
	case flakeerrors.Is(err, flakeerrors.ErrInvalidConfig),
		flakeerrors.Is(err, flakeerrors.ErrUnknownParser):
		return ExitConfigError
	default:
		return ExitGeneric
	}
}

// isSilent reports whether err should be returned without printing.
func isSilent(err error) bool {
	var exitErr *ExitError
	return flakeerrors.As(err, &exitErr) && exitErr.Err == nil
}
