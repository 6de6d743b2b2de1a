// Package logging provides the structured debug log for flake runs.
//
// This package wraps Go's log/slog to write JSON records describing each
// attempt: the argument list handed to the runner, its exit status, which
// specs the output parser detected and what the supervisor decided next.
// It is separate from the console, which shows humans the runner output
// and short progress notices.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Child loggers tagged with the attempt number or parser name
//   - Size-based rotation with numbered backups
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(".flake/debug.log", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithAttempt(2).Info("runner exited", "exit_status", 1)
//
// An empty file path yields a logger that discards everything; tests use
// [NopLogger] directly.
package logging
