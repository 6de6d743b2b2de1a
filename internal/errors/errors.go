// Package errors provides centralized error definitions and error handling utilities
// for flake. It defines sentinel errors, domain error types with context
// builders, and classification helpers used by the CLI to pick exit codes.
//
// # Error Types
//
// Domain errors describe failures of flake itself, never of the wrapped test run:
//   - SpawnError: the runner process could not be started at all
//   - ConfigError: configuration is invalid or names an unknown parser
//   - TimeoutError: an attempt exceeded the configured attempt timeout
//
// A runner that starts and exits non-zero is not an error. It is reported
// through the supervisor result so that a failed test run is never conflated
// with a failure to launch one.
//
// # Usage
//
//	err := errors.NewSpawnError("node", cause).WithAttempt(2)
//
//	if errors.Is(err, errors.ErrSpawnFailed) { ... }
//
//	var spawnErr *errors.SpawnError
//	if errors.As(err, &spawnErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrSpawnFailed indicates that the runner process could not be started.
	ErrSpawnFailed = New("runner failed to start")
	// ErrUnknownParser indicates that no output parser is registered under a name.
	ErrUnknownParser = New("unknown parser")
	// ErrInvalidConfig indicates that configuration validation failed.
	ErrInvalidConfig = New("invalid configuration")
	// ErrTimeout indicates that an attempt exceeded its timeout.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that the run was canceled before it finished.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// FlakeError is the interface implemented by every flake domain error.
type FlakeError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
}

type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// SpawnError reports that the runner executable could not be started.
//
// Example:
//
//	err := errors.NewSpawnError("node", exec.ErrNotFound).WithAttempt(1)
//	fmt.Println(err) // "spawn error [command=node, attempt=1]: runner failed to start: executable file not found in $PATH"
type SpawnError struct {
	baseError
	Command string
	Attempt int
}

// NewSpawnError creates a new SpawnError for the given command.
func NewSpawnError(command string, cause error) *SpawnError {
	return &SpawnError{
		baseError: baseError{
			message: ErrSpawnFailed.Error(),
			cause:   cause,
			severity: SeverityCritical,
		},
		Command: command,
	}
}

// WithAttempt records which attempt failed to spawn.
func (e *SpawnError) WithAttempt(attempt int) *SpawnError {
	e.Attempt = attempt
	return e
}

// Error returns the formatted error message.
func (e *SpawnError) Error() string {
	var parts []string
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%s", e.Command))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "spawn error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("spawn error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SpawnError) Is(target error) bool {
	if _, ok := target.(*SpawnError); ok {
		return true
	}
	if target == ErrSpawnFailed {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigError represents invalid configuration.
//
// Example:
//
//	err := errors.NewConfigError("no parser registered", errors.ErrUnknownParser).WithKey("parser")
type ConfigError struct {
	baseError
	Key string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message: message,
			cause:   cause,
			severity: SeverityError,
		},
	}
}

// WithKey adds the offending configuration key.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	prefix := "config error"
	if e.Key != "" {
		prefix = fmt.Sprintf("config error [key=%s]", e.Key)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	if target == ErrInvalidConfig {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an attempt that ran past its deadline.
//
// Example:
//
//	err := errors.NewTimeoutError("attempt 2", 10*time.Minute)
//	fmt.Println(err) // "timeout error: attempt 2 (timeout: 10m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:  operation,
			severity: SeverityWarning,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// GetSeverity returns the severity level of the error. Cancellation is a
// warning; errors that don't implement FlakeError are SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var flakeErr FlakeError
	if As(err, &flakeErr) {
		return flakeErr.Severity()
	}
	if Is(err, ErrCanceled) {
		return SeverityWarning
	}
	return SeverityError
}
