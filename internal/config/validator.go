package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/flake/internal/console"
	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
	"github.com/Iron-Ham/flake/internal/parser"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "protractor.spawn.attempt_timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports ValidationErrors as errors.ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == flakeerrors.ErrInvalidConfig
}

// Upper bounds for numeric settings
const (
	maxAttemptsLimit = 100
	maxLogSizeMB     = 1000 // 1GB
	maxPathLength    = 4096
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateConsole()...)
	errors = append(errors, c.validateProtractor()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, validatePath("report.file", c.Report.File)...)

	return errors
}

// validateRetry validates the parser and attempt settings
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if !parser.IsRegistered(c.Parser) {
		errors = append(errors, ValidationError{
			Field:   "parser",
			Value:   c.Parser,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(parser.Names(), ", ")),
		})
	}

	if err := parser.ValidateExclude(c.ParserExclude); err != nil {
		errors = append(errors, ValidationError{
			Field:   "parser_exclude",
			Value:   c.ParserExclude,
			Message: err.Error(),
		})
	}

	if c.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "max_attempts",
			Value:   c.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if c.MaxAttempts > maxAttemptsLimit {
		errors = append(errors, ValidationError{
			Field:   "max_attempts",
			Value:   c.MaxAttempts,
			Message: fmt.Sprintf("exceeds maximum of %d", maxAttemptsLimit),
		})
	}

	return errors
}

// validateConsole validates colour settings
func (c *Config) validateConsole() []ValidationError {
	var errors []ValidationError

	if _, _, err := console.ParseColor(c.Color); err != nil {
		errors = append(errors, ValidationError{
			Field:   "color",
			Value:   c.Color,
			Message: fmt.Sprintf("must be one of: %s, an ANSI color number 0-255, or a hex color", strings.Join(console.ColorNames(), ", ")),
		})
	}

	return errors
}

// validateProtractor validates the runner invocation settings
func (c *Config) validateProtractor() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.NodeBin) == "" {
		errors = append(errors, ValidationError{
			Field:   "node_bin",
			Value:   c.NodeBin,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.Protractor.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "protractor.path",
			Value:   c.Protractor.Path,
			Message: "must not be empty",
		})
	}

	errors = append(errors, validatePath("protractor.path", c.Protractor.Path)...)
	errors = append(errors, validatePath("protractor.retry_config", c.Protractor.RetryConfig)...)
	errors = append(errors, validatePath("protractor.spawn.dir", c.Protractor.Spawn.Dir)...)

	for _, entry := range c.Protractor.Spawn.Env {
		key, _, ok := strings.Cut(entry, "=")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			errors = append(errors, ValidationError{
				Field:   "protractor.spawn.env",
				Value:   entry,
				Message: "entries must have the form KEY=VALUE",
			})
		}
	}

	if c.Protractor.Spawn.AttemptTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "protractor.spawn.attempt_timeout_seconds",
			Value:   c.Protractor.Spawn.AttemptTimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validatePath("logging.file", c.Logging.File)...)

	return errors
}

// validatePath rejects path values no filesystem accepts. Empty is allowed.
func validatePath(field, path string) []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}
	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
