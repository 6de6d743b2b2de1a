package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Logger provides structured debug logging for a supervised run.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	closer io.Closer
	attrs  []slog.Attr // Persistent attributes (attempt, parser)
}

// NewLogger creates a Logger that writes JSON records to logFile, rotating
// the file according to rotation.
//
// If logFile is empty the returned Logger discards everything. flake never
// logs structured records to stdout or stderr because those streams carry
// the runner's own output.
func NewLogger(logFile string, level string, rotation RotationConfig) (*Logger, error) {
	if logFile == "" {
		return NopLogger(), nil
	}

	writer, err := NewRotatingWriter(logFile, rotation)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}

	return NewWriterLogger(writer, level, writer), nil
}

// NewWriterLogger creates a Logger writing JSON records to w. closer, when
// non-nil, is closed by Close.
func NewWriterLogger(w io.Writer, level string, closer io.Closer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{
		logger: slog.New(handler),
		closer: closer,
		attrs:  make([]slog.Attr, 0),
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithAttempt returns a child Logger tagging every record with the attempt number.
func (l *Logger) WithAttempt(attempt int) *Logger {
	return l.withAttr(slog.Int("attempt", attempt))
}

// WithParser returns a child Logger tagging every record with the parser name.
func (l *Logger) WithParser(name string) *Logger {
	return l.withAttr(slog.String("parser", name))
}

// With returns a new Logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	newAttrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	newAttrs = append(newAttrs, l.attrs...)

	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		newAttrs = append(newAttrs, slog.Any(key, args[i+1]))
	}

	return &Logger{
		logger: l.logger,
		closer: l.closer,
		attrs:  newAttrs,
	}
}

func (l *Logger) withAttr(attr slog.Attr) *Logger {
	newAttrs := make([]slog.Attr, len(l.attrs)+1)
	copy(newAttrs, l.attrs)
	newAttrs[len(l.attrs)] = attr

	return &Logger{
		logger: l.logger,
		closer: l.closer,
		attrs:  newAttrs,
	}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

// LogError logs err under msg at the level matching its severity: warnings
// such as timeouts and cancellation at WARN, everything else at ERROR.
func (l *Logger) LogError(msg string, err error, args ...any) {
	if err == nil {
		return
	}
	level := slog.LevelError
	switch flakeerrors.GetSeverity(err) {
	case flakeerrors.SeverityDebug:
		level = slog.LevelDebug
	case flakeerrors.SeverityWarning:
		level = slog.LevelWarn
	}
	l.log(level, msg, append(args[:len(args):len(args)], "error", err.Error())...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	allArgs := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr.Key, attr.Value.Any())
	}
	allArgs = append(allArgs, args...)

	l.logger.Log(context.Background(), level, msg, allArgs...)
}

// Close closes the underlying log file, if any. Child loggers share the
// file, so only the root Logger should be closed.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return &Logger{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		attrs:  make([]slog.Attr, 0),
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
