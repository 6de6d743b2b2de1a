package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
)

func readEntries(t *testing.T, content string) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line is not valid JSON: %v (%q)", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file at path", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "nested", "debug.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("discards when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.closer != nil {
			t.Error("expected no closer when path is empty")
		}
		logger.Info("dropped")
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug, nil)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	entries := readEntries(t, buf.String())
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}

	expectedLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	expectedMsgs := []string{"debug message", "info message", "warn message", "error message"}

	for i, entry := range entries {
		if entry["level"] != expectedLevels[i] {
			t.Errorf("line %d: expected level %s, got %v", i, expectedLevels[i], entry["level"])
		}
		if entry["msg"] != expectedMsgs[i] {
			t.Errorf("line %d: expected msg %s, got %v", i, expectedMsgs[i], entry["msg"])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: expected key=value, got key=%v", i, entry["key"])
		}
	}
}

func TestLogError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"spawn failure", flakeerrors.NewSpawnError("node", nil), "ERROR"},
		{"config error", flakeerrors.NewConfigError("bad", nil), "ERROR"},
		{"timeout", flakeerrors.NewTimeoutError("test attempt 1", time.Second), "WARN"},
		{"canceled", fmt.Errorf("%w: %w", flakeerrors.ErrCanceled, context.Canceled), "WARN"},
		{"plain", fmt.Errorf("boom"), "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, LevelDebug, nil)
			logger.WithAttempt(2).LogError("attempt failed", tt.err, "key", "value")

			entries := readEntries(t, buf.String())
			if len(entries) != 1 {
				t.Fatalf("expected 1 log line, got %d", len(entries))
			}
			entry := entries[0]
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if entry["error"] != tt.err.Error() {
				t.Errorf("error = %v, want %q", entry["error"], tt.err.Error())
			}
			if entry["key"] != "value" {
				t.Errorf("key = %v, want value", entry["key"])
			}
			if entry["attempt"] != float64(2) {
				t.Errorf("attempt = %v, want 2", entry["attempt"])
			}
		})
	}

	t.Run("nil error is not logged", func(t *testing.T) {
		var buf bytes.Buffer
		NewWriterLogger(&buf, LevelDebug, nil).LogError("nothing", nil)
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{"warn", 2},
		{LevelError, 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, tt.level, nil)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			if got := len(readEntries(t, buf.String())); got != tt.want {
				t.Errorf("level %s: got %d lines, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo, nil)

	logger.WithParser("standard").WithAttempt(3).With("run", "r1").Info("decided", "action", "retry")

	entries := readEntries(t, buf.String())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["parser"] != "standard" {
		t.Errorf("expected parser=standard, got %v", entry["parser"])
	}
	// JSON numbers decode as float64
	if entry["attempt"] != float64(3) {
		t.Errorf("expected attempt=3, got %v", entry["attempt"])
	}
	if entry["run"] != "r1" {
		t.Errorf("expected run=r1, got %v", entry["run"])
	}
	if entry["action"] != "retry" {
		t.Errorf("expected action=retry, got %v", entry["action"])
	}
}

func TestChildDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo, nil)

	_ = logger.WithAttempt(2)
	logger.Info("parent")

	entries := readEntries(t, buf.String())
	if _, ok := entries[0]["attempt"]; ok {
		t.Error("parent logger should not carry child attributes")
	}
}

func TestWithIgnoresNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo, nil)

	if logger.With() != logger {
		t.Error("With() with no args should return the same logger")
	}

	logger.With(42, "ignored", "ok", true).Info("msg")

	entry := readEntries(t, buf.String())[0]
	if entry["ok"] != true {
		t.Errorf("expected ok=true, got %v", entry["ok"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.WithAttempt(1).Error("nothing")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 || levels[0] != LevelDebug || levels[3] != LevelError {
		t.Errorf("ValidLevels() = %v", levels)
	}
}
