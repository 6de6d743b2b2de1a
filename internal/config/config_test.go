package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify retry policy defaults
	if cfg.Parser != "standard" {
		t.Errorf("Parser = %q, want %q", cfg.Parser, "standard")
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if !cfg.AllowRestartAllSpecs {
		t.Error("AllowRestartAllSpecs should be true by default")
	}
	if !reflect.DeepEqual(cfg.ParserExclude, []string{"**/node_modules/**"}) {
		t.Errorf("ParserExclude = %v, want [**/node_modules/**]", cfg.ParserExclude)
	}

	// Verify runner defaults
	if cfg.NodeBin != "node" {
		t.Errorf("NodeBin = %q, want %q", cfg.NodeBin, "node")
	}
	wantPath := filepath.Join("node_modules", "protractor", "bin", "protractor")
	if cfg.Protractor.Path != wantPath {
		t.Errorf("Protractor.Path = %q, want %q", cfg.Protractor.Path, wantPath)
	}
	if cfg.Protractor.RetryConfig != "" {
		t.Errorf("Protractor.RetryConfig = %q, want empty", cfg.Protractor.RetryConfig)
	}
	if cfg.Protractor.Spawn.TTY {
		t.Error("Protractor.Spawn.TTY should be false by default")
	}
	if cfg.Protractor.Spawn.AttemptTimeout() != 0 {
		t.Errorf("AttemptTimeout() = %v, want disabled", cfg.Protractor.Spawn.AttemptTimeout())
	}

	// Verify console and logging defaults
	if cfg.Color != "magenta" {
		t.Errorf("Color = %q, want %q", cfg.Color, "magenta")
	}
	if cfg.Logging.File != "" {
		t.Errorf("Logging.File = %q, want empty", cfg.Logging.File)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if rot := cfg.Logging.Rotation(); rot.MaxSizeMB != 10 || rot.MaxBackups != 3 {
		t.Errorf("Logging.Rotation() = %+v, want 10MB x 3", rot)
	}
}

func TestSpawnConfig_AttemptTimeout(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{600, 10 * time.Minute},
	}

	for _, tt := range tests {
		cfg := SpawnConfig{AttemptTimeoutSeconds: tt.seconds}
		if got := cfg.AttemptTimeout(); got != tt.want {
			t.Errorf("AttemptTimeout() with %d seconds = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := filepath.Join("/custom/config", "flake")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "flake")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := filepath.Join("/custom/config", "flake", "config.yaml")
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}
	if cfg.MaxAttempts != 3 || cfg.Parser != "standard" {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}

	path := filepath.Join(t.TempDir(), LocalConfigFile)
	content := `parser: cucumber
max_attempts: 5
allow_restart_all_specs: false
protractor:
  args: ["conf.js", "--suite", "smoke"]
  retry_config: retry.conf.js
  spawn:
    env: ["BROWSER=firefox"]
    attempt_timeout_seconds: 900
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() failed: %v", err)
	}

	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Parser != "cucumber" || cfg.MaxAttempts != 5 || cfg.AllowRestartAllSpecs {
		t.Errorf("Load() retry policy = %q/%d/%v", cfg.Parser, cfg.MaxAttempts, cfg.AllowRestartAllSpecs)
	}
	if !reflect.DeepEqual(cfg.Protractor.Args, []string{"conf.js", "--suite", "smoke"}) {
		t.Errorf("Protractor.Args = %v", cfg.Protractor.Args)
	}
	if !reflect.DeepEqual(cfg.Protractor.Spawn.Env, []string{"BROWSER=firefox"}) {
		t.Errorf("Protractor.Spawn.Env = %v", cfg.Protractor.Spawn.Env)
	}
	if cfg.Protractor.Spawn.AttemptTimeout() != 15*time.Minute {
		t.Errorf("AttemptTimeout() = %v, want 15m", cfg.Protractor.Spawn.AttemptTimeout())
	}
	// Unset keys keep their defaults.
	if cfg.NodeBin != "node" {
		t.Errorf("NodeBin = %q, want default", cfg.NodeBin)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("max_attempts", 0)
	viper.Set("parser", "jest")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail for invalid values")
	}
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Load() error type = %T, want ValidationErrors", err)
	}
	if len(errs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(errs), errs)
	}
}
