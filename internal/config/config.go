package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/flake/internal/console"
	"github.com/Iron-Ham/flake/internal/logging"
	"github.com/Iron-Ham/flake/internal/parser"
)

// LocalConfigFile is the project-level config file looked up in the
// working directory before the user config.
const LocalConfigFile = ".flake.yaml"

// Config represents the complete flake configuration
type Config struct {
	// Parser selects the output parser strategy (default: "standard")
	Parser string `mapstructure:"parser"`
	// ParserExclude lists glob patterns of spec paths that are never re-run
	ParserExclude []string `mapstructure:"parser_exclude"`
	// MaxAttempts is the total number of runner invocations allowed (default: 3)
	MaxAttempts int `mapstructure:"max_attempts"`
	// AllowRestartAllSpecs re-runs the previous attempt's specs when a failed
	// attempt names no failed specs (default: true)
	AllowRestartAllSpecs bool `mapstructure:"allow_restart_all_specs"`
	// NodeBin is the executable spawned for every attempt (default: "node")
	NodeBin string `mapstructure:"node_bin"`
	// Color is the console colour: a name, 0-255, a hex value, or "none"
	Color string `mapstructure:"color"`
	// Verbose shows debug messages on the console
	Verbose    bool             `mapstructure:"verbose"`
	Protractor ProtractorConfig `mapstructure:"protractor"`
	Report     ReportConfig     `mapstructure:"report"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ProtractorConfig controls how the runner is invoked
type ProtractorConfig struct {
	// Path is the runner script passed as the first argument
	Path string `mapstructure:"path"`
	// Args are base runner arguments, e.g. the runner config file
	Args []string `mapstructure:"args"`
	// RetryConfig is a runner config file appended to retry attempts
	RetryConfig string      `mapstructure:"retry_config"`
	Spawn       SpawnConfig `mapstructure:"spawn"`
}

// SpawnConfig controls the runner process
type SpawnConfig struct {
	// Dir is the working directory; empty uses the current directory
	Dir string `mapstructure:"dir"`
	// Env holds KEY=VALUE entries added to the inherited environment
	Env []string `mapstructure:"env"`
	// TTY runs the runner under a pseudo-terminal
	TTY bool `mapstructure:"tty"`
	// AttemptTimeoutSeconds stops an attempt that runs longer (0 = disabled)
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds"`
}

// ReportConfig controls the attempt report
type ReportConfig struct {
	// File is where the YAML report is written; empty disables the report
	File string `mapstructure:"file"`
}

// LoggingConfig controls the structured debug log
type LoggingConfig struct {
	// File is the debug log path; empty disables debug logging
	File string `mapstructure:"file"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// AttemptTimeout returns the attempt timeout as a time.Duration (0 means disabled)
func (s *SpawnConfig) AttemptTimeout() time.Duration {
	return time.Duration(s.AttemptTimeoutSeconds) * time.Second
}

// Rotation returns the rotation settings for the debug log
func (l *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	rotation := logging.DefaultRotationConfig()
	return &Config{
		Parser:               parser.DefaultName,
		ParserExclude:        parser.DefaultExclude(),
		MaxAttempts:          3,
		AllowRestartAllSpecs: true,
		NodeBin:              "node",
		Color:                console.DefaultColor,
		Protractor: ProtractorConfig{
			Path: filepath.Join("node_modules", "protractor", "bin", "protractor"),
			Args: []string{},
			Spawn: SpawnConfig{
				Env: []string{},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Retry policy defaults
	viper.SetDefault("parser", defaults.Parser)
	viper.SetDefault("parser_exclude", defaults.ParserExclude)
	viper.SetDefault("max_attempts", defaults.MaxAttempts)
	viper.SetDefault("allow_restart_all_specs", defaults.AllowRestartAllSpecs)

	// Console defaults
	viper.SetDefault("node_bin", defaults.NodeBin)
	viper.SetDefault("color", defaults.Color)
	viper.SetDefault("verbose", defaults.Verbose)

	// Runner defaults
	viper.SetDefault("protractor.path", defaults.Protractor.Path)
	viper.SetDefault("protractor.args", defaults.Protractor.Args)
	viper.SetDefault("protractor.retry_config", defaults.Protractor.RetryConfig)
	viper.SetDefault("protractor.spawn.dir", defaults.Protractor.Spawn.Dir)
	viper.SetDefault("protractor.spawn.env", defaults.Protractor.Spawn.Env)
	viper.SetDefault("protractor.spawn.tty", defaults.Protractor.Spawn.TTY)
	viper.SetDefault("protractor.spawn.attempt_timeout_seconds", defaults.Protractor.Spawn.AttemptTimeoutSeconds)

	// Report defaults
	viper.SetDefault("report.file", defaults.Report.File)

	// Logging defaults
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "flake")
	}
	// Fall back to ~/.config/flake
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flake"
	}
	return filepath.Join(home, ".config", "flake")
}

// ConfigFile returns the path to the user config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
