package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/flake/internal/config"
	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
	"github.com/Iron-Ham/flake/internal/parser"
)

// NewRootCmd builds the flake command tree. Flags are bound to the global
// viper instance, so callers building more than one tree should reset viper
// in between.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flake [flags] [-- runner args...]",
		Short: "Re-run failed protractor specs until they pass",
		Long: `flake runs protractor, reads which spec files failed from its output,
and re-runs protractor on just those specs, up to a maximum number of
attempts.

Arguments after "--" are passed to protractor on every attempt. Each
attempt also receives --params.flake.iteration <N>, and retries receive
--params.flake.retry true and --specs <failed specs>.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
		RunE:              runFlake,
	}

	defaults := config.Default()

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./"+config.LocalConfigFile+", then $HOME/.config/flake/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	flags := rootCmd.Flags()
	flags.String("parser", defaults.Parser, "output parser: "+strings.Join(parser.Names(), ", "))
	flags.Int("max-attempts", defaults.MaxAttempts, "total protractor runs allowed")
	flags.Bool("allow-restart-all-specs", defaults.AllowRestartAllSpecs, "re-run the previous specs when no failed specs are found")
	flags.String("node-bin", defaults.NodeBin, "executable used to run protractor")
	flags.String("protractor-path", defaults.Protractor.Path, "path to the protractor launcher script")
	flags.String("protractor-retry-config", defaults.Protractor.RetryConfig, "protractor config file passed on retries")
	flags.String("dir", defaults.Protractor.Spawn.Dir, "working directory for protractor")
	flags.StringArray("env", nil, "extra KEY=VALUE environment for protractor (repeatable)")
	flags.Bool("tty", defaults.Protractor.Spawn.TTY, "run protractor under a pseudo-terminal")
	flags.Int("attempt-timeout", defaults.Protractor.Spawn.AttemptTimeoutSeconds, "stop an attempt after this many seconds (0 disables)")
	flags.String("color", defaults.Color, "console color: a name, 0-255, a hex value, or none")
	flags.BoolP("verbose", "v", defaults.Verbose, "show debug messages")
	flags.String("report", defaults.Report.File, "write a YAML attempt report to this file")
	flags.String("log-file", defaults.Logging.File, "write a JSON debug log to this file")
	flags.String("log-level", defaults.Logging.Level, "debug log level: "+strings.Join(config.ValidLogLevels(), ", "))

	bindFlags(flags, map[string]string{
		"parser":                  "parser",
		"max-attempts":            "max_attempts",
		"allow-restart-all-specs": "allow_restart_all_specs",
		"node-bin":                "node_bin",
		"protractor-path":         "protractor.path",
		"protractor-retry-config": "protractor.retry_config",
		"dir":                     "protractor.spawn.dir",
		"env":                     "protractor.spawn.env",
		"tty":                     "protractor.spawn.tty",
		"attempt-timeout":         "protractor.spawn.attempt_timeout_seconds",
		"color":                   "color",
		"verbose":                 "verbose",
		"report":                  "report.file",
		"log-file":                "logging.file",
		"log-level":               "logging.level",
	})

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return flakeerrors.NewConfigError("invalid flag", err)
	})

	rootCmd.AddCommand(newParsersCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newLogsCmd())

	return rootCmd
}

// Execute runs the root command and prints any error worth showing.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil && !isSilent(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	viper.SetEnvPrefix("FLAKE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FLAKE_PROTRACTOR_RETRY_CONFIG for protractor.retry_config
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfgFile := viper.GetString("config")
	if cfgFile == "" {
		if _, err := os.Stat(config.LocalConfigFile); err == nil {
			cfgFile = config.LocalConfigFile
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return flakeerrors.NewConfigError("failed to read config file", err).WithKey("config")
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(config.ConfigDir())

	// A missing user config is fine; a broken one is not
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !flakeerrors.As(err, &notFound) {
			return flakeerrors.NewConfigError("failed to read config file", err).WithKey("config")
		}
	}
	return nil
}
