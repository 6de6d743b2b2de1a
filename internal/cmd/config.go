package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/flake/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or create flake configuration",
		Long: `View or create flake configuration.

Without arguments, displays the current configuration.
Use subcommands to create a config file or see where config is read from.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file with default values",
		Long: `Create a commented config file with default values.

By default the file is written to the user config directory. With --local
it is written to ./` + config.LocalConfigFile + ` instead.`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}
	configInitCmd.Flags().Bool("local", false, "write ./"+config.LocalConfigFile+" instead of the user config")

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show config file locations",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	// Validate before printing so a broken config is reported, not shown
	if _, err := loadConfig(); err != nil {
		return err
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	settings := viper.AllSettings()
	delete(settings, "config")

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	local, _ := cmd.Flags().GetBool("local")

	configFile := config.ConfigFile()
	if local {
		configFile = config.LocalConfigFile
	}

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if dir := filepath.Dir(configFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Active config: (none - using defaults)\n")
	}

	fmt.Fprintln(out, "\nSearch order:")
	fmt.Fprintln(out, "  1. --config flag")
	fmt.Fprintf(out, "  2. ./%s\n", config.LocalConfigFile)
	fmt.Fprintf(out, "  3. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "\nEnvironment variables: FLAKE_* (e.g., FLAKE_MAX_ATTEMPTS, FLAKE_PROTRACTOR_RETRY_CONFIG)")

	return nil
}

// configTemplate is written by "flake config init". Values match config.Default.
const configTemplate = `# flake configuration

# Output parser used to find failed specs (see "flake parsers")
parser: standard

# Spec paths matching these globs are never re-run
parser_exclude:
  - "**/node_modules/**"

# Total number of protractor runs, including the first
max_attempts: 3

# Re-run the previous specs when a failed run names no failed specs
allow_restart_all_specs: true

# Executable used to run protractor
node_bin: node

# Console color: a name, 0-255, a hex value, or none
color: magenta

# Show debug messages on the console
verbose: false

protractor:
  # Protractor launcher script
  path: node_modules/protractor/bin/protractor
  # Arguments passed on every attempt, usually the protractor config file
  args: []
  # Protractor config file appended on retries
  retry_config: ""
  spawn:
    # Working directory (empty uses the current directory)
    dir: ""
    # Extra environment entries, KEY=VALUE
    env: []
    # Run protractor under a pseudo-terminal
    tty: false
    # Stop an attempt after this many seconds (0 disables)
    attempt_timeout_seconds: 0

report:
  # Write a YAML attempt report here (empty disables it)
  file: ""

logging:
  # JSON debug log (empty disables it)
  file: ""
  level: info
  max_size_mb: 10
  max_backups: 3
`
