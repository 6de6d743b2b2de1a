package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/flake/internal/parser"
)

func newParsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parsers",
		Short: "List the available output parsers",
		Long: `List the output parsers that can be selected with --parser.

A parser reads the combined output of a failed attempt and returns the
spec files to re-run.`,
		Args: cobra.NoArgs,
		RunE: runParsers,
	}
}

func runParsers(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	for _, name := range parser.Names() {
		if name == parser.DefaultName {
			fmt.Fprintf(out, "%s (default)\n", name)
			continue
		}
		fmt.Fprintln(out, name)
	}
	return nil
}
