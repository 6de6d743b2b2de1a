package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/flake/internal/supervisor"
)

func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Summarize a report written by --report",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	reportCmd.Flags().Bool("tail", false, "also print the tail of the final runner output")
	return reportCmd
}

func runReport(cmd *cobra.Command, args []string) error {
	report, err := supervisor.ReadReport(args[0])
	if err != nil {
		return err
	}
	showTail, _ := cmd.Flags().GetBool("tail")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", describeOutcome(report.Outcome, report.ExitStatus))
	fmt.Fprintf(out, "Parser: %s\n", report.Parser)
	fmt.Fprintf(out, "Attempts: %d of %d\n", len(report.Attempts), report.MaxAttempts)
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Finished: %s\n", report.FinishedAt.Format(time.RFC3339))
	}
	if report.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", report.Error)
	}

	for _, rec := range report.Attempts {
		fmt.Fprintf(out, "\n#%d  exit %d  %s  %s\n",
			rec.Attempt, rec.ExitStatus, rec.Duration.Round(time.Millisecond), rec.Decision)
		if rec.Error != "" {
			fmt.Fprintf(out, "    %s\n", rec.Error)
		} else if rec.TimedOut {
			fmt.Fprintln(out, "    timed out")
		}
		if rec.Retry && len(rec.Specs) > 0 {
			fmt.Fprintf(out, "    ran: %s\n", strings.Join(rec.Specs, ", "))
		}
		if rec.RestartedAll {
			fmt.Fprintln(out, "    no failed specs found, re-running previous specs")
		}
		for _, spec := range rec.FailedSpecs {
			fmt.Fprintf(out, "    failed: %s\n", spec)
		}
	}

	if showTail && report.OutputTail != "" {
		fmt.Fprintf(out, "\nFinal output:\n%s", report.OutputTail)
		if !strings.HasSuffix(report.OutputTail, "\n") {
			fmt.Fprintln(out)
		}
	}
	return nil
}

// describeOutcome phrases a report outcome for humans.
func describeOutcome(outcome string, status int) string {
	switch outcome {
	case supervisor.Succeeded.String():
		return "passed"
	case supervisor.Failed.String():
		return fmt.Sprintf("failed with exit status %d after exhausting attempts", status)
	case supervisor.Abandoned.String():
		return fmt.Sprintf("failed with exit status %d; no failed specs could be identified", status)
	default:
		return "did not complete"
	}
}
