package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/flake/internal/util"
)

// reportTailLines is how much of the final output a report keeps.
const reportTailLines = 50

// Report is the on-disk summary of a supervised run.
type Report struct {
	Outcome     string          `yaml:"outcome"`
	ExitStatus  int             `yaml:"exit_status"`
	Parser      string          `yaml:"parser"`
	MaxAttempts int             `yaml:"max_attempts"`
	Attempts    []AttemptRecord `yaml:"attempts"`
	OutputTail  string          `yaml:"output_tail,omitempty"`
	Error       string          `yaml:"error,omitempty"`
	FinishedAt  time.Time       `yaml:"finished_at"`
}

// NewReport summarizes a result. runErr is the error returned by Run, if any.
func NewReport(result *Result, runErr error) *Report {
	r := &Report{
		Outcome:     result.Outcome.String(),
		ExitStatus:  result.ExitStatus,
		Parser:      result.Parser,
		MaxAttempts: result.MaxAttempts,
		Attempts:    result.History,
		OutputTail:  util.LastLines(result.Output, reportTailLines),
		FinishedAt:  time.Now().UTC(),
	}
	if r.Attempts == nil {
		r.Attempts = []AttemptRecord{}
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// WriteReport writes the report as YAML to path, creating parent
// directories as needed.
func WriteReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}
