package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/flake/internal/logging"
)

func newLogsCmd() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs [file]",
		Short: "View the debug log",
		Long: `View and filter the JSON debug log written with --log-file.

Without a file argument, reads the log configured as logging.file.

Examples:
  # Show the last 50 records
  flake logs

  # Show everything attempt 2 logged
  flake logs --attempt 2 -n 0

  # Only warnings and errors
  flake logs --level warn

  # Search messages and fields
  flake logs --grep "spawn|timed_out"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLogs,
	}

	logsCmd.Flags().IntP("tail", "n", 50, "Number of records to show (0 for all)")
	logsCmd.Flags().String("level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().Int("attempt", 0, "Only show records for this attempt")
	logsCmd.Flags().String("grep", "", "Filter records matching pattern (regex)")
	return logsCmd
}

// logEntry is one parsed JSON log record
type logEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Attempt int            `json:"attempt,omitempty"`
	Parser  string         `json:"parser,omitempty"`
	Extra   map[string]any `json:"-"`
}

// UnmarshalJSON keeps unknown fields in Extra
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"time", "level", "msg", "attempt", "parser"} {
		delete(all, known)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logFilter selects which records are shown
type logFilter struct {
	minLevel int
	attempt  int
	grep     *regexp.Regexp
}

// levelPriority orders log levels for filtering; unknown levels are -1
func levelPriority(level string) int {
	return slices.Index(logging.ValidLevels(), strings.ToUpper(level))
}

func (f logFilter) matches(entry *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}
	if f.attempt > 0 && entry.Attempt != f.attempt {
		return false
	}
	if f.grep != nil {
		searchText := entry.Msg
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}
	return true
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := viper.GetString("logging.file")
	if len(args) == 1 {
		logPath = args[0]
	}
	if logPath == "" {
		return fmt.Errorf("no debug log configured; pass a file or set logging.file")
	}

	tail, _ := cmd.Flags().GetInt("tail")
	level, _ := cmd.Flags().GetString("level")
	attempt, _ := cmd.Flags().GetInt("attempt")
	pattern, _ := cmd.Flags().GetString("grep")

	filter := logFilter{minLevel: -1, attempt: attempt}
	if level != "" {
		filter.minLevel = levelPriority(level)
		if filter.minLevel < 0 {
			return fmt.Errorf("invalid level %q: must be one of debug, info, warn, error", level)
		}
	}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.grep = re
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	out := cmd.OutOrStdout()
	lines, err := readLogEntries(file, filter, newLogFormatter(out))
	if err != nil {
		return err
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

// readLogEntries formats every record passing filter. Lines that are not
// JSON are passed through unfiltered.
func readLogEntries(r io.Reader, filter logFilter, format *logFormatter) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)

	// Output tails can make records long
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			lines = append(lines, line)
			continue
		}
		if !filter.matches(&entry) {
			continue
		}
		lines = append(lines, format.entry(&entry))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return lines, nil
}

// logFormatter renders records for the terminal. Styles degrade to plain
// text when out is not a terminal.
type logFormatter struct {
	faint  lipgloss.Style
	field  lipgloss.Style
	levels map[string]lipgloss.Style
}

func newLogFormatter(out io.Writer) *logFormatter {
	r := lipgloss.NewRenderer(out)
	return &logFormatter{
		faint: r.NewStyle().Faint(true),
		field: r.NewStyle().Foreground(lipgloss.Color("6")),
		levels: map[string]lipgloss.Style{
			logging.LevelDebug: r.NewStyle().Foreground(lipgloss.Color("8")),
			logging.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("4")),
			logging.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")),
			logging.LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

func (f *logFormatter) entry(entry *logEntry) string {
	var sb strings.Builder

	sb.WriteString(f.faint.Render("[" + entry.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")

	level := strings.ToUpper(entry.Level)
	style, ok := f.levels[level]
	if !ok {
		style = lipgloss.NewStyle()
	}
	sb.WriteString(style.Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	if entry.Attempt > 0 {
		sb.WriteString(" " + f.field.Render(fmt.Sprintf("attempt=%d", entry.Attempt)))
	}
	if entry.Parser != "" {
		sb.WriteString(" " + f.field.Render("parser="+entry.Parser))
	}

	keys := make([]string, 0, len(entry.Extra))
	for key := range entry.Extra {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		sb.WriteString(" " + f.field.Render(key+"=") + fmt.Sprintf("%v", entry.Extra[key]))
	}

	return sb.String()
}
