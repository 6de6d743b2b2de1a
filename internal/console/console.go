// Package console is flake's user-facing output sink.
//
// It carries two kinds of text to the terminal: flake's own leveled
// messages, styled with lipgloss in the configured colour, and the runner's
// output, passed through byte for byte so reporters render exactly as they
// would without flake in front of them.
package console

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Level is the severity of a console message.
type Level string

// Console levels.
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ColorNone disables styling.
const ColorNone = "none"

// DefaultColor is the info colour when none is configured.
const DefaultColor = "magenta"

// namedColors maps colour names to ANSI colour numbers.
var namedColors = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
	"gray":    "8",
	"grey":    "8",
}

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Options configures a Console.
type Options struct {
	// Color is the info colour: a name, an ANSI number 0-255, a hex value,
	// or "none".
	Color string
	// Verbose shows debug messages.
	Verbose bool
	// ForceColor styles output even when it is not a terminal.
	ForceColor bool
}

// Console writes leveled messages and runner output to one writer.
// It is safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	styled  bool
	verbose bool
	styles  map[Level]lipgloss.Style
}

// New creates a Console writing to out.
func New(out io.Writer, opts Options) (*Console, error) {
	color, enabled, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}

	styled := enabled && (opts.ForceColor || IsTerminal(out))
	renderer := lipgloss.NewRenderer(out)
	if styled && opts.ForceColor {
		renderer.SetColorProfile(termenv.ANSI256)
	}

	c := &Console{
		out:     out,
		styled:  styled,
		verbose: opts.Verbose,
		styles: map[Level]lipgloss.Style{
			LevelDebug: renderer.NewStyle().Faint(true),
			LevelInfo:  renderer.NewStyle().Foreground(color),
			LevelWarn:  renderer.NewStyle().Foreground(lipgloss.Color("3")),
			LevelError: renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
	return c, nil
}

// Discard returns a Console that writes nothing.
func Discard() *Console {
	c, _ := New(io.Discard, Options{Color: ColorNone})
	return c
}

// Log writes a leveled message. The text is written as given, including
// any leading or trailing newlines; only its visible lines are styled.
func (c *Console) Log(level Level, text string) {
	if level == LevelDebug && !c.verbose {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, c.render(level, text))
}

// Logf formats and writes a leveled message.
func (c *Console) Logf(level Level, format string, args ...any) {
	c.Log(level, fmt.Sprintf(format, args...))
}

// Passthrough writes runner output verbatim.
func (c *Console) Passthrough(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, text)
}

// Styled reports whether messages are rendered with colour.
func (c *Console) Styled() bool {
	return c.styled
}

func (c *Console) render(level Level, text string) string {
	style, ok := c.styles[level]
	if !c.styled || !ok {
		return text
	}
	// Rendering line by line keeps lipgloss from padding lines to a common
	// width.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// ParseColor resolves a colour setting. enabled is false for "none".
func ParseColor(value string) (color lipgloss.Color, enabled bool, err error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return lipgloss.Color(namedColors[DefaultColor]), true, nil
	case v == ColorNone:
		return "", false, nil
	case hexColorRegex.MatchString(v):
		return lipgloss.Color(v), true, nil
	}

	if code, ok := namedColors[v]; ok {
		return lipgloss.Color(code), true, nil
	}
	if n, convErr := strconv.Atoi(v); convErr == nil && n >= 0 && n <= 255 {
		return lipgloss.Color(v), true, nil
	}
	return "", false, fmt.Errorf("invalid color %q (expected a color name, 0-255, #RGB, #RRGGBB, or %q)", value, ColorNone)
}

// ColorNames returns the accepted colour names.
func ColorNames() []string {
	return []string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white", "gray", ColorNone}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// TerminalSize returns the size of the terminal behind w, or ok false.
func TerminalSize(w io.Writer) (cols, rows int, ok bool) {
	f, isFile := w.(*os.File)
	if !isFile {
		return 0, 0, false
	}
	cols, rows, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0, false
	}
	return cols, rows, true
}
