package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		value       string
		wantColor   string
		wantEnabled bool
		wantErr     bool
	}{
		{"", "5", true, false},
		{"magenta", "5", true, false},
		{"Green", "2", true, false},
		{"grey", "8", true, false},
		{"208", "208", true, false},
		{"0", "0", true, false},
		{"#ff00ff", "#ff00ff", true, false},
		{"#ABC", "#abc", true, false},
		{"none", "", false, false},
		{"NONE", "", false, false},
		{"256", "", false, true},
		{"-1", "", false, true},
		{"#12345", "", false, true},
		{"chartreuse", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			color, enabled, err := ParseColor(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if string(color) != tt.wantColor {
				t.Errorf("color = %q, want %q", color, tt.wantColor)
			}
			if enabled != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", enabled, tt.wantEnabled)
			}
		})
	}
}

func TestNew_InvalidColor(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, Options{Color: "nope"}); err == nil {
		t.Error("New() with an invalid color should fail")
	}
}

func TestLog_Styling(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantStyled bool
	}{
		{"forced colour", Options{Color: "magenta", ForceColor: true}, true},
		{"not a terminal", Options{Color: "magenta"}, false},
		{"colour disabled", Options{Color: ColorNone, ForceColor: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c, err := New(&buf, tt.opts)
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			if c.Styled() != tt.wantStyled {
				t.Errorf("Styled() = %v, want %v", c.Styled(), tt.wantStyled)
			}

			c.Log(LevelInfo, "\nUsing standard to parse output\n")
			got := buf.String()

			hasEscapes := strings.Contains(got, "\x1b[")
			if hasEscapes != tt.wantStyled {
				t.Errorf("output %q: escape codes present = %v, want %v", got, hasEscapes, tt.wantStyled)
			}
			if plain := ansi.Strip(got); plain != "\nUsing standard to parse output\n" {
				t.Errorf("visible text = %q, want the message unchanged", plain)
			}
		})
	}
}

func TestLog_MultiLineNotPadded(t *testing.T) {
	var buf bytes.Buffer
	c, err := New(&buf, Options{Color: "cyan", ForceColor: true})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	c.Log(LevelInfo, "a.js\nlonger/path/b.js\n")
	if plain := ansi.Strip(buf.String()); plain != "a.js\nlonger/path/b.js\n" {
		t.Errorf("visible text = %q, lines were altered", plain)
	}
}

func TestLog_DebugRequiresVerbose(t *testing.T) {
	var quiet, verbose bytes.Buffer

	q, _ := New(&quiet, Options{Color: ColorNone})
	q.Log(LevelDebug, "hidden")
	if quiet.Len() != 0 {
		t.Errorf("debug message written without verbose: %q", quiet.String())
	}

	v, _ := New(&verbose, Options{Color: ColorNone, Verbose: true})
	v.Logf(LevelDebug, "attempt %d", 2)
	if verbose.String() != "attempt 2" {
		t.Errorf("verbose output = %q, want %q", verbose.String(), "attempt 2")
	}
}

func TestPassthrough_Verbatim(t *testing.T) {
	var buf bytes.Buffer
	c, err := New(&buf, Options{Color: "red", ForceColor: true})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	chunks := []string{"\x1b[32m.\x1b[0m", "F", "\r\n", "1 spec, 1 failure"}
	for _, chunk := range chunks {
		c.Passthrough(chunk)
	}
	if got, want := buf.String(), strings.Join(chunks, ""); got != want {
		t.Errorf("Passthrough output = %q, want %q", got, want)
	}
}

func TestDiscard(t *testing.T) {
	c := Discard()
	c.Log(LevelError, "nothing")
	c.Passthrough("nothing")
	if c.Styled() {
		t.Error("Discard() console should not be styled")
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("IsTerminal(bytes.Buffer) = true, want false")
	}
	if _, _, ok := TerminalSize(&bytes.Buffer{}); ok {
		t.Error("TerminalSize(bytes.Buffer) ok = true, want false")
	}
}
