// Package testutil provides testing utilities for flake tests.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

// Step is the scripted behaviour of one fake runner invocation.
type Step struct {
	// Stdout is written to standard output.
	Stdout string
	// Stderr is written to standard error after Stdout.
	Stderr string
	// Exit is the exit status.
	Exit int
}

// FakeRunner is an executable shell script standing in for node. Each
// invocation plays the next Step; once the steps run out the last one
// repeats. Every invocation records its argv.
type FakeRunner struct {
	// Path is the script to spawn.
	Path string
	dir  string
}

// SetupFakeRunner writes a fake runner playing steps into a temporary
// directory. The script is removed when the test completes.
func SetupFakeRunner(t *testing.T, steps ...Step) *FakeRunner {
	t.Helper()
	SkipIfNoShell(t)

	if len(steps) == 0 {
		t.Fatal("SetupFakeRunner needs at least one step")
	}

	dir := t.TempDir()
	for i, step := range steps {
		n := i + 1
		writeFile(t, filepath.Join(dir, fmt.Sprintf("out.%d", n)), step.Stdout)
		writeFile(t, filepath.Join(dir, fmt.Sprintf("err.%d", n)), step.Stderr)
		writeFile(t, filepath.Join(dir, fmt.Sprintf("exit.%d", n)), strconv.Itoa(step.Exit))
	}
	writeFile(t, filepath.Join(dir, "count"), "0")

	script := fmt.Sprintf(`#!/bin/sh
dir=%s
n=$(( $(cat "$dir/count") + 1 ))
echo "$n" > "$dir/count"
for a in "$@"; do printf '%%s\n' "$a"; done > "$dir/argv.$n"
i=$n
if [ "$i" -gt %d ]; then i=%d; fi
cat "$dir/out.$i"
cat "$dir/err.$i" >&2
exit "$(cat "$dir/exit.$i")"
`, shellQuote(dir), len(steps), len(steps))

	path := filepath.Join(dir, "fake-node")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake runner: %v", err)
	}
	return &FakeRunner{Path: path, dir: dir}
}

// CallCount returns how many times the runner has been invoked.
func (f *FakeRunner) CallCount(t *testing.T) int {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(f.dir, "count"))
	if err != nil {
		t.Fatalf("failed to read call count: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("failed to parse call count %q: %v", data, err)
	}
	return n
}

// Calls returns the argv of every invocation, in order.
func (f *FakeRunner) Calls(t *testing.T) [][]string {
	t.Helper()

	count := f.CallCount(t)
	calls := make([][]string, 0, count)
	for n := 1; n <= count; n++ {
		data, err := os.ReadFile(filepath.Join(f.dir, fmt.Sprintf("argv.%d", n)))
		if err != nil {
			t.Fatalf("failed to read argv of call %d: %v", n, err)
		}
		args := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		if len(data) == 0 {
			args = []string{}
		}
		calls = append(calls, args)
	}
	return calls
}

// SkipIfNoShell skips the test when /bin/sh scripts cannot be executed.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake runner scripts need a POSIX shell, skipping test")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// shellQuote wraps s in single quotes for /bin/sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
