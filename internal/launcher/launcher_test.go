package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
	"github.com/Iron-Ham/flake/internal/logging"
	"github.com/Iron-Ham/flake/internal/testutil"
)

// recordingSink collects passthrough chunks.
type recordingSink struct {
	mu     sync.Mutex
	chunks []string
}

func (s *recordingSink) Passthrough(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, text)
}

func (s *recordingSink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.chunks, "")
}

func TestLaunch_CapturesCombinedOutput(t *testing.T) {
	fake := testutil.SetupFakeRunner(t, testutil.Step{
		Stdout: "Started\n1 spec, 1 failure\n",
		Stderr: "at UserContext.<anonymous> (/app/a.spec.js:1:1)\n",
		Exit:   1,
	})
	sink := &recordingSink{}
	var logBuf bytes.Buffer
	l := New(Options{
		NodeBin:    fake.Path,
		RunnerPath: "protractor",
		RunnerArgs: []string{"conf.js"},
	}, NewExecRunner(), sink, logging.NewWriterLogger(&logBuf, "debug", nil))

	res, err := l.Launch(context.Background(), Invocation{Attempt: 1})
	if err != nil {
		t.Fatalf("Launch() failed: %v", err)
	}

	want := "Started\n1 spec, 1 failure\nat UserContext.<anonymous> (/app/a.spec.js:1:1)\n"
	if res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
	if sink.text() != want {
		t.Errorf("sink received %q, want %q", sink.text(), want)
	}
	if res.ExitStatus != 1 {
		t.Errorf("ExitStatus = %d, want 1", res.ExitStatus)
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}

	calls := fake.Calls(t)
	if len(calls) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(calls))
	}
	wantArgs := []string{"protractor", "conf.js", "--params.flake.iteration", "1"}
	if !reflect.DeepEqual(calls[0], wantArgs) {
		t.Errorf("argv = %q, want %q", calls[0], wantArgs)
	}
	if !reflect.DeepEqual(res.Args, wantArgs) {
		t.Errorf("Result.Args = %q, want %q", res.Args, wantArgs)
	}

	if !strings.Contains(logBuf.String(), `"msg":"runner exited"`) {
		t.Errorf("debug log missing exit record: %s", logBuf.String())
	}
}

func TestLaunch_ExitStatus(t *testing.T) {
	tests := []struct {
		name string
		exit int
	}{
		{"success", 0},
		{"test failure", 1},
		{"runner error", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.SetupFakeRunner(t, testutil.Step{Exit: tt.exit})
			l := New(Options{NodeBin: fake.Path, RunnerPath: "p"}, NewExecRunner(), nil, nil)

			res, err := l.Launch(context.Background(), Invocation{Attempt: 1})
			if err != nil {
				t.Fatalf("Launch() failed: %v", err)
			}
			if res.ExitStatus != tt.exit {
				t.Errorf("ExitStatus = %d, want %d", res.ExitStatus, tt.exit)
			}
		})
	}
}

func TestLaunch_RetryInvocation(t *testing.T) {
	fake := testutil.SetupFakeRunner(t, testutil.Step{Exit: 0})
	l := New(Options{
		NodeBin:     fake.Path,
		RunnerPath:  "p",
		RunnerArgs:  []string{"--suite=all"},
		RetryConfig: "retry.conf.js",
	}, NewExecRunner(), nil, nil)

	res, err := l.Launch(context.Background(), Invocation{Attempt: 2, Retry: true, Specs: []string{"a.js", "b.js"}})
	if err != nil {
		t.Fatalf("Launch() failed: %v", err)
	}
	if !reflect.DeepEqual(res.Specs, []string{"a.js", "b.js"}) {
		t.Errorf("Specs = %q", res.Specs)
	}

	want := []string{"p", "--params.flake.iteration", "2", "--params.flake.retry", "true", "--specs", "a.js,b.js", "retry.conf.js"}
	if got := fake.Calls(t)[0]; !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestLaunch_SpawnFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-node")
	l := New(Options{NodeBin: missing, RunnerPath: "p"}, NewExecRunner(), nil, nil)

	res, err := l.Launch(context.Background(), Invocation{Attempt: 3})
	if err == nil {
		t.Fatalf("Launch() = %+v, want spawn error", res)
	}
	if res != nil {
		t.Errorf("Result = %+v, want nil on spawn failure", res)
	}
	if !flakeerrors.Is(err, flakeerrors.ErrSpawnFailed) {
		t.Errorf("error %v does not match ErrSpawnFailed", err)
	}
	var spawnErr *flakeerrors.SpawnError
	if !flakeerrors.As(err, &spawnErr) {
		t.Fatalf("error %T is not a *SpawnError", err)
	}
	if spawnErr.Attempt != 3 {
		t.Errorf("SpawnError.Attempt = %d, want 3", spawnErr.Attempt)
	}
	if spawnErr.Command != missing {
		t.Errorf("SpawnError.Command = %q, want %q", spawnErr.Command, missing)
	}
}

func TestLaunch_Canceled(t *testing.T) {
	fake := testutil.SetupFakeRunner(t, testutil.Step{Exit: 0})
	l := New(Options{NodeBin: fake.Path, RunnerPath: "p"}, NewExecRunner(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Launch(ctx, Invocation{Attempt: 1})
	if !flakeerrors.Is(err, flakeerrors.ErrCanceled) {
		t.Fatalf("Launch() error = %v, want ErrCanceled", err)
	}
	if n := fake.CallCount(t); n != 0 {
		t.Errorf("runner invoked %d times after cancellation, want 0", n)
	}
}

func TestLaunch_AttemptTimeout(t *testing.T) {
	testutil.SkipIfNoShell(t)

	script := filepath.Join(t.TempDir(), "slow-node")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho starting\nexec sleep 10\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	l := New(Options{
		NodeBin:        script,
		RunnerPath:     "p",
		AttemptTimeout: 200 * time.Millisecond,
	}, &ExecRunner{GracePeriod: time.Second}, nil, nil)

	start := time.Now()
	res, err := l.Launch(context.Background(), Invocation{Attempt: 1})
	if err != nil {
		t.Fatalf("Launch() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Launch() took %v, timeout not enforced", elapsed)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if res.ExitStatus != TimeoutExitStatus {
		t.Errorf("ExitStatus = %d, want %d", res.ExitStatus, TimeoutExitStatus)
	}
	if res.Output != "starting\n" {
		t.Errorf("Output = %q, want output written before the timeout", res.Output)
	}

	if !flakeerrors.Is(res.Err, flakeerrors.ErrTimeout) {
		t.Fatalf("Err = %v, want ErrTimeout", res.Err)
	}
	if !flakeerrors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want it to wrap context.DeadlineExceeded", res.Err)
	}
	var timeoutErr *flakeerrors.TimeoutError
	if !flakeerrors.As(res.Err, &timeoutErr) {
		t.Fatalf("Err = %T, want *TimeoutError", res.Err)
	}
	if timeoutErr.Operation != "test attempt 1" || timeoutErr.Duration != 200*time.Millisecond {
		t.Errorf("TimeoutError = {%q, %v}, want {\"test attempt 1\", 200ms}", timeoutErr.Operation, timeoutErr.Duration)
	}
}

func TestLaunch_EnvAndDir(t *testing.T) {
	testutil.SkipIfNoShell(t)

	workDir := t.TempDir()
	script := filepath.Join(t.TempDir(), "env-node")
	body := "#!/bin/sh\npwd\necho \"$FLAKE_TEST_BROWSER\"\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	l := New(Options{
		NodeBin:    script,
		RunnerPath: "p",
		Dir:        workDir,
		Env:        []string{"FLAKE_TEST_BROWSER=chrome", "FLAKE_TEST_BROWSER=firefox"},
	}, NewExecRunner(), nil, nil)

	res, err := l.Launch(context.Background(), Invocation{Attempt: 1})
	if err != nil {
		t.Fatalf("Launch() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(res.Output), "\n")
	if len(lines) != 2 {
		t.Fatalf("Output = %q, want two lines", res.Output)
	}
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	wantDir, _ := filepath.EvalSymlinks(workDir)
	if gotDir != wantDir {
		t.Errorf("working directory = %q, want %q", gotDir, wantDir)
	}
	if lines[1] != "firefox" {
		t.Errorf("FLAKE_TEST_BROWSER = %q, want %q", lines[1], "firefox")
	}
}

func TestLaunch_PtyRunner(t *testing.T) {
	fake := testutil.SetupFakeRunner(t, testutil.Step{Stdout: "on a terminal\n", Exit: 2})
	l := New(Options{NodeBin: fake.Path, RunnerPath: "p"}, NewPtyRunner(120, 40), nil, nil)

	res, err := l.Launch(context.Background(), Invocation{Attempt: 1})
	if err != nil {
		if flakeerrors.Is(err, flakeerrors.ErrSpawnFailed) {
			t.Skipf("pseudo-terminals unavailable: %v", err)
		}
		t.Fatalf("Launch() failed: %v", err)
	}
	if res.ExitStatus != 2 {
		t.Errorf("ExitStatus = %d, want 2", res.ExitStatus)
	}
	// The terminal translates "\n" into "\r\n".
	if !strings.Contains(res.Output, "on a terminal") {
		t.Errorf("Output = %q, want runner output", res.Output)
	}
}

func TestLauncher_OptionsCopy(t *testing.T) {
	args := []string{"conf.js"}
	l := New(Options{RunnerPath: "p", RunnerArgs: args}, NewExecRunner(), nil, nil)
	args[0] = "changed.js"

	if got := l.Options().RunnerArgs[0]; got != "conf.js" {
		t.Errorf("RunnerArgs[0] = %q, caller mutation leaked into launcher", got)
	}
}
