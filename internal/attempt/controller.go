// Package attempt owns the retry state machine for a supervised test run.
//
// A Controller is consulted once per finished runner invocation. It keeps
// the attempt counter, asks the output parser which specs failed, and
// answers with the next Action: stop because the run passed, stop because
// attempts are exhausted, stop because nothing could be identified for a
// re-run, or retry with a spec filter.
//
// The controller never launches processes and never logs; callers act on
// the returned Action. It is not safe for concurrent use because attempts
// are strictly sequential.
package attempt

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/flake/internal/parser"
)

// Kind identifies what the supervisor should do after an attempt.
type Kind int

const (
	// Succeed ends the run; the last attempt exited successfully.
	Succeed Kind = iota
	// Stop ends the run; attempts are exhausted. The action carries the last
	// exit status and output for the caller's diagnostics.
	Stop
	// StopSilent ends the run because the output named no failed specs and
	// restarting all specs is disabled.
	StopSilent
	// Retry starts another attempt restricted to Action.Specs.
	Retry
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Succeed:
		return "succeed"
	case Stop:
		return "stop"
	case StopSilent:
		return "stop_silent"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the kind ends the run.
func (k Kind) IsTerminal() bool {
	return k != Retry
}

// SuccessStatus is the runner exit status that means every spec passed.
const SuccessStatus = 0

// Action is the decision taken after one attempt.
type Action struct {
	Kind Kind

	// ExitStatus is the status of the attempt that produced this action.
	ExitStatus int

	// Output is the attempt's combined output. Only set for Stop.
	Output string

	// Specs is the spec filter for the next attempt. Only set for Retry; an
	// empty filter re-runs the full suite.
	Specs []string

	// FailedSpecs is what the parser found, before any restart-all fallback.
	FailedSpecs []string

	// RestartedAll is true when Specs are the previous attempt's specs
	// because the parser found nothing.
	RestartedAll bool
}

// State is the attempt bookkeeping for one supervised run.
type State struct {
	// Attempt is the number of the attempt currently running or just
	// finished. It starts at 1.
	Attempt int `json:"attempt" yaml:"attempt"`
	// MaxAttempts is the total number of runner invocations allowed.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// LastOutput is the combined output of the most recently decided attempt.
	LastOutput string `json:"-" yaml:"-"`
	// LastSpecs is the spec filter the most recently decided attempt ran with.
	LastSpecs []string `json:"last_specs,omitempty" yaml:"last_specs,omitempty"`
}

// Controller decides what follows each attempt.
type Controller struct {
	state           State
	parser          parser.Parser
	allowRestartAll bool
}

// NewController creates a Controller positioned at attempt 1.
func NewController(maxAttempts int, p parser.Parser, allowRestartAll bool) (*Controller, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if p == nil {
		return nil, fmt.Errorf("parser is required")
	}
	return &Controller{
		state: State{
			Attempt:     1,
			MaxAttempts: maxAttempts,
		},
		parser:          p,
		allowRestartAll: allowRestartAll,
	}, nil
}

// Attempt returns the current attempt number.
func (c *Controller) Attempt() int {
	return c.state.Attempt
}

// ParserName returns the name of the parser consulted on failures.
func (c *Controller) ParserName() string {
	return c.parser.Name()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.LastSpecs = slices.Clone(c.state.LastSpecs)
	return s
}

// Decide consumes the result of the current attempt and returns the next
// action. pastSpecs is the spec filter the attempt ran with.
//
// A non-success status advances the attempt counter exactly once, even when
// the action is terminal, so after exhaustion Attempt() reports
// MaxAttempts+1 just as the counter would if another attempt were started.
func (c *Controller) Decide(exitStatus int, output string, pastSpecs []string) Action {
	c.state.LastOutput = output
	c.state.LastSpecs = slices.Clone(pastSpecs)

	if exitStatus == SuccessStatus {
		return Action{Kind: Succeed, ExitStatus: exitStatus}
	}

	c.state.Attempt++
	if c.state.Attempt > c.state.MaxAttempts {
		return Action{Kind: Stop, ExitStatus: exitStatus, Output: output}
	}

	failed := c.parser.Parse(output)
	switch {
	case len(failed) > 0:
		return Action{
			Kind:        Retry,
			ExitStatus:  exitStatus,
			Specs:       slices.Clone(failed),
			FailedSpecs: failed,
		}
	case c.allowRestartAll:
		return Action{
			Kind:         Retry,
			ExitStatus:   exitStatus,
			Specs:        slices.Clone(pastSpecs),
			FailedSpecs:  failed,
			RestartedAll: true,
		}
	default:
		return Action{Kind: StopSilent, ExitStatus: exitStatus, FailedSpecs: failed}
	}
}
