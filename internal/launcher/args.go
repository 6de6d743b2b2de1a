package launcher

import (
	"strconv"
	"strings"
)

// Runner parameter names injected into every invocation. The runner exposes
// them to specs as browser.params.flake.iteration and browser.params.flake.retry.
const (
	IterationFlag = "--params.flake.iteration"
	RetryFlag     = "--params.flake.retry"
	SpecsFlag     = "--specs"
	SuiteFlag     = "--suite"
)

// SpecDelimiter joins spec identifiers in the --specs value.
const SpecDelimiter = ","

// selectionFlags are the runner flags that choose which specs run. They are
// removed from the base arguments whenever flake supplies its own filter.
var selectionFlags = []string{SpecsFlag, SuiteFlag}

// Invocation describes one attempt to be launched.
type Invocation struct {
	// Attempt is the 1-based attempt number passed to the runner.
	Attempt int
	// Retry is true for every attempt after the first.
	Retry bool
	// Specs restricts the run to these spec identifiers. Empty runs whatever
	// the base arguments select.
	Specs []string
}

// BuildArgs returns the argument list for an attempt, starting with the
// runner script path. It never modifies opts or inv.
//
// The layout is:
//
//	<runner path> <runner args...> --params.flake.iteration N
//	    [--params.flake.retry true] [--specs a,b] [<retry config>]
func BuildArgs(opts Options, inv Invocation) []string {
	base := opts.RunnerArgs
	if len(inv.Specs) > 0 {
		base = stripSelection(base)
	}

	args := make([]string, 0, len(base)+8)
	args = append(args, opts.RunnerPath)
	args = append(args, base...)

	args = append(args, IterationFlag, strconv.Itoa(inv.Attempt))
	if inv.Retry {
		args = append(args, RetryFlag, "true")
	}

	if len(inv.Specs) > 0 {
		args = append(args, SpecsFlag, strings.Join(inv.Specs, SpecDelimiter))
	}

	if opts.RetryConfig != "" && inv.Retry {
		args = append(args, opts.RetryConfig)
	}
	return args
}

// stripSelection drops every --specs/--suite argument, both the
// "--flag=value" form and the "--flag value" pair.
func stripSelection(args []string) []string {
	out := args[:0:0]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if isSelectionAssignment(arg) {
			continue
		}
		if isSelectionFlag(arg) {
			// Skip the value too, if there is one.
			if i+1 < len(args) {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}

func isSelectionFlag(arg string) bool {
	for _, flag := range selectionFlags {
		if arg == flag {
			return true
		}
	}
	return false
}

func isSelectionAssignment(arg string) bool {
	for _, flag := range selectionFlags {
		if strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}
	return false
}
