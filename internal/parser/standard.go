package parser

import "regexp"

func init() {
	Register(DefaultName, newStandard)
}

// failedFrame matches the spec-body frame of a Jasmine or Mocha failure stack
// trace, e.g. "at UserContext.<anonymous> (/app/specs/login.spec.js:12:7)".
// The capture stops at the first ':' after an optional Windows drive prefix.
var failedFrame = regexp.MustCompile(
	`at (?:\[object Object\]|Object|UserContext|Context|Suite)\.<anonymous> \(((?:[A-Za-z]:\\)?.*?):.*\)`)

// standard reads failed spec files out of stack traces printed by the
// runner's default reporters.
type standard struct {
	exclude excluder
}

func newStandard(opts Options) (Parser, error) {
	exclude, err := compileExclude(opts.Exclude)
	if err != nil {
		return nil, err
	}
	return &standard{exclude: exclude}, nil
}

func (p *standard) Name() string { return DefaultName }

func (p *standard) Parse(output string) []string {
	set := newSpecSet(p.exclude)
	for _, match := range failedFrame.FindAllStringSubmatch(normalizeOutput(output), -1) {
		set.add(match[1])
	}
	return set.list()
}
