package parser

import "regexp"

func init() {
	Register("cucumber", newCucumber)
}

// failedScenario matches entries of cucumber's "Failing scenarios:" summary,
// e.g. "features/login.feature:12 # Scenario: bad password".
var failedScenario = regexp.MustCompile(`(?m)(?:^|\s)(\S+\.feature):\d+ # Scenario:`)

// cucumber re-runs whole feature files that contain a failing scenario.
type cucumber struct {
	exclude excluder
}

func newCucumber(opts Options) (Parser, error) {
	exclude, err := compileExclude(opts.Exclude)
	if err != nil {
		return nil, err
	}
	return &cucumber{exclude: exclude}, nil
}

func (p *cucumber) Name() string { return "cucumber" }

func (p *cucumber) Parse(output string) []string {
	set := newSpecSet(p.exclude)
	for _, match := range failedScenario.FindAllStringSubmatch(normalizeOutput(output), -1) {
		set.add(match[1])
	}
	return set.list()
}
