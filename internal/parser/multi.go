package parser

import (
	"regexp"
	"strings"
)

// blockSeparator divides the launcher output of sharded or multi-capability
// runs into one block per runner instance.
const blockSeparator = "------------------------------------"

func init() {
	Register("multi", newBlockFactory("multi",
		regexp.MustCompile(`(?m)Specs:\s*(\S.*?\.(?:[cm]?js|ts))\s*$`),
		[]*regexp.Regexp{
			regexp.MustCompile(`\b[1-9]\d* failures?\b`),
			regexp.MustCompile(`\b[1-9]\d* failing\b`),
			regexp.MustCompile(`(?m)^.*\bFailures:\s*$`),
		},
		[]*regexp.Regexp{
			regexp.MustCompile(`\b\d+ specs?, \d+ failures?\b`),
			regexp.MustCompile(`\b\d+ passing\b`),
		},
	))
	Register("cucumber-multi", newBlockFactory("cucumber-multi",
		regexp.MustCompile(`(?m)Specs:\s*(\S.*?\.feature)\s*$`),
		[]*regexp.Regexp{
			regexp.MustCompile(`Failing scenarios:`),
			regexp.MustCompile(`\([^)\n]*\b[1-9]\d* failed\b`),
		},
		[]*regexp.Regexp{
			regexp.MustCompile(`\b\d+ scenarios? \(`),
		},
	))
	RegisterAlias("cucumberMulti", "cucumber-multi")
}

// block attributes a failure to the spec file a runner instance announced
// in its "Specs:" line. A block fails when it carries a failure marker or
// never reached a result summary, as an instance that crashed does.
type block struct {
	name      string
	spec      *regexp.Regexp
	failures  []*regexp.Regexp
	summaries []*regexp.Regexp
	exclude   excluder
}

func newBlockFactory(name string, spec *regexp.Regexp, failures, summaries []*regexp.Regexp) Factory {
	return func(opts Options) (Parser, error) {
		exclude, err := compileExclude(opts.Exclude)
		if err != nil {
			return nil, err
		}
		return &block{name: name, spec: spec, failures: failures, summaries: summaries, exclude: exclude}, nil
	}
}

func (p *block) Name() string { return p.name }

func (p *block) Parse(output string) []string {
	set := newSpecSet(p.exclude)
	for _, section := range strings.Split(normalizeOutput(output), blockSeparator) {
		matches := p.spec.FindAllStringSubmatch(section, -1)
		if len(matches) == 0 || !p.failed(section) {
			continue
		}
		// An instance announces its spec once; if several lines match, the
		// last one is the instance that produced this block's results.
		set.add(matches[len(matches)-1][1])
	}
	return set.list()
}

func (p *block) failed(section string) bool {
	return matchesAny(p.failures, section) || !matchesAny(p.summaries, section)
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
