package parser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/gobwas/glob"
)

// normalizeOutput removes terminal escape sequences and carriage returns so
// that coloured or TTY-captured output matches the same patterns as plain text.
func normalizeOutput(output string) string {
	output = ansi.Strip(output)
	output = strings.ReplaceAll(output, "\r\n", "\n")
	return strings.ReplaceAll(output, "\r", "\n")
}

// excluder matches spec paths against compiled exclusion globs.
type excluder []glob.Glob

func compileExclude(patterns []string) (excluder, error) {
	compiled := make(excluder, 0, len(patterns))
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// ValidateExclude reports the first exclusion pattern that does not compile.
func ValidateExclude(patterns []string) error {
	_, err := compileExclude(patterns)
	return err
}

func (e excluder) excluded(spec string) bool {
	path := strings.ReplaceAll(spec, `\`, "/")
	for _, g := range e {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// specSet collects spec identifiers in first-seen order without duplicates.
type specSet struct {
	exclude excluder
	seen    map[string]bool
	specs   []string
}

func newSpecSet(exclude excluder) *specSet {
	return &specSet{
		exclude: exclude,
		seen:    make(map[string]bool),
		specs:   []string{},
	}
}

func (s *specSet) add(spec string) {
	spec = strings.TrimSpace(spec)
	if spec == "" || s.seen[spec] || s.exclude.excluded(spec) {
		return
	}
	s.seen[spec] = true
	s.specs = append(s.specs, spec)
}

func (s *specSet) list() []string {
	return s.specs
}
