// Package parser extracts failed spec identifiers from captured test runner output.
//
// Each strategy understands one report layout of the wrapped runner. All of
// them share the same contract: Parse never fails. Text without
// recognizable failure markers, including truncated or interleaved
// stdout/stderr, simply yields an empty slice, and the caller decides what
// an empty result means.
//
// Strategies are looked up by name through a registry. The attempt logic
// only sees the Parser interface, so adding a strategy is a matter of
// calling Register from an init function.
package parser

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	flakeerrors "github.com/Iron-Ham/flake/internal/errors"
)

// DefaultName is the strategy used when no parser is configured.
const DefaultName = "standard"

// Parser extracts failed spec identifiers from runner output.
type Parser interface {
	// Name returns the registry name of the strategy.
	Name() string

	// Parse returns the failed specs in the order they were first seen,
	// without duplicates. It returns an empty slice, never an error, when the
	// output contains no recognizable failures.
	Parse(output string) []string
}

// Options configures a strategy instance.
type Options struct {
	// Exclude holds glob patterns (gobwas/glob syntax, '/' separated) of spec
	// paths that must never be reported as failed, such as frames from
	// third-party packages that show up in stack traces.
	Exclude []string
}

// DefaultExclude returns the exclusion patterns used when none are configured.
func DefaultExclude() []string {
	return []string{"**/node_modules/**"}
}

// DefaultOptions returns Options with DefaultExclude applied.
func DefaultOptions() Options {
	return Options{Exclude: DefaultExclude()}
}

// Factory builds a Parser from Options.
type Factory func(opts Options) (Parser, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
}{
	factories: make(map[string]Factory),
	aliases:   make(map[string]string),
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes a strategy available under name. Names are case-insensitive.
// It panics if name is empty or already registered.
func Register(name string, factory Factory) {
	key := normalizeName(name)
	if key == "" {
		panic("parser: Register called with empty name")
	}
	if factory == nil {
		panic("parser: Register factory is nil for " + name)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, dup := registry.factories[key]; dup {
		panic("parser: Register called twice for " + name)
	}
	registry.factories[key] = factory
}

// RegisterAlias makes alias resolve to an already registered strategy.
func RegisterAlias(alias, name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.aliases[normalizeName(alias)] = normalizeName(name)
}

func lookup(name string) (Factory, bool) {
	key := normalizeName(name)
	if key == "" {
		key = DefaultName
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if target, ok := registry.aliases[key]; ok {
		key = target
	}
	factory, ok := registry.factories[key]
	return factory, ok
}

// New builds the strategy registered under name. An empty name selects
// DefaultName. Unknown names return an error wrapping errors.ErrUnknownParser.
func New(name string, opts Options) (Parser, error) {
	factory, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			flakeerrors.ErrUnknownParser, name, strings.Join(Names(), ", "))
	}
	return factory(opts)
}

// IsRegistered reports whether name (or an alias of it) resolves to a strategy.
func IsRegistered(name string) bool {
	_, ok := lookup(name)
	return ok
}

// Names returns the registered strategy names, sorted. Aliases are not listed.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
