// Package security implements the tool execution blocklist.
//
// The blocklist is an in-memory set consulted before every tool execution.
// Entries are exact tool names or "glob:" patterns; absence from the list
// means the tool is permitted.
package security

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

const globPrefix = "glob:"

// BlockedError is returned when a tool execution is denied by the blocklist.
type BlockedError struct {
	Tool string
	Rule string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("tool %q blocked by security rule %q", e.Tool, e.Rule)
}

// Blocklist decides whether a named tool may execute.
// Safe for concurrent use.
type Blocklist struct {
	mu       sync.RWMutex
	exact    map[string]struct{}
	patterns []string
	foldCase bool
}

// Option configures a Blocklist.
type Option func(*Blocklist)

// WithCaseInsensitive makes name and pattern matching case-insensitive.
func WithCaseInsensitive() Option {
	return func(b *Blocklist) {
		b.foldCase = true
	}
}

// New creates a blocklist from the given rules.
// Rules prefixed with "glob:" are doublestar patterns; everything else is an
// exact tool name. Invalid glob patterns are rejected.
func New(rules []string, opts ...Option) (*Blocklist, error) {
	b := &Blocklist{
		exact: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, rule := range rules {
		if err := b.Add(rule); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add registers a rule. Duplicate rules are a no-op.
func (b *Blocklist) Add(rule string) error {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return fmt.Errorf("blocklist rule cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if pattern, ok := strings.CutPrefix(rule, globPrefix); ok {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid blocklist pattern %q", pattern)
		}
		normalized := b.normalize(pattern)
		for _, existing := range b.patterns {
			if existing == normalized {
				return nil
			}
		}
		b.patterns = append(b.patterns, normalized)
		return nil
	}

	b.exact[b.normalize(rule)] = struct{}{}
	return nil
}

// Remove deletes a rule. Removing an unknown rule is a no-op.
func (b *Blocklist) Remove(rule string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pattern, ok := strings.CutPrefix(rule, globPrefix); ok {
		normalized := b.normalize(pattern)
		for i, existing := range b.patterns {
			if existing == normalized {
				b.patterns = append(b.patterns[:i], b.patterns[i+1:]...)
				return
			}
		}
		return
	}

	delete(b.exact, b.normalize(rule))
}

// Check returns a BlockedError when the tool is denied, nil otherwise.
// Exact rules are consulted before patterns.
func (b *Blocklist) Check(tool string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	name := b.normalize(tool)

	if _, blocked := b.exact[name]; blocked {
		return &BlockedError{Tool: tool, Rule: name}
	}

	for _, pattern := range b.patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return &BlockedError{Tool: tool, Rule: globPrefix + pattern}
		}
	}

	return nil
}

// Blocked reports whether the tool is denied.
func (b *Blocklist) Blocked(tool string) bool {
	return b.Check(tool) != nil
}

// Size returns the number of registered rules.
func (b *Blocklist) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exact) + len(b.patterns)
}

func (b *Blocklist) normalize(s string) string {
	if b.foldCase {
		return strings.ToLower(s)
	}
	return s
}
