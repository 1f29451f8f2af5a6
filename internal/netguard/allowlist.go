package netguard

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Allowlist matches hostnames against glob-style domain patterns
// ("*.example.com", "example.com"). Matching is case-insensitive and any
// match passes; order is irrelevant. Compiled once, immutable after.
type Allowlist struct {
	patterns []glob.Glob
	raw      []string
}

// NewAllowlist compiles domain patterns. Returns an error if any pattern
// fails to compile so a misconfigured list is rejected at startup, never
// silently narrowed.
func NewAllowlist(patterns []string) (*Allowlist, error) {
	a := &Allowlist{
		patterns: make([]glob.Glob, 0, len(patterns)),
		raw:      make([]string, 0, len(patterns)),
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("allowlist pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, g)
		a.raw = append(a.raw, p)
	}
	return a, nil
}

// Match reports whether host matches any pattern. An empty allowlist
// matches nothing.
func (a *Allowlist) Match(host string) bool {
	h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	for _, g := range a.patterns {
		if g.Match(h) {
			return true
		}
	}
	return false
}

// Patterns returns the normalized pattern strings, for reporting.
func (a *Allowlist) Patterns() []string {
	out := make([]string, len(a.raw))
	copy(out, a.raw)
	return out
}

// overrideSet holds per-agent extensions of the base allowlist, rebuilt
// once at startup and read-only thereafter.
type overrideSet struct {
	base     *Allowlist
	perAgent map[string]*Allowlist
}

func newOverrideSet(base *Allowlist, overrides map[string][]string) (*overrideSet, error) {
	os := &overrideSet{base: base, perAgent: make(map[string]*Allowlist, len(overrides))}
	for agentID, patterns := range overrides {
		al, err := NewAllowlist(patterns)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", agentID, err)
		}
		os.perAgent[agentID] = al
	}
	return os, nil
}

// match checks the base list merged with the agent's own extension.
func (o *overrideSet) match(host, agentID string) bool {
	if o.base.Match(host) {
		return true
	}
	if agentID == "" {
		return false
	}
	if extra, ok := o.perAgent[agentID]; ok {
		return extra.Match(host)
	}
	return false
}
