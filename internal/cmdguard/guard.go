// Package cmdguard blocks destructive shell commands before they reach
// the agent's execution tool. Matching is deterministic: a configurable
// regex rule set evaluated against the quote-stripped command and each of
// its chained segments.
package cmdguard

import (
	"context"
	"strings"

	"github.com/IT-HUSET/openclaw-guard/internal/guard"
	"github.com/IT-HUSET/openclaw-guard/internal/logger"
	"github.com/IT-HUSET/openclaw-guard/internal/shell"
)

var log = logger.New("cmdguard")

// DefaultSafePipeTargets are programs considered safe terminal
// destinations of a pipeline. They only exempt pipe_to_shell matches,
// never other categories.
var DefaultSafePipeTargets = []string{
	"jq", "grep", "egrep", "fgrep", "head", "tail", "wc", "sort",
	"uniq", "cut", "tr", "awk", "sed", "cat", "less", "more", "column",
	"xxd", "tee",
}

// Config configures the command guard.
type Config struct {
	// PatternsFile optionally replaces the bundled rule file.
	PatternsFile string
	// SafePipeTargets overrides DefaultSafePipeTargets when non-nil.
	SafePipeTargets []string
	// FailOpen passes commands uninspected if even the fallback rule
	// set fails to compile. Default is fail-closed.
	FailOpen bool
	// LogBlocks logs every blocking verdict.
	LogBlocks bool
}

// Guard is the command guard. All fields are immutable after New.
type Guard struct {
	rules        *RuleSet
	safePipe     map[string]bool
	failOpen     bool
	logBlocks    bool
	configFailed bool
}

// New builds a command guard from cfg. A broken rule file degrades to
// the hardcoded fallback set; a broken fallback (defensive-only path)
// sets configFailed and every evaluation is governed by FailOpen.
func New(cfg Config) *Guard {
	g := &Guard{
		failOpen:  cfg.FailOpen,
		logBlocks: cfg.LogBlocks,
		safePipe:  make(map[string]bool),
	}

	targets := cfg.SafePipeTargets
	if targets == nil {
		targets = DefaultSafePipeTargets
	}
	for _, t := range targets {
		g.safePipe[strings.ToLower(t)] = true
	}

	rules, err := LoadRules(cfg.PatternsFile)
	if err != nil {
		log.Warn("Failed to load command rules (%v), using fallback set", err)
		rules, err = FallbackRules()
		if err != nil {
			log.Error("Fallback command rules failed to compile: %v — running with degraded security (failOpen=%v)", err, g.failOpen)
			g.configFailed = true
			return g
		}
	}
	g.rules = rules
	log.Info("Loaded %d command rules in %d categories", len(rules.Rules), len(rules.ByCategory))
	return g
}

// ConfigFailed reports whether even the fallback rule set failed to
// compile.
func (g *Guard) ConfigFailed() bool { return g.configFailed }

// Rules returns the active rule set (nil when configFailed).
func (g *Guard) Rules() *RuleSet { return g.rules }

// Evaluate checks a shell command against the rule set. nil means pass.
func (g *Guard) Evaluate(command string) *guard.Verdict {
	if strings.TrimSpace(command) == "" {
		return nil
	}

	if g.configFailed {
		if g.failOpen {
			log.Warn("Command rules unavailable and failOpen set: passing command uninspected")
			return nil
		}
		return guard.Block("config_failed", "Command rules unavailable; blocking by fail-closed policy")
	}

	stripped := shell.StripSingleQuotes(command)

	// The full stripped command is matched first so patterns that span
	// chain operators (fork bombs contain ';') are not lost to
	// splitting. Per-segment matches then catch destructive commands
	// hidden behind benign lead-ins.
	candidates := append([]string{stripped}, shell.SplitCommand(stripped)...)

	for _, rule := range g.rules.Rules {
		for _, candidate := range candidates {
			if !rule.Pattern.MatchString(candidate) {
				continue
			}
			if rule.Category == CategoryPipeToShell && g.pipeExempt(candidate) {
				continue
			}
			if g.logBlocks {
				log.Warn("Blocked command (rule %s, category %s): %s", rule.Name, rule.Category, candidate)
			}
			return &guard.Verdict{
				Action:   guard.ActionBlock,
				Label:    string(rule.Category),
				Score:    1.0,
				Reason:   rule.Message,
				Evidence: rule.Name,
			}
		}
	}
	return nil
}

// pipeExempt reports whether every pipe target after the first unquoted
// | is a safe program. A segment with no pipe targets is not exempt: it
// is not a pipe command at all.
func (g *Guard) pipeExempt(segment string) bool {
	targets := shell.PipeTargets(segment)
	if len(targets) == 0 {
		return false
	}
	for _, t := range targets {
		if !g.safePipe[strings.ToLower(t)] {
			return false
		}
	}
	return true
}

// ID implements guard.Plugin.
func (g *Guard) ID() string { return "command-guard" }

// Register implements guard.Plugin. The guard inspects only tool calls
// that carry a command.
func (g *Guard) Register(api guard.InterceptionAPI) {
	api.OnToolCall(func(ctx context.Context, ev guard.ToolCallEvent) *guard.Verdict {
		if ev.Params.Command == "" {
			return nil
		}
		return g.Evaluate(ev.Params.Command)
	})
}
