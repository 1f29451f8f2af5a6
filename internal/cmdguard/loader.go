package cmdguard

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/patterns.yaml
var builtinFS embed.FS

// ruleFile is the on-disk/embedded rule file layout.
type ruleFile struct {
	Version int        `yaml:"version"`
	Rules   []ruleSpec `yaml:"rules"`
}

// LoadRules loads and compiles the rule set. When path is empty the
// bundled patterns are used; otherwise the user-supplied file replaces
// them entirely. Any parse or compile error is returned and the caller
// falls back atomically — a rule set is never partially applied.
func LoadRules(path string) (*RuleSet, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = builtinFS.ReadFile("builtin/patterns.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return parseRules(data)
}

// parseRules parses YAML rule data and compiles it.
func parseRules(data []byte) (*RuleSet, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("invalid rule YAML: %w", err)
	}
	if rf.Version != 1 {
		return nil, fmt.Errorf("unsupported rule file version: %d (expected 1)", rf.Version)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rule file contains no rules")
	}
	return compileRuleSet(rf.Rules)
}

// FallbackRules compiles the hardcoded minimal rule set. The data is a
// compile-time constant, so an error here indicates a programming bug;
// the caller still handles it for defensive completeness.
func FallbackRules() (*RuleSet, error) {
	return compileRuleSet(fallbackSpecs())
}
