package cmdguard

import (
	"fmt"
	"regexp"
)

// Category classifies what kind of damage a rule guards against.
type Category string

// Rule categories
const (
	CategoryDestructive       Category = "destructive"
	CategoryForkBomb          Category = "fork_bomb"
	CategoryFormatDevice      Category = "format_device"
	CategoryPipeToShell       Category = "pipe_to_shell"
	CategoryGitHistoryRewrite Category = "git_history_rewrite"
	CategoryInterpreterEscape Category = "interpreter_escape"
	CategoryPermissions       Category = "permissions"
	CategorySystem            Category = "system"
)

// ValidCategories is the set of categories accepted in rule files.
var ValidCategories = map[Category]bool{
	CategoryDestructive:       true,
	CategoryForkBomb:          true,
	CategoryFormatDevice:      true,
	CategoryPipeToShell:       true,
	CategoryGitHistoryRewrite: true,
	CategoryInterpreterEscape: true,
	CategoryPermissions:       true,
	CategorySystem:            true,
}

// PatternRule is one compiled destructive-command rule. Immutable after
// load.
type PatternRule struct {
	Name     string
	Pattern  *regexp.Regexp
	Raw      string
	Message  string
	Category Category
}

// RuleSet is an ordered list of compiled rules plus a category index for
// reporting. A rule set either compiles completely or is not used at all;
// there is no partially loaded state.
type RuleSet struct {
	Rules      []PatternRule
	ByCategory map[Category][]*PatternRule
}

// ruleSpec is the uncompiled form, as it appears in YAML and in the
// hardcoded fallback.
type ruleSpec struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Pattern  string `yaml:"pattern"`
	Message  string `yaml:"message"`
}

// maxPatternLen bounds rule regex size so a bad rule file cannot stall
// compilation.
const maxPatternLen = 2048

// compileRuleSet compiles every spec or fails as a whole.
func compileRuleSet(specs []ruleSpec) (*RuleSet, error) {
	rs := &RuleSet{
		Rules:      make([]PatternRule, 0, len(specs)),
		ByCategory: make(map[Category][]*PatternRule),
	}
	names := make(map[string]bool, len(specs))

	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("rule[%d]: name is required", i)
		}
		if names[spec.Name] {
			return nil, fmt.Errorf("rule[%d]: duplicate name %q", i, spec.Name)
		}
		names[spec.Name] = true
		if spec.Message == "" {
			return nil, fmt.Errorf("rule %q: message is required", spec.Name)
		}
		cat := Category(spec.Category)
		if !ValidCategories[cat] {
			return nil, fmt.Errorf("rule %q: unknown category %q", spec.Name, spec.Category)
		}
		if len(spec.Pattern) == 0 {
			return nil, fmt.Errorf("rule %q: pattern is required", spec.Name)
		}
		if len(spec.Pattern) > maxPatternLen {
			return nil, fmt.Errorf("rule %q: pattern too long (%d > %d chars)", spec.Name, len(spec.Pattern), maxPatternLen)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
		}
		rs.Rules = append(rs.Rules, PatternRule{
			Name:     spec.Name,
			Pattern:  re,
			Raw:      spec.Pattern,
			Message:  spec.Message,
			Category: cat,
		})
	}

	for i := range rs.Rules {
		r := &rs.Rules[i]
		rs.ByCategory[r.Category] = append(rs.ByCategory[r.Category], r)
	}
	return rs, nil
}

// fallbackSpecs is the hardcoded minimal rule set used when the bundled
// or user-supplied rule file fails to load or compile. It covers only the
// most dangerous categories.
func fallbackSpecs() []ruleSpec {
	return []ruleSpec{
		{
			Name:     "recursive-force-delete",
			Category: string(CategoryDestructive),
			Pattern:  `(?i)\brm\s+(?:-[a-zA-Z]+\s+)*-(?:[a-zA-Z]*r[a-zA-Z]*f|[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\b`,
			Message:  "Recursive force delete is not allowed",
		},
		{
			Name:     "fork-bomb",
			Category: string(CategoryForkBomb),
			Pattern:  `(?s)\(\)\s*\{[^}]*\|[^}]*&[^}]*\}\s*;`,
			Message:  "Fork bomb detected",
		},
		{
			Name:     "overwrite-block-device",
			Category: string(CategoryFormatDevice),
			Pattern:  `(?i)\b(?:mkfs(?:\.\w+)?\s|dd\s+[^|;&]*of=/dev/(?:sd|hd|nvme|vd|xvd))`,
			Message:  "Formatting or overwriting a block device is not allowed",
		},
		{
			Name:     "pipe-download-to-shell",
			Category: string(CategoryPipeToShell),
			Pattern:  `(?i)\b(?:curl|wget)\b[^|;&]*\|`,
			Message:  "Piping downloaded content to another program is not allowed",
		},
		{
			Name:     "git-force-push",
			Category: string(CategoryGitHistoryRewrite),
			Pattern:  `(?i)\bgit\s+push\b[^|;&]*\s(?:--force(?:-with-lease)?|-f)\b`,
			Message:  "Forced git history rewrite is not allowed",
		},
		{
			Name:     "interpreter-inline-eval",
			Category: string(CategoryInterpreterEscape),
			Pattern:  `(?i)\b(?:python3?|perl|ruby|node)\s+(?:-\w+\s+)*(?:-c|-e|--eval)\s`,
			Message:  "Inline interpreter code execution is not allowed",
		},
	}
}
