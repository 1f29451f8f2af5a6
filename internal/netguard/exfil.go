package netguard

import (
	"fmt"
	"regexp"
)

// exfilRule is a compiled exfiltration pattern. These block on transport
// shape alone, independent of destination: piping downloads into a
// shell, posting data payloads, and base64 round-trips are evidence of
// intent regardless of where the bytes go.
type exfilRule struct {
	name    string
	pattern *regexp.Regexp
	message string
}

// defaultExfilSpecs are the builtin exfiltration patterns. User-supplied
// blockedPatterns are appended after these.
var defaultExfilSpecs = []struct {
	name    string
	pattern string
	message string
}{
	{
		name:    "pipe-download-to-shell",
		pattern: `(?i)\b(?:curl|wget)\b[^|;&]*\|\s*(?:sudo\s+)?(?:ba|z|da|k)?sh\b`,
		message: "Piping downloaded content into a shell is not allowed",
	},
	{
		name:    "curl-data-post",
		pattern: `(?i)\bcurl\b[^;&]*\s(?:-d|--data(?:-\w+)?|-F|--form|-T|--upload-file)\b`,
		message: "Sending data payloads with curl is not allowed",
	},
	{
		name:    "wget-post-data",
		pattern: `(?i)\bwget\b[^;&]*--post-(?:data|file)\b`,
		message: "Posting data with wget is not allowed",
	},
	{
		name:    "base64-encode-and-send",
		pattern: `(?i)\bbase64\b[^;&]*\|[^;&]*\b(?:curl|wget|nc|ncat)\b`,
		message: "Encoding and transmitting data is not allowed",
	},
	{
		name:    "base64-decode-and-run",
		pattern: `(?i)\bbase64\s+(?:-d|--decode)\b[^;&]*\|`,
		message: "Decoding and piping base64 content is not allowed",
	},
}

// compileExfilRules builds the builtin set plus user patterns. Like the
// command rule set, it compiles completely or fails as a whole.
func compileExfilRules(userPatterns []string) ([]exfilRule, error) {
	rules := make([]exfilRule, 0, len(defaultExfilSpecs)+len(userPatterns))
	for _, spec := range defaultExfilSpecs {
		re, err := regexp.Compile(spec.pattern)
		if err != nil {
			return nil, fmt.Errorf("builtin exfil pattern %q: %w", spec.name, err)
		}
		rules = append(rules, exfilRule{name: spec.name, pattern: re, message: spec.message})
	}
	for i, p := range userPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("blockedPatterns[%d] %q: %w", i, p, err)
		}
		rules = append(rules, exfilRule{
			name:    fmt.Sprintf("blocked-pattern-%d", i),
			pattern: re,
			message: "Command matches a blocked network pattern",
		})
	}
	return rules, nil
}

// matchExfil returns the first matching rule, or nil.
func matchExfil(rules []exfilRule, command string) *exfilRule {
	for i := range rules {
		if rules[i].pattern.MatchString(command) {
			return &rules[i]
		}
	}
	return nil
}
