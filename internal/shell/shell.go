// Package shell provides quote-aware tokenization of shell command
// strings. The functions are pure and deliberately conservative: they do
// not expand anything, they only decide what is inert quoting and where
// the unquoted operator boundaries are. Both the command guard and the
// network guard build on them.
package shell

import "strings"

// StripSingleQuotes replaces the contents of every single-quoted
// substring with an empty quoted pair. Single-quoted shell text is inert
// data and must not trigger pattern matches; double-quoted text still
// undergoes shell expansion and is left untouched. A single quote inside
// a double-quoted region is a literal character, not a quote delimiter.
func StripSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSingle, inDouble, escaped := false, false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inSingle {
			if c == '\'' {
				inSingle = false
				b.WriteByte('\'')
			}
			continue
		}
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			b.WriteByte(c)
			escaped = true
		case '\'':
			if inDouble {
				b.WriteByte(c)
			} else {
				inSingle = true
				b.WriteByte('\'')
			}
		case '"':
			inDouble = !inDouble
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Dequote removes quote delimiters while keeping the quoted contents,
// yielding roughly what the shell hands the program as arguments.
// "curl '-d' @creds" becomes "curl -d @creds". Used where quoting must
// not change what a pattern sees, because it does not change what the
// program receives.
func Dequote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSingle, inDouble, escaped := false, false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inSingle {
			if c == '\'' {
				inSingle = false
				continue
			}
			b.WriteByte(c)
			continue
		}
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '\'':
			if inDouble {
				b.WriteByte(c)
			} else {
				inSingle = true
			}
		case '"':
			inDouble = !inDouble
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SplitCommand splits a command on unquoted &&, ||, ; and newlines into
// trimmed segments, in order. Single & and | are not segment boundaries.
// Empty segments are dropped.
func SplitCommand(s string) []string {
	return splitUnquoted(s, func(s string, i int) int {
		switch s[i] {
		case ';', '\n':
			return 1
		case '&':
			if i+1 < len(s) && s[i+1] == '&' {
				return 2
			}
		case '|':
			if i+1 < len(s) && s[i+1] == '|' {
				return 2
			}
		}
		return 0
	})
}

// SplitChain splits on every unquoted command boundary including the
// pipe: &&, ||, ;, | and newlines. Used where each stage of a pipeline
// must be inspected independently.
func SplitChain(s string) []string {
	var out []string
	for _, seg := range SplitCommand(s) {
		out = append(out, SplitPipeline(seg)...)
	}
	return out
}

// SplitPipeline splits a single command segment on unquoted single |
// into its pipeline stages. || is not a pipe.
func SplitPipeline(s string) []string {
	return splitUnquoted(s, func(s string, i int) int {
		if s[i] == '|' {
			if i+1 < len(s) && s[i+1] == '|' {
				return -2 // skip ||, not a boundary
			}
			return 1
		}
		return 0
	})
}

// splitUnquoted splits s at boundaries reported by sep, tracking quote
// and escape state. sep returns the boundary width, 0 for no boundary,
// or a negative width to skip characters without splitting.
func splitUnquoted(s string, sep func(s string, i int) int) []string {
	var segments []string
	var b strings.Builder
	inSingle, inDouble, escaped := false, false, false

	flush := func() {
		if seg := strings.TrimSpace(b.String()); seg != "" {
			segments = append(segments, seg)
		}
		b.Reset()
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if inSingle {
			b.WriteByte(c)
			if c == '\'' {
				inSingle = false
			}
			continue
		}
		switch c {
		case '\\':
			b.WriteByte(c)
			if !inDouble || (i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\' || s[i+1] == '$' || s[i+1] == '`')) {
				escaped = true
			}
			continue
		case '\'':
			if !inDouble {
				inSingle = true
			}
			b.WriteByte(c)
			continue
		case '"':
			inDouble = !inDouble
			b.WriteByte(c)
			continue
		}
		if !inDouble {
			if w := sep(s, i); w > 0 {
				flush()
				i += w - 1
				continue
			} else if w < 0 {
				for j := 0; j < -w; j++ {
					b.WriteByte(s[i+j])
				}
				i += -w - 1
				continue
			}
		}
		b.WriteByte(c)
	}
	flush()
	return segments
}

// Words returns the whitespace-delimited tokens of a segment with
// leading environment assignments (FOO=bar cmd) dropped.
func Words(segment string) []string {
	fields := strings.Fields(segment)
	for len(fields) > 0 && isEnvAssignment(fields[0]) {
		fields = fields[1:]
	}
	return fields
}

// FirstWord returns the first word of a segment with any path prefix
// removed ("/usr/bin/curl" -> "curl") and leading environment
// assignments skipped.
func FirstWord(segment string) string {
	words := Words(segment)
	if len(words) == 0 {
		return ""
	}
	f := words[0]
	if idx := strings.LastIndexByte(f, '/'); idx != -1 {
		f = f[idx+1:]
	}
	return f
}

// isEnvAssignment reports whether tok looks like VAR=value.
func isEnvAssignment(tok string) bool {
	eq := strings.IndexByte(tok, '=')
	if eq <= 0 {
		return false
	}
	for i := 0; i < eq; i++ {
		c := tok[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// PipeTargets returns the first word of every pipeline stage after the
// first unquoted |. An empty result means the segment is not a pipe
// command.
func PipeTargets(segment string) []string {
	stages := SplitPipeline(segment)
	if len(stages) < 2 {
		return nil
	}
	targets := make([]string, 0, len(stages)-1)
	for _, stage := range stages[1:] {
		if w := FirstWord(stage); w != "" {
			targets = append(targets, w)
		}
	}
	return targets
}
