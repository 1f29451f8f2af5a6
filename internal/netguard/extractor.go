package netguard

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/IT-HUSET/openclaw-guard/internal/shell"
)

// urlRegex finds http(s) URL substrings anywhere in a command line.
var urlRegex = regexp.MustCompile(`https?://[^\s'"<>|;&]+`)

// netTools are programs whose invocation makes a command
// network-touching.
var netTools = map[string]bool{
	"curl": true, "wget": true, "ssh": true, "scp": true, "sftp": true,
	"ftp": true, "nc": true, "ncat": true, "netcat": true, "telnet": true,
	"rsync": true, "socat": true, "ping": true, "dig": true,
	"nslookup": true, "host": true,
}

// netCompound are two-word forms (command + subcommand) that touch the
// network even though the bare command may not.
var netCompound = map[string]map[string]bool{
	"git":     {"clone": true, "fetch": true, "pull": true, "push": true, "remote": true, "ls-remote": true},
	"pip":     {"install": true, "download": true},
	"pip3":    {"install": true, "download": true},
	"npm":     {"install": true, "ci": true, "update": true},
	"yarn":    {"add": true, "install": true},
	"go":      {"get": true, "install": true},
	"apt":     {"install": true, "update": true, "upgrade": true},
	"apt-get": {"install": true, "update": true, "upgrade": true},
	"brew":    {"install": true, "upgrade": true},
	"docker":  {"pull": true, "push": true, "login": true},
	"gem":     {"install": true},
	"cargo":   {"install": true},
}

// wrappers are commands that run another command; the real command name
// follows their flags.
var wrappers = map[string]bool{"sudo": true, "env": true, "time": true, "nice": true, "nohup": true}

// wrapperValueFlags are wrapper flags that consume the next argument as
// their value. Without skipping the value, "sudo -u root wget" would
// resolve to "root" instead of "wget". Per wrapper, because -n takes a
// value for nice but not for sudo.
var wrapperValueFlags = map[string]map[string]bool{
	"sudo": {"-u": true, "-g": true},
	"env":  {"-u": true},
	"nice": {"-n": true},
}

// commandTargets is what the extractor learned about one exec command.
type commandTargets struct {
	NetworkTouching bool
	URLs            []string // http(s) URLs, raw command scan
	Hosts           []string // bare hostnames from network-tool arguments
}

// extractExec analyzes a shell command for network activity. URLs come
// from a regex scan of the raw command (quoting a URL does not change
// what curl fetches). Tool detection prefers a full bash AST parse
// (handles wrappers, subshells and compound statements); if the command
// does not parse, the quote-aware tokenizer is the fallback.
func extractExec(command string) commandTargets {
	var ct commandTargets
	ct.URLs = dedupe(urlRegex.FindAllString(command, -1))

	if cmds := parseCalls(command); cmds != nil {
		for _, c := range cmds {
			name, args := resolveWrapper(c.name, c.args)
			if isNetworkCommand(name, args) {
				ct.NetworkTouching = true
				ct.Hosts = append(ct.Hosts, hostArgs(args)...)
			}
		}
	} else {
		// AST parse failed: fall back to first-word-per-segment over the
		// quote-stripped command.
		stripped := shell.StripSingleQuotes(command)
		for _, seg := range shell.SplitChain(stripped) {
			words := shell.Words(seg)
			if len(words) == 0 {
				continue
			}
			name, args := resolveWrapper(words[0], words[1:])
			if isNetworkCommand(name, args) {
				ct.NetworkTouching = true
				ct.Hosts = append(ct.Hosts, hostArgs(args)...)
			}
		}
	}

	ct.Hosts = dedupe(ct.Hosts)
	return ct
}

type parsedCall struct {
	name string
	args []string
}

// parseCalls walks the bash AST and collects every call expression,
// including those inside pipelines, chains and subshells. Returns nil if
// the command does not parse.
func parseCalls(command string) []parsedCall {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	var calls []parsedCall
	syntax.Walk(file, func(node syntax.Node) bool {
		if ce, ok := node.(*syntax.CallExpr); ok && len(ce.Args) > 0 {
			pc := parsedCall{name: wordText(ce.Args[0])}
			for _, w := range ce.Args[1:] {
				pc.args = append(pc.args, wordText(w))
			}
			calls = append(calls, pc)
		}
		return true
	})
	if len(calls) == 0 {
		return nil
	}
	return calls
}

// wordText flattens a syntax.Word to its literal text, keeping
// double-quoted literals and parameter names.
func wordText(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			if p.Param != nil {
				sb.WriteString("$" + p.Param.Value)
			}
		}
	}
	return sb.String()
}

// resolveWrapper skips wrapper commands (sudo, env, ...) and returns the
// real command name with its path prefix removed, plus its arguments.
func resolveWrapper(name string, args []string) (string, []string) {
	name = baseName(name)
	for wrappers[name] && len(args) > 0 {
		i := 0
	scan:
		for i < len(args) {
			switch {
			case wrapperValueFlags[name][args[i]]:
				// flag plus its value, e.g. sudo -u root
				i += 2
			case strings.HasPrefix(args[i], "-") || isAssignment(args[i]):
				i++
			default:
				break scan
			}
		}
		if i >= len(args) {
			return name, nil
		}
		name = baseName(args[i])
		args = args[i+1:]
	}
	return name, args
}

// isAssignment reports whether arg is a NAME=value environment
// assignment, as accepted by env and sudo before the command proper.
func isAssignment(arg string) bool {
	eq := strings.IndexByte(arg, '=')
	if eq <= 0 {
		return false
	}
	for _, c := range arg[:eq] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

func baseName(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// isNetworkCommand reports whether the resolved command touches the
// network, either directly or as a known compound form.
func isNetworkCommand(name string, args []string) bool {
	if netTools[name] {
		return true
	}
	if subs, ok := netCompound[name]; ok {
		for _, a := range args {
			if strings.HasPrefix(a, "-") {
				continue
			}
			return subs[a]
		}
	}
	return false
}

// hostArgs extracts bare hostname arguments (for tools like ssh or nc
// that address hosts without a URL). user@host and host:port forms are
// unwrapped.
func hostArgs(args []string) []string {
	var hosts []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") || strings.Contains(a, "://") {
			continue
		}
		h := a
		if idx := strings.LastIndexByte(h, '@'); idx != -1 {
			h = h[idx+1:]
		}
		if idx := strings.IndexByte(h, ':'); idx != -1 && !strings.Contains(h, "/") {
			h = h[:idx]
		}
		if looksLikeHost(h) {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// looksLikeHost reports whether s is plausibly a hostname or IP literal:
// dotted, and containing only hostname characters.
func looksLikeHost(s string) bool {
	if s == "" || !strings.Contains(s, ".") {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			c >= '0' && c <= '9' || c == '.' || c == '-' || c == ':') {
			return false
		}
	}
	return true
}

func dedupe(items []string) []string {
	if len(items) <= 1 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
