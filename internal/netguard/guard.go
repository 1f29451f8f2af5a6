// Package netguard validates outbound network access: fetch URLs and
// network-touching shell commands are checked against a domain
// allowlist, literal-IP policy, and optional DNS re-resolution so an
// allowlisted name pointed at a private address is still caught.
package netguard

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/IT-HUSET/openclaw-guard/internal/guard"
	"github.com/IT-HUSET/openclaw-guard/internal/ipcheck"
	"github.com/IT-HUSET/openclaw-guard/internal/logger"
	"github.com/IT-HUSET/openclaw-guard/internal/shell"
)

var log = logger.New("netguard")

// Kind is what is being evaluated: a direct fetch URL or a shell
// command that may reach the network.
type Kind string

// Evaluation kinds
const (
	KindFetch Kind = "fetch"
	KindExec  Kind = "exec"
)

// HostResolver resolves hostnames to addresses. net.DefaultResolver
// satisfies it; tests substitute a stub.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Config configures the network guard.
type Config struct {
	AllowedDomains  []string
	BlockedPatterns []string
	BlockDirectIP   bool
	ResolveDNS      bool
	DNSTimeout      time.Duration
	AgentOverrides  map[string][]string
	FailOpen        bool
	LogBlocks       bool
}

// DefaultConfig returns the shipped defaults: direct IPs blocked, DNS
// verification on with a 2s cap, fail-closed.
func DefaultConfig() Config {
	return Config{
		BlockDirectIP: true,
		ResolveDNS:    true,
		DNSTimeout:    2 * time.Second,
		LogBlocks:     true,
	}
}

// Guard is the network guard. Immutable after New apart from the
// resolver's own internals.
type Guard struct {
	allow    *overrideSet
	exfil    []exfilRule
	resolver HostResolver

	blockDirectIP bool
	resolveDNS    bool
	dnsTimeout    time.Duration
	failOpen      bool
	logBlocks     bool
}

// New builds a network guard. Pattern or allowlist compile errors are
// configuration errors and fail startup.
func New(cfg Config) (*Guard, error) {
	base, err := NewAllowlist(cfg.AllowedDomains)
	if err != nil {
		return nil, err
	}
	allow, err := newOverrideSet(base, cfg.AgentOverrides)
	if err != nil {
		return nil, err
	}
	exfil, err := compileExfilRules(cfg.BlockedPatterns)
	if err != nil {
		return nil, err
	}

	timeout := cfg.DNSTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	g := &Guard{
		allow:         allow,
		exfil:         exfil,
		resolver:      net.DefaultResolver,
		blockDirectIP: cfg.BlockDirectIP,
		resolveDNS:    cfg.ResolveDNS,
		dnsTimeout:    timeout,
		failOpen:      cfg.FailOpen,
		logBlocks:     cfg.LogBlocks,
	}
	log.Info("Network guard ready: %d allowed domains, %d agent overrides, %d exfil patterns",
		len(base.Patterns()), len(cfg.AgentOverrides), len(exfil))
	return g, nil
}

// SetResolver replaces the DNS resolver (for testing).
func (g *Guard) SetResolver(r HostResolver) { g.resolver = r }

// Evaluate checks a fetch URL or an exec command. nil means pass.
func (g *Guard) Evaluate(ctx context.Context, kind Kind, target, agentID string) *guard.Verdict {
	if strings.TrimSpace(target) == "" {
		return nil
	}
	switch kind {
	case KindFetch:
		return g.evaluateFetch(ctx, target, agentID)
	case KindExec:
		return g.evaluateExec(ctx, target, agentID)
	default:
		return guard.Block("network", fmt.Sprintf("Unknown evaluation kind %q", kind))
	}
}

func (g *Guard) evaluateFetch(ctx context.Context, rawURL, agentID string) *guard.Verdict {
	host, err := hostnameFromURL(rawURL)
	if err != nil {
		// A URL that cannot be parsed cannot be verified safe.
		return g.block("malformed_url", fmt.Sprintf("Cannot parse URL %q: it cannot be verified safe", rawURL))
	}
	return g.checkHost(ctx, host, agentID)
}

func (g *Guard) evaluateExec(ctx context.Context, command, agentID string) *guard.Verdict {
	// Exfiltration patterns block regardless of destination: the
	// transport itself is the evidence. Match the dequoted command so
	// wrapping a flag in quotes, which the shell removes before exec,
	// cannot hide it from a pattern.
	if rule := matchExfil(g.exfil, shell.Dequote(command)); rule != nil {
		if g.logBlocks {
			log.Warn("Blocked exec (exfil pattern %s): %s", rule.name, command)
		}
		return &guard.Verdict{
			Action:   guard.ActionBlock,
			Label:    "exfiltration",
			Score:    1.0,
			Reason:   rule.message,
			Evidence: rule.name,
		}
	}

	targets := extractExec(command)
	if !targets.NetworkTouching {
		// Not a network command: domain checks do not apply.
		return nil
	}

	for _, u := range targets.URLs {
		host, err := hostnameFromURL(u)
		if err != nil {
			return g.block("malformed_url", fmt.Sprintf("Cannot parse URL %q in command", u))
		}
		if v := g.checkHost(ctx, host, agentID); v != nil {
			return v
		}
	}
	for _, host := range targets.Hosts {
		if v := g.checkHost(ctx, host, agentID); v != nil {
			return v
		}
	}
	return nil
}

// checkHost runs the domain/IP pipeline in order; the first failure
// wins.
func (g *Guard) checkHost(ctx context.Context, host, agentID string) *guard.Verdict {
	if host == "" {
		return g.block("malformed_url", "Target has no hostname; it cannot be verified safe")
	}

	// Literal IPs: a private or reserved address is always blocked, and
	// with blockDirectIp set even public literals are refused — agents
	// reach services by allowlisted name, not by bare IP.
	if private, isIP := ipcheck.HostIsPrivateOrReserved(host); isIP {
		if private {
			return g.block("ssrf", fmt.Sprintf("Address %s is non-public (private or reserved range)", host))
		}
		if g.blockDirectIP {
			return g.block("direct_ip", fmt.Sprintf("Direct IP access to %s is not allowed; use an allowlisted hostname", host))
		}
		return nil
	}

	if ipcheck.IsDisallowedHostname(host) {
		return g.block("ssrf", fmt.Sprintf("Hostname %s is always disallowed", host))
	}

	if !g.allow.match(host, agentID) {
		return g.block("allowlist", fmt.Sprintf("Domain %s is not in the allowed domains list", host))
	}

	if g.resolveDNS {
		if v := g.verifyResolution(ctx, host); v != nil {
			return v
		}
	}
	return nil
}

// verifyResolution resolves host and requires every returned address to
// be public. A timeout or resolution failure means the host is not
// verified, which blocks unless failOpen is set. The timeout is treated
// the same as a failure on purpose; the distinction is logged only.
func (g *Guard) verifyResolution(ctx context.Context, host string) *guard.Verdict {
	rctx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupNetIP(rctx, "ip", host)
	if err != nil {
		if rctx.Err() != nil {
			log.Debug("DNS verification of %s timed out after %s", host, g.dnsTimeout)
		} else {
			log.Debug("DNS verification of %s failed: %v", host, err)
		}
		if g.failOpen {
			log.Warn("DNS verification of %s failed and failOpen set: passing unverified", host)
			return nil
		}
		return g.block("dns_unverified", fmt.Sprintf("Could not verify %s resolves to public addresses", host))
	}
	if len(addrs) == 0 {
		if g.failOpen {
			return nil
		}
		return g.block("dns_unverified", fmt.Sprintf("Hostname %s resolved to no addresses", host))
	}

	for _, addr := range addrs {
		if ipcheck.IsPrivateOrReserved(addr) {
			return g.block("ssrf", fmt.Sprintf("Domain %s resolves to non-public address %s (reserved range)", host, addr))
		}
	}
	return nil
}

func (g *Guard) block(label, reason string) *guard.Verdict {
	if g.logBlocks {
		log.Warn("Blocked network target (%s): %s", label, reason)
	}
	return guard.Block(label, reason)
}

// hostnameFromURL parses a URL and returns its hostname. URLs without a
// scheme are rejected rather than guessed at.
func hostnameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return u.Hostname(), nil
}

// ID implements guard.Plugin.
func (g *Guard) ID() string { return "network-guard" }

// Register implements guard.Plugin. Fetch URLs take precedence; tool
// calls carrying a command are analyzed as exec.
func (g *Guard) Register(api guard.InterceptionAPI) {
	api.OnToolCall(func(ctx context.Context, ev guard.ToolCallEvent) *guard.Verdict {
		if ev.Params.URL != "" {
			return g.Evaluate(ctx, KindFetch, ev.Params.URL, ev.AgentID)
		}
		if ev.Params.Command != "" {
			return g.Evaluate(ctx, KindExec, ev.Params.Command, ev.AgentID)
		}
		return nil
	})
}
