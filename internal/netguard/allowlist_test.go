package netguard

import "testing"

func TestAllowlistMatch(t *testing.T) {
	al, err := NewAllowlist([]string{"github.com", "*.github.com", "api.example.com"})
	if err != nil {
		t.Fatalf("NewAllowlist failed: %v", err)
	}

	tests := []struct {
		host string
		want bool
	}{
		{"github.com", true},
		{"raw.github.com", true},
		{"GitHub.com", true},
		{"github.com.", true}, // trailing-dot FQDN form
		{"api.example.com", true},
		{"githubx.com", false},
		{"a.b.github.com", false}, // * does not cross label boundaries
		{"example.com", false},
		{"evil.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := al.Match(tt.host); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestAllowlistEmptyMatchesNothing(t *testing.T) {
	al, err := NewAllowlist(nil)
	if err != nil {
		t.Fatalf("NewAllowlist(nil) failed: %v", err)
	}
	if al.Match("example.com") {
		t.Error("empty allowlist matched example.com")
	}
}

func TestAllowlistBadPattern(t *testing.T) {
	if _, err := NewAllowlist([]string{"example.com", "[invalid"}); err == nil {
		t.Error("expected compile error for malformed pattern")
	}
}

func TestAllowlistNormalizesPatterns(t *testing.T) {
	al, err := NewAllowlist([]string{" Example.COM ", "", "api.test.io"})
	if err != nil {
		t.Fatalf("NewAllowlist failed: %v", err)
	}
	got := al.Patterns()
	want := []string{"example.com", "api.test.io"}
	if len(got) != len(want) {
		t.Fatalf("Patterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Patterns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOverrideSet(t *testing.T) {
	base, err := NewAllowlist([]string{"github.com"})
	if err != nil {
		t.Fatalf("NewAllowlist failed: %v", err)
	}
	os, err := newOverrideSet(base, map[string][]string{
		"research-agent": {"*.arxiv.org", "arxiv.org"},
	})
	if err != nil {
		t.Fatalf("newOverrideSet failed: %v", err)
	}

	tests := []struct {
		name    string
		host    string
		agentID string
		want    bool
	}{
		{"base matches any agent", "github.com", "", true},
		{"base matches override agent", "github.com", "research-agent", true},
		{"override matches its agent", "arxiv.org", "research-agent", true},
		{"override glob matches its agent", "export.arxiv.org", "research-agent", true},
		{"override does not leak to other agents", "arxiv.org", "other-agent", false},
		{"override does not leak to anonymous", "arxiv.org", "", false},
		{"unlisted host blocked everywhere", "evil.com", "research-agent", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := os.match(tt.host, tt.agentID); got != tt.want {
				t.Errorf("match(%q, %q) = %v, want %v", tt.host, tt.agentID, got, tt.want)
			}
		})
	}
}

func TestOverrideSetBadPattern(t *testing.T) {
	base, _ := NewAllowlist(nil)
	if _, err := newOverrideSet(base, map[string][]string{"a": {"[bad"}}); err == nil {
		t.Error("expected error for malformed override pattern")
	}
}
