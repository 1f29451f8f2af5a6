package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FailOpen {
		t.Error("FailOpen should default to false (fail-closed)")
	}
	if !cfg.Network.BlockDirectIP {
		t.Error("BlockDirectIP should default to true")
	}
	if !cfg.Network.ResolveDNS {
		t.Error("ResolveDNS should default to true")
	}
	if cfg.Network.DNSTimeoutMs != 2000 {
		t.Errorf("DNSTimeoutMs = %d, want 2000", cfg.Network.DNSTimeoutMs)
	}
	if cfg.Content.Sensitivity != 0.5 || cfg.Content.WarnThreshold != 0.4 || cfg.Content.BlockThreshold != 0.8 {
		t.Errorf("thresholds = %v/%v/%v, want 0.5/0.4/0.8",
			cfg.Content.Sensitivity, cfg.Content.WarnThreshold, cfg.Content.BlockThreshold)
	}
	if cfg.Content.ChunkSize != 1500 {
		t.Errorf("ChunkSize = %d, want 1500", cfg.Content.ChunkSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.DNSTimeoutMs != 2000 {
		t.Errorf("DNSTimeoutMs = %d, want default 2000", cfg.Network.DNSTimeoutMs)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  log_level: debug
network:
  allowed_domains:
    - github.com
    - "*.github.com"
  dns_timeout_ms: 500
  agent_overrides:
    research-agent:
      - arxiv.org
content:
  oracle_url: http://localhost:8000/score
  block_threshold: 0.9
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Network.AllowedDomains) != 2 {
		t.Errorf("AllowedDomains = %v", cfg.Network.AllowedDomains)
	}
	if cfg.Network.DNSTimeoutMs != 500 {
		t.Errorf("DNSTimeoutMs = %d, want 500", cfg.Network.DNSTimeoutMs)
	}
	if got := cfg.Network.AgentOverrides["research-agent"]; len(got) != 1 || got[0] != "arxiv.org" {
		t.Errorf("AgentOverrides = %v", cfg.Network.AgentOverrides)
	}
	if cfg.Content.BlockThreshold != 0.9 {
		t.Errorf("BlockThreshold = %v, want 0.9", cfg.Content.BlockThreshold)
	}
	// Untouched fields keep their defaults.
	if cfg.Content.Sensitivity != 0.5 {
		t.Errorf("Sensitivity = %v, want default 0.5", cfg.Content.Sensitivity)
	}
}

func TestLoadUnknownFieldsFallBack(t *testing.T) {
	path := writeConfig(t, `
servr:
  port: 8080
network:
  dns_timeout_ms: 750
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// The typo section is ignored; known fields still apply.
	if cfg.Network.DNSTimeoutMs != 750 {
		t.Errorf("DNSTimeoutMs = %d, want 750", cfg.Network.DNSTimeoutMs)
	}
	if cfg.Server.Port != 9811 {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "network: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENCLAW_GUARD_FAILOPEN", "true")
	t.Setenv("OPENCLAW_GUARD_SERVER_PORT", "7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.FailOpen {
		t.Error("FailOpen env override not applied")
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want env override 7070", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "Server.Port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "Server.Port"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "log_level"},
		{"zero dns timeout", func(c *Config) { c.Network.DNSTimeoutMs = 0 }, "DNSTimeoutMs"},
		{"zero chunk size", func(c *Config) { c.Content.ChunkSize = 0 }, "ChunkSize"},
		{"sensitivity above one", func(c *Config) { c.Content.Sensitivity = 1.5 }, "Sensitivity"},
		{"negative threshold", func(c *Config) { c.Content.BlockThreshold = -0.1 }, "BlockThreshold"},
		{"bad oracle url", func(c *Config) { c.Content.OracleURL = "not-a-url" }, "oracle_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Content.ChunkSize = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "Server.Port") || !strings.Contains(err.Error(), "ChunkSize") {
		t.Errorf("expected both errors reported, got: %v", err)
	}
}

func TestInvertedThresholdsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Content.WarnThreshold = 0.9
	cfg.Content.BlockThreshold = 0.7
	if err := cfg.Validate(); err != nil {
		t.Errorf("inverted thresholds should warn, not fail: %v", err)
	}
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Network.DNSTimeout().Milliseconds(); got != 2000 {
		t.Errorf("DNSTimeout = %dms, want 2000", got)
	}
	if got := cfg.Content.OracleTimeout().Milliseconds(); got != 10000 {
		t.Errorf("OracleTimeout = %dms, want 10000", got)
	}
}
