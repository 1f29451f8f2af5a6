package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/IT-HUSET/openclaw-guard/internal/logger"
)

var cfgLog = logger.New("config")

// envPrefix is the prefix for environment variable overrides
// (OPENCLAW_GUARD_SERVER_PORT, OPENCLAW_GUARD_FAILOPEN, ...).
const envPrefix = "openclaw_guard"

// Config is the full guard configuration. Loaded once at startup and
// immutable afterwards; there is no hot reload.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Command CommandConfig `yaml:"command"`
	Network NetworkConfig `yaml:"network"`
	Content ContentConfig `yaml:"content"`

	// FailOpen governs every ambiguous or error condition: true permits
	// the action, false (the default) blocks it.
	FailOpen bool `yaml:"fail_open"`
}

// ServerConfig holds management API settings.
type ServerConfig struct {
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel string `yaml:"log_level"`
	NoColor  bool   `yaml:"no_color"`
}

// CommandConfig holds command-guard settings.
type CommandConfig struct {
	// PatternsFile optionally replaces the embedded rule file.
	PatternsFile string `yaml:"patterns_file"`
	// SafePipeTargets replaces the builtin safe pipeline destinations
	// when non-empty.
	SafePipeTargets []string `yaml:"safe_pipe_targets"`
	LogBlocks       bool     `yaml:"log_blocks"`
}

// NetworkConfig holds network-guard settings.
type NetworkConfig struct {
	AllowedDomains  []string            `yaml:"allowed_domains"`
	BlockedPatterns []string            `yaml:"blocked_patterns"`
	BlockDirectIP   bool                `yaml:"block_direct_ip"`
	ResolveDNS      bool                `yaml:"resolve_dns"`
	DNSTimeoutMs    int                 `yaml:"dns_timeout_ms" validate:"min=1"`
	AgentOverrides  map[string][]string `yaml:"agent_overrides" ignored:"true"`
	LogBlocks       bool                `yaml:"log_blocks"`
}

// DNSTimeout returns the DNS verification timeout as a duration.
func (c NetworkConfig) DNSTimeout() time.Duration {
	return time.Duration(c.DNSTimeoutMs) * time.Millisecond
}

// ContentConfig holds content-guard settings.
type ContentConfig struct {
	OracleURL       string  `yaml:"oracle_url"`
	OracleTimeoutMs int     `yaml:"oracle_timeout_ms" validate:"min=1"`
	ChunkSize       int     `yaml:"chunk_size" validate:"min=1"`
	Sensitivity     float64 `yaml:"sensitivity" validate:"gte=0,lte=1"`
	WarnThreshold   float64 `yaml:"warn_threshold" validate:"gte=0,lte=1"`
	BlockThreshold  float64 `yaml:"block_threshold" validate:"gte=0,lte=1"`
	LogDetections   bool    `yaml:"log_detections"`
}

// OracleTimeout returns the per-request classifier timeout as a
// duration.
func (c ContentConfig) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutMs) * time.Millisecond
}

// DefaultConfigPath returns the default config file path
// (~/.openclaw-guard/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".openclaw-guard", "config.yaml")
}

// DefaultConfig returns the shipped defaults: fail-closed, direct IPs
// blocked, DNS verification on, thresholds 0.5/0.4/0.8.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     9811,
			LogLevel: "info",
		},
		Command: CommandConfig{
			LogBlocks: true,
		},
		Network: NetworkConfig{
			BlockDirectIP: true,
			ResolveDNS:    true,
			DNSTimeoutMs:  2000,
			LogBlocks:     true,
		},
		Content: ContentConfig{
			OracleTimeoutMs: 10000,
			ChunkSize:       1500,
			Sensitivity:     0.5,
			WarnThreshold:   0.4,
			BlockThreshold:  0.8,
			LogDetections:   true,
		},
		FailOpen: false,
	}
}

// Validate checks all Config fields and returns a multi-error report.
// Call this AFTER CLI overrides have been applied, not during Load().
func (c *Config) Validate() error {
	var errs []string

	v := validator.New()
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s: failed %q constraint (got %v)",
					strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if _, err := logger.ParseLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("server.log_level: %v", err))
	}

	if c.Content.OracleURL != "" {
		if u, err := url.Parse(c.Content.OracleURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("content.oracle_url: must be a valid http/https URL (got %q)", c.Content.OracleURL))
		}
	}

	// Inverted thresholds are well defined (block is checked first) so
	// this only warns.
	if c.Content.WarnThreshold > c.Content.BlockThreshold {
		cfgLog.Warn("content.warn_threshold (%.2f) exceeds content.block_threshold (%.2f): warnings below the block threshold are unreachable",
			c.Content.WarnThreshold, c.Content.BlockThreshold)
	}
	if c.FailOpen {
		cfgLog.Warn("fail_open is set: classifier and DNS failures will pass actions uninspected")
	}

	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return errors.New(sb.String())
}

// isUnknownFieldError returns true if the error is from
// yaml.Decoder.KnownFields(true) detecting an unrecognized key.
func isUnknownFieldError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found in type")
}

// Load reads configuration from a YAML file and applies environment
// overrides (OPENCLAW_GUARD_* variables). A missing file yields the
// defaults. Load does NOT call Validate(): callers apply CLI overrides
// first, then validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		// Strict decode first to warn about unknown fields (typos like
		// "netwrok:"), then lenient for forward compatibility.
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			if isUnknownFieldError(err) {
				cfgLog.Warn("config has unknown fields (ignored): %v", err)
				cfg = DefaultConfig()
				if err2 := yaml.Unmarshal(data, cfg); err2 != nil {
					return nil, fmt.Errorf("config parse error: %w", err2)
				}
			} else {
				return nil, fmt.Errorf("config parse error: %w", err)
			}
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}
