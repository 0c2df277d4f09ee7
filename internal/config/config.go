// ABOUTME: Configuration loading for grimoire: YAML with environment
// ABOUTME: variable expansion, duration parsing, and validation.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/grimoire/internal/backend"
)

// Domains that may appear under the domains: section.
var knownDomains = []string{"messages", "notes", "contacts", "calendar", "reminders", "mail"}

// Config is the complete grimoire configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Auth      AuthConfig              `yaml:"auth"`
	Engine    EngineConfig            `yaml:"engine"`
	Tailscale TailscaleConfig         `yaml:"tailscale"`
	Domains   map[string]DomainConfig `yaml:"domains"`
	Logging   LoggingConfig           `yaml:"logging"`
}

// ServerConfig holds transport selection and the HTTP bind address.
type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	Transport string `yaml:"transport"` // "http" or "stdio"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Require    bool   `yaml:"require"`
	JWTSecret  string `yaml:"jwt_secret"`
	TokensFile string `yaml:"tokens_file"`
}

// EngineConfig holds automation engine settings.
type EngineConfig struct {
	OsascriptPath      string        `yaml:"osascript_path"`
	Timeout            time.Duration `yaml:"-"`
	TimeoutRaw         string        `yaml:"timeout"`
	QueueWarnThreshold int           `yaml:"queue_warn_threshold"`
}

// TailscaleConfig holds tsnet listener configuration.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`
	Funnel    bool   `yaml:"funnel"` // public Funnel, implies HTTPS
}

// DomainConfig holds one domain's settings. A nil Enabled means enabled.
type DomainConfig struct {
	Enabled  *bool             `yaml:"enabled"`
	DBPath   string            `yaml:"db_path"`
	Backends map[string]string `yaml:"backends"` // operation -> backend kind
}

// IsEnabled reports whether the domain should be composed.
func (d DomainConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:  "127.0.0.1:8787",
			Transport: "http",
		},
		Engine: EngineConfig{
			OsascriptPath:      "/usr/bin/osascript",
			Timeout:            30 * time.Second,
			QueueWarnThreshold: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is the XDG config location, ~/.config/grimoire/config.yaml
// unless XDG_CONFIG_HOME overrides the base.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "grimoire", "config.yaml")
}

// Load reads the file at path over the defaults. ${VAR} references expand
// from the environment before parsing; unset variables expand empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if cfg.Tailscale.Funnel {
		cfg.Tailscale.HTTPS = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with the environment value, empty
// when unset.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate rejects contradictory settings, reporting the first failure.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "", "http", "stdio":
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", "http", "stdio", c.Server.Transport)
	}

	if c.Server.Transport != "stdio" && !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Auth.Require && c.Auth.JWTSecret == "" && c.Auth.TokensFile == "" {
		return fmt.Errorf("auth.require needs auth.jwt_secret or auth.tokens_file")
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive")
	}
	if c.Engine.QueueWarnThreshold < 0 {
		return fmt.Errorf("engine.queue_warn_threshold must not be negative")
	}

	for name, domain := range c.Domains {
		if !isKnownDomain(name) {
			return fmt.Errorf("unknown domain %q (known: %v)", name, knownDomains)
		}
		for op, kind := range domain.Backends {
			if _, err := backend.Parse(kind); err != nil {
				return fmt.Errorf("domains.%s.backends.%s: %w", name, op, err)
			}
		}
	}
	return nil
}

// Domain returns the named domain's config; absent sections fall back to
// the zero value, which is enabled with all defaults.
func (c *Config) Domain(name string) DomainConfig {
	if c.Domains == nil {
		return DomainConfig{}
	}
	return c.Domains[name]
}

func isKnownDomain(name string) bool {
	for _, d := range knownDomains {
		if d == name {
			return true
		}
	}
	return false
}

func parseDurations(cfg *Config) error {
	if cfg.Engine.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Engine.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing engine.timeout %q: %w", cfg.Engine.TimeoutRaw, err)
		}
		cfg.Engine.Timeout = d
	}
	return nil
}
