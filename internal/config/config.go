package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the data access layer needs to talk to the backend.
type Config struct {
	// BaseURL is the backend base URL, e.g. "https://api.promptshield.dev".
	BaseURL string `yaml:"base_url"`

	// AuthScheme selects how the credential is carried in the Authorization
	// header: AuthSchemeBearer or AuthSchemeToken. The backend decides which
	// it issues, so this is deployment configuration, not code.
	AuthScheme string `yaml:"auth_scheme"`

	// SessionPath is the sqlite file holding the persisted session.
	SessionPath string `yaml:"session_path"`

	// AuditLogPath enables the JSONL request audit log when non-empty.
	AuditLogPath string `yaml:"audit_log_path"`

	// ReadTimeout / WriteTimeout override the default deadline policy.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// LivenessTTL overrides how long health probe results are cached.
	LivenessTTL time.Duration `yaml:"liveness_ttl"`
}

// Load reads a YAML config file and applies environment overrides.
// A missing file is not an error; env and defaults still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	// Environment overrides file values.
	if v := os.Getenv("CONSOLE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CONSOLE_AUTH_SCHEME"); v != "" {
		cfg.AuthScheme = v
	}
	if v := os.Getenv("CONSOLE_SESSION_PATH"); v != "" {
		cfg.SessionPath = v
	}
	if v := os.Getenv("CONSOLE_AUDIT_LOG"); v != "" {
		cfg.AuditLogPath = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.promptshield.dev"
	}
	if c.AuthScheme == "" {
		c.AuthScheme = AuthSchemeBearer
	}
	if c.SessionPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.SessionPath = filepath.Join(home, ".promptshield", "session.db")
		} else {
			c.SessionPath = "session.db"
		}
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.LivenessTTL <= 0 {
		c.LivenessTTL = DefaultLivenessTTL
	}
}

// Validate checks the config for values that would fail at request time.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.AuthScheme != AuthSchemeBearer && c.AuthScheme != AuthSchemeToken {
		return fmt.Errorf("auth_scheme must be %q or %q, got %q", AuthSchemeBearer, AuthSchemeToken, c.AuthScheme)
	}
	return nil
}
