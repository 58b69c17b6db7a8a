package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for stabled.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	Database      string          `yaml:"database"`
	StateDir      string          `yaml:"state_dir"`
	Genesis       string          `yaml:"genesis"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Quote         QuoteConfig     `yaml:"quote"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// AuthConfig configures bearer JWT verification for batch submission.
type AuthConfig struct {
	HMACSecret string   `yaml:"hmac_secret"`
	Issuer     string   `yaml:"issuer"`
	ClockSkew  Duration `yaml:"clock_skew"`
}

// RateLimitConfig throttles API clients by address.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// QuoteConfig tunes quote previews.
type QuoteConfig struct {
	// MaxOracleAge rejects client supplied samples older than this, on top of the
	// vault's own staleness threshold.
	MaxOracleAge Duration `yaml:"max_oracle_age"`
}

// LoggingConfig controls log level and optional rotated file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7081"
	}
	if cfg.Database == "" {
		cfg.Database = "/var/data/stabled.sqlite"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "/var/data/stabled-state"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Quote.MaxOracleAge.Duration == 0 {
		cfg.Quote.MaxOracleAge.Duration = 2 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Genesis) == "" {
		return fmt.Errorf("genesis path required")
	}
	if len(strings.TrimSpace(cfg.Auth.HMACSecret)) < 32 {
		return fmt.Errorf("auth.hmac_secret must be at least 32 bytes")
	}
	if cfg.Auth.ClockSkew.Duration < 0 {
		return fmt.Errorf("auth.clock_skew must not be negative")
	}
	if cfg.Quote.MaxOracleAge.Duration < 0 {
		return fmt.Errorf("quote.max_oracle_age must not be negative")
	}
	return nil
}

// IsPostgres reports whether the journal DSN targets postgres.
func (c Config) IsPostgres() bool {
	dsn := strings.ToLower(strings.TrimSpace(c.Database))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
