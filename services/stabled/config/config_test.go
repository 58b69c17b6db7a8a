package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stabled.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
genesis: genesis.toml
auth:
  hmac_secret: `+testSecret+`
quote:
  max_oracle_age: 45s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7081" || cfg.RateLimit.Burst != 20 || cfg.RateLimit.RequestsPerMinute != 120 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Quote.MaxOracleAge.Duration != 45*time.Second {
		t.Fatalf("unexpected oracle age: %v", cfg.Quote.MaxOracleAge)
	}
	if cfg.Auth.ClockSkew.Duration != 2*time.Minute {
		t.Fatalf("unexpected clock skew: %v", cfg.Auth.ClockSkew)
	}
	if cfg.IsPostgres() {
		t.Fatalf("default database should be sqlite")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"missing genesis": {body: "auth:\n  hmac_secret: " + testSecret + "\n", want: "genesis path required"},
		"short secret":    {body: "genesis: g.toml\nauth:\n  hmac_secret: short\n", want: "hmac_secret"},
		"bad duration":    {body: "genesis: g.toml\nquote:\n  max_oracle_age: soon\n", want: "parse duration"},
		"unknown field":   {body: "genesis: g.toml\nlisten_addr: :1\n", want: "decode config"},
	}
	for name, tc := range cases {
		_, err := Load(writeConfig(t, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", name, tc.want, err)
		}
	}
}

func TestIsPostgres(t *testing.T) {
	cfg := Config{Database: "postgres://stabled@localhost/stabled?sslmode=disable"}
	if !cfg.IsPostgres() {
		t.Fatalf("expected postgres DSN detection")
	}
	cfg.Database = "/var/data/stabled.sqlite"
	if cfg.IsPostgres() {
		t.Fatalf("file path must not be treated as postgres")
	}
}
