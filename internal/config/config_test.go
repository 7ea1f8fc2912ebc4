package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envOf(map[string]string{
		"AMDASH_ADDR":             ":9090",
		"AMDASH_SOURCE":           "postgrest",
		"SUPABASE_URL":            "https://example.supabase.co",
		"SUPABASE_KEY":            "anon",
		"AMDASH_REFRESH_INTERVAL": "5m",
		"AMDASH_DEBOUNCE":         "200ms",
		"AMDASH_RATE_LIMIT":       "7.5",
		"AMDASH_CORS_ORIGINS":     "https://a.example,https://b.example",
		"AMDASH_LOG_LEVEL":        "",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, SourcePostgREST, cfg.Source.Kind)
	assert.Equal(t, "https://example.supabase.co", cfg.Source.URL)
	assert.Equal(t, "anon", cfg.Source.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 7.5, cfg.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel, "empty values keep the default")
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"AMDASH_REFRESH_INTERVAL", "often"},
		{"AMDASH_DEBOUNCE", "10"},
		{"AMDASH_RATE_LIMIT", "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			err := applyEnv(&cfg, envOf(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }, "addr is empty"},
		{"unknown kind", func(c *Config) { c.Source.Kind = "mongo" }, `unknown source kind "mongo"`},
		{"csv without dir", func(c *Config) { c.Source.DataDir = "" }, "needs data_dir"},
		{"sqlite without path", func(c *Config) { c.Source.Kind = SourceSQLite; c.Source.SQLite = "" }, "needs sqlite_path"},
		{"postgrest without url", func(c *Config) { c.Source.Kind = SourcePostgREST }, "needs url"},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Second }, "debounce"},
		{"negative refresh", func(c *Config) { c.RefreshInterval = -time.Second }, "refresh_interval"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "rate_limit"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, `unknown log_level "loud"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Addr = ""
	cfg.RateLimit = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addr is empty")
	assert.Contains(t, err.Error(), "rate_limit")
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
source:
  kind: sqlite
  sqlite_path: /tmp/am.db
debounce: 1s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, SourceSQLite, cfg.Source.Kind)
	assert.Equal(t, "/tmp/am.db", cfg.Source.SQLite)
	assert.Equal(t, time.Second, cfg.Debounce)
	assert.Equal(t, 15*time.Second, cfg.Source.Timeout, "unset keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o644))
	_, err = Load(path)
	require.ErrorContains(t, err, "parse config")
}
