package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceCSV       = "csv"
	SourceJSON      = "json"
	SourceSQLite    = "sqlite"
	SourcePostgREST = "postgrest"
)

type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	Source SourceConfig `yaml:"source"`

	// RefreshInterval reloads every dataset snapshot; 0 disables it.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// Debounce is the settle time for coarse filter input.
	Debounce time.Duration `yaml:"debounce"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	// CORSOrigins defaults to any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

type SourceConfig struct {
	Kind     string        `yaml:"kind"`
	DataDir  string        `yaml:"data_dir"`
	SQLite   string        `yaml:"sqlite_path"`
	JSONPath string        `yaml:"json_path"`
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Source: SourceConfig{
			Kind:     SourceCSV,
			DataDir:  "data",
			SQLite:   "data/amdash.db",
			JSONPath: "$[*]",
			Timeout:  15 * time.Second,
		},
		Debounce:  350 * time.Millisecond,
		RateLimit: 20,
	}
}

// Load overlays the YAML file at path (if any) on the defaults, then applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("AMDASH_ADDR", &cfg.Addr)
	str("AMDASH_LOG_LEVEL", &cfg.LogLevel)
	str("AMDASH_SOURCE", &cfg.Source.Kind)
	str("AMDASH_DATA_DIR", &cfg.Source.DataDir)
	str("AMDASH_SQLITE_PATH", &cfg.Source.SQLite)
	str("AMDASH_JSON_PATH", &cfg.Source.JSONPath)
	str("SUPABASE_URL", &cfg.Source.URL)
	str("SUPABASE_KEY", &cfg.Source.APIKey)

	if v, ok := lookup("AMDASH_REFRESH_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AMDASH_REFRESH_INTERVAL: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if v, ok := lookup("AMDASH_DEBOUNCE"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AMDASH_DEBOUNCE: %w", err)
		}
		cfg.Debounce = d
	}
	if v, ok := lookup("AMDASH_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AMDASH_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = f
	}
	if v, ok := lookup("AMDASH_CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	switch c.Source.Kind {
	case SourceCSV, SourceJSON:
		if c.Source.DataDir == "" {
			errs = append(errs, fmt.Errorf("source %s needs data_dir", c.Source.Kind))
		}
	case SourceSQLite:
		if c.Source.SQLite == "" {
			errs = append(errs, errors.New("source sqlite needs sqlite_path"))
		}
	case SourcePostgREST:
		if c.Source.URL == "" {
			errs = append(errs, errors.New("source postgrest needs url (SUPABASE_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}
	if c.Debounce < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, errors.New("refresh_interval must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
