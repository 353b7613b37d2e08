package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/newspulse/pkg/source"
)

// Config is the root configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	StatsPath string          `yaml:"stats_path"`
	Sources   []source.Source `yaml:"sources"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Notify    NotifyConfig    `yaml:"notify"`
	Retention RetentionConfig `yaml:"retention"`
}

// FetchConfig bounds feed fetching.
type FetchConfig struct {
	MaxItems int    `yaml:"max_items"`
	Interval string `yaml:"interval"`
}

// ParseInterval returns the minimum gap between per-source fetch calls.
func (f FetchConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(f.Interval)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// EnrichConfig configures the Gemini analysis client.
type EnrichConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Interval string `yaml:"interval"`
}

// ParseInterval returns the minimum gap between per-item analysis calls.
func (e EnrichConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(e.Interval)
	if err != nil || d < 0 {
		return 3 * time.Second
	}
	return d
}

// NotifyConfig configures the ServerChan push channel.
type NotifyConfig struct {
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
}

// RetentionConfig controls how long period files are kept.
type RetentionConfig struct {
	Days int `yaml:"days"`
}

// Default returns a Config with sensible defaults. Sources have no
// default: a config file must supply them.
func Default() *Config {
	return &Config{
		DataDir:   "./data",
		StatsPath: "./stats.json",
		Fetch: FetchConfig{
			MaxItems: 10,
			Interval: "1s",
		},
		Enrich: EnrichConfig{
			Interval: "3s",
		},
		Retention: RetentionConfig{Days: 7},
	}
}

// Load reads configuration from a YAML file, applies env var overrides,
// and validates the source list. A missing or malformed source list is a
// configuration error and aborts before any network call.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("config has no sources")
	}
	for i, src := range cfg.Sources {
		if src.Name == "" || src.URL == "" {
			return nil, fmt.Errorf("source %d: name and url are required", i)
		}
		if !src.Type.Valid() {
			return nil, fmt.Errorf("source %s: unknown type %q", src.Name, src.Type)
		}
	}

	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Enrich.APIKey = v
	}
	if v := os.Getenv("SERVERCHAN_KEY"); v != "" {
		cfg.Notify.Key = v
	}
	if v := os.Getenv("NEWSPULSE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}
