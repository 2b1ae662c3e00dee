package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alvmarrod/wiki-walker/internal/version"
)

const (
	DefaultRandomURL = "http://en.wikipedia.org/w/index.php?title=Special:Random"
	DefaultTargetURL = "http://en.wikipedia.org/wiki/Philosophy"
)

// Config holds all runtime configuration parameters
type Config struct {
	Trials           int    `json:"trials" yaml:"trials"`
	OutputDir        string `json:"output_dir" yaml:"output_dir"`
	RandomURL        string `json:"random_url" yaml:"random_url"`
	TargetURL        string `json:"target_url" yaml:"target_url"`
	MaxHops          int    `json:"max_hops" yaml:"max_hops"`
	Workers          int    `json:"workers" yaml:"workers"`
	RequestTimeoutMs int    `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	UserAgent        string `json:"user_agent" yaml:"user_agent"`
	DBPath           string `json:"db_path" yaml:"db_path"`
	MetricsPath      string `json:"metrics_path" yaml:"metrics_path"`
	ResumeCache      bool   `json:"resume_cache" yaml:"resume_cache"`
	TopK             int    `json:"top_k" yaml:"top_k"`
	ShowProgress     bool   `json:"show_progress" yaml:"show_progress"`
	LogDir           string `json:"log_dir" yaml:"log_dir"`
	Verbose          bool   `json:"verbose" yaml:"verbose"`
}

// Default returns a configuration with every field set to its default value
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads and validates configuration from a JSON or YAML file.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.Trials == 0 {
		cfg.Trials = 500
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "save"
	}
	if cfg.RandomURL == "" {
		cfg.RandomURL = DefaultRandomURL
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = DefaultTargetURL
	}
	if cfg.MaxHops == 0 {
		cfg.MaxHops = 100
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wiki-walker/" + version.Version
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "walker.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
}

// Validate checks that values are sensible. It is called again after
// command line overrides are applied.
func (cfg *Config) Validate() error {
	if cfg.Trials < 1 {
		return fmt.Errorf("trials must be >= 1")
	}
	if cfg.RandomURL == "" || cfg.TargetURL == "" {
		return fmt.Errorf("random_url and target_url are required")
	}
	if cfg.MaxHops < 1 {
		return fmt.Errorf("max_hops must be >= 1")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1")
	}
	return nil
}
