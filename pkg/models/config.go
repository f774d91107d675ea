package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

const (
	ConfigVersion           = "1.0.0"
	supportedConfigVersions = "^1"

	DefaultBreachEndpoint = "https://api.pwnedpasswords.com"
)

type Config struct {
	Version  string         `yaml:"version" json:"version"`
	Global   GlobalConfig   `yaml:"global" json:"global"`
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	Breach   BreachConfig   `yaml:"breach" json:"breach"`
	API      APIConfig      `yaml:"api" json:"api"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

type GlobalConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
	LogFile   string `yaml:"log_file" json:"log_file"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

type AnalysisConfig struct {
	UseItemContext bool `yaml:"use_item_context" json:"use_item_context"`
	IncludeItems   bool `yaml:"include_items" json:"include_items"`
	TopDomains     int  `yaml:"top_domains" json:"top_domains"`
}

type BreachConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	UserAgent  string        `yaml:"user_agent" json:"user_agent"`
	Padding    bool          `yaml:"padding" json:"padding"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Stagger    time.Duration `yaml:"stagger" json:"stagger"`
	BatchPause time.Duration `yaml:"batch_pause" json:"batch_pause"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

type APIConfig struct {
	Address        string        `yaml:"address" json:"address"`
	AllowedOrigins []string      `yaml:"allowed_origins" json:"allowed_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" json:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// IncludeSecrets returns passwords and TOTP seeds from /api/results.
	IncludeSecrets bool `yaml:"include_secrets" json:"include_secrets"`
}

type MetricsConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	RuntimeMetrics bool `yaml:"runtime_metrics" json:"runtime_metrics"`
}

func DefaultConfig() *Config {
	return &Config{
		Version: ConfigVersion,
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "json",
			OutputDir: "./reports",
		},
		Analysis: AnalysisConfig{
			UseItemContext: false,
			IncludeItems:   false,
			TopDomains:     10,
		},
		Breach: BreachConfig{
			Enabled:    true,
			Endpoint:   DefaultBreachEndpoint,
			UserAgent:  "VaultLynx/1.0",
			Padding:    true,
			BatchSize:  5,
			Stagger:    200 * time.Millisecond,
			BatchPause: 1500 * time.Millisecond,
			Timeout:    10 * time.Second,
		},
		API: APIConfig{
			Address:        "127.0.0.1:8088",
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadBytes: 32 << 20,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			RuntimeMetrics: true,
		},
	}
}

func (c *Config) Validate() error {
	var errs []string

	if c.Version != "" {
		v, err := semver.NewVersion(c.Version)
		if err != nil {
			errs = append(errs, fmt.Sprintf("version %q is not a semantic version", c.Version))
		} else {
			constraint, _ := semver.NewConstraint(supportedConfigVersions)
			if !constraint.Check(v) {
				errs = append(errs, fmt.Sprintf("version %s is not supported (want %s)", c.Version, supportedConfigVersions))
			}
		}
	}

	switch strings.ToLower(c.Global.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		errs = append(errs, "global.log_level must be one of trace|debug|info|warn|error|fatal|panic")
	}
	switch strings.ToLower(c.Global.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, "global.log_format must be json or text")
	}

	if c.Analysis.TopDomains <= 0 {
		errs = append(errs, "analysis.top_domains must be > 0")
	}

	if c.Breach.Enabled {
		if c.Breach.Endpoint == "" {
			errs = append(errs, "breach.endpoint must not be empty when breach checks are enabled")
		}
		if c.Breach.BatchSize <= 0 {
			errs = append(errs, "breach.batch_size must be > 0")
		}
		if c.Breach.Stagger < 0 {
			errs = append(errs, "breach.stagger must be >= 0")
		}
		if c.Breach.BatchPause < 0 {
			errs = append(errs, "breach.batch_pause must be >= 0")
		}
		if c.Breach.Timeout <= 0 {
			errs = append(errs, "breach.timeout must be > 0")
		}
	}

	if c.API.Address == "" {
		errs = append(errs, "api.address must not be empty")
	}
	if c.API.MaxUploadBytes <= 0 {
		errs = append(errs, "api.max_upload_bytes must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomically write config: %w", err)
	}
	return nil
}

func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			if err2 := json.Unmarshal(data, c); err2 != nil {
				return fmt.Errorf("parse config (yaml/json): %v | %v", err, err2)
			}
		}
	}

	return c.Validate()
}
