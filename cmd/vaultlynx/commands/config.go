package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

// defaultConfigPath is where configure writes when --config is not given.
func defaultConfigPath() (string, error) {
	if p := viper.GetString("config"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".vaultlynx", "config.yaml"), nil
}

// loadConfig starts from the defaults, applies the config file viper found, then
// any environment or flag overrides.
func loadConfig() (*models.Config, error) {
	cfg := models.DefaultConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		if err := cfg.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *models.Config) {
	strs := map[string]*string{
		"global.log_level":  &cfg.Global.LogLevel,
		"global.log_format": &cfg.Global.LogFormat,
		"global.log_file":   &cfg.Global.LogFile,
		"global.output_dir": &cfg.Global.OutputDir,
		"breach.endpoint":   &cfg.Breach.Endpoint,
		"breach.user_agent": &cfg.Breach.UserAgent,
		"api.address":       &cfg.API.Address,
	}
	for key, dst := range strs {
		if viper.IsSet(key) {
			if v := viper.GetString(key); v != "" {
				*dst = v
			}
		}
	}

	bools := map[string]*bool{
		"breach.enabled":            &cfg.Breach.Enabled,
		"breach.padding":            &cfg.Breach.Padding,
		"analysis.include_items":    &cfg.Analysis.IncludeItems,
		"analysis.use_item_context": &cfg.Analysis.UseItemContext,
		"api.include_secrets":       &cfg.API.IncludeSecrets,
		"metrics.enabled":           &cfg.Metrics.Enabled,
	}
	for key, dst := range bools {
		if viper.IsSet(key) {
			*dst = viper.GetBool(key)
		}
	}

	durations := map[string]*time.Duration{
		"breach.timeout":     &cfg.Breach.Timeout,
		"breach.stagger":     &cfg.Breach.Stagger,
		"breach.batch_pause": &cfg.Breach.BatchPause,
		"api.read_timeout":   &cfg.API.ReadTimeout,
		"api.write_timeout":  &cfg.API.WriteTimeout,
	}
	for key, dst := range durations {
		if viper.IsSet(key) {
			*dst = viper.GetDuration(key)
		}
	}

	if viper.IsSet("breach.batch_size") {
		cfg.Breach.BatchSize = viper.GetInt("breach.batch_size")
	}
	if viper.IsSet("analysis.top_domains") {
		cfg.Analysis.TopDomains = viper.GetInt("analysis.top_domains")
	}
	if viper.IsSet("api.allowed_origins") {
		cfg.API.AllowedOrigins = viper.GetStringSlice("api.allowed_origins")
	}

	logrus.WithFields(logrus.Fields{
		"breach_enabled": cfg.Breach.Enabled,
		"endpoint":       cfg.Breach.Endpoint,
	}).Debug("configuration resolved")
}
