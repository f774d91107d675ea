package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.LogLevel = "loud"
	cfg.Analysis.TopDomains = 0
	cfg.Breach.BatchSize = 0
	cfg.API.Address = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "configuration validation failed:")
	assert.Contains(t, msg, "global.log_level")
	assert.Contains(t, msg, "analysis.top_domains")
	assert.Contains(t, msg, "breach.batch_size")
	assert.Contains(t, msg, "api.address")
}

func TestValidateSkipsBreachWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Breach.Enabled = false
	cfg.Breach.Endpoint = ""
	cfg.Breach.BatchSize = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"", false},
		{"1.0.0", false},
		{"1.4.2", false},
		{"2.0.0", true},
		{"banana", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Version = tt.version
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Breach.BatchSize = 7
			cfg.Breach.Stagger = 75 * time.Millisecond
			cfg.API.AllowedOrigins = []string{"https://vault.example"}
			require.NoError(t, cfg.Save(path))

			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file is renamed away")

			loaded := &Config{}
			require.NoError(t, loaded.Load(path))
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestSaveRefusesInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Global.LogFormat = "xml"
	require.Error(t, cfg.Save(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("breach:\n  batch_size: 3\n  stagger: 1s\n"), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.Load(path))
	assert.Equal(t, 3, cfg.Breach.BatchSize)
	assert.Equal(t, time.Second, cfg.Breach.Stagger)
	assert.Equal(t, DefaultBreachEndpoint, cfg.Breach.Endpoint)
	assert.Equal(t, 10, cfg.Analysis.TopDomains)
}

func TestLoadMissingFile(t *testing.T) {
	err := DefaultConfig().Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
