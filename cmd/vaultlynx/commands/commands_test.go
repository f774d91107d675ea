package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/vaultlynx/internal/app"
	"github.com/bl4ck0w1/vaultlynx/internal/session"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

func withConfigPath(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "config.yaml")
	viper.Set("config", path)
	return path
}

func TestParseValueForKey(t *testing.T) {
	tests := []struct {
		key  string
		in   string
		want interface{}
	}{
		{"breach.enabled", "false", false},
		{"breach.batch_size", "8", 8},
		{"x.ratio", "0.5", 0.5},
		{"breach.stagger", "250ms", "250ms"},
		{"breach.timeout", "1m", "1m0s"},
		{"api.allowed_origins", "http://a, http://b", []string{"http://a", "http://b"}},
		{"global.output_dir", "./out", "./out"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValueForKey(tt.key, tt.in))
		})
	}
}

func TestSetAndGetNested(t *testing.T) {
	doc := map[string]interface{}{"breach": map[string]interface{}{"enabled": true}}
	setNested(doc, []string{"breach", "batch_size"}, 3)
	setNested(doc, []string{"api", "address"}, ":9000")

	v, ok := getNested(doc, []string{"breach", "batch_size"})
	require.True(t, ok)
	assert.Equal(t, 3, v)
	v, ok = getNested(doc, []string{"breach", "enabled"})
	require.True(t, ok)
	assert.Equal(t, true, v)
	v, ok = getNested(doc, []string{"api", "address"})
	require.True(t, ok)
	assert.Equal(t, ":9000", v)

	_, ok = getNested(doc, []string{"breach", "enabled", "deeper"})
	assert.False(t, ok)
	_, ok = getNested(doc, []string{"missing"})
	assert.False(t, ok)
}

func TestConfigureSetWritesValidConfig(t *testing.T) {
	path := withConfigPath(t)

	require.NoError(t, runConfigureSet(nil, []string{"breach.batch_size", "8"}))
	require.NoError(t, runConfigureSet(nil, []string{"breach.stagger", "50ms"}))

	cfg := &models.Config{}
	require.NoError(t, cfg.Load(path))
	assert.Equal(t, 8, cfg.Breach.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Breach.Stagger)
	assert.Equal(t, models.DefaultBreachEndpoint, cfg.Breach.Endpoint, "untouched keys keep their defaults")
}

func TestConfigureSetRejectsInvalidValue(t *testing.T) {
	path := withConfigPath(t)
	require.NoError(t, runConfigureSet(nil, []string{"analysis.top_domains", "5"}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = runConfigureSet(nil, []string{"analysis.top_domains", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.top_domains")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("breach.enabled", false)
	viper.Set("api.address", ":9999")
	viper.Set("analysis.top_domains", 3)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Breach.Enabled)
	assert.Equal(t, ":9999", cfg.API.Address)
	assert.Equal(t, 3, cfg.Analysis.TopDomains)
	assert.Equal(t, models.DefaultConfig().Breach.BatchSize, cfg.Breach.BatchSize)
}

func TestLoadConfigAppliesDurationOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetEnvPrefix("VAULTLYNX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	t.Setenv("VAULTLYNX_BREACH_TIMEOUT", "45s")
	t.Setenv("VAULTLYNX_BREACH_STAGGER", "50ms")
	t.Setenv("VAULTLYNX_BREACH_BATCH_PAUSE", "2s")
	viper.Set("api.read_timeout", "5s")
	viper.Set("api.write_timeout", time.Minute)
	viper.Set("api.include_secrets", true)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Breach.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Breach.Stagger)
	assert.Equal(t, 2*time.Second, cfg.Breach.BatchPause)
	assert.Equal(t, 5*time.Second, cfg.API.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.API.WriteTimeout)
	assert.True(t, cfg.API.IncludeSecrets)
}

const hangingVault = `{
  "encrypted": false,
  "items": [
    {"id": "11111111-a", "name": "GitHub", "login": {"uris": [{"uri": "https://github.com"}], "password": "password"}},
    {"id": "22222222-b", "name": "Bank", "login": {"uris": [{"uri": "https://online.bank.co.uk"}], "password": "correct-horse-battery-staple-42"}}
  ]
}`

func TestWaitForResultsKeepsReportOnTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := models.DefaultConfig()
	cfg.Breach.Endpoint = srv.URL
	cfg.Breach.Stagger = 0
	cfg.Breach.BatchPause = 0
	cfg.Breach.Timeout = time.Minute
	cfg.Metrics.Enabled = false
	pipeline, err := app.New(cfg, utils.NopLogger(), app.Options{})
	require.NoError(t, err)

	h, err := pipeline.Session.Load(context.Background(), "export.json", []byte(hangingVault))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	snap, err := waitForResults(ctx, pipeline.Session, h)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.Equal(t, session.StageComplete, snap.Stage)
	assert.Contains(t, snap.LeakCheckError, "breach check failed")
	assert.Len(t, snap.Items, 2)

	report, err := pipeline.Report(snap)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.TotalItems)
	assert.Equal(t, snap.LeakCheckError, report.LeakCheckError)

	out := filepath.Join(t.TempDir(), "report.json")
	written, err := pipeline.Reports.ExportReport(report, models.ReportFormatJSON, out)
	require.NoError(t, err)
	_, err = os.Stat(written)
	assert.NoError(t, err)
}

func TestDrawBar(t *testing.T) {
	var buf bytes.Buffer
	drawBar(&buf, session.StageInitialAnalysis, 50)
	out := buf.String()
	assert.Contains(t, out, "[====================                    ]")
	assert.Contains(t, out, " 50%")

	buf.Reset()
	drawBar(&buf, session.StagePasswordLeaks, 150)
	assert.Contains(t, buf.String(), "[========================================]")
}

func TestRenderProgressStopsOnComplete(t *testing.T) {
	events := make(chan session.Event, 4)
	events <- session.Event{Type: session.EventStage, Stage: session.StageReading}
	events <- session.Event{Type: session.EventProgress, Stage: session.StageReading, Progress: 40}
	events <- session.Event{Type: session.EventComplete, Stage: session.StageComplete, Progress: 100}

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		renderProgress(&buf, events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("renderProgress did not return after the complete event")
	}
	assert.Contains(t, buf.String(), "100%")
}
