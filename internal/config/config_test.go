package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
store:
  metrics_db_path: /tmp/metrics.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9993", cfg.App.HTTPAddr)
	assert.Equal(t, "/tmp/metrics.db", cfg.Store.MetricsDBPath)
	assert.Equal(t, 3, cfg.Store.Retry.MaxAttempts)

	assert.Equal(t, 30, cfg.Monitor.HealthWindowDays)
	assert.Equal(t, 7, cfg.Monitor.AlertWindowDays)
	assert.Equal(t, 90, cfg.Monitor.CalibrationWindowDays)
	assert.Equal(t, 40.0, cfg.Monitor.Thresholds.MinWinRatePct)
	assert.Equal(t, -2.0, cfg.Monitor.Thresholds.MaxAvgLoss)
	assert.Equal(t, 50, cfg.Monitor.Thresholds.LowHealthScore)

	assert.Equal(t, time.Hour, cfg.Retraining.CheckInterval())
	assert.Equal(t, 12*time.Hour, cfg.Retraining.Cooldown())
	assert.Equal(t, 1, cfg.Retraining.MaxConcurrent)
	assert.Equal(t, 20, cfg.Retraining.MinTrainingSamples)
	assert.Equal(t, 24*time.Hour, cfg.Retraining.JobRetention())
	assert.NotEmpty(t, cfg.Retraining.ServiceURL)

	assert.Equal(t, 20, cfg.Insight.MinRecommendations)
	assert.Equal(t, 5*time.Minute, cfg.Insight.CacheTTL())
}

func TestLoad_ExplicitZeroSurvivesDefaults(t *testing.T) {
	// cooldown_hours: 0 is a deliberate operator choice, not a missing key.
	path := writeConfig(t, `
retraining:
  cooldown_hours: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Retraining.Cooldown())
	assert.Equal(t, 60, cfg.Retraining.CheckIntervalMinutes)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
monitor:
  health_window_days: 14
  thresholds:
    min_win_rate_pct: 45
    max_avg_loss: -1.5
retraining:
  max_concurrent: 3
  cooldown_hours: 6
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Monitor.HealthWindowDays)
	assert.Equal(t, 45.0, cfg.Monitor.Thresholds.MinWinRatePct)
	assert.Equal(t, -1.5, cfg.Monitor.Thresholds.MaxAvgLoss)
	assert.Equal(t, 3, cfg.Retraining.MaxConcurrent)
	assert.Equal(t, 6*time.Hour, cfg.Retraining.Cooldown())
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "alert window larger than health window",
			yaml: `
monitor:
  health_window_days: 7
  alert_window_days: 30
`,
			wantErr: "alert_window_days",
		},
		{
			name: "positive max avg loss",
			yaml: `
monitor:
  thresholds:
    max_avg_loss: 2.0
`,
			wantErr: "max_avg_loss",
		},
		{
			name: "empty training service url",
			yaml: `
retraining:
  service_url: " "
`,
			wantErr: "service_url",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
