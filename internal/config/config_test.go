package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	windows, err := cfg.SessionWindows()
	require.NoError(t, err)
	assert.Len(t, windows, 3)
	assert.Equal(t, []string{"STRONG", "MODERATE", "LATERAL"}, cfg.Labels())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
input:
  delimiter: ","
  time_layout: "2006-01-02 15:04:05"
  source_timezone: "UTC"
  reference_timezone: "America/New_York"
validation:
  max_gap: 10m
  max_errors: 5
classification:
  min_bars_per_day: 50
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, ",", cfg.Input.Delimiter)
	assert.Equal(t, "UTC", cfg.Input.SourceTimezone)
	assert.Equal(t, 10*time.Minute, cfg.Validation.MaxGap.Std())
	assert.Equal(t, 5, cfg.Validation.MaxErrors)
	assert.Equal(t, 50, cfg.Classification.MinBarsPerDay)
	// Untouched sections keep their defaults.
	assert.Equal(t, "range", cfg.Classification.Metric)
	assert.Len(t, cfg.Sessions, 3)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRADEDAYS_INPUT_DELIMITER", "|")
	t.Setenv("TRADEDAYS_CLASSIFICATION_MIN_BARS_PER_DAY", "77")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "|", cfg.Input.Delimiter)
	assert.Equal(t, 77, cfg.Classification.MinBarsPerDay)
}

func TestValidate_RejectsOverlappingSessions(t *testing.T) {
	cfg := Default()
	cfg.Sessions = []SessionConfig{
		{Name: "ASIA", Start: "19:00", End: "04:00"},
		{Name: "EUROPE", Start: "03:00", End: "12:00"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestValidate_RejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "duplicate session name",
			mutate: func(c *Config) { c.Sessions[1].Name = c.Sessions[0].Name },
		},
		{
			name:   "bad clock value",
			mutate: func(c *Config) { c.Sessions[0].Start = "25:00" },
		},
		{
			name:   "no sessions",
			mutate: func(c *Config) { c.Sessions = nil },
		},
		{
			name:   "unknown metric",
			mutate: func(c *Config) { c.Classification.Metric = "atr" },
		},
		{
			name:   "no rules",
			mutate: func(c *Config) { c.Classification.Rules = nil },
		},
		{
			name:   "reserved rule label",
			mutate: func(c *Config) { c.Classification.Rules[0].Label = "unclassified" },
		},
		{
			name: "duplicate rule label",
			mutate: func(c *Config) {
				c.Classification.Rules[1].Label = c.Classification.Rules[0].Label
			},
		},
		{
			name: "inverted percentile bounds",
			mutate: func(c *Config) {
				c.Classification.Rules[0].MinPercentile = ptr(80)
				c.Classification.Rules[0].MaxPercentile = ptr(20)
			},
		},
		{
			name:   "bad timezone",
			mutate: func(c *Config) { c.Input.SourceTimezone = "Mars/Olympus" },
		},
		{
			name:   "missing datetime column",
			mutate: func(c *Config) { c.Input.Columns = []string{"open", "close"} },
		},
		{
			name:   "duplicate column",
			mutate: func(c *Config) { c.Input.Columns = []string{"datetime", "close", "close"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSessionWindow_Wrapping(t *testing.T) {
	w, err := SessionConfig{Name: "ASIA", Start: "19:00", End: "03:00"}.Window()
	require.NoError(t, err)

	assert.True(t, w.Wraps())
	assert.Equal(t, 8*60, w.Span())
	assert.True(t, w.Contains(20*60))
	assert.True(t, w.Contains(2*60))
	assert.False(t, w.Contains(3*60))
	assert.False(t, w.Contains(12*60))
}

func TestSourceToken(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"data/raw/MNQ 03-26.Last.txt", "MNQ_03-26.Last"},
		{"/abs/export.csv", "export"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SourceToken(tt.path))
	}
}

func TestPaths_CacheNaming(t *testing.T) {
	dir := t.TempDir()
	paths := NewPaths(dir, Default().Paths)
	require.NoError(t, paths.EnsureDirectories())

	cachePath := paths.GetCachePath("data/raw/MNQ 03-26.Last.txt")
	assert.Equal(t, filepath.Join(dir, "data/processed", "MNQ_03-26.Last.norm.parquet"), cachePath)

	assert.DirExists(t, paths.ReportsDir)
	assert.DirExists(t, paths.LogsDir)
}
