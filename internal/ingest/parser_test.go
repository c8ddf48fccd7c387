package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedays/internal/config"
	"tradedays/internal/errors"
	"tradedays/pkg/contracts/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Input.SourceTimezone = "UTC"
	cfg.Input.ReferenceTimezone = "UTC"
	cfg.Classification.MinBarsPerDay = 1
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeExport(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "MNQ 03-26.Last.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestParser_ParseFile(t *testing.T) {
	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"20240102 090000;100.0;101.5;99.5;101.0;1200",
		"20240102 090100;101.0;102.0;100.5;101.5;800",
		"20240102 090200;101.5;101.5;100.0;100.5;950",
	)

	series, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, series.Bars, 3)
	assert.Equal(t, "MNQ_03-26.Last", series.SourceToken)
	assert.Equal(t, path, series.SourcePath)

	first := series.Bars[0]
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 101.5, first.High)
	assert.Equal(t, 99.5, first.Low)
	assert.Equal(t, 101.0, first.Close)
	assert.Equal(t, int64(1200), first.Volume)
	assert.InDelta(t, 2.0, first.Range(), 1e-9)
}

func TestParser_TimezoneConversion(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.SourceTimezone = "UTC"
	cfg.Input.ReferenceTimezone = "America/New_York"
	parser, err := NewParser(cfg, slog.Default())
	require.NoError(t, err)

	// 14:30 UTC on a January day is 09:30 in New York.
	path := writeExport(t, "20240102 143000;100;101;99;100;10")

	series, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, series.Bars, 1)

	bar := series.Bars[0]
	assert.Equal(t, 9, bar.Time.Hour())
	assert.Equal(t, 30, bar.Time.Minute())
	assert.Equal(t, 9*60+30, bar.MinuteOfDay())
}

func TestParser_SkipsHeaderLine(t *testing.T) {
	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"datetime;open;high;low;close;volume",
		"20240102 090000;100;101;99;100;10",
	)

	series, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, series.Bars, 1)
}

func TestParser_DuplicateKeepsFirstAndWarnsOnce(t *testing.T) {
	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"20240102 090000;100;101;99;100;10",
		"20240102 090000;100;101;99;100;10",
		"20240102 090100;100;102;99;101;20",
	)

	series, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, series.Bars, 2)
	assert.Equal(t, 1, series.Diagnostics.DuplicatesDropped)
	assert.Equal(t, 1, series.Diagnostics.CountByKind(domain.WarningDuplicate))
	// First occurrence kept.
	assert.Equal(t, 100.0, series.Bars[0].Close)
}

func TestParser_GapFlaggedButNotFatal(t *testing.T) {
	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"20240102 090000;100;101;99;100;10",
		"20240102 093000;100;102;99;101;20", // 30 minute hole, threshold 5m
	)

	series, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, series.Bars, 2)
	assert.Equal(t, 1, series.Diagnostics.GapsDetected)
	assert.Equal(t, 1, series.Diagnostics.CountByKind(domain.WarningGap))
}

func TestParser_StrictlyIncreasingOutput(t *testing.T) {
	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"20240102 090000;100;101;99;100;10",
		"20240102 090100;100;101;99;100;10",
		"20240102 090100;100;101;99;100;10",
		"20240102 090200;100;101;99;100;10",
	)

	series, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)

	for i := 1; i < len(series.Bars); i++ {
		assert.True(t, series.Bars[i].Time.After(series.Bars[i-1].Time),
			"timestamps must be strictly increasing")
	}
	for _, b := range series.Bars {
		assert.GreaterOrEqual(t, b.Open, 0.0)
		assert.GreaterOrEqual(t, b.Volume, int64(0))
	}
}

func TestParser_FatalValidation(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		wantMsg string
	}{
		{
			name:    "empty file",
			lines:   []string{""},
			wantMsg: "no data rows",
		},
		{
			name:    "malformed delimiter",
			lines:   []string{"20240102 090000,100,101,99,100,10"},
			wantMsg: "expected 6 fields",
		},
		{
			name:    "bad timestamp",
			lines:   []string{"2024-01-02;100;101;99;100;10"},
			wantMsg: "invalid timestamp",
		},
		{
			name:    "negative price",
			lines:   []string{"20240102 090000;-5;101;99;100;10"},
			wantMsg: "negative open price",
		},
		{
			name:    "negative volume",
			lines:   []string{"20240102 090000;100;101;99;100;-3"},
			wantMsg: "negative volume",
		},
		{
			name:    "high below low",
			lines:   []string{"20240102 090000;100;99;101;100;10"},
			wantMsg: "high 99.0000 below low",
		},
		{
			name:    "close outside range",
			lines:   []string{"20240102 090000;100;101;99;150;10"},
			wantMsg: "close 150.0000 outside high/low range",
		},
		{
			name: "out of order timestamps",
			lines: []string{
				"20240102 090200;100;101;99;100;10",
				"20240102 090000;100;101;99;100;10",
			},
			wantMsg: "out-of-order timestamp",
		},
	}

	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeExport(t, tt.lines...)
			_, err := parser.ParseFile(context.Background(), path)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParser_ViolationListCapped(t *testing.T) {
	cfg := testConfig(t)
	cfg.Validation.MaxErrors = 2
	parser, err := NewParser(cfg, slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"bad line one",
		"bad line two",
		"bad line three",
		"bad line four",
	)

	_, err = parser.ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 violation(s)")
	assert.Contains(t, err.Error(), "... and 2 more")
}

func TestParser_MissingFile(t *testing.T) {
	parser, err := NewParser(testConfig(t), slog.Default())
	require.NoError(t, err)

	_, err = parser.ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestParser_PriceBounds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Validation.PriceMin = 1000
	cfg.Validation.PriceMax = 50000
	parser, err := NewParser(cfg, slog.Default())
	require.NoError(t, err)

	path := writeExport(t, "20240102 090000;100;101;99;100;10")

	_, err = parser.ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")
}
