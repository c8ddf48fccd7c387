package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradedays/internal/config"
	"tradedays/internal/errors"
	"tradedays/pkg/contracts/domain"
)

// cacheRow is the flat columnar representation of one bar. Timestamps are
// epoch milliseconds so the parquet file stays portable across timezones;
// the reference timezone is restored from the sidecar metadata on load.
type cacheRow struct {
	Timestamp int64   `parquet:"t"`
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    int64   `parquet:"v"`
}

// cacheMeta is the JSON sidecar persisted next to the parquet file. It
// carries what the columnar rows cannot: source identity and the ingestion
// diagnostics, so a cache hit reproduces the recomputation path exactly.
type cacheMeta struct {
	SourcePath  string             `json:"source_path"`
	SourceToken string             `json:"source_token"`
	Timezone    string             `json:"timezone"`
	Diagnostics domain.Diagnostics `json:"diagnostics"`
	StoredAt    time.Time          `json:"stored_at"`
}

// Cache persists normalized series in columnar form, keyed by source
// filename. It is a pure optimization: the recomputation path fully
// substitutes it, and both paths yield identical series.
type Cache struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCache creates a series cache rooted at the configured cache directory.
func NewCache(paths *config.Paths, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{paths: paths, logger: logger}
}

// Store writes the series to the cache, replacing any previous entry for
// the same source.
func (c *Cache) Store(ctx context.Context, series *domain.Series) error {
	path := c.paths.GetCachePath(series.SourcePath)

	rows := make([]cacheRow, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = cacheRow{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}

	if err := parquet.WriteFile(path, rows); err != nil {
		return errors.NewStorageError("write series cache", err).WithContext("path", path)
	}

	meta := cacheMeta{
		SourcePath:  series.SourcePath,
		SourceToken: series.SourceToken,
		Timezone:    series.Timezone,
		Diagnostics: series.Diagnostics,
		StoredAt:    time.Now(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.NewStorageError("encode cache metadata", err)
	}
	if err := os.WriteFile(metaPath(path), data, 0644); err != nil {
		return errors.NewStorageError("write cache metadata", err).WithContext("path", metaPath(path))
	}

	c.logger.InfoContext(ctx, "stored series cache",
		slog.String("path", path),
		slog.Int("bars", len(rows)))
	return nil
}

// Load returns the cached series for a source file. The second return is
// false on a miss: no cache entry, unreadable entry, or an entry older than
// the source file (staleness is judged by modification time).
func (c *Cache) Load(ctx context.Context, sourcePath string) (*domain.Series, bool) {
	path := c.paths.GetCachePath(sourcePath)

	cacheInfo, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if srcInfo, err := os.Stat(sourcePath); err == nil {
		if srcInfo.ModTime().After(cacheInfo.ModTime()) {
			c.logger.InfoContext(ctx, "series cache stale, reprocessing",
				slog.String("path", path))
			return nil, false
		}
	}

	data, err := os.ReadFile(metaPath(path))
	if err != nil {
		c.logger.WarnContext(ctx, "cache metadata missing, reprocessing",
			slog.String("path", metaPath(path)))
		return nil, false
	}
	var meta cacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		c.logger.WarnContext(ctx, "cache metadata unreadable, reprocessing",
			slog.String("path", metaPath(path)),
			slog.String("error", err.Error()))
		return nil, false
	}

	loc, err := time.LoadLocation(meta.Timezone)
	if err != nil {
		return nil, false
	}

	rows, err := parquet.ReadFile[cacheRow](path)
	if err != nil {
		c.logger.WarnContext(ctx, "series cache unreadable, reprocessing",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, false
	}

	series := &domain.Series{
		SourcePath:  meta.SourcePath,
		SourceToken: meta.SourceToken,
		Timezone:    meta.Timezone,
		Bars:        make([]domain.Bar, len(rows)),
		Diagnostics: meta.Diagnostics,
	}
	for i, r := range rows {
		series.Bars[i] = domain.Bar{
			Time:   time.UnixMilli(r.Timestamp).In(loc),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}

	c.logger.InfoContext(ctx, "loaded series from cache",
		slog.String("path", path),
		slog.Int("bars", len(series.Bars)))
	return series, true
}

func metaPath(cachePath string) string {
	return strings.TrimSuffix(cachePath, ".parquet") + ".meta.json"
}
