package ingest

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedays/internal/config"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), config.Default().Paths)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	paths := testPaths(t)

	parser, err := NewParser(cfg, slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"20240102 090000;100;101;99;100;10",
		"20240102 090000;100;101;99;100;10", // duplicate -> diagnostics survive the cache
		"20240102 090100;100;102;99;101;20",
	)

	original, err := parser.ParseFile(ctx, path)
	require.NoError(t, err)

	cache := NewCache(paths, slog.Default())
	require.NoError(t, cache.Store(ctx, original))

	loaded, ok := cache.Load(ctx, path)
	require.True(t, ok)

	assert.Equal(t, original.SourceToken, loaded.SourceToken)
	assert.Equal(t, original.Timezone, loaded.Timezone)
	assert.Equal(t, original.Diagnostics.DuplicatesDropped, loaded.Diagnostics.DuplicatesDropped)
	require.Len(t, loaded.Bars, len(original.Bars))
	for i := range original.Bars {
		assert.True(t, original.Bars[i].Time.Equal(loaded.Bars[i].Time))
		assert.Equal(t, original.Bars[i].Open, loaded.Bars[i].Open)
		assert.Equal(t, original.Bars[i].High, loaded.Bars[i].High)
		assert.Equal(t, original.Bars[i].Low, loaded.Bars[i].Low)
		assert.Equal(t, original.Bars[i].Close, loaded.Bars[i].Close)
		assert.Equal(t, original.Bars[i].Volume, loaded.Bars[i].Volume)
	}
}

func TestCache_MissWhenAbsent(t *testing.T) {
	cache := NewCache(testPaths(t), slog.Default())

	_, ok := cache.Load(context.Background(), "never-stored.txt")
	assert.False(t, ok)
}

func TestCache_StaleWhenSourceNewer(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	paths := testPaths(t)

	parser, err := NewParser(cfg, slog.Default())
	require.NoError(t, err)

	path := writeExport(t, "20240102 090000;100;101;99;100;10")
	series, err := parser.ParseFile(ctx, path)
	require.NoError(t, err)

	cache := NewCache(paths, slog.Default())
	require.NoError(t, cache.Store(ctx, series))

	// Touch the source into the future so the cache entry looks stale.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	_, ok := cache.Load(ctx, path)
	assert.False(t, ok)
}

func TestIngestor_CacheAndRecomputeAgree(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	paths := testPaths(t)

	ingestor, err := NewIngestor(cfg, paths, slog.Default())
	require.NoError(t, err)

	path := writeExport(t,
		"20240102 090000;100;101;99;100;10",
		"20240102 090100;100;102;99;101;20",
		"20240103 090000;101;103;100;102;30",
	)

	first, fromCache, err := ingestor.Ingest(ctx, path, true)
	require.NoError(t, err)
	assert.False(t, fromCache)

	second, fromCache, err := ingestor.Ingest(ctx, path, true)
	require.NoError(t, err)
	assert.True(t, fromCache)

	recomputed, fromCache, err := ingestor.Ingest(ctx, path, false)
	require.NoError(t, err)
	assert.False(t, fromCache)

	require.Len(t, second.Bars, len(first.Bars))
	require.Len(t, recomputed.Bars, len(first.Bars))
	for i := range first.Bars {
		assert.True(t, first.Bars[i].Time.Equal(second.Bars[i].Time))
		assert.True(t, first.Bars[i].Time.Equal(recomputed.Bars[i].Time))
		assert.Equal(t, first.Bars[i].Close, second.Bars[i].Close)
		assert.Equal(t, first.Bars[i].Close, recomputed.Bars[i].Close)
	}
	assert.Equal(t, first.Dates(), second.Dates())
	assert.Equal(t, first.Dates(), recomputed.Dates())
}
