// Package ingest parses raw platform export files into normalized,
// validated bar series and caches them in columnar form.
package ingest

import (
	"context"
	"log/slog"

	"tradedays/internal/config"
	"tradedays/pkg/contracts/domain"
)

// Ingestor combines the parser and the cache into the ingestion stage.
type Ingestor struct {
	parser *Parser
	cache  *Cache
	logger *slog.Logger
}

// NewIngestor wires the ingestion stage from configuration.
func NewIngestor(cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Ingestor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser, err := NewParser(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Ingestor{
		parser: parser,
		cache:  NewCache(paths, logger),
		logger: logger,
	}, nil
}

// Ingest produces the normalized series for a source file. With useCache it
// first consults the columnar cache and falls back to a full parse on a
// miss, storing the result for the next run. The boolean return reports
// whether the series came from the cache.
func (in *Ingestor) Ingest(ctx context.Context, path string, useCache bool) (*domain.Series, bool, error) {
	if useCache {
		if series, ok := in.cache.Load(ctx, path); ok {
			return series, true, nil
		}
	}

	series, err := in.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		if err := in.cache.Store(ctx, series); err != nil {
			// A broken cache never fails the run; the next run reparses.
			in.logger.WarnContext(ctx, "failed to store series cache",
				slog.String("error", err.Error()))
		}
	}
	return series, false, nil
}
