// Package app wires the pipeline stages together and runs them in order:
// ingest, classify, session analytics, report. Stages communicate through
// value types only; a fatal error in one stage stops the run before the next.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradedays/internal/classify"
	"tradedays/internal/config"
	"tradedays/internal/files"
	"tradedays/internal/ingest"
	"tradedays/internal/report"
	"tradedays/internal/sessions"
	"tradedays/pkg/contracts/domain"
)

// RunOptions selects the input of one pipeline run.
type RunOptions struct {
	// File is the export file to process. When empty, the newest export in
	// Dir is used.
	File string
	// Dir is the directory to scan when File is empty. Empty means the
	// configured data directory.
	Dir string
	// NoCache forces a fresh parse even when a current cache entry exists.
	NoCache bool
}

// RunResult carries everything a caller needs after a run: the outputs of
// each stage plus the artifact paths.
type RunResult struct {
	Series    *domain.Series
	Classify  *classify.Result
	Sessions  *sessions.Result
	Artifacts *report.Artifacts
	FromCache bool
	Duration  time.Duration
}

// Warnings returns the merged data quality warnings of all stages.
func (r *RunResult) Warnings() domain.Diagnostics {
	var diag domain.Diagnostics
	diag.Merge(r.Series.Diagnostics)
	diag.Merge(r.Classify.Diagnostics)
	diag.Merge(r.Sessions.Diagnostics)
	return diag
}

// Application holds the pipeline stages for one configured run environment.
type Application struct {
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger

	ingestor   *ingest.Ingestor
	classifier *classify.Classifier
	analyzer   *sessions.Analyzer
	assembler  *report.Assembler
	discovery  *files.Discovery
}

// New builds the application from configuration. Every stage receives its
// dependencies here; nothing is constructed mid-run.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	ingestor, err := ingest.NewIngestor(cfg, paths, logger)
	if err != nil {
		return nil, fmt.Errorf("build ingestor: %w", err)
	}
	analyzer, err := sessions.NewAnalyzer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build session analyzer: %w", err)
	}

	return &Application{
		cfg:        cfg,
		paths:      paths,
		logger:     logger,
		ingestor:   ingestor,
		classifier: classify.NewClassifier(cfg, logger),
		analyzer:   analyzer,
		assembler:  report.NewAssembler(paths, logger),
		discovery:  files.NewDiscovery(paths.BaseDir),
	}, nil
}

// Run executes the pipeline once. Validation failures during ingestion abort
// the run; data quality warnings are collected and reported but never fatal.
func (a *Application) Run(ctx context.Context, runID string, opts RunOptions) (*RunResult, error) {
	started := time.Now()

	sourcePath, err := a.resolveSource(opts)
	if err != nil {
		return nil, err
	}
	token := config.SourceToken(sourcePath)

	a.logger.InfoContext(ctx, "starting run",
		slog.String("source", sourcePath),
		slog.String("token", token),
		slog.Bool("no_cache", opts.NoCache))

	series, fromCache, err := a.ingestor.Ingest(ctx, sourcePath, !opts.NoCache)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", sourcePath, err)
	}

	cls, err := a.classifier.Classify(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	sess, err := a.analyzer.Analyze(ctx, series, cls.Days)
	if err != nil {
		return nil, fmt.Errorf("session analytics: %w", err)
	}

	meta := report.RunMeta{
		RunID:       runID,
		SourcePath:  sourcePath,
		Token:       token,
		GeneratedAt: time.Now(),
	}
	artifacts, err := a.assembler.Generate(ctx, meta, series, cls, sess)
	if err != nil {
		return nil, fmt.Errorf("generate reports: %w", err)
	}

	result := &RunResult{
		Series:    series,
		Classify:  cls,
		Sessions:  sess,
		Artifacts: artifacts,
		FromCache: fromCache,
		Duration:  time.Since(started),
	}

	warnings := result.Warnings()
	a.logger.InfoContext(ctx, "run complete",
		slog.String("token", token),
		slog.Int("days", len(cls.Days)),
		slog.Int("warnings", len(warnings.Warnings)),
		slog.Bool("from_cache", fromCache),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// resolveSource picks the export file: the explicit file when given,
// otherwise the newest export in the requested (or configured) directory.
func (a *Application) resolveSource(opts RunOptions) (string, error) {
	if opts.File != "" {
		return opts.File, nil
	}
	dir := opts.Dir
	if dir == "" {
		dir = a.paths.DataDir
	}
	latest, err := a.discovery.LatestExport(dir)
	if err != nil {
		return "", err
	}
	a.logger.Info("selected newest export", slog.String("file", latest.Path))
	return latest.Path, nil
}
