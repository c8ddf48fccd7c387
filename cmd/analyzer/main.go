// Command analyzer runs the full pipeline over one platform export file:
// ingest, classify, session analytics, report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"tradedays/internal/app"
	"tradedays/internal/config"
	"tradedays/internal/infrastructure"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file       = flag.String("file", "", "export file to process (default: newest export in the data directory)")
		dir        = flag.String("dir", "", "directory to scan for exports when -file is not given")
		out        = flag.String("out", "", "reports output directory (default: configured reports_dir)")
		noCache    = flag.Bool("no-cache", false, "ignore the normalized-series cache and re-parse the source")
		configFile = flag.String("config", "", "config file path (default: config.yaml, configs/config.yaml)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}
	if *out != "" {
		cfg.Paths.ReportsDir = *out
	}

	logger, closeLogger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		return 2
	}
	defer closeLogger()
	slog.SetDefault(logger)

	runID := infrastructure.NewRunID()
	ctx := infrastructure.WithRunID(context.Background(), runID)

	baseDir, err := os.Getwd()
	if err != nil {
		logger.Error("resolve working directory", slog.Any("error", err))
		return 1
	}
	paths := config.NewPaths(baseDir, cfg.Paths)

	application, err := app.New(cfg, paths, logger)
	if err != nil {
		logger.ErrorContext(ctx, "application setup failed", slog.Any("error", err))
		return 1
	}

	result, err := application.Run(ctx, runID, app.RunOptions{
		File:    *file,
		Dir:     *dir,
		NoCache: *noCache,
	})
	if err != nil {
		logger.ErrorContext(ctx, "run failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		return 1
	}

	warnings := result.Warnings()
	fmt.Printf("Processed %s: %d bars, %d days classified, %d excluded\n",
		result.Series.SourceToken, len(result.Series.Bars),
		len(result.Classify.Days), len(result.Classify.Excluded))
	if len(warnings.Warnings) > 0 {
		fmt.Printf("%d data quality warnings (see summary report)\n", len(warnings.Warnings))
	}
	for _, artifact := range result.Artifacts.All() {
		fmt.Printf("  %s\n", artifact)
	}

	// Warnings never change the exit code; only fatal errors do.
	return 0
}
