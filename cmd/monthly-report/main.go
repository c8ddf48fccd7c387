// Command monthly-report produces the month-over-month comparison table for
// one export file: per-month range statistics, label mix, and outlier counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"tradedays/internal/classify"
	"tradedays/internal/config"
	"tradedays/internal/infrastructure"
	"tradedays/internal/ingest"
	"tradedays/internal/report"
	"tradedays/internal/sessions"
	"tradedays/pkg/contracts/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file       = flag.String("file", "", "export file to process (required)")
		out        = flag.String("out", "", "output directory for the monthly CSV (default: configured reports_dir)")
		noCache    = flag.Bool("no-cache", false, "ignore the normalized-series cache")
		configFile = flag.String("config", "", "config file path")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: monthly-report -file <export> [-out <dir>] [-no-cache]")
		return 2
	}

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
	if err := paths.EnsureDirectories(); err != nil {
		logger.ErrorContext(ctx, "prepare directories", slog.Any("error", err))
		return 1
	}

	ingestor, err := ingest.NewIngestor(cfg, paths, logger)
	if err != nil {
		logger.ErrorContext(ctx, "build ingestor", slog.Any("error", err))
		return 1
	}
	series, _, err := ingestor.Ingest(ctx, *file, !*noCache)
	if err != nil {
		logger.ErrorContext(ctx, "ingest failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		return 1
	}

	cls, err := classify.NewClassifier(cfg, logger).Classify(ctx, series)
	if err != nil {
		logger.ErrorContext(ctx, "classification failed", slog.Any("error", err))
		return 1
	}

	monthly := sessions.Monthly(cls.Days)
	if len(monthly) == 0 {
		fmt.Fprintln(os.Stderr, "no classified days to aggregate")
		return 1
	}

	printMonthly(monthly)

	csvPath := series.SourceToken + "_monthly.csv"
	if err := writeMonthlyCSV(paths, csvPath, monthly); err != nil {
		logger.ErrorContext(ctx, "write monthly csv", slog.Any("error", err))
		return 1
	}
	fmt.Printf("\nWrote %s\n", paths.GetReportPath(csvPath))
	return 0
}

func printMonthly(monthly []domain.MonthlyStat) {
	fmt.Printf("%-8s %6s %10s %10s %10s %10s %10s %9s\n",
		"month", "days", "mean rng", "stddev", "min", "max", "mean vol", "outliers")
	for _, m := range monthly {
		fmt.Printf("%-8s %6d %10.2f %10.2f %10.2f %10.2f %10.2f %9d\n",
			m.Month, m.Days, m.RangeMean, m.RangeStddev, m.RangeMin, m.RangeMax,
			m.MeanVolatility, m.Outliers)
	}
}

func writeMonthlyCSV(paths *config.Paths, filename string, monthly []domain.MonthlyStat) error {
	headers := []string{"month", "days", "range_mean", "range_stddev", "range_min",
		"range_max", "mean_volatility", "outliers"}
	records := make([][]string, 0, len(monthly))
	for _, m := range monthly {
		records = append(records, []string{
			m.Month,
			strconv.Itoa(m.Days),
			strconv.FormatFloat(m.RangeMean, 'f', 4, 64),
			strconv.FormatFloat(m.RangeStddev, 'f', 4, 64),
			strconv.FormatFloat(m.RangeMin, 'f', 4, 64),
			strconv.FormatFloat(m.RangeMax, 'f', 4, 64),
			strconv.FormatFloat(m.MeanVolatility, 'f', 4, 64),
			strconv.Itoa(m.Outliers),
		})
	}
	return report.NewCSVWriter(paths, nil).WriteTable(filename, headers, records)
}
