// Package report renders the pipeline results into text, CSV, and XLSX
// artifacts. It formats, never computes: every number it prints was derived
// by an earlier stage.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"tradedays/internal/classify"
	"tradedays/internal/config"
	"tradedays/internal/errors"
	"tradedays/internal/sessions"
	"tradedays/pkg/contracts/domain"
)

// RunMeta identifies one pipeline run in every artifact it produces.
type RunMeta struct {
	RunID       string
	SourcePath  string
	Token       string
	GeneratedAt time.Time
}

// Artifacts lists the files one run produced, in generation order.
type Artifacts struct {
	ClassificationText string
	ClassificationCSV  string
	SessionsText       string
	SummaryText        string
	Workbook           string
}

// All returns the artifact paths as a slice.
func (a Artifacts) All() []string {
	return []string{a.ClassificationText, a.ClassificationCSV, a.SessionsText, a.SummaryText, a.Workbook}
}

// Assembler writes the report artifacts for one run. Every artifact name
// embeds the source token, so runs over different sources never overwrite
// each other.
type Assembler struct {
	paths  *config.Paths
	csv    *CSVWriter
	logger *slog.Logger
}

// NewAssembler creates a report assembler.
func NewAssembler(paths *config.Paths, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		paths:  paths,
		csv:    NewCSVWriter(paths, logger),
		logger: logger,
	}
}

// Generate writes all artifacts for the run and returns their paths.
func (a *Assembler) Generate(ctx context.Context, meta RunMeta, series *domain.Series, cls *classify.Result, sess *sessions.Result) (*Artifacts, error) {
	if err := os.MkdirAll(a.paths.ReportsDir, 0755); err != nil {
		return nil, errors.NewStorageError("create reports directory", err).WithContext("path", a.paths.ReportsDir)
	}

	monthly := sessions.Monthly(cls.Days)

	artifacts := &Artifacts{
		ClassificationText: a.paths.GetReportPath(meta.Token + "_classification.txt"),
		ClassificationCSV:  a.paths.GetReportPath(meta.Token + "_classification.csv"),
		SessionsText:       a.paths.GetReportPath(meta.Token + "_sessions.txt"),
		SummaryText:        a.paths.GetReportPath(meta.Token + "_summary.txt"),
		Workbook:           a.paths.GetReportPath(meta.Token + "_report.xlsx"),
	}

	if err := writeText(artifacts.ClassificationText, renderClassification(meta, cls)); err != nil {
		return nil, err
	}
	if err := a.writeDayTable(artifacts.ClassificationCSV, cls); err != nil {
		return nil, err
	}
	if err := writeText(artifacts.SessionsText, renderSessions(meta, sess)); err != nil {
		return nil, err
	}
	if err := writeText(artifacts.SummaryText, renderSummary(meta, series, cls, sess, monthly)); err != nil {
		return nil, err
	}
	if err := writeWorkbook(artifacts.Workbook, meta, cls, sess, monthly); err != nil {
		return nil, errors.NewStorageError("write workbook", err).WithContext("path", artifacts.Workbook)
	}

	a.logger.InfoContext(ctx, "report artifacts written",
		slog.String("token", meta.Token),
		slog.Int("artifacts", len(artifacts.All())))

	return artifacts, nil
}

// writeDayTable streams the per-day classification table, one row per day.
func (a *Assembler) writeDayTable(path string, cls *classify.Result) error {
	headers := []string{"date", "weekday", "label", "open", "high", "low", "close",
		"volume", "bar_count", "range", "bar_range_sum", "change", "change_pct",
		"direction", "volatility", "close_position", "high_time", "low_time", "outlier"}

	sw, err := a.csv.CreateStreamWriter(path, headers)
	if err != nil {
		return err
	}
	for _, d := range cls.Days {
		record := []string{
			d.Date,
			d.Weekday,
			d.Label,
			formatFloat(d.Open),
			formatFloat(d.High),
			formatFloat(d.Low),
			formatFloat(d.Close),
			strconv.FormatInt(d.Volume, 10),
			strconv.Itoa(d.BarCount),
			formatFloat(d.Range),
			formatFloat(d.BarRangeSum),
			formatFloat(d.Change),
			formatFloat(d.ChangePercent),
			string(d.Direction),
			formatFloat(d.Volatility),
			formatFloat(d.ClosePosition),
			d.HighTime.Format("15:04"),
			d.LowTime.Format("15:04"),
			strconv.FormatBool(d.Outlier),
		}
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return fmt.Errorf("write day %s: %w", d.Date, err)
		}
	}
	return sw.Close()
}

func writeText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewStorageError("write text report", err).WithContext("path", path)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
