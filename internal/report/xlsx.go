package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"tradedays/internal/classify"
	"tradedays/internal/sessions"
	"tradedays/pkg/contracts/domain"
)

// writeWorkbook writes the consolidated XLSX workbook: one sheet per report
// section, values typed so spreadsheet tools can sort and chart them.
func writeWorkbook(path string, meta RunMeta, cls *classify.Result, sess *sessions.Result, monthly []domain.MonthlyStat) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeDaysSheet(f, "Days", cls); err != nil {
		return err
	}
	if err := writeSessionSheet(f, "Sessions", sess); err != nil {
		return err
	}
	if err := writeMonthlySheet(f, "Monthly", monthly); err != nil {
		return err
	}
	if err := writeRunSheet(f, "Run", meta, cls); err != nil {
		return err
	}

	// The default sheet excelize creates is replaced by our first one.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func newSheet(f *excelize.File, name string, headers []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return setRow(f, name, 1, toAnySlice(headers))
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func writeDaysSheet(f *excelize.File, name string, cls *classify.Result) error {
	headers := []string{"date", "weekday", "label", "open", "high", "low", "close",
		"volume", "range", "change", "change_pct", "direction", "volatility", "outlier"}
	if err := newSheet(f, name, headers); err != nil {
		return err
	}
	for i, d := range cls.Days {
		row := []any{d.Date, d.Weekday, d.Label, d.Open, d.High, d.Low, d.Close,
			d.Volume, d.Range, d.Change, d.ChangePercent, string(d.Direction), d.Volatility, d.Outlier}
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSessionSheet(f *excelize.File, name string, sess *sessions.Result) error {
	headers := []string{"window", "label", "sessions", "range_mean", "range_median",
		"range_stddev", "range_min", "range_max", "dominant_freq", "high_freq", "low_freq",
		"volume_share", "up", "down"}
	if err := newSheet(f, name, headers); err != nil {
		return err
	}
	row := 2
	all := append(append([]domain.WindowAggregate{}, sess.Aggregates...), sess.ByLabel...)
	for _, agg := range all {
		values := []any{agg.Window, agg.Label, agg.Sessions, agg.RangeMean, agg.RangeMedian,
			agg.RangeStddev, agg.RangeMin, agg.RangeMax, agg.DominantFrequency, agg.HighFrequency,
			agg.LowFrequency, agg.MeanVolumeShare, agg.UpSessions, agg.DownSessions}
		if err := setRow(f, name, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeMonthlySheet(f *excelize.File, name string, monthly []domain.MonthlyStat) error {
	headers := []string{"month", "days", "range_mean", "range_stddev", "range_min",
		"range_max", "mean_volatility", "outliers"}
	if err := newSheet(f, name, headers); err != nil {
		return err
	}
	for i, m := range monthly {
		row := []any{m.Month, m.Days, m.RangeMean, m.RangeStddev, m.RangeMin,
			m.RangeMax, m.MeanVolatility, m.Outliers}
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRunSheet(f *excelize.File, name string, meta RunMeta, cls *classify.Result) error {
	if err := newSheet(f, name, []string{"key", "value"}); err != nil {
		return err
	}
	rows := [][]any{
		{"source", meta.SourcePath},
		{"token", meta.Token},
		{"run_id", meta.RunID},
		{"generated", meta.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"days_classified", len(cls.Days)},
		{"days_excluded", len(cls.Excluded)},
		{"metric", cls.Summary.Metric},
	}
	for i, r := range rows {
		if err := setRow(f, name, i+2, r); err != nil {
			return err
		}
	}
	return nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
