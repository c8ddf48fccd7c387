package report

import (
	"fmt"
	"sort"
	"strings"

	"tradedays/internal/classify"
	"tradedays/internal/sessions"
	"tradedays/pkg/contracts/domain"
)

const sectionRule = "================================================================"

// section writes a titled block with the fixed-width rule used across all
// text reports.
func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s\n%s\n%s\n", sectionRule, strings.ToUpper(title), sectionRule)
}

// renderClassification produces the per-day classification text report.
func renderClassification(meta RunMeta, result *classify.Result) string {
	var b strings.Builder

	section(&b, "trading day classification")
	fmt.Fprintf(&b, "Source:    %s\n", meta.SourcePath)
	fmt.Fprintf(&b, "Generated: %s  (run %s)\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"), meta.RunID)
	fmt.Fprintf(&b, "Days:      %d classified, %d excluded\n\n", len(result.Days), len(result.Excluded))

	section(&b, "label distribution")
	total := len(result.Days)
	for _, label := range sortedKeys(result.LabelCounts) {
		n := result.LabelCounts[label]
		fmt.Fprintf(&b, "%-14s %5d  %6.1f%%\n", label, n, pct(n, total))
	}
	b.WriteString("\n")

	section(&b, fmt.Sprintf("%s statistics", result.Summary.Metric))
	s := result.Summary
	fmt.Fprintf(&b, "Mean:   %10.2f\n", s.Mean)
	fmt.Fprintf(&b, "Median: %10.2f\n", s.Median)
	fmt.Fprintf(&b, "Stddev: %10.2f\n", s.Stddev)
	fmt.Fprintf(&b, "Min:    %10.2f\n", s.Min)
	fmt.Fprintf(&b, "Max:    %10.2f\n", s.Max)
	if len(result.Thresholds) > 0 {
		b.WriteString("Resolved thresholds:\n")
		for _, k := range sortedKeys(result.Thresholds) {
			fmt.Fprintf(&b, "  %-8s %10.2f\n", k, result.Thresholds[k])
		}
	}
	b.WriteString("\n")

	section(&b, "weekday breakdown")
	labels := sortedKeys(result.LabelCounts)
	fmt.Fprintf(&b, "%-10s", "")
	for _, label := range labels {
		fmt.Fprintf(&b, " %12s", label)
	}
	b.WriteString("\n")
	for _, weekday := range weekdayOrder {
		counts, ok := result.WeekdayCounts[weekday]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%-10s", weekday)
		for _, label := range labels {
			fmt.Fprintf(&b, " %12d", counts[label])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	section(&b, "top days")
	for i, d := range result.TopDays {
		outlier := ""
		if d.Outlier {
			outlier = "  *outlier*"
		}
		fmt.Fprintf(&b, "%2d. %s  %-12s range %8.2f  change %+8.2f%s\n",
			i+1, d.Date, d.Label, d.Range, d.Change, outlier)
	}
	b.WriteString("\n")

	if len(result.Streaks) > 0 {
		section(&b, "streaks")
		for _, st := range result.Streaks {
			fmt.Fprintf(&b, "%-14s %s .. %s  (%d days)\n", st.Label, st.StartDate, st.EndDate, st.Length)
		}
		b.WriteString("\n")
	}

	if len(result.Excluded) > 0 {
		section(&b, "excluded days")
		for _, e := range result.Excluded {
			fmt.Fprintf(&b, "%s  %d bars\n", e.Date, e.BarCount)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderSessions produces the session analytics text report.
func renderSessions(meta RunMeta, result *sessions.Result) string {
	var b strings.Builder

	section(&b, "session analytics")
	fmt.Fprintf(&b, "Source:    %s\n", meta.SourcePath)
	fmt.Fprintf(&b, "Generated: %s  (run %s)\n\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"), meta.RunID)

	section(&b, "session range distribution")
	fmt.Fprintf(&b, "%-10s %8s %10s %10s %10s %10s %10s\n",
		"window", "sessions", "mean", "median", "stddev", "min", "max")
	for _, agg := range result.Aggregates {
		fmt.Fprintf(&b, "%-10s %8d %10.2f %10.2f %10.2f %10.2f %10.2f\n",
			agg.Window, agg.Sessions, agg.RangeMean, agg.RangeMedian, agg.RangeStddev, agg.RangeMin, agg.RangeMax)
	}
	b.WriteString("\n")

	section(&b, "session dominance")
	fmt.Fprintf(&b, "%-10s %10s %10s %10s %10s %6s %6s\n",
		"window", "dominant", "held high", "held low", "vol share", "up", "down")
	for _, agg := range result.Aggregates {
		fmt.Fprintf(&b, "%-10s %9.1f%% %9.1f%% %9.1f%% %9.1f%% %6d %6d\n",
			agg.Window, agg.DominantFrequency*100, agg.HighFrequency*100,
			agg.LowFrequency*100, agg.MeanVolumeShare*100, agg.UpSessions, agg.DownSessions)
	}
	b.WriteString("\n")

	if len(result.Gaps) > 0 {
		section(&b, "opening gaps")
		fmt.Fprintf(&b, "%-22s %6s %10s %10s %10s %6s %6s\n",
			"handoff", "count", "mean", "mean abs", "max abs", "up", "down")
		for _, g := range result.Gaps {
			fmt.Fprintf(&b, "%-10s > %-9s %6d %+10.2f %10.2f %10.2f %6d %6d\n",
				g.From, g.To, g.Count, g.MeanGap, g.MeanAbsGap, g.MaxAbsGap, g.GapUps, g.GapDowns)
		}
		b.WriteString("\n")
	}

	if len(result.Correlations) > 0 {
		section(&b, "range correlations")
		for _, c := range result.Correlations {
			fmt.Fprintf(&b, "%-10s vs %-10s %+7.3f  (%d days)\n", c.From, c.To, c.Coefficient, c.Days)
		}
		b.WriteString("\n")
	}

	if len(result.ByLabel) > 0 {
		section(&b, "per-label session ranges")
		fmt.Fprintf(&b, "%-14s %-10s %8s %10s %10s\n", "label", "window", "sessions", "mean", "stddev")
		for _, agg := range result.ByLabel {
			fmt.Fprintf(&b, "%-14s %-10s %8d %10.2f %10.2f\n",
				agg.Label, agg.Window, agg.Sessions, agg.RangeMean, agg.RangeStddev)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderSummary produces the consolidated executive report: headline counts,
// monthly evolution, and the data quality warning digest.
func renderSummary(meta RunMeta, series *domain.Series, cls *classify.Result, sess *sessions.Result, monthly []domain.MonthlyStat) string {
	var b strings.Builder

	section(&b, "executive summary")
	fmt.Fprintf(&b, "Source:    %s\n", meta.SourcePath)
	fmt.Fprintf(&b, "Token:     %s\n", meta.Token)
	fmt.Fprintf(&b, "Timezone:  %s\n", series.Timezone)
	fmt.Fprintf(&b, "Generated: %s  (run %s)\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"), meta.RunID)
	if !series.Empty() {
		fmt.Fprintf(&b, "Period:    %s .. %s\n",
			series.FirstTime().Format("2006-01-02"), series.LastTime().Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Bars:      %d\n", len(series.Bars))
	fmt.Fprintf(&b, "Days:      %d classified, %d excluded\n\n", len(cls.Days), len(cls.Excluded))

	section(&b, "headline")
	for _, label := range sortedKeys(cls.LabelCounts) {
		fmt.Fprintf(&b, "%-14s %5d days\n", label, cls.LabelCounts[label])
	}
	outliers := 0
	for _, d := range cls.Days {
		if d.Outlier {
			outliers++
		}
	}
	fmt.Fprintf(&b, "%-14s %5d days\n", "OUTLIER", outliers)
	dominant := dominantWindow(sess.Aggregates)
	if dominant != "" {
		fmt.Fprintf(&b, "Dominant session: %s\n", dominant)
	}
	b.WriteString("\n")

	if len(monthly) > 0 {
		section(&b, "monthly evolution")
		fmt.Fprintf(&b, "%-8s %6s %10s %10s %10s %9s\n", "month", "days", "mean rng", "min", "max", "outliers")
		for _, m := range monthly {
			fmt.Fprintf(&b, "%-8s %6d %10.2f %10.2f %10.2f %9d\n",
				m.Month, m.Days, m.RangeMean, m.RangeMin, m.RangeMax, m.Outliers)
		}
		b.WriteString("\n")
	}

	section(&b, "data quality")
	diag := series.Diagnostics
	diag.Merge(cls.Diagnostics)
	diag.Merge(sess.Diagnostics)
	fmt.Fprintf(&b, "Duplicates dropped: %d\n", diag.DuplicatesDropped)
	fmt.Fprintf(&b, "Gaps detected:      %d\n", diag.GapsDetected)
	fmt.Fprintf(&b, "Warnings:           %d\n", len(diag.Warnings))
	for _, w := range diag.Warnings {
		fmt.Fprintf(&b, "  %s\n", w.String())
	}
	b.WriteString("\n")

	return b.String()
}

var weekdayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func dominantWindow(aggs []domain.WindowAggregate) string {
	best := ""
	bestFreq := -1.0
	for _, agg := range aggs {
		if agg.DominantFrequency > bestFreq {
			bestFreq = agg.DominantFrequency
			best = agg.Window
		}
	}
	return best
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
