// Package classify derives one behavioral classification per trading day
// from a normalized bar series, using the configured ordered rule set.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tradedays/internal/config"
	"tradedays/pkg/contracts/domain"
)

// Result is the classifier output for one series. It is immutable once
// produced; downstream stages consume it read-only.
type Result struct {
	// Days holds one classification per calendar date with enough bars,
	// in date order.
	Days []domain.DayClassification `json:"days"`
	// Excluded lists dates dropped for having fewer bars than the
	// configured minimum. They are reported, never silently discarded.
	Excluded []domain.ExcludedDay `json:"excluded,omitempty"`

	// LabelCounts maps every label (configured plus UNCLASSIFIED) to its
	// day count. The counts sum to len(Days).
	LabelCounts map[string]int `json:"label_counts"`

	Summary MetricSummary `json:"summary"`
	// Thresholds records each resolved percentile bound, keyed
	// "p<percentile>", for the report's threshold echo.
	Thresholds map[string]float64 `json:"thresholds,omitempty"`

	// WeekdayCounts maps weekday name to per-label day counts.
	WeekdayCounts map[string]map[string]int `json:"weekday_counts"`
	// Streaks lists runs of at least the configured number of consecutive
	// days sharing a label.
	Streaks []domain.Streak `json:"streaks,omitempty"`
	// TopDays holds the N largest days by the classification metric,
	// descending.
	TopDays []domain.DayClassification `json:"top_days,omitempty"`

	Diagnostics domain.Diagnostics `json:"diagnostics"`
}

// Classifier assigns day labels from the configured ordered rules.
// Classification is deterministic for a fixed series and configuration and
// never fails on well-formed input: a day no rule matches gets the reserved
// UNCLASSIFIED label.
type Classifier struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg *config.Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg, logger: logger}
}

// Classify produces one classification record per calendar date with at
// least the configured minimum number of bars.
func (c *Classifier) Classify(ctx context.Context, series *domain.Series) (*Result, error) {
	cls := c.cfg.Classification

	c.logger.InfoContext(ctx, "classifying trading days",
		slog.String("metric", cls.Metric),
		slog.Int("min_bars_per_day", cls.MinBarsPerDay),
		slog.Int("rules", len(cls.Rules)))

	result := &Result{
		LabelCounts:   make(map[string]int),
		WeekdayCounts: make(map[string]map[string]int),
		Thresholds:    make(map[string]float64),
	}

	// Split days into classified and excluded before any threshold math so
	// thin days never skew the percentiles.
	var dayStats []domain.DayStats
	for _, g := range groupByDate(series) {
		if len(g.bars) < cls.MinBarsPerDay {
			result.Excluded = append(result.Excluded, domain.ExcludedDay{Date: g.date, BarCount: len(g.bars)})
			result.Diagnostics.Add(domain.WarningExcludedDay, g.bars[0].Time,
				"day %s excluded: %d bars, minimum %d", g.date, len(g.bars), cls.MinBarsPerDay)
			continue
		}
		dayStats = append(dayStats, computeDayStats(g.date, g.bars))
	}

	if len(dayStats) == 0 {
		c.logger.WarnContext(ctx, "no days with sufficient bars",
			slog.Int("excluded", len(result.Excluded)))
		return result, nil
	}

	metrics := make([]float64, len(dayStats))
	for i, d := range dayStats {
		metrics[i] = d.Metric(cls.Metric)
	}
	result.Summary = summarizeMetric(cls.Metric, metrics)

	rules := c.resolveRules(metrics, result.Thresholds)
	outlierBound := result.Summary.Mean + 2*result.Summary.Stddev

	for _, stats := range dayStats {
		value := stats.Metric(cls.Metric)
		label := c.match(rules, value)
		if label == domain.LabelUnclassified {
			result.Diagnostics.Add(domain.WarningUnclassified, stats.HighTime,
				"day %s matched no classification rule (%s=%.2f)", stats.Date, cls.Metric, value)
		}

		day := domain.DayClassification{
			DayStats: stats,
			Label:    label,
			Outlier:  len(metrics) > 1 && value > outlierBound,
		}
		result.Days = append(result.Days, day)
		result.LabelCounts[label]++

		weekday := result.WeekdayCounts[stats.Weekday]
		if weekday == nil {
			weekday = make(map[string]int)
			result.WeekdayCounts[stats.Weekday] = weekday
		}
		weekday[label]++
	}

	result.Streaks = detectStreaks(result.Days, cls.MinStreakLength)
	result.TopDays = topDays(result.Days, cls.Metric, cls.TopDays)

	c.logger.InfoContext(ctx, "classification complete",
		slog.Int("days", len(result.Days)),
		slog.Int("excluded", len(result.Excluded)),
		slog.Int("streaks", len(result.Streaks)),
		slog.Any("label_counts", result.LabelCounts))

	return result, nil
}

// resolvedRule is a rule with its percentile bounds turned into absolute
// metric values for this dataset.
type resolvedRule struct {
	label    string
	min, max *float64
}

// resolveRules resolves percentile bounds against the dataset's metric
// distribution (adaptive thresholds), leaving absolute bounds untouched.
func (c *Classifier) resolveRules(metrics []float64, thresholds map[string]float64) []resolvedRule {
	resolve := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := percentile(metrics, *p)
		thresholds[fmt.Sprintf("p%.2f", *p)] = v
		return &v
	}

	rules := make([]resolvedRule, 0, len(c.cfg.Classification.Rules))
	for _, r := range c.cfg.Classification.Rules {
		rule := resolvedRule{label: strings.ToUpper(strings.TrimSpace(r.Label))}
		rule.min = resolve(r.MinPercentile)
		rule.max = resolve(r.MaxPercentile)
		if r.MinValue != nil {
			rule.min = r.MinValue
		}
		if r.MaxValue != nil {
			rule.max = r.MaxValue
		}
		rules = append(rules, rule)
	}
	return rules
}

// match evaluates the ordered rules; the first whose bounds the value
// satisfies wins. Min bounds are inclusive, max bounds exclusive.
func (c *Classifier) match(rules []resolvedRule, value float64) string {
	for _, r := range rules {
		if r.min != nil && value < *r.min {
			continue
		}
		if r.max != nil && value >= *r.max {
			continue
		}
		return r.label
	}
	return domain.LabelUnclassified
}

// detectStreaks finds runs of consecutive classified days sharing a label.
func detectStreaks(days []domain.DayClassification, minLength int) []domain.Streak {
	var streaks []domain.Streak
	var current domain.Streak

	flush := func() {
		if current.Length >= minLength {
			streaks = append(streaks, current)
		}
	}

	for _, d := range days {
		if d.Label == current.Label {
			current.EndDate = d.Date
			current.Length++
			continue
		}
		flush()
		current = domain.Streak{Label: d.Label, StartDate: d.Date, EndDate: d.Date, Length: 1}
	}
	flush()

	return streaks
}

// topDays returns the n largest days by metric, descending.
func topDays(days []domain.DayClassification, metric string, n int) []domain.DayClassification {
	sorted := make([]domain.DayClassification, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Metric(metric) > sorted[j].Metric(metric)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
