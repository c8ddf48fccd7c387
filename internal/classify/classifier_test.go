package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedays/internal/config"
	"tradedays/pkg/contracts/domain"
)

// syntheticDay appends barCount one-minute bars for a day whose full range
// equals rangeSize, starting at 09:30 local time.
func syntheticDay(t *testing.T, bars []domain.Bar, year int, month time.Month, day, barCount int, rangeSize float64) []domain.Bar {
	t.Helper()
	start := time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
	for i := 0; i < barCount; i++ {
		price := 100.0
		bar := domain.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 100,
		}
		if i == 0 {
			bar.High = price + rangeSize
			bar.Close = price + rangeSize/2
		}
		bars = append(bars, bar)
	}
	return bars
}

func classifierConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Classification.MinBarsPerDay = 5
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestClassifier_PercentileRules(t *testing.T) {
	cfg := classifierConfig(t)

	// Six days with ranges 1..6. With thirds at p33.33 and p66.67 the two
	// largest are STRONG, the middle pair MODERATE, the rest LATERAL.
	var bars []domain.Bar
	for d := 1; d <= 6; d++ {
		bars = syntheticDay(t, bars, 2024, time.March, d+3, 10, float64(d))
	}
	series := &domain.Series{Bars: bars}

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, result.Days, 6)

	labels := make(map[string]string)
	for _, d := range result.Days {
		labels[d.Date] = d.Label
	}
	assert.Equal(t, "LATERAL", labels["2024-03-04"])
	assert.Equal(t, "LATERAL", labels["2024-03-05"])
	assert.Equal(t, "MODERATE", labels["2024-03-06"])
	assert.Equal(t, "MODERATE", labels["2024-03-07"])
	assert.Equal(t, "STRONG", labels["2024-03-08"])
	assert.Equal(t, "STRONG", labels["2024-03-09"])

	assert.Equal(t, map[string]int{"STRONG": 2, "MODERATE": 2, "LATERAL": 2}, result.LabelCounts)
	assert.NotEmpty(t, result.Thresholds)
}

// Every classified day carries exactly one label and the label counts sum
// to the classified day count.
func TestClassifier_EveryDayLabeledExactlyOnce(t *testing.T) {
	cfg := classifierConfig(t)

	var bars []domain.Bar
	for d := 1; d <= 9; d++ {
		bars = syntheticDay(t, bars, 2024, time.April, d, 8, float64(d%4)+0.5)
	}
	series := &domain.Series{Bars: bars}

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, result.Days, 9)

	total := 0
	for _, n := range result.LabelCounts {
		total += n
	}
	assert.Equal(t, len(result.Days), total)
	for _, d := range result.Days {
		assert.NotEmpty(t, d.Label)
	}
}

func TestClassifier_ThinDaysExcluded(t *testing.T) {
	cfg := classifierConfig(t)

	var bars []domain.Bar
	bars = syntheticDay(t, bars, 2024, time.May, 6, 10, 3)
	bars = syntheticDay(t, bars, 2024, time.May, 7, 2, 3) // below MinBarsPerDay
	bars = syntheticDay(t, bars, 2024, time.May, 8, 10, 4)
	series := &domain.Series{Bars: bars}

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), series)
	require.NoError(t, err)

	assert.Len(t, result.Days, 2)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "2024-05-07", result.Excluded[0].Date)
	assert.Equal(t, 2, result.Excluded[0].BarCount)
	assert.Equal(t, 1, result.Diagnostics.CountByKind(domain.WarningExcludedDay))
}

func TestClassifier_AbsoluteBoundsAndUnclassified(t *testing.T) {
	cfg := classifierConfig(t)
	cfg.Classification.Rules = []config.RuleConfig{
		{Label: "big", MinValue: floatPtr(5)},
		{Label: "SMALL", MaxValue: floatPtr(2)},
	}
	require.NoError(t, cfg.Validate())

	var bars []domain.Bar
	bars = syntheticDay(t, bars, 2024, time.June, 3, 10, 6) // big
	bars = syntheticDay(t, bars, 2024, time.June, 4, 10, 3) // no rule matches
	bars = syntheticDay(t, bars, 2024, time.June, 5, 10, 1) // small
	bars = syntheticDay(t, bars, 2024, time.June, 6, 10, 5) // min bound inclusive
	bars = syntheticDay(t, bars, 2024, time.June, 7, 10, 2) // max bound exclusive
	series := &domain.Series{Bars: bars}

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, result.Days, 5)

	assert.Equal(t, "BIG", result.Days[0].Label, "labels are upper-cased")
	assert.Equal(t, domain.LabelUnclassified, result.Days[1].Label)
	assert.Equal(t, "SMALL", result.Days[2].Label)
	assert.Equal(t, "BIG", result.Days[3].Label)
	assert.Equal(t, domain.LabelUnclassified, result.Days[4].Label)
	assert.Equal(t, 2, result.Diagnostics.CountByKind(domain.WarningUnclassified))
}

func TestClassifier_FirstMatchingRuleWins(t *testing.T) {
	cfg := classifierConfig(t)
	cfg.Classification.Rules = []config.RuleConfig{
		{Label: "WIDE", MinValue: floatPtr(0)},
		{Label: "NARROW", MinValue: floatPtr(0), MaxValue: floatPtr(100)},
	}
	require.NoError(t, cfg.Validate())

	bars := syntheticDay(t, nil, 2024, time.June, 10, 10, 2)
	result, err := NewClassifier(cfg, nil).Classify(context.Background(), &domain.Series{Bars: bars})
	require.NoError(t, err)
	require.Len(t, result.Days, 1)
	assert.Equal(t, "WIDE", result.Days[0].Label)
}

func TestClassifier_Streaks(t *testing.T) {
	cfg := classifierConfig(t)
	cfg.Classification.Rules = []config.RuleConfig{
		{Label: "BIG", MinValue: floatPtr(5)},
		{Label: "SMALL", MaxValue: floatPtr(5)},
	}
	require.NoError(t, cfg.Validate())

	// SMALL SMALL SMALL BIG SMALL SMALL: one streak of three.
	ranges := []float64{1, 1, 1, 9, 1, 1}
	var bars []domain.Bar
	for i, r := range ranges {
		bars = syntheticDay(t, bars, 2024, time.July, i+1, 10, r)
	}

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), &domain.Series{Bars: bars})
	require.NoError(t, err)

	require.Len(t, result.Streaks, 1)
	s := result.Streaks[0]
	assert.Equal(t, "SMALL", s.Label)
	assert.Equal(t, "2024-07-01", s.StartDate)
	assert.Equal(t, "2024-07-03", s.EndDate)
	assert.Equal(t, 3, s.Length)
}

func TestClassifier_OutliersAndTopDays(t *testing.T) {
	cfg := classifierConfig(t)
	cfg.Classification.TopDays = 3
	require.NoError(t, cfg.Validate())

	// Nine quiet days and one explosive day well past mean plus two sigma.
	var bars []domain.Bar
	for d := 1; d <= 9; d++ {
		bars = syntheticDay(t, bars, 2024, time.September, d, 10, 2)
	}
	bars = syntheticDay(t, bars, 2024, time.September, 10, 10, 50)

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), &domain.Series{Bars: bars})
	require.NoError(t, err)

	outliers := 0
	for _, d := range result.Days {
		if d.Outlier {
			outliers++
			assert.Equal(t, "2024-09-10", d.Date)
		}
	}
	assert.Equal(t, 1, outliers)

	require.Len(t, result.TopDays, 3)
	assert.Equal(t, "2024-09-10", result.TopDays[0].Date)
	assert.GreaterOrEqual(t, result.TopDays[0].Range, result.TopDays[1].Range)
	assert.GreaterOrEqual(t, result.TopDays[1].Range, result.TopDays[2].Range)
}

func TestClassifier_WeekdayCrosstab(t *testing.T) {
	cfg := classifierConfig(t)
	cfg.Classification.Rules = []config.RuleConfig{{Label: "ANY", MinValue: floatPtr(0)}}
	require.NoError(t, cfg.Validate())

	// 2024-08-05 and 2024-08-12 are both Mondays.
	var bars []domain.Bar
	bars = syntheticDay(t, bars, 2024, time.August, 5, 10, 2)
	bars = syntheticDay(t, bars, 2024, time.August, 6, 10, 2)
	bars = syntheticDay(t, bars, 2024, time.August, 12, 10, 2)

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), &domain.Series{Bars: bars})
	require.NoError(t, err)

	assert.Equal(t, 2, result.WeekdayCounts["Monday"]["ANY"])
	assert.Equal(t, 1, result.WeekdayCounts["Tuesday"]["ANY"])
}

func TestClassifier_EmptySeries(t *testing.T) {
	cfg := classifierConfig(t)

	result, err := NewClassifier(cfg, nil).Classify(context.Background(), &domain.Series{})
	require.NoError(t, err)
	assert.Empty(t, result.Days)
	assert.Empty(t, result.Excluded)
}

func floatPtr(v float64) *float64 { return &v }
