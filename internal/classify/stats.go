package classify

import (
	"math"
	"sort"

	"tradedays/pkg/contracts/domain"
)

// dayGroup is one calendar date's slice of the series, in series order.
type dayGroup struct {
	date string
	bars []domain.Bar
}

// groupByDate splits the series into per-date groups, preserving order.
// The series is already strictly increasing, so a date change in the bar
// stream starts a new group.
func groupByDate(series *domain.Series) []dayGroup {
	var groups []dayGroup
	for _, bar := range series.Bars {
		d := bar.Date()
		if len(groups) == 0 || groups[len(groups)-1].date != d {
			groups = append(groups, dayGroup{date: d})
		}
		g := &groups[len(groups)-1]
		g.bars = append(g.bars, bar)
	}
	return groups
}

// computeDayStats derives the per-day metrics from one day's bars.
func computeDayStats(date string, bars []domain.Bar) domain.DayStats {
	first, last := bars[0], bars[len(bars)-1]

	stats := domain.DayStats{
		Date:     date,
		Weekday:  first.Time.Weekday().String(),
		Open:     first.Open,
		Close:    last.Close,
		High:     first.High,
		Low:      first.Low,
		HighTime: first.Time,
		LowTime:  first.Time,
		BarCount: len(bars),
	}

	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.High > stats.High {
			stats.High = b.High
			stats.HighTime = b.Time
		}
		if b.Low < stats.Low {
			stats.Low = b.Low
			stats.LowTime = b.Time
		}
		stats.Volume += b.Volume
		stats.BarRangeSum += b.Range()
		closes = append(closes, b.Close)
	}

	stats.Range = stats.High - stats.Low
	stats.Change = stats.Close - stats.Open
	if stats.Open != 0 {
		stats.ChangePercent = stats.Change / stats.Open * 100
	}
	stats.Direction = domain.DirectionOf(stats.Change)
	stats.Volatility = stddev(closes)
	if stats.Range > 0 {
		stats.ClosePosition = (stats.Close - stats.Low) / stats.Range
	}

	return stats
}

// mean returns the arithmetic mean, or zero for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev returns the sample standard deviation, or zero below two values.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. values need not be sorted.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// MetricSummary describes the distribution of the classification metric
// across all classified days.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Stddev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func summarizeMetric(name string, values []float64) MetricSummary {
	if len(values) == 0 {
		return MetricSummary{Metric: name}
	}
	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	return MetricSummary{
		Metric: name,
		Mean:   mean(values),
		Median: percentile(values, 50),
		Stddev: stddev(values),
		Min:    minV,
		Max:    maxV,
	}
}
