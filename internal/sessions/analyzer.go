// Package sessions partitions each trading day into the configured session
// windows and computes per-session and cross-session statistics.
package sessions

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"tradedays/internal/config"
	"tradedays/pkg/contracts/domain"
)

// minCoverage is the fraction of a window's expected bars a session must
// reach to count as complete. Incomplete sessions stay in the per-day output
// but are excluded from aggregates so holiday half-days do not drag the
// statistics down.
const minCoverage = 0.8

// Result is the session analytics output for one series.
type Result struct {
	// Sessions holds every per-day-per-window record in date order, windows
	// in configured order within a date. Incomplete sessions are included.
	Sessions []domain.SessionStat `json:"sessions"`

	// Aggregates holds whole-dataset statistics per window, in configured
	// window order, computed over complete sessions only.
	Aggregates []domain.WindowAggregate `json:"aggregates"`
	// ByLabel holds per-window statistics within each classification label.
	// Empty when the analyzer ran without classifications.
	ByLabel []domain.WindowAggregate `json:"by_label,omitempty"`

	// Correlations holds Pearson coefficients between window ranges across
	// common complete dates, plus each window against the full day range.
	Correlations []domain.SessionCorrelation `json:"correlations,omitempty"`

	// Gaps holds the opening-gap statistics between consecutive sessions,
	// one entry per observed window handoff.
	Gaps []domain.SessionGap `json:"gaps,omitempty"`

	Diagnostics domain.Diagnostics `json:"diagnostics"`
}

// Analyzer computes session statistics over the normalized series.
// Partitioning is exhaustive over the configured windows: a bar belongs to
// the first window containing its time of day, and bars outside every window
// are left out of session statistics entirely.
type Analyzer struct {
	windows []domain.SessionWindow
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer for the configured session windows.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) (*Analyzer, error) {
	windows, err := cfg.SessionWindows()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{windows: windows, logger: logger}, nil
}

// dayExtent holds the whole-day reference values session shares and
// containment are measured against. It is derived from the bars alone, so
// every date in the series gets session statistics regardless of what the
// classifier did with it.
type dayExtent struct {
	high   float64
	low    float64
	rng    float64
	volume int64
}

func computeDayExtent(bars []domain.Bar) dayExtent {
	e := dayExtent{high: bars[0].High, low: bars[0].Low}
	for _, b := range bars {
		if b.High > e.high {
			e.high = b.High
		}
		if b.Low < e.low {
			e.low = b.Low
		}
		e.volume += b.Volume
	}
	e.rng = e.high - e.low
	return e
}

// Analyze computes per-session statistics for every calendar date in the
// series, then the cross-day aggregates, correlations, and opening gaps.
// days is optional: when present it only feeds the per-label breakdown.
func (a *Analyzer) Analyze(ctx context.Context, series *domain.Series, days []domain.DayClassification) (*Result, error) {
	a.logger.InfoContext(ctx, "computing session statistics",
		slog.Int("windows", len(a.windows)),
		slog.Int("bars", len(series.Bars)),
		slog.Int("classified_days", len(days)))

	result := &Result{}

	byDate := barsByDate(series)
	interval := dominantInterval(series)

	dayRanges := make(map[string]float64, len(byDate))
	for _, date := range series.Dates() {
		bars := byDate[date]
		extent := computeDayExtent(bars)
		dayRanges[date] = extent.rng

		stats := a.partitionDay(date, extent, bars, interval)
		for _, s := range stats {
			if !s.Complete {
				result.Diagnostics.Add(domain.WarningPartialDay, time.Time{},
					"session %s on %s covers only %d bars", s.Window, s.Date, s.BarCount)
			}
		}
		result.Sessions = append(result.Sessions, stats...)
	}

	labelByDate := make(map[string]string, len(days))
	for _, day := range days {
		labelByDate[day.Date] = day.Label
	}

	result.Aggregates = a.aggregate(result.Sessions, "")
	result.ByLabel = a.aggregateByLabel(result.Sessions, labelByDate)
	result.Correlations = a.correlate(result.Sessions, dayRanges)
	result.Gaps = openingGaps(result.Sessions)

	a.logger.InfoContext(ctx, "session statistics complete",
		slog.Int("sessions", len(result.Sessions)),
		slog.Int("partial", result.Diagnostics.CountByKind(domain.WarningPartialDay)))

	return result, nil
}

// partitionDay splits one day's bars across the windows and computes a stat
// record per non-empty window, in configured window order.
func (a *Analyzer) partitionDay(date string, extent dayExtent, bars []domain.Bar, interval time.Duration) []domain.SessionStat {
	grouped := make([][]domain.Bar, len(a.windows))
	for _, b := range bars {
		for i, w := range a.windows {
			if w.Contains(b.MinuteOfDay()) {
				grouped[i] = append(grouped[i], b)
				break
			}
		}
	}

	var stats []domain.SessionStat
	for i, w := range a.windows {
		if len(grouped[i]) == 0 {
			continue
		}
		stats = append(stats, computeSessionStat(date, extent, w, grouped[i], interval))
	}
	return stats
}

// computeSessionStat derives one window's statistics for one date.
func computeSessionStat(date string, extent dayExtent, w domain.SessionWindow, bars []domain.Bar, interval time.Duration) domain.SessionStat {
	first, last := bars[0], bars[len(bars)-1]

	s := domain.SessionStat{
		Date:   date,
		Window: w.Name,
		Open:   first.Open,
		Close:  last.Close,
		High:   first.High,
		Low:    first.Low,
	}
	for _, b := range bars {
		if b.High > s.High {
			s.High = b.High
		}
		if b.Low < s.Low {
			s.Low = b.Low
		}
		s.Volume += b.Volume
	}
	s.BarCount = len(bars)
	s.Range = s.High - s.Low
	s.Change = s.Close - s.Open
	if s.Open != 0 {
		s.ChangePercent = s.Change / s.Open * 100
	}
	s.Direction = domain.DirectionOf(s.Change)

	s.HeldDayHigh = s.High == extent.high
	s.HeldDayLow = s.Low == extent.low
	if extent.rng > 0 {
		s.RangeShareOfDay = s.Range / extent.rng
	}
	if extent.volume > 0 {
		s.VolumeShareOfDay = float64(s.Volume) / float64(extent.volume)
	}

	expected := float64(w.Span()) / interval.Minutes()
	s.Complete = float64(s.BarCount) >= minCoverage*expected

	return s
}

// aggregate computes descriptive statistics per window over complete
// sessions. label scopes the aggregate to days carrying that label; empty
// means the whole dataset.
func (a *Analyzer) aggregate(sessions []domain.SessionStat, label string) []domain.WindowAggregate {
	type acc struct {
		ranges      welford
		medianVals  []float64
		volumeShare welford
		rangeShare  welford
		heldHigh    int
		heldLow     int
		dominant    int
		up, down    int
	}
	accs := make(map[string]*acc, len(a.windows))
	for _, w := range a.windows {
		accs[w.Name] = &acc{}
	}

	// Dominance is decided per date among that date's complete sessions.
	byDate := make(map[string][]domain.SessionStat)
	for _, s := range sessions {
		if !s.Complete {
			continue
		}
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	completeDays := 0
	for _, daySessions := range byDate {
		completeDays++
		dominant := ""
		best := -1.0
		for _, s := range daySessions {
			if s.Range > best {
				best = s.Range
				dominant = s.Window
			}
		}
		for _, s := range daySessions {
			w := accs[s.Window]
			w.ranges.add(s.Range)
			w.medianVals = append(w.medianVals, s.Range)
			w.volumeShare.add(s.VolumeShareOfDay)
			w.rangeShare.add(s.RangeShareOfDay)
			if s.HeldDayHigh {
				w.heldHigh++
			}
			if s.HeldDayLow {
				w.heldLow++
			}
			if s.Window == dominant {
				w.dominant++
			}
			switch s.Direction {
			case domain.DirectionUp:
				w.up++
			case domain.DirectionDown:
				w.down++
			}
		}
	}

	var out []domain.WindowAggregate
	for _, w := range a.windows {
		c := accs[w.Name]
		if c.ranges.n == 0 {
			continue
		}
		agg := domain.WindowAggregate{
			Window:          w.Name,
			Label:           label,
			Sessions:        c.ranges.n,
			RangeMean:       c.ranges.mean,
			RangeMedian:     median(c.medianVals),
			RangeStddev:     c.ranges.stddev(),
			RangeMin:        c.ranges.min,
			RangeMax:        c.ranges.max,
			MeanVolumeShare: c.volumeShare.mean,
			MeanRangeShare:  c.rangeShare.mean,
			UpSessions:      c.up,
			DownSessions:    c.down,
		}
		if completeDays > 0 {
			agg.HighFrequency = float64(c.heldHigh) / float64(completeDays)
			agg.LowFrequency = float64(c.heldLow) / float64(completeDays)
			agg.DominantFrequency = float64(c.dominant) / float64(completeDays)
		}
		out = append(out, agg)
	}
	return out
}

// aggregateByLabel produces per-window aggregates within each label, labels
// in first-seen date order. Sessions on dates without a label (unclassified
// input or excluded days) are left out.
func (a *Analyzer) aggregateByLabel(sessions []domain.SessionStat, labelByDate map[string]string) []domain.WindowAggregate {
	var labels []string
	seen := make(map[string]bool)
	grouped := make(map[string][]domain.SessionStat)
	for _, s := range sessions {
		label := labelByDate[s.Date]
		if label == "" {
			continue
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
		grouped[label] = append(grouped[label], s)
	}

	var out []domain.WindowAggregate
	for _, label := range labels {
		out = append(out, a.aggregate(grouped[label], label)...)
	}
	return out
}

// correlate computes the Pearson correlation of session ranges between every
// pair of windows, and of each window against the full day range, over dates
// where both sides have a complete session.
func (a *Analyzer) correlate(sessions []domain.SessionStat, dayRanges map[string]float64) []domain.SessionCorrelation {
	// window -> date -> range, complete sessions only
	byWindow := make(map[string]map[string]float64, len(a.windows))
	for _, w := range a.windows {
		byWindow[w.Name] = make(map[string]float64)
	}
	for _, s := range sessions {
		if s.Complete {
			byWindow[s.Window][s.Date] = s.Range
		}
	}

	pair := func(from, to string, toRanges map[string]float64) (domain.SessionCorrelation, bool) {
		var xs, ys []float64
		dates := make([]string, 0, len(byWindow[from]))
		for date := range byWindow[from] {
			if _, ok := toRanges[date]; ok {
				dates = append(dates, date)
			}
		}
		sort.Strings(dates)
		for _, date := range dates {
			xs = append(xs, byWindow[from][date])
			ys = append(ys, toRanges[date])
		}
		if len(xs) < 2 {
			return domain.SessionCorrelation{}, false
		}
		return domain.SessionCorrelation{
			From:        from,
			To:          to,
			Coefficient: pearson(xs, ys),
			Days:        len(xs),
		}, true
	}

	var out []domain.SessionCorrelation
	for i := 0; i < len(a.windows); i++ {
		for j := i + 1; j < len(a.windows); j++ {
			from, to := a.windows[i].Name, a.windows[j].Name
			if c, ok := pair(from, to, byWindow[to]); ok {
				out = append(out, c)
			}
		}
	}
	for _, w := range a.windows {
		if c, ok := pair(w.Name, "DAY", dayRanges); ok {
			out = append(out, c)
		}
	}
	return out
}

// barsByDate indexes the series bars by calendar date.
func barsByDate(series *domain.Series) map[string][]domain.Bar {
	byDate := make(map[string][]domain.Bar)
	for _, b := range series.Bars {
		d := b.Date()
		byDate[d] = append(byDate[d], b)
	}
	return byDate
}

// dominantInterval infers the bar interval as the most common delta between
// consecutive bars within a day, defaulting to one minute.
func dominantInterval(series *domain.Series) time.Duration {
	counts := make(map[time.Duration]int)
	for i := 1; i < len(series.Bars); i++ {
		prev, cur := series.Bars[i-1], series.Bars[i]
		if prev.Date() != cur.Date() {
			continue
		}
		counts[cur.Time.Sub(prev.Time)]++
	}

	best := time.Minute
	bestCount := 0
	for d, n := range counts {
		if n > bestCount && d > 0 {
			best = d
			bestCount = n
		}
	}
	return best
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
