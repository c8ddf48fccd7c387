package domain

import (
	"fmt"
)

// SessionWindow is a named fixed time-of-day interval used to partition a
// trading day. Start and End are minutes since midnight in the reference
// timezone; a window whose End is not after its Start wraps midnight
// (e.g. Asia 19:00 -> 04:00).
type SessionWindow struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Contains reports whether a time-of-day (minutes since midnight) falls
// inside the window. Start is inclusive, End exclusive.
func (w SessionWindow) Contains(minuteOfDay int) bool {
	if w.Wraps() {
		return minuteOfDay >= w.Start || minuteOfDay < w.End
	}
	return minuteOfDay >= w.Start && minuteOfDay < w.End
}

// Wraps reports whether the window crosses midnight.
func (w SessionWindow) Wraps() bool {
	return w.End <= w.Start
}

// Span returns the window length in minutes.
func (w SessionWindow) Span() int {
	if w.Wraps() {
		return 24*60 - w.Start + w.End
	}
	return w.End - w.Start
}

func (w SessionWindow) String() string {
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d", w.Name, w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// SessionStat holds the aggregated metrics of one session window on one date.
type SessionStat struct {
	Date   string `json:"date"`
	Window string `json:"window"`

	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	BarCount int     `json:"bar_count"`

	Range         float64   `json:"range"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Direction     Direction `json:"direction"`

	// HeldDayHigh / HeldDayLow report whether this window contained the
	// day's overall extreme.
	HeldDayHigh bool `json:"held_day_high"`
	HeldDayLow  bool `json:"held_day_low"`

	// RangeShareOfDay and VolumeShareOfDay are fractions of the day totals.
	RangeShareOfDay  float64 `json:"range_share_of_day"`
	VolumeShareOfDay float64 `json:"volume_share_of_day"`

	// Complete is false when the day's bars do not cover the window span.
	// Incomplete sessions are excluded from aggregate statistics.
	Complete bool `json:"complete"`
}

// WindowAggregate holds descriptive statistics for one session window across
// the dataset (or across one classification bucket).
type WindowAggregate struct {
	Window string `json:"window"`
	// Label is empty for whole-dataset aggregates.
	Label string `json:"label,omitempty"`

	Sessions int `json:"sessions"`

	RangeMean   float64 `json:"range_mean"`
	RangeMedian float64 `json:"range_median"`
	RangeStddev float64 `json:"range_stddev"`
	RangeMin    float64 `json:"range_min"`
	RangeMax    float64 `json:"range_max"`

	MeanVolumeShare float64 `json:"mean_volume_share"`
	MeanRangeShare  float64 `json:"mean_range_share"`

	// HighFrequency / LowFrequency are the fractions of complete days on
	// which this window contained the day's high / low.
	HighFrequency float64 `json:"high_frequency"`
	LowFrequency  float64 `json:"low_frequency"`

	// DominantFrequency is the fraction of days on which this window had
	// the largest session range.
	DominantFrequency float64 `json:"dominant_frequency"`

	UpSessions   int `json:"up_sessions"`
	DownSessions int `json:"down_sessions"`
}

// SessionCorrelation is the Pearson correlation between the ranges of two
// windows (or between a window and the full day) across common dates.
type SessionCorrelation struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Coefficient float64 `json:"coefficient"`
	Days        int     `json:"days"`
}

// SessionGap aggregates the opening gap between consecutive sessions, the
// next window's open against the previous window's close, per observed
// window handoff (including the overnight handoff across dates).
type SessionGap struct {
	From string `json:"from"`
	To   string `json:"to"`

	Count      int     `json:"count"`
	MeanGap    float64 `json:"mean_gap"`
	MeanAbsGap float64 `json:"mean_abs_gap"`
	StddevGap  float64 `json:"stddev_gap"`
	MaxAbsGap  float64 `json:"max_abs_gap"`

	GapUps   int `json:"gap_ups"`
	GapDowns int `json:"gap_downs"`
}

// MonthlyStat aggregates classified days by calendar month.
type MonthlyStat struct {
	Month string `json:"month"` // "2006-01"

	Days           int     `json:"days"`
	RangeMean      float64 `json:"range_mean"`
	RangeStddev    float64 `json:"range_stddev"`
	RangeMin       float64 `json:"range_min"`
	RangeMax       float64 `json:"range_max"`
	MeanVolatility float64 `json:"mean_volatility"`

	// LabelCounts maps classification label to day count within the month.
	LabelCounts map[string]int `json:"label_counts"`
	Outliers    int            `json:"outliers"`
}
