package domain

import (
	"time"
)

// Direction describes the net move of a day or session.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// DirectionOf returns the direction for a net change.
func DirectionOf(change float64) Direction {
	switch {
	case change > 0:
		return DirectionUp
	case change < 0:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// LabelUnclassified is the reserved label assigned when no configured rule
// matches a day. It is always a valid outcome; classification never fails on
// well-formed input.
const LabelUnclassified = "UNCLASSIFIED"

// DayStats holds the derived metrics for one calendar date.
type DayStats struct {
	Date     string  `json:"date"`
	Weekday  string  `json:"weekday"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	BarCount int     `json:"bar_count"`

	// Range is the day's high-low span, the default classification metric.
	Range float64 `json:"range"`
	// BarRangeSum is the sum of individual bar ranges, a choppiness proxy.
	BarRangeSum float64 `json:"bar_range_sum"`
	// Change is close minus open; ChangePercent is relative to the open.
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Direction     Direction `json:"direction"`
	// Volatility is the standard deviation of bar closes within the day.
	Volatility float64 `json:"volatility"`
	// ClosePosition locates the close within [low, high] on a 0..1 scale.
	ClosePosition float64 `json:"close_position"`

	HighTime time.Time `json:"high_time"`
	LowTime  time.Time `json:"low_time"`
}

// Metric returns the named classification metric value.
// Unknown names return the day range.
func (d DayStats) Metric(name string) float64 {
	switch name {
	case "volatility":
		return d.Volatility
	case "bar_range_sum":
		return d.BarRangeSum
	default:
		return d.Range
	}
}

// DayClassification is the immutable classification record for one date.
type DayClassification struct {
	DayStats

	Label string `json:"label"`
	// Outlier marks days whose metric exceeds mean + 2 stddev of the dataset.
	Outlier bool `json:"outlier"`
}

// Streak is a run of consecutive days sharing one label.
type Streak struct {
	Label     string `json:"label"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Length    int    `json:"length"`
}

// ExcludedDay records a date dropped from classification for having fewer
// bars than the configured minimum. Excluded days are reported, not silently
// discarded.
type ExcludedDay struct {
	Date     string `json:"date"`
	BarCount int    `json:"bar_count"`
}
