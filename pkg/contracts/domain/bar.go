package domain

import (
	"time"
)

// Bar represents one OHLCV bar from a platform export.
// Timestamps are normalized to the run's reference timezone during ingestion.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Range returns the high-low span of the bar.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Date returns the bar's calendar date in its own location.
func (b Bar) Date() string {
	return b.Time.Format("2006-01-02")
}

// MinuteOfDay returns the bar's time-of-day as minutes since midnight.
// Used for session window partitioning.
func (b Bar) MinuteOfDay() int {
	return b.Time.Hour()*60 + b.Time.Minute()
}

// Series is a normalized, validated bar sequence for one source file.
// It is produced exclusively by the ingestion stage and consumed read-only
// by the classifier and session analytics stages.
type Series struct {
	// SourcePath is the raw export file this series was parsed from.
	SourcePath string `json:"source_path"`
	// SourceToken is the filename stem used to key all derived artifacts.
	SourceToken string `json:"source_token"`
	// Timezone is the IANA name of the reference timezone all bar
	// timestamps were converted to.
	Timezone string `json:"timezone"`

	Bars []Bar `json:"bars"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// Empty reports whether the series contains no bars.
func (s *Series) Empty() bool {
	return s == nil || len(s.Bars) == 0
}

// FirstTime returns the timestamp of the first bar, or the zero time.
func (s *Series) FirstTime() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Bars[0].Time
}

// LastTime returns the timestamp of the last bar, or the zero time.
func (s *Series) LastTime() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// Dates returns the unique calendar dates present in the series, in order.
func (s *Series) Dates() []string {
	var dates []string
	var last string
	for _, b := range s.Bars {
		d := b.Date()
		if d != last {
			dates = append(dates, d)
			last = d
		}
	}
	return dates
}
