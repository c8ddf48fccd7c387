package domain

import (
	"fmt"
	"time"
)

// WarningKind categorizes non-fatal data quality findings.
type WarningKind string

const (
	WarningDuplicate    WarningKind = "DUPLICATE_TIMESTAMP"
	WarningGap          WarningKind = "TIME_GAP"
	WarningExcludedDay  WarningKind = "EXCLUDED_DAY"
	WarningPartialDay   WarningKind = "PARTIAL_DAY"
	WarningUnclassified WarningKind = "UNCLASSIFIED_DAY"
)

// DataQualityWarning is a single non-fatal finding. Warnings are collected
// during the run and surfaced in the consolidated report; they never abort
// processing.
type DataQualityWarning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	At      time.Time   `json:"at,omitempty"`
}

func (w DataQualityWarning) String() string {
	if w.At.IsZero() {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s (at %s)", w.Kind, w.Message, w.At.Format("2006-01-02 15:04"))
}

// Diagnostics accumulates per-run data quality findings.
type Diagnostics struct {
	DuplicatesDropped int                  `json:"duplicates_dropped"`
	GapsDetected      int                  `json:"gaps_detected"`
	Warnings          []DataQualityWarning `json:"warnings,omitempty"`
}

// Add appends a warning.
func (d *Diagnostics) Add(kind WarningKind, at time.Time, format string, args ...any) {
	d.Warnings = append(d.Warnings, DataQualityWarning{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		At:      at,
	})
}

// CountByKind returns the number of warnings of the given kind.
func (d *Diagnostics) CountByKind(kind WarningKind) int {
	n := 0
	for _, w := range d.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Merge appends another diagnostics set into this one.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.DuplicatesDropped += other.DuplicatesDropped
	d.GapsDetected += other.GapsDetected
	d.Warnings = append(d.Warnings, other.Warnings...)
}
