package ingest

import (
	"tradedays/pkg/contracts/domain"
)

// normalize enforces the series invariants over bars in file order:
// timestamps must be strictly increasing; exact duplicates keep the first
// occurrence and are counted as warnings; out-of-order rows are fatal
// violations; gaps wider than the configured threshold are flagged but never
// abort the run.
func (p *Parser) normalize(bars []domain.Bar, diag *domain.Diagnostics, v *violations) []domain.Bar {
	if len(bars) == 0 {
		return bars
	}

	maxGap := p.cfg.Validation.MaxGap.Std()
	out := bars[:1]

	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		prev := out[len(out)-1]

		switch {
		case bar.Time.Equal(prev.Time):
			diag.DuplicatesDropped++
			diag.Add(domain.WarningDuplicate, bar.Time, "duplicate timestamp dropped, first occurrence kept")
			continue
		case bar.Time.Before(prev.Time):
			v.addf("out-of-order timestamp %s after %s",
				bar.Time.Format("2006-01-02 15:04:05"), prev.Time.Format("2006-01-02 15:04:05"))
			continue
		}

		if maxGap > 0 {
			if gap := bar.Time.Sub(prev.Time); gap > maxGap {
				diag.GapsDetected++
				diag.Add(domain.WarningGap, prev.Time, "gap of %s before next bar at %s",
					gap, bar.Time.Format("2006-01-02 15:04"))
			}
		}

		out = append(out, bar)
	}

	return out
}
