package sessions

import (
	"math"

	"tradedays/pkg/contracts/domain"
)

// openingGaps measures how each session opens relative to the close of the
// session that preceded it. Sessions arrive in chronological order (dates
// ascending, windows in configured order within a date), so walking adjacent
// pairs covers both intra-day handoffs and the overnight one. Incomplete
// sessions still take part: a gap needs only the boundary prices, not full
// window coverage.
func openingGaps(sessions []domain.SessionStat) []domain.SessionGap {
	type handoff struct {
		from, to string
	}
	type acc struct {
		gaps   welford
		absSum float64
		maxAbs float64
		ups    int
		downs  int
	}

	var order []handoff
	accs := make(map[handoff]*acc)

	for i := 1; i < len(sessions); i++ {
		prev, cur := sessions[i-1], sessions[i]
		key := handoff{from: prev.Window, to: cur.Window}
		c := accs[key]
		if c == nil {
			c = &acc{}
			accs[key] = c
			order = append(order, key)
		}

		gap := cur.Open - prev.Close
		c.gaps.add(gap)
		abs := math.Abs(gap)
		c.absSum += abs
		if abs > c.maxAbs {
			c.maxAbs = abs
		}
		switch {
		case gap > 0:
			c.ups++
		case gap < 0:
			c.downs++
		}
	}

	var out []domain.SessionGap
	for _, key := range order {
		c := accs[key]
		out = append(out, domain.SessionGap{
			From:       key.from,
			To:         key.to,
			Count:      c.gaps.n,
			MeanGap:    c.gaps.mean,
			MeanAbsGap: c.absSum / float64(c.gaps.n),
			StddevGap:  c.gaps.stddev(),
			MaxAbsGap:  c.maxAbs,
			GapUps:     c.ups,
			GapDowns:   c.downs,
		})
	}
	return out
}
