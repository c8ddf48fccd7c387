package sessions

import (
	"sort"

	"tradedays/pkg/contracts/domain"
)

// Monthly rolls classified days up into calendar-month statistics, one entry
// per month in chronological order.
func Monthly(days []domain.DayClassification) []domain.MonthlyStat {
	type acc struct {
		ranges     welford
		volatility welford
		labels     map[string]int
		outliers   int
	}
	byMonth := make(map[string]*acc)
	var months []string

	for _, d := range days {
		month := d.Date[:7]
		a, ok := byMonth[month]
		if !ok {
			a = &acc{labels: make(map[string]int)}
			byMonth[month] = a
			months = append(months, month)
		}
		a.ranges.add(d.Range)
		a.volatility.add(d.Volatility)
		a.labels[d.Label]++
		if d.Outlier {
			a.outliers++
		}
	}
	sort.Strings(months)

	out := make([]domain.MonthlyStat, 0, len(months))
	for _, month := range months {
		a := byMonth[month]
		out = append(out, domain.MonthlyStat{
			Month:          month,
			Days:           a.ranges.n,
			RangeMean:      a.ranges.mean,
			RangeStddev:    a.ranges.stddev(),
			RangeMin:       a.ranges.min,
			RangeMax:       a.ranges.max,
			MeanVolatility: a.volatility.mean,
			LabelCounts:    a.labels,
			Outliers:       a.outliers,
		})
	}
	return out
}
