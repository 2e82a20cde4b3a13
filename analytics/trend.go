package analytics

import "sort"

// DailyTotal is the spend of one calendar day.
type DailyTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// DailyTotals sums dated expenses per day, ascending by date. Undated expenses are skipped.
func DailyTotals(expenses []Expense) []DailyTotal {
	byDay := make(map[string]float64)
	for _, e := range expenses {
		if !e.Dated() {
			continue
		}
		byDay[e.DateStr] += e.Amount
	}
	out := make([]DailyTotal, 0, len(byDay))
	for d, v := range byDay {
		out = append(out, DailyTotal{Date: d, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// TrendPoint is a daily total mapped onto a 0..100 chart box. Y grows downward, so the
// highest total sits at y=0.
type TrendPoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Trend is a chart-ready polyline.
type Trend struct {
	Empty  bool         `json:"empty"`
	Min    float64      `json:"min"`
	Max    float64      `json:"max"`
	Points []TrendPoint `json:"points"`
}

// BuildTrend scales daily totals: x = i/(n-1)*100, or 50 for a single point, and
// y = 100 - (v-min)/span*100 where span is max-min, else max, else 1.
func BuildTrend(daily []DailyTotal) Trend {
	if len(daily) == 0 {
		return Trend{Empty: true, Points: []TrendPoint{}}
	}
	lo, hi := daily[0].Total, daily[0].Total
	for _, d := range daily[1:] {
		if d.Total < lo {
			lo = d.Total
		}
		if d.Total > hi {
			hi = d.Total
		}
	}
	span := hi - lo
	if span == 0 {
		span = hi
	}
	if span == 0 {
		span = 1
	}

	n := len(daily)
	t := Trend{Min: lo, Max: hi, Points: make([]TrendPoint, n)}
	for i, d := range daily {
		x := 50.0
		if n > 1 {
			x = float64(i) / float64(n-1) * 100
		}
		t.Points[i] = TrendPoint{
			Date:  d.Date,
			Total: d.Total,
			X:     x,
			Y:     100 - (d.Total-lo)/span*100,
		}
	}
	return t
}
