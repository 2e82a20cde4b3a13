package analytics

import "math"

// PreviousRange returns the range of equal length immediately before r. ok is false
// unless r has both bounds.
func PreviousRange(r DateRange) (DateRange, bool) {
	n := r.Days()
	if n <= 0 {
		return DateRange{}, false
	}
	end := addDays(r.Start, -1)
	start := addDays(r.Start, -n)
	if start == "" || end == "" {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// PercentChange is the relative change from prev to cur in percent:
//
//	prev > 0             -> (cur-prev)/prev*100
//	prev == 0, cur > 0   -> 100
//	prev == 0, cur == 0  -> 0
//	otherwise            -> nil
func PercentChange(prev, cur float64) *float64 {
	if math.IsNaN(prev) || math.IsNaN(cur) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
		return nil
	}
	var p float64
	switch {
	case prev > 0:
		p = (cur - prev) / prev * 100
	case prev == 0 && cur > 0:
		p = 100
	case prev == 0 && cur == 0:
		p = 0
	default:
		return nil
	}
	return &p
}

// Delta compares one figure across two periods.
type Delta struct {
	Current  float64  `json:"current"`
	Previous float64  `json:"previous"`
	Diff     float64  `json:"diff"`
	Percent  *float64 `json:"percent"` // nil renders as "—"
}

func newDelta(prev, cur float64) Delta {
	return Delta{Current: cur, Previous: prev, Diff: cur - prev, Percent: PercentChange(prev, cur)}
}

// CategoryDelta is a Delta for a named category.
type CategoryDelta struct {
	Category string `json:"category"`
	Delta
}

// Comparison is the current period against the one before it.
type Comparison struct {
	Available  bool            `json:"available"`
	Current    DateRange       `json:"current"`
	Previous   DateRange       `json:"previous"`
	Overall    Delta           `json:"overall"`
	Categories []CategoryDelta `json:"categories"`
}

// Category returns the delta for a category.
func (c Comparison) Category(name string) (CategoryDelta, bool) {
	for _, d := range c.Categories {
		if d.Category == name {
			return d, true
		}
	}
	return CategoryDelta{}, false
}

// ComparePeriods aggregates r and its previous range over the full expense set. Ranges
// without both bounds have no previous period and return Available == false.
func ComparePeriods(all []Expense, r DateRange, cats *CategorySet) Comparison {
	prevRange, ok := PreviousRange(r)
	if !ok {
		return Comparison{Current: r, Categories: []CategoryDelta{}}
	}
	cur := AggregateCategories(FilterByRange(all, r), cats)
	prev := AggregateCategories(FilterByRange(all, prevRange), cats)
	return compareTotals(r, prevRange, cur, prev, cats)
}

func compareTotals(r, prevRange DateRange, cur, prev CategoryTotals, cats *CategorySet) Comparison {
	c := Comparison{
		Available: true,
		Current:   r,
		Previous:  prevRange,
		Overall:   newDelta(prev.Total, cur.Total),
	}
	names := unionCategories(cats, cur.ByCategory, prev.ByCategory)
	c.Categories = make([]CategoryDelta, 0, len(names))
	for _, name := range names {
		c.Categories = append(c.Categories, CategoryDelta{
			Category: name,
			Delta:    newDelta(prev.ByCategory[name], cur.ByCategory[name]),
		})
	}
	return c
}

// FormatPercent renders a percent change with sign, or "—" when undefined.
func FormatPercent(p *float64) string {
	if p == nil {
		return "—"
	}
	v := Round2(*p)
	switch {
	case v > 0:
		return "+" + trimFloat(v) + "%"
	default:
		return trimFloat(v) + "%"
	}
}
