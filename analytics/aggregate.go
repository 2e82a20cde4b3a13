package analytics

import (
	"sort"
	"strings"
)

// CategoryTotals is the per-category spend of a set of expenses.
type CategoryTotals struct {
	// ByCategory holds every expense's authoritative amount, split by item when
	// the expense has items.
	ByCategory map[string]float64 `json:"byCategory"`
	// ByItemCategory only counts spend that came from line items.
	ByItemCategory map[string]float64 `json:"byItemCategory"`
	Counts         map[string]int     `json:"counts"`
	Total          float64            `json:"total"`
	ExpenseCount   int                `json:"expenseCount"`
}

// CategoryAmount is one row of an ordered breakdown.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
	Share    float64 `json:"share"` // percent of the total, 0 when total is 0
}

// AggregateCategories buckets each expense's amount by category. Item amounts go to the
// item's category; expenses without items go to their own category. The result always
// satisfies sum(ByCategory) == sum(expenses[].Amount).
func AggregateCategories(expenses []Expense, cats *CategorySet) CategoryTotals {
	t := CategoryTotals{
		ByCategory:     make(map[string]float64),
		ByItemCategory: make(map[string]float64),
		Counts:         make(map[string]int),
	}
	amounts := make([]float64, 0, len(expenses))
	for _, e := range expenses {
		t.ExpenseCount++
		amounts = append(amounts, e.Amount)
		if len(e.Items) == 0 {
			c := bucketName(e.Category, cats)
			t.ByCategory[c] += e.Amount
			t.Counts[c]++
			continue
		}
		seen := make(map[string]bool, len(e.Items))
		for _, it := range e.Items {
			c := bucketName(it.Category, cats)
			t.ByCategory[c] += it.Amount
			t.ByItemCategory[c] += it.Amount
			if !seen[c] {
				seen[c] = true
				t.Counts[c]++
			}
		}
	}
	t.Total = sumFloats(amounts...)
	return t
}

func bucketName(name string, cats *CategorySet) string {
	if c, ok := cats.Canonical(name); ok {
		return c
	}
	return OtherCategory
}

// Get returns the amount for a category, 0 when absent.
func (t CategoryTotals) Get(category string) float64 {
	return t.ByCategory[category]
}

// Ordered lists every category that received an expense or item, zero amounts included,
// in configured order, followed by names outside the configured set sorted
// case-insensitively.
func (t CategoryTotals) Ordered(cats *CategorySet) []CategoryAmount {
	names := make([]string, 0, len(t.ByCategory))
	for name := range t.ByCategory {
		names = append(names, name)
	}
	sortCategoryNames(names, cats)

	out := make([]CategoryAmount, 0, len(names))
	for _, name := range names {
		amt := t.ByCategory[name]
		share := 0.0
		if t.Total > 0 {
			share = amt / t.Total * 100
		}
		out = append(out, CategoryAmount{Category: name, Amount: amt, Count: t.Counts[name], Share: share})
	}
	return out
}

func sortCategoryNames(names []string, cats *CategorySet) {
	sort.SliceStable(names, func(i, j int) bool {
		ii, ij := cats.index(names[i]), cats.index(names[j])
		switch {
		case ii >= 0 && ij >= 0:
			return ii < ij
		case ii >= 0:
			return true
		case ij >= 0:
			return false
		}
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
}

// unionCategories returns the category names present in any of the totals, ordered.
func unionCategories(cats *CategorySet, totals ...map[string]float64) []string {
	set := make(map[string]struct{})
	for _, m := range totals {
		for k := range m {
			set[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sortCategoryNames(names, cats)
	return names
}
