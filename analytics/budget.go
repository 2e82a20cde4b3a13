package analytics

import "math"

// DefaultLookbackMonths bounds the backward search for a prior explicit budget.
const DefaultLookbackMonths = 24

// MaxUsedPercent caps UsedPercent so a tiny budget cannot produce absurd figures.
const MaxUsedPercent = 999

// BudgetBook holds explicit per-month budgets: month -> category -> ceiling.
type BudgetBook map[Month]map[string]float64

// Set stores a category ceiling for a month.
func (b BudgetBook) Set(m Month, category string, amount float64) {
	if b[m] == nil {
		b[m] = make(map[string]float64)
	}
	b[m][category] = amount
}

// DefaultBudgets is the built-in fallback used when no explicit budget is found.
func DefaultBudgets() map[string]float64 {
	return map[string]float64{
		"Food":          400,
		"Groceries":     500,
		"Transport":     200,
		"Shopping":      300,
		"Entertainment": 150,
		"Health":        150,
		"Utilities":     250,
		"Housing":       1500,
		OtherCategory:   200,
	}
}

// BudgetOrigin tells where a resolved budget came from.
type BudgetOrigin string

const (
	BudgetExact     BudgetOrigin = "exact"
	BudgetInherited BudgetOrigin = "inherited"
	BudgetDefault   BudgetOrigin = "default"
)

// ResolvedBudget is the budget map that applies to a month.
type ResolvedBudget struct {
	Month       Month              `json:"month"`
	SourceMonth *Month             `json:"sourceMonth,omitempty"` // nil for defaults
	Origin      BudgetOrigin       `json:"origin"`
	Amounts     map[string]float64 `json:"amounts"`
}

// ResolveBudget looks up month, then walks back up to lookback earlier months, then falls
// back to defaults. A month with an empty map counts as absent. lookback <= 0 uses
// DefaultLookbackMonths.
func ResolveBudget(book BudgetBook, month Month, lookback int, defaults map[string]float64) ResolvedBudget {
	if lookback <= 0 {
		lookback = DefaultLookbackMonths
	}
	if m, ok := book[month]; ok && len(m) > 0 {
		src := month
		return ResolvedBudget{Month: month, SourceMonth: &src, Origin: BudgetExact, Amounts: copyAmounts(m)}
	}
	cur := month
	for i := 0; i < lookback; i++ {
		cur = cur.Prev()
		if m, ok := book[cur]; ok && len(m) > 0 {
			src := cur
			return ResolvedBudget{Month: month, SourceMonth: &src, Origin: BudgetInherited, Amounts: copyAmounts(m)}
		}
	}
	return ResolvedBudget{Month: month, Origin: BudgetDefault, Amounts: copyAmounts(defaults)}
}

func copyAmounts(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		out[k] = v
	}
	return out
}

// BudgetLine is one category's spend against its ceiling. Remaining is negative when the
// category is over budget.
type BudgetLine struct {
	Category    string  `json:"category"`
	Spent       float64 `json:"spent"`
	Budget      float64 `json:"budget"`
	Remaining   float64 `json:"remaining"`
	UsedPercent float64 `json:"usedPercent"`
	OverBudget  bool    `json:"overBudget"`
}

// BudgetComparison is the month view of spend against budgets.
type BudgetComparison struct {
	Month       Month        `json:"month"`
	SourceMonth *Month       `json:"sourceMonth,omitempty"`
	Origin      BudgetOrigin `json:"origin"`
	Lines       []BudgetLine `json:"lines"`
	TotalSpent  float64      `json:"totalSpent"`
	TotalBudget float64      `json:"totalBudget"`
	// TotalRemaining is clamped at zero while per-line Remaining stays signed.
	TotalRemaining float64  `json:"totalRemaining"`
	OverBudget     []string `json:"overBudget"`
}

// CompareBudget merges totals with a resolved budget. Every category with either spend or
// a budget gets a line.
func CompareBudget(totals CategoryTotals, resolved ResolvedBudget, cats *CategorySet) BudgetComparison {
	bc := BudgetComparison{
		Month:       resolved.Month,
		SourceMonth: resolved.SourceMonth,
		Origin:      resolved.Origin,
		OverBudget:  []string{},
	}

	budgets := make(map[string]float64, len(resolved.Amounts))
	for name, amt := range resolved.Amounts {
		budgets[bucketName(name, cats)] += amt
	}

	names := unionCategories(cats, totals.ByCategory, budgets)
	bc.Lines = make([]BudgetLine, 0, len(names))
	var spent, budget []float64
	for _, name := range names {
		s, b := totals.ByCategory[name], budgets[name]
		line := BudgetLine{
			Category:    name,
			Spent:       s,
			Budget:      b,
			Remaining:   b - s,
			UsedPercent: UsedPercent(s, b),
			OverBudget:  s > b,
		}
		if line.OverBudget {
			bc.OverBudget = append(bc.OverBudget, name)
		}
		spent = append(spent, s)
		budget = append(budget, b)
		bc.Lines = append(bc.Lines, line)
	}
	bc.TotalSpent = sumFloats(spent...)
	bc.TotalBudget = sumFloats(budget...)
	bc.TotalRemaining = math.Max(0, bc.TotalBudget-bc.TotalSpent)
	return bc
}

// Line returns the line for a category.
func (bc BudgetComparison) Line(category string) (BudgetLine, bool) {
	for _, l := range bc.Lines {
		if l.Category == category {
			return l, true
		}
	}
	return BudgetLine{}, false
}

// UsedPercent is spent as a percentage of budget. A zero budget yields 0 when nothing was
// spent and 100 otherwise; results are capped at MaxUsedPercent.
func UsedPercent(spent, budget float64) float64 {
	if budget <= 0 {
		if spent > 0 {
			return 100
		}
		return 0
	}
	return math.Min(spent/budget*100, MaxUsedPercent)
}
