package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Engine runs the analysis pipeline. It holds configuration only; Analyze is pure with
// respect to its Input apart from reading Now for all-time budget months.
type Engine struct {
	Categories       []Category
	DefaultBudgets   map[string]float64
	Lookback         int
	LeaderboardLimit int
	Location         *time.Location
	Now              func() time.Time
}

// NewEngine returns an engine with the built-in categories and budgets.
func NewEngine() *Engine {
	return &Engine{
		Categories:       DefaultCategories(),
		DefaultBudgets:   DefaultBudgets(),
		Lookback:         DefaultLookbackMonths,
		LeaderboardLimit: DefaultLeaderboardLimit,
		Location:         time.Local,
		Now:              time.Now,
	}
}

// Input is everything one analysis depends on.
type Input struct {
	Expenses []RawExpense
	// Categories overrides the engine's category list when non-nil.
	Categories []Category
	Selection  Selection
	Budgets    BudgetBook
	Mood       Mood
	// Version identifies the expense set for InputKey. When empty the expenses are hashed.
	Version string
}

// Snapshot is the immutable result of one analysis.
type Snapshot struct {
	Range          DateRange          `json:"range"`
	Currency       string             `json:"currency"`
	ExpenseCount   int                `json:"expenseCount"`
	UndatedCount   int                `json:"undatedCount"`
	Total          float64            `json:"total"`
	Categories     []CategoryAmount   `json:"categories"`
	ItemCategories map[string]float64 `json:"itemCategories"`
	Budget         BudgetComparison   `json:"budget"`
	Comparison     Comparison         `json:"comparison"`
	Leaderboard    Leaderboard        `json:"leaderboard"`
	Trend          Trend              `json:"trend"`
	Insight        Insight            `json:"insight"`
	Signature      string             `json:"signature"`
}

// Category returns the breakdown row for a category.
func (s *Snapshot) Category(name string) (CategoryAmount, bool) {
	for _, c := range s.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryAmount{}, false
}

func (e *Engine) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().In(e.location())
	}
	return e.Now().In(e.location())
}

func (e *Engine) categories(in Input) []Category {
	if in.Categories != nil {
		return in.Categories
	}
	if e.Categories != nil {
		return e.Categories
	}
	return DefaultCategories()
}

func (e *Engine) defaultBudgets() map[string]float64 {
	if e.DefaultBudgets != nil {
		return e.DefaultBudgets
	}
	return DefaultBudgets()
}

// BudgetMonth is the month whose budget applies to r: the month of r.End when set,
// otherwise the current month.
func (e *Engine) BudgetMonth(r DateRange) Month {
	if r.End != "" {
		if t, ok := parseCalendarDate(r.End); ok {
			return MonthOf(t)
		}
	}
	return MonthOf(e.now())
}

// Analyze runs every stage over in and returns the snapshot. An empty expense set yields a
// zeroed snapshot.
func (e *Engine) Analyze(in Input) *Snapshot {
	cats := NewCategorySet(e.categories(in))
	all := NormalizeAll(in.Expenses, cats, e.location())
	r := in.Selection.Effective()
	filtered := FilterByRange(all, r)

	totals := AggregateCategories(filtered, cats)
	resolved := ResolveBudget(in.Budgets, e.BudgetMonth(r), e.Lookback, e.defaultBudgets())
	budget := CompareBudget(totals, resolved, cats)

	comparison := Comparison{Current: r, Categories: []CategoryDelta{}}
	if prevRange, ok := PreviousRange(r); ok {
		prev := AggregateCategories(FilterByRange(all, prevRange), cats)
		comparison = compareTotals(r, prevRange, totals, prev, cats)
	}

	leaderboard := BuildLeaderboard(FlattenItems(filtered), e.LeaderboardLimit)
	trend := BuildTrend(DailyTotals(filtered))
	currency := dominantCurrency(filtered)

	s := &Snapshot{
		Range:          r,
		Currency:       currency,
		ExpenseCount:   len(filtered),
		Total:          totals.Total,
		Categories:     totals.Ordered(cats),
		ItemCategories: totals.ByItemCategory,
		Budget:         budget,
		Comparison:     comparison,
		Leaderboard:    leaderboard,
		Trend:          trend,
	}
	for _, x := range filtered {
		if !x.Dated() {
			s.UndatedCount++
		}
	}
	s.Insight = ComposeInsight(InsightInput{
		Totals:      totals,
		Comparison:  comparison,
		Budget:      budget,
		Leaderboard: leaderboard,
		Currency:    currency,
	}, in.Mood)
	s.Signature = s.ComputeSignature()
	return s
}

// dominantCurrency is the most frequent currency, ties broken alphabetically.
func dominantCurrency(expenses []Expense) string {
	counts := make(map[string]int)
	for _, e := range expenses {
		counts[e.Currency]++
	}
	best, n := DefaultCurrency, 0
	for c, k := range counts {
		if k > n || (k == n && c < best) {
			best, n = c, k
		}
	}
	return best
}

// ComputeSignature hashes the snapshot's numeric content, rounded to cents. Insight text,
// labels and object identity do not affect it.
func (s *Snapshot) ComputeSignature() string {
	var b strings.Builder
	fmt.Fprintf(&b, "range=%s..%s;total=%d;n=%d\n", s.Range.Start, s.Range.End, Cents(s.Total), s.ExpenseCount)
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "cat=%s:%d\n", c.Category, Cents(c.Amount))
	}
	fmt.Fprintf(&b, "budget=%s;%d;%d;%d\n", s.Budget.Month, Cents(s.Budget.TotalSpent), Cents(s.Budget.TotalBudget), Cents(s.Budget.TotalRemaining))
	for _, l := range s.Budget.Lines {
		fmt.Fprintf(&b, "bl=%s:%d:%d:%d\n", l.Category, Cents(l.Spent), Cents(l.Budget), Cents(l.Remaining))
	}
	if s.Comparison.Available {
		o := s.Comparison.Overall
		fmt.Fprintf(&b, "cmp=%d:%d:%s\n", Cents(o.Current), Cents(o.Previous), signaturePercent(o.Percent))
		for _, d := range s.Comparison.Categories {
			fmt.Fprintf(&b, "cd=%s:%d:%d:%s\n", d.Category, Cents(d.Current), Cents(d.Previous), signaturePercent(d.Percent))
		}
	}
	for _, p := range s.Trend.Points {
		fmt.Fprintf(&b, "t=%s:%d\n", p.Date, Cents(p.Total))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func signaturePercent(p *float64) string {
	if p == nil {
		return "nil"
	}
	return fmt.Sprintf("%d", Cents(*p))
}

// InputKey is a deterministic hash of an Input, suitable as a memo-cache key.
func InputKey(in Input) string {
	h := sha256.New()
	r := in.Selection.Effective()
	fmt.Fprintf(h, "range=%s..%s;mood=%s\n", r.Start, r.End, ParseMood(string(in.Mood)))

	if in.Version != "" {
		fmt.Fprintf(h, "version=%s\n", in.Version)
	} else {
		// Struct field order is fixed, so the encoding is stable.
		_ = json.NewEncoder(h).Encode(in.Expenses)
	}
	if in.Categories != nil {
		_ = json.NewEncoder(h).Encode(in.Categories)
	}

	months := make([]Month, 0, len(in.Budgets))
	for m := range in.Budgets {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	for _, m := range months {
		cats := make([]string, 0, len(in.Budgets[m]))
		for c := range in.Budgets[m] {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(h, "b=%s:%s:%d\n", m, c, Cents(in.Budgets[m][c]))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
