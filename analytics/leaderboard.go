package analytics

import (
	"sort"
	"strings"
)

// DefaultLeaderboardLimit is the number of entries kept per ranking.
const DefaultLeaderboardLimit = 5

// unknownMerchant labels items whose expense has no merchant name.
const unknownMerchant = "Unknown"

// FlatItem is a line item tagged with its expense context. Expenses without items yield
// one synthetic item described by the merchant name.
type FlatItem struct {
	ExpenseID   string  `json:"expenseId"`
	Merchant    string  `json:"merchant"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	DateStr     string  `json:"date"`
}

// FlattenItems expands expenses into items in input order.
func FlattenItems(expenses []Expense) []FlatItem {
	out := make([]FlatItem, 0, len(expenses))
	for _, e := range expenses {
		merchant := e.Merchant
		if merchant == "" {
			merchant = unknownMerchant
		}
		if len(e.Items) == 0 {
			out = append(out, FlatItem{
				ExpenseID:   e.ID,
				Merchant:    merchant,
				Description: merchant,
				Category:    e.Category,
				Amount:      e.Amount,
				DateStr:     e.DateStr,
			})
			continue
		}
		for _, it := range e.Items {
			desc := it.Description
			if desc == "" {
				desc = merchant
			}
			out = append(out, FlatItem{
				ExpenseID:   e.ID,
				Merchant:    merchant,
				Description: desc,
				Category:    it.Category,
				Amount:      it.Amount,
				DateStr:     e.DateStr,
			})
		}
	}
	return out
}

// RankEntry is one ranked name with its accumulated spend.
type RankEntry struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// CategoryBoard holds the rankings inside one category.
type CategoryBoard struct {
	Category  string      `json:"category"`
	Merchants []RankEntry `json:"merchants"`
	Items     []RankEntry `json:"items"`
}

// Leaderboard ranks spend by merchant and by item description.
type Leaderboard struct {
	Limit      int             `json:"limit"`
	Merchants  []RankEntry     `json:"merchants"` // across all categories
	Categories []CategoryBoard `json:"categories"`
}

// Category returns the board for a category.
func (l Leaderboard) Category(name string) (CategoryBoard, bool) {
	for _, b := range l.Categories {
		if b.Category == name {
			return b, true
		}
	}
	return CategoryBoard{}, false
}

type ranker struct {
	order   []string
	entries map[string]*rankAcc
}

type rankAcc struct {
	entry RankEntry
	seen  int
}

func newRanker() *ranker {
	return &ranker{entries: make(map[string]*rankAcc)}
}

func (r *ranker) add(name string, amount float64) {
	acc, ok := r.entries[name]
	if !ok {
		acc = &rankAcc{entry: RankEntry{Name: name}, seen: len(r.order)}
		r.entries[name] = acc
		r.order = append(r.order, name)
	}
	acc.entry.Total += amount
	acc.entry.Count++
}

// top sorts by total descending, then case-insensitive name, then first appearance.
func (r *ranker) top(limit int) []RankEntry {
	accs := make([]*rankAcc, 0, len(r.order))
	for _, name := range r.order {
		accs = append(accs, r.entries[name])
	}
	sort.SliceStable(accs, func(i, j int) bool {
		a, b := accs[i], accs[j]
		if a.entry.Total != b.entry.Total {
			return a.entry.Total > b.entry.Total
		}
		la, lb := strings.ToLower(a.entry.Name), strings.ToLower(b.entry.Name)
		if la != lb {
			return la < lb
		}
		return a.seen < b.seen
	})
	if limit > 0 && len(accs) > limit {
		accs = accs[:limit]
	}
	out := make([]RankEntry, len(accs))
	for i, a := range accs {
		out[i] = a.entry
	}
	return out
}

// BuildLeaderboard ranks merchants and descriptions per category, plus merchants overall.
// Items with a non-positive amount are skipped. Categories appear in first-seen order.
// limit <= 0 uses DefaultLeaderboardLimit.
func BuildLeaderboard(items []FlatItem, limit int) Leaderboard {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	overall := newRanker()
	var catOrder []string
	merchants := make(map[string]*ranker)
	descs := make(map[string]*ranker)

	for _, it := range items {
		if !(it.Amount > 0) {
			continue
		}
		cat := it.Category
		if cat == "" {
			cat = OtherCategory
		}
		if _, ok := merchants[cat]; !ok {
			catOrder = append(catOrder, cat)
			merchants[cat] = newRanker()
			descs[cat] = newRanker()
		}
		merchants[cat].add(it.Merchant, it.Amount)
		descs[cat].add(it.Description, it.Amount)
		overall.add(it.Merchant, it.Amount)
	}

	lb := Leaderboard{
		Limit:      limit,
		Merchants:  overall.top(limit),
		Categories: make([]CategoryBoard, 0, len(catOrder)),
	}
	for _, cat := range catOrder {
		lb.Categories = append(lb.Categories, CategoryBoard{
			Category:  cat,
			Merchants: merchants[cat].top(limit),
			Items:     descs[cat].top(limit),
		})
	}
	return lb
}
