package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateCategories_Conservation(t *testing.T) {
	withItems := rawExpense("1", "2024-06-01", 999, "Groceries")
	withItems.Items = []RawLineItem{
		{Description: "bread", TotalPrice: Num(3.10)},
		{Description: "wine", TotalPrice: Num(14.99), Category: "Entertainment"},
		{Description: "broken", TotalPrice: Num(-1)},
	}
	raws := []RawExpense{
		withItems,
		rawExpense("2", "2024-06-02", 60, "Transport"),
		rawExpense("3", "", 0.7, "nope"),
		{ID: "4", TotalAmount: FlexNumber{}},
	}
	all := NormalizeAll(raws, defaultSet(), time.UTC)
	totals := AggregateCategories(all, defaultSet())

	var bucketed, authoritative float64
	for _, v := range totals.ByCategory {
		bucketed += v
	}
	for _, e := range all {
		authoritative += e.Amount
	}
	assert.InDelta(t, authoritative, bucketed, 1e-9)
	assert.InDelta(t, authoritative, totals.Total, 1e-9)

	assert.InDelta(t, 3.10, totals.Get("Groceries"), 1e-9)
	assert.InDelta(t, 14.99, totals.Get("Entertainment"), 1e-9)
	assert.InDelta(t, 60, totals.Get("Transport"), 1e-9)
	assert.InDelta(t, 0.7, totals.Get(OtherCategory), 1e-9)

	// Only item-derived spend shows up per item category.
	assert.InDelta(t, 14.99, totals.ByItemCategory["Entertainment"], 1e-9)
	_, ok := totals.ByItemCategory["Transport"]
	assert.False(t, ok)
}

func TestCategoryTotals_Ordered(t *testing.T) {
	totals := CategoryTotals{
		ByCategory: map[string]float64{OtherCategory: 5, "Transport": 10, "Food": 5},
		Counts:     map[string]int{OtherCategory: 1, "Transport": 2, "Food": 1},
		Total:      20,
	}
	rows := totals.Ordered(defaultSet())
	require.Len(t, rows, 3)
	assert.Equal(t, "Food", rows[0].Category)
	assert.Equal(t, "Transport", rows[1].Category)
	assert.Equal(t, OtherCategory, rows[2].Category)
	assert.Equal(t, 50.0, rows[1].Share)
	assert.Equal(t, 2, rows[1].Count)

	loose := CategoryTotals{ByCategory: map[string]float64{"zeta": 1, "Alpha": 1}}
	rows = loose.Ordered(NewCategorySet(nil))
	assert.Equal(t, "Alpha", rows[0].Category)
	assert.Equal(t, "zeta", rows[1].Category)
	assert.Equal(t, 0.0, rows[0].Share)
}

func TestCategoryTotals_Ordered_KeepsZeroBuckets(t *testing.T) {
	cats := defaultSet()
	free := Normalize(RawExpense{
		ID:       "1",
		Date:     "2024-06-01",
		Category: "Food",
		Items:    []RawLineItem{{Description: "tap water", TotalPrice: Num(0)}},
	}, cats, time.UTC)

	rows := AggregateCategories([]Expense{free}, cats).Ordered(cats)
	require.Len(t, rows, 1)
	assert.Equal(t, CategoryAmount{Category: "Food", Amount: 0, Count: 1, Share: 0}, rows[0])
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.3, Round2(0.1+0.2))
	assert.Equal(t, 2.68, Round2(2.675))
	assert.Equal(t, 10.0, Round2(9.999))
	assert.Equal(t, int64(1999), Cents(19.99))
}
