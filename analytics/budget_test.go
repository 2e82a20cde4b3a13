package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBudget_Fallback(t *testing.T) {
	book := BudgetBook{}
	book.Set(NewMonth(2024, time.March), "Food", 321)
	defaults := map[string]float64{"Food": 50}

	exact := ResolveBudget(book, NewMonth(2024, time.March), 24, defaults)
	assert.Equal(t, BudgetExact, exact.Origin)
	assert.Equal(t, 321.0, exact.Amounts["Food"])

	later := ResolveBudget(book, NewMonth(2024, time.May), 24, defaults)
	assert.Equal(t, BudgetInherited, later.Origin)
	require.NotNil(t, later.SourceMonth)
	assert.Equal(t, "2024-03", later.SourceMonth.String())
	assert.Equal(t, "2024-05", later.Month.String())
	assert.Equal(t, 321.0, later.Amounts["Food"])

	earlier := ResolveBudget(book, NewMonth(2022, time.January), 24, defaults)
	assert.Equal(t, BudgetDefault, earlier.Origin)
	assert.Nil(t, earlier.SourceMonth)
	assert.Equal(t, 50.0, earlier.Amounts["Food"])
}

func TestResolveBudget_LookbackWindowEdge(t *testing.T) {
	book := BudgetBook{}
	book.Set(NewMonth(2022, time.January), "Food", 10)

	inside := ResolveBudget(book, NewMonth(2024, time.January), 24, nil)
	assert.Equal(t, BudgetInherited, inside.Origin)

	outside := ResolveBudget(book, NewMonth(2024, time.February), 24, nil)
	assert.Equal(t, BudgetDefault, outside.Origin)
	assert.Empty(t, outside.Amounts)

	short := ResolveBudget(book, NewMonth(2022, time.April), 2, nil)
	assert.Equal(t, BudgetDefault, short.Origin)
}

func TestResolveBudget_DoesNotAliasBook(t *testing.T) {
	book := BudgetBook{}
	book.Set(NewMonth(2024, time.March), "Food", 100)
	rb := ResolveBudget(book, NewMonth(2024, time.March), 0, nil)
	rb.Amounts["Food"] = 1
	assert.Equal(t, 100.0, book[NewMonth(2024, time.March)]["Food"])
}

func TestCompareBudget_SignedLinesClampedTotal(t *testing.T) {
	totals := CategoryTotals{ByCategory: map[string]float64{"Food": 150}, Total: 150}
	rb := ResolvedBudget{Month: NewMonth(2024, time.June), Origin: BudgetExact, Amounts: map[string]float64{"food": 100}}

	bc := CompareBudget(totals, rb, defaultSet())
	line, ok := bc.Line("Food")
	require.True(t, ok)
	assert.Equal(t, -50.0, line.Remaining)
	assert.Equal(t, 150.0, line.UsedPercent)
	assert.True(t, line.OverBudget)
	assert.Equal(t, []string{"Food"}, bc.OverBudget)
	assert.Equal(t, 0.0, bc.TotalRemaining)
}

func TestCompareBudget_BudgetOnlyCategoriesGetLines(t *testing.T) {
	totals := CategoryTotals{ByCategory: map[string]float64{"Food": 40}, Total: 40}
	rb := ResolvedBudget{Amounts: map[string]float64{"Food": 100, "Transport": 100}}

	bc := CompareBudget(totals, rb, defaultSet())
	require.Len(t, bc.Lines, 2)
	assert.Equal(t, "Transport", bc.Lines[1].Category)
	assert.Equal(t, 100.0, bc.Lines[1].Remaining)
	assert.Equal(t, 200.0, bc.TotalBudget)
	assert.Equal(t, 160.0, bc.TotalRemaining)
	assert.Empty(t, bc.OverBudget)
}

func TestUsedPercent(t *testing.T) {
	assert.Equal(t, 0.0, UsedPercent(0, 0))
	assert.Equal(t, 100.0, UsedPercent(10, 0))
	assert.Equal(t, 50.0, UsedPercent(50, 100))
	assert.Equal(t, float64(MaxUsedPercent), UsedPercent(10000, 1))
}
