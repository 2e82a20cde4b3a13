package analytics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.True(t, r.IsBounded())
	assert.Equal(t, 30, r.Days())

	r, err = ParseDateRange("", "")
	require.NoError(t, err)
	assert.True(t, r.IsAllTime())

	_, err = ParseDateRange("2024-13-01", "")
	assert.True(t, errors.Is(err, ErrInvalidDate))

	_, err = ParseDateRange("2024-06-01", "06/30/2024")
	assert.True(t, errors.Is(err, ErrInvalidDate))

	_, err = ParseDateRange("2024-07-01", "2024-06-01")
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestDateRange_Contains(t *testing.T) {
	r := DateRange{Start: "2024-06-01", End: "2024-06-30"}
	assert.True(t, r.Contains("2024-06-01"))
	assert.True(t, r.Contains("2024-06-30"))
	assert.False(t, r.Contains("2024-07-01"))
	assert.False(t, r.Contains(""))

	assert.True(t, AllTime.Contains(""))

	from := DateRange{Start: "2024-06-01"}
	assert.True(t, from.Contains("2030-01-01"))
	assert.False(t, from.Contains("2024-05-31"))
	assert.False(t, from.Contains(""))
}

func TestFilterByRange_AllTimeKeepsEverything(t *testing.T) {
	all := []Expense{{ID: "a", DateStr: "2024-06-02"}, {ID: "b"}, {ID: "c", DateStr: "2023-01-01"}}
	got := FilterByRange(all, AllTime)
	assert.Equal(t, all, got)

	got[0].ID = "changed"
	assert.Equal(t, "a", all[0].ID)
}

func TestFilterByRange_CoveringRangeDropsOnlyUndated(t *testing.T) {
	all := []Expense{{ID: "a", DateStr: "2024-06-02"}, {ID: "b"}, {ID: "c", DateStr: "2023-01-01"}}
	got := FilterByRange(all, DateRange{Start: "2000-01-01", End: "2099-12-31"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestSelection_CustomWins(t *testing.T) {
	custom := DateRange{Start: "2024-01-01", End: "2024-01-31"}
	s := Selection{Ambient: DateRange{Start: "2024-06-01", End: "2024-06-30"}, Custom: &custom}
	assert.Equal(t, custom, s.Effective())

	s.Custom = nil
	assert.Equal(t, "2024-06-01", s.Effective().Start)
}

func TestMonth_Arithmetic(t *testing.T) {
	m, err := ParseMonth("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-12", m.Prev().String())
	assert.Equal(t, "2024-02", m.Next().String())
	assert.Equal(t, "2022-01", m.AddMonths(-24).String())
	assert.Equal(t, "2025-03", m.AddMonths(14).String())
	assert.True(t, m.Prev().Before(m))
	assert.False(t, m.Before(m))

	assert.Equal(t, DateRange{Start: "2024-02-01", End: "2024-02-29"}, NewMonth(2024, time.February).Bounds())

	for _, bad := range []string{"2024-1", "2024-13", "24-01", "2024/01", ""} {
		_, err := ParseMonth(bad)
		assert.True(t, errors.Is(err, ErrInvalidMonth), bad)
	}
}

func TestMonth_AsJSONKey(t *testing.T) {
	book := BudgetBook{}
	book.Set(NewMonth(2024, time.March), "Food", 100)

	b, err := json.Marshal(book)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-03":{"Food":100}}`, string(b))

	var back BudgetBook
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 100.0, back[NewMonth(2024, time.March)]["Food"])
}
