package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date format used throughout the engine.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate means a range boundary is not a valid YYYY-MM-DD date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRange means start is after end.
	ErrInvalidRange = errors.New("invalid date range")
)

// DateRange is an inclusive window of calendar dates. Empty Start and End mean all time;
// a single empty bound leaves that side open.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// AllTime is the unbounded range.
var AllTime = DateRange{}

// ParseDateRange validates UI-supplied boundaries. This is the only place an unparseable
// range is surfaced as an error; the engine itself assumes a validated range.
func ParseDateRange(start, end string) (DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start != "" {
		if _, ok := parseCalendarDate(start); !ok {
			return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidDate, start)
		}
	}
	if end != "" {
		if _, ok := parseCalendarDate(end); !ok {
			return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidDate, end)
		}
	}
	if start != "" && end != "" && start > end {
		return DateRange{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start, end)
	}
	return DateRange{Start: start, End: end}, nil
}

// IsAllTime reports whether both bounds are open.
func (r DateRange) IsAllTime() bool {
	return r.Start == "" && r.End == ""
}

// IsBounded reports whether both bounds are set.
func (r DateRange) IsBounded() bool {
	return r.Start != "" && r.End != ""
}

// Contains reports whether a resolved date string falls inside the range. Undated
// records ("") only belong to the all-time range.
func (r DateRange) Contains(dateStr string) bool {
	if r.IsAllTime() {
		return true
	}
	if dateStr == "" {
		return false
	}
	if r.Start != "" && dateStr < r.Start {
		return false
	}
	if r.End != "" && dateStr > r.End {
		return false
	}
	return true
}

// Days returns the inclusive day span of a bounded range, or 0.
func (r DateRange) Days() int {
	if !r.IsBounded() {
		return 0
	}
	s, ok1 := parseCalendarDate(r.Start)
	e, ok2 := parseCalendarDate(r.End)
	if !ok1 || !ok2 || e.Before(s) {
		return 0
	}
	// calendar days; time.Sub saturates past ~292 years
	return int((e.Unix()-s.Unix())/86400) + 1
}

// String renders the range for logs and prompts.
func (r DateRange) String() string {
	if r.IsAllTime() {
		return "all time"
	}
	start, end := r.Start, r.End
	if start == "" {
		start = "…"
	}
	if end == "" {
		end = "…"
	}
	return start + " to " + end
}

// Selection pairs the ambient range shared across views with an optional custom range
// chosen in a single view. The custom range wins when present.
type Selection struct {
	Ambient DateRange  `json:"ambient"`
	Custom  *DateRange `json:"custom,omitempty"`
}

// Effective returns the range that applies to this selection.
func (s Selection) Effective() DateRange {
	if s.Custom != nil {
		return *s.Custom
	}
	return s.Ambient
}

// FilterByRange returns the expenses within r, preserving input order.
func FilterByRange(expenses []Expense, r DateRange) []Expense {
	if r.IsAllTime() {
		out := make([]Expense, len(expenses))
		copy(out, expenses)
		return out
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if r.Contains(e.DateStr) {
			out = append(out, e)
		}
	}
	return out
}

// parseCalendarDate strictly parses YYYY-MM-DD. time.Parse rejects impossible days
// such as 2024-02-30.
func parseCalendarDate(s string) (time.Time, bool) {
	if len(s) != len(DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// addDays shifts a YYYY-MM-DD string by n days.
func addDays(dateStr string, n int) string {
	t, ok := parseCalendarDate(dateStr)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}
