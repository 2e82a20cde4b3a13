package analytics

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// looseLayouts are tried, in order, for date strings without a YYYY-MM-DD prefix.
var looseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

// ResolveDate returns the first candidate that parses to a valid calendar date, formatted
// as YYYY-MM-DD, or "" when none does.
func ResolveDate(loc *time.Location, candidates ...string) string {
	for _, c := range candidates {
		if d, ok := resolveOneDate(c, loc); ok {
			return d
		}
	}
	return ""
}

const compactDateLayout = "20060102"

func resolveOneDate(s string, loc *time.Location) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	// A bare ISO date is taken as-is; converting it through a time.Time in another zone
	// could move it to the adjacent day.
	if len(s) >= len(DateLayout) && isISOPrefix(s[:len(DateLayout)]) {
		prefix := s[:len(DateLayout)]
		if _, ok := parseCalendarDate(prefix); ok {
			return prefix, true
		}
		return "", false
	}
	if loc == nil {
		loc = time.Local
	}
	if isDigits(s) {
		// YYYYMMDD before epoch seconds
		if len(s) == len(compactDateLayout) {
			if t, err := time.Parse(compactDateLayout, s); err == nil {
				return t.Format(DateLayout), true
			}
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return "", false
		}
		var t time.Time
		if len(s) >= 12 {
			t = time.UnixMilli(n)
		} else {
			t = time.Unix(n, 0)
		}
		return t.In(loc).Format(DateLayout), true
	}
	for _, layout := range looseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc).Format(DateLayout), true
		}
	}
	return "", false
}

func isISOPrefix(s string) bool {
	if len(s) != len(DateLayout) || s[4] != '-' || s[7] != '-' {
		return false
	}
	return isDigits(s[:4]) && isDigits(s[5:7]) && isDigits(s[8:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// cleanAmount turns invalid, non-finite or negative values into 0.
func cleanAmount(n FlexNumber) float64 {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) || n.Value < 0 {
		return 0
	}
	return n.Value
}

func usable(n FlexNumber) bool {
	return n.Valid && !math.IsNaN(n.Value) && !math.IsInf(n.Value, 0) && n.Value != 0
}

// ResolveItemAmount picks an item's monetary value: totalPrice, then unitPrice, then the
// item's totalAmount, then quantity*unitPrice. Non-positive results resolve to 0.
func ResolveItemAmount(it RawLineItem) float64 {
	for _, n := range []FlexNumber{it.TotalPrice, it.UnitPrice, it.TotalAmount} {
		if usable(n) {
			return cleanAmount(n)
		}
	}
	if it.Quantity.Valid && it.UnitPrice.Valid {
		if p := it.Quantity.Value * it.UnitPrice.Value; p > 0 && !math.IsInf(p, 0) {
			return p
		}
	}
	return 0
}

func resolveQuantity(n FlexNumber) int {
	if !n.Valid || math.IsNaN(n.Value) || n.Value < 1 || n.Value > math.MaxInt32 {
		return 1
	}
	return int(n.Value)
}

// Normalize canonicalizes one raw record. It never fails: bad fields fall back to zero,
// "Other", "USD" or undated.
func Normalize(raw RawExpense, cats *CategorySet, loc *time.Location) Expense {
	category, ok := cats.Canonical(string(raw.Category))
	if !ok {
		category = OtherCategory
	}
	currency := strings.ToUpper(strings.TrimSpace(string(raw.Currency)))
	if currency == "" {
		currency = DefaultCurrency
	}

	e := Expense{
		ID:            strings.TrimSpace(string(raw.ID)),
		Merchant:      strings.TrimSpace(string(raw.MerchantName)),
		DateStr:       ResolveDate(loc, string(raw.Date), string(raw.UploadDate), string(raw.CreatedAt), string(raw.UpdatedAt)),
		TotalAmount:   cleanAmount(raw.TotalAmount),
		Category:      category,
		Currency:      currency,
		PaymentMethod: strings.TrimSpace(string(raw.PaymentMethod)),
		Notes:         strings.TrimSpace(string(raw.Notes)),
		Source:        strings.TrimSpace(string(raw.Source)),
	}

	if len(raw.Items) == 0 {
		e.Amount = e.TotalAmount
		return e
	}

	e.Items = make([]LineItem, 0, len(raw.Items))
	var sum float64
	for _, ri := range raw.Items {
		itemCat, ok := cats.Canonical(string(ri.Category))
		if !ok {
			itemCat = category
		}
		li := LineItem{
			Description: strings.TrimSpace(string(ri.Description)),
			Quantity:    resolveQuantity(ri.Quantity),
			UnitPrice:   cleanAmount(ri.UnitPrice),
			Amount:      ResolveItemAmount(ri),
			Category:    itemCat,
		}
		sum += li.Amount
		e.Items = append(e.Items, li)
	}
	e.Amount = sum
	return e
}

// NormalizeAll normalizes a batch, preserving order.
func NormalizeAll(raws []RawExpense, cats *CategorySet, loc *time.Location) []Expense {
	out := make([]Expense, len(raws))
	for i, r := range raws {
		out[i] = Normalize(r, cats, loc)
	}
	return out
}
