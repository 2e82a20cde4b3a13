package analytics

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// OtherCategory is the fallback bucket for absent or unrecognized categories.
const OtherCategory = "Other"

// DefaultCurrency applies when an expense carries no currency code.
const DefaultCurrency = "USD"

// FlexNumber decodes a JSON number or numeric string. Anything else decodes as invalid
// instead of failing the surrounding document.
type FlexNumber struct {
	Value float64
	Valid bool
}

// Num builds a valid FlexNumber.
func Num(v float64) FlexNumber { return FlexNumber{Value: v, Valid: true} }

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	*n = FlexNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	*n = FlexNumber{Value: v, Valid: true}
	return nil
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// FlexString decodes a JSON string or number into a string.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			*s = FlexString(v)
		}
		return nil
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		*s = FlexString(b)
	}
	return nil
}

// RawExpense is an expense as it arrives from upload, extraction or storage: every field
// optional and possibly mistyped.
type RawExpense struct {
	ID            FlexString    `json:"id"`
	MerchantName  FlexString    `json:"merchantName"`
	Date          FlexString    `json:"date"`
	UploadDate    FlexString    `json:"uploadDate"`
	CreatedAt     FlexString    `json:"createdAt"`
	UpdatedAt     FlexString    `json:"updatedAt"`
	TotalAmount   FlexNumber    `json:"totalAmount"`
	Category      FlexString    `json:"category"`
	Currency      FlexString    `json:"currency"`
	PaymentMethod FlexString    `json:"paymentMethod"`
	Notes         FlexString    `json:"notes"`
	Source        FlexString    `json:"source"`
	Items         []RawLineItem `json:"items"`
}

// RawLineItem is one product line on a receipt.
type RawLineItem struct {
	Description FlexString `json:"description"`
	Quantity    FlexNumber `json:"quantity"`
	TotalPrice  FlexNumber `json:"totalPrice"`
	UnitPrice   FlexNumber `json:"unitPrice"`
	TotalAmount FlexNumber `json:"totalAmount"`
	Category    FlexString `json:"category"`
}

// Expense is the canonical record every stage after normalization consumes.
type Expense struct {
	ID            string     `json:"id"`
	Merchant      string     `json:"merchant"`
	DateStr       string     `json:"date"` // YYYY-MM-DD, "" when undated
	Amount        float64    `json:"amount"`
	TotalAmount   float64    `json:"totalAmount"`
	Category      string     `json:"category"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Source        string     `json:"source,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
}

// Dated reports whether a calendar date could be resolved.
func (e Expense) Dated() bool { return e.DateStr != "" }

// LineItem is a canonical receipt line.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Category is a spending bucket. Built-in and user-defined categories share this shape.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// DefaultCategories is the built-in category set.
func DefaultCategories() []Category {
	return []Category{
		{ID: "food", Name: "Food", Icon: "🍔", Color: "#ef4444"},
		{ID: "groceries", Name: "Groceries", Icon: "🛒", Color: "#f97316"},
		{ID: "transport", Name: "Transport", Icon: "🚗", Color: "#3b82f6"},
		{ID: "shopping", Name: "Shopping", Icon: "🛍️", Color: "#a855f7"},
		{ID: "entertainment", Name: "Entertainment", Icon: "🎬", Color: "#ec4899"},
		{ID: "health", Name: "Health", Icon: "💊", Color: "#10b981"},
		{ID: "utilities", Name: "Utilities", Icon: "💡", Color: "#f59e0b"},
		{ID: "housing", Name: "Housing", Icon: "🏠", Color: "#14b8a6"},
		{ID: "other", Name: OtherCategory, Icon: "📦", Color: "#64748b"},
	}
}

// CategorySet resolves category names case-insensitively to their canonical spelling.
type CategorySet struct {
	list   []Category
	byFold map[string]Category
}

// NewCategorySet indexes categories; later duplicates of a name are ignored.
func NewCategorySet(categories []Category) *CategorySet {
	cs := &CategorySet{byFold: make(map[string]Category, len(categories))}
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := cs.byFold[key]; dup {
			continue
		}
		c.Name = name
		cs.byFold[key] = c
		cs.list = append(cs.list, c)
	}
	return cs
}

// List returns the categories in their configured order.
func (cs *CategorySet) List() []Category {
	if cs == nil {
		return nil
	}
	out := make([]Category, len(cs.list))
	copy(out, cs.list)
	return out
}

// Lookup returns the category with the given name, ignoring case.
func (cs *CategorySet) Lookup(name string) (Category, bool) {
	if cs == nil {
		return Category{}, false
	}
	c, ok := cs.byFold[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Canonical maps name to its canonical spelling. ok is false for blank names and, when the
// set is non-empty, for unknown names.
func (cs *CategorySet) Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if cs == nil || len(cs.list) == 0 {
		return name, true
	}
	c, ok := cs.byFold[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return c.Name, true
}

// index returns the position of name in the configured order, or -1.
func (cs *CategorySet) index(name string) int {
	if cs == nil {
		return -1
	}
	for i, c := range cs.list {
		if c.Name == name {
			return i
		}
	}
	return -1
}
