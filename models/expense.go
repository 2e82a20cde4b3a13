package models

import (
	"strconv"
	"time"

	"expensight/analytics"

	"gorm.io/gorm"
)

// Expense stored expense record. Date keeps whatever the upload or extraction produced;
// the analytics normalizer resolves it.
type Expense struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	UserID        uint           `json:"user_id" gorm:"index;not null"`
	MerchantName  string         `json:"merchant_name" gorm:"size:255"`
	Date          string         `json:"date" gorm:"size:40;index"`
	UploadedAt    *time.Time     `json:"uploaded_at"`
	TotalAmount   float64        `json:"total_amount" gorm:"type:decimal(12,2);not null;default:0"`
	Category      string         `json:"category" gorm:"size:50"`
	Currency      string         `json:"currency" gorm:"size:3;default:USD"`
	PaymentMethod string         `json:"payment_method" gorm:"size:50"`
	Notes         string         `json:"notes" gorm:"size:1000"`
	Source        string         `json:"source" gorm:"size:30"` // upload, camera, manual
	Items         []ExpenseItem  `json:"items" gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName table name
func (Expense) TableName() string {
	return "expenses"
}

// ExpenseItem one receipt line
type ExpenseItem struct {
	ID          uint     `json:"id" gorm:"primaryKey"`
	ExpenseID   uint     `json:"expense_id" gorm:"index;not null"`
	Position    int      `json:"position" gorm:"default:0"`
	Description string   `json:"description" gorm:"size:255"`
	Quantity    int      `json:"quantity" gorm:"default:1"`
	UnitPrice   *float64 `json:"unit_price" gorm:"type:decimal(12,2)"`
	TotalPrice  *float64 `json:"total_price" gorm:"type:decimal(12,2)"`
	Category    string   `json:"category" gorm:"size:50"`
}

func (ExpenseItem) TableName() string {
	return "expense_items"
}

// Raw converts the row into the engine's loose input shape.
func (e Expense) Raw() analytics.RawExpense {
	r := analytics.RawExpense{
		ID:            analytics.FlexString(strconv.FormatUint(uint64(e.ID), 10)),
		MerchantName:  analytics.FlexString(e.MerchantName),
		Date:          analytics.FlexString(e.Date),
		TotalAmount:   analytics.Num(e.TotalAmount),
		Category:      analytics.FlexString(e.Category),
		Currency:      analytics.FlexString(e.Currency),
		PaymentMethod: analytics.FlexString(e.PaymentMethod),
		Notes:         analytics.FlexString(e.Notes),
		Source:        analytics.FlexString(e.Source),
	}
	if e.UploadedAt != nil {
		r.UploadDate = analytics.FlexString(e.UploadedAt.Format(time.RFC3339))
	}
	if !e.CreatedAt.IsZero() {
		r.CreatedAt = analytics.FlexString(e.CreatedAt.Format(time.RFC3339))
	}
	if !e.UpdatedAt.IsZero() {
		r.UpdatedAt = analytics.FlexString(e.UpdatedAt.Format(time.RFC3339))
	}
	for _, it := range e.Items {
		ri := analytics.RawLineItem{
			Description: analytics.FlexString(it.Description),
			Quantity:    analytics.Num(float64(it.Quantity)),
			Category:    analytics.FlexString(it.Category),
		}
		if it.UnitPrice != nil {
			ri.UnitPrice = analytics.Num(*it.UnitPrice)
		}
		if it.TotalPrice != nil {
			ri.TotalPrice = analytics.Num(*it.TotalPrice)
		}
		r.Items = append(r.Items, ri)
	}
	return r
}
