package models

import (
	"time"

	"gorm.io/gorm"
)

// CategoryBudget monthly ceiling for one category
type CategoryBudget struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"not null;uniqueIndex:idx_budget_user_month_cat"`
	Month     string         `json:"month" gorm:"size:7;not null;uniqueIndex:idx_budget_user_month_cat"` // YYYY-MM
	Category  string         `json:"category" gorm:"size:50;not null;uniqueIndex:idx_budget_user_month_cat"`
	Amount    float64        `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (CategoryBudget) TableName() string {
	return "category_budgets"
}
