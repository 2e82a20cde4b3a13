package models

import (
	"strconv"
	"time"

	"expensight/analytics"

	"gorm.io/gorm"
)

// ExpenseCategory spending category. UserID 0 marks a built-in category shared by everyone.
type ExpenseCategory struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"not null;default:0;uniqueIndex:idx_category_user_name"`
	Name      string         `json:"name" gorm:"size:50;not null;uniqueIndex:idx_category_user_name"`
	Icon      string         `json:"icon" gorm:"size:16"`
	Sort      int            `json:"sort" gorm:"default:0;index"`
	Color     string         `json:"color" gorm:"size:20;default:#64748b"` // e.g. #ef4444
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (ExpenseCategory) TableName() string {
	return "expense_categories"
}

// Category converts the row for the engine.
func (c ExpenseCategory) Category() analytics.Category {
	return analytics.Category{
		ID:    strconv.FormatUint(uint64(c.ID), 10),
		Name:  c.Name,
		Icon:  c.Icon,
		Color: c.Color,
	}
}

// DefaultExpenseCategories seed rows for the built-in categories.
func DefaultExpenseCategories() []ExpenseCategory {
	defaults := analytics.DefaultCategories()
	rows := make([]ExpenseCategory, 0, len(defaults))
	for i, c := range defaults {
		rows = append(rows, ExpenseCategory{
			Name:  c.Name,
			Icon:  c.Icon,
			Sort:  (i + 1) * 10,
			Color: c.Color,
		})
	}
	return rows
}
