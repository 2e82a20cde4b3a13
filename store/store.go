// Package store persists expenses, categories, budgets and coach narratives with gorm and
// converts them into the shapes the analytics engine consumes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"expensight/analytics"
	"expensight/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound means the row does not exist or belongs to another user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate means a unique name is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the gorm-backed persistence layer.
type Store struct {
	db *gorm.DB
}

// New wraps a gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Expenses returns the user's expense rows with items, oldest first.
func (s *Store) Expenses(ctx context.Context, userID uint) ([]models.Expense, error) {
	var rows []models.Expense
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Where("user_id = ?", userID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return rows, nil
}

// ListExpenses returns the user's expenses as engine input.
func (s *Store) ListExpenses(ctx context.Context, userID uint) ([]analytics.RawExpense, error) {
	rows, err := s.Expenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]analytics.RawExpense, len(rows))
	for i, r := range rows {
		out[i] = r.Raw()
	}
	return out, nil
}

// CreateExpense inserts an expense and its items.
func (s *Store) CreateExpense(ctx context.Context, e *models.Expense) error {
	for i := range e.Items {
		e.Items[i].Position = i
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// DeleteExpense soft-deletes one of the user's expenses.
func (s *Store) DeleteExpense(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Expense{})
	if res.Error != nil {
		return fmt.Errorf("delete expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CategoryRows returns built-in and user-defined category rows, built-ins first.
func (s *Store) CategoryRows(ctx context.Context, userID uint) ([]models.ExpenseCategory, error) {
	var rows []models.ExpenseCategory
	err := s.db.WithContext(ctx).
		Where("user_id IN ?", []uint{0, userID}).
		Order("user_id, sort, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return rows, nil
}

// ListCategories returns the user's category list for the engine.
func (s *Store) ListCategories(ctx context.Context, userID uint) ([]analytics.Category, error) {
	rows, err := s.CategoryRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]analytics.Category, len(rows))
	for i, r := range rows {
		out[i] = r.Category()
	}
	return out, nil
}

// CreateCategory adds a user-defined category. Names clash case-insensitively with both
// built-in and the user's own categories.
func (s *Store) CreateCategory(ctx context.Context, c *models.ExpenseCategory) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ExpenseCategory{}).
		Where("user_id IN ? AND LOWER(name) = LOWER(?)", []uint{0, c.UserID}, c.Name).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if count > 0 {
		return ErrDuplicate
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// BudgetBook loads the user's budgets for month and the lookback months before it.
func (s *Store) BudgetBook(ctx context.Context, userID uint, month analytics.Month, lookback int) (analytics.BudgetBook, error) {
	if lookback <= 0 {
		lookback = analytics.DefaultLookbackMonths
	}
	var rows []models.CategoryBudget
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND month BETWEEN ? AND ?", userID, month.AddMonths(-lookback).String(), month.String()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	book := analytics.BudgetBook{}
	for _, r := range rows {
		m, err := analytics.ParseMonth(r.Month)
		if err != nil {
			continue
		}
		book.Set(m, r.Category, r.Amount)
	}
	return book, nil
}

// UpsertBudget replaces the user's budget map for a month.
func (s *Store) UpsertBudget(ctx context.Context, userID uint, month analytics.Month, amounts map[string]float64) error {
	names := make([]string, 0, len(amounts))
	for name := range amounts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]models.CategoryBudget, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.CategoryBudget{
			UserID:   userID,
			Month:    month.String(),
			Category: name,
			Amount:   amounts[name],
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ? AND month = ?", userID, month.String()).
			Delete(&models.CategoryBudget{}).Error; err != nil {
			return fmt.Errorf("clear budget: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("save budget: %w", err)
		}
		return nil
	})
}

type versionRow struct {
	N      int64
	Latest *time.Time
}

func (s *Store) tableVersion(ctx context.Context, model interface{}, userID uint) (versionRow, error) {
	var v versionRow
	err := s.db.WithContext(ctx).Model(model).
		Select("COUNT(*) AS n, MAX(updated_at) AS latest").
		Where("user_id = ?", userID).
		Scan(&v).Error
	return v, err
}

// DataVersion identifies the current state of the user's analysis inputs. It changes on
// any insert, update or delete of expenses, budgets or custom categories.
func (s *Store) DataVersion(ctx context.Context, userID uint) (string, error) {
	parts := make([]string, 0, 3)
	for _, m := range []interface{}{&models.Expense{}, &models.CategoryBudget{}, &models.ExpenseCategory{}} {
		v, err := s.tableVersion(ctx, m, userID)
		if err != nil {
			return "", fmt.Errorf("data version: %w", err)
		}
		var latest int64
		if v.Latest != nil {
			latest = v.Latest.UnixNano()
		}
		parts = append(parts, fmt.Sprintf("%d@%d", v.N, latest))
	}
	return fmt.Sprintf("e%s;b%s;c%s", parts[0], parts[1], parts[2]), nil
}

// SaveCoachNarrative stores a coach result.
func (s *Store) SaveCoachNarrative(ctx context.Context, n *models.CoachNarrative) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("save narrative: %w", err)
	}
	return nil
}

// LatestCoachNarrative returns the user's newest narrative.
func (s *Store) LatestCoachNarrative(ctx context.Context, userID uint) (*models.CoachNarrative, error) {
	var n models.CoachNarrative
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest narrative: %w", err)
	}
	return &n, nil
}
