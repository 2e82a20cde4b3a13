package api

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"expensight/analytics"
	"expensight/middleware"
	"expensight/models"
	"expensight/store"

	"github.com/gin-gonic/gin"
)

// Invalidator drops memoized analyses after a write.
type Invalidator interface {
	Invalidate(userID uint)
}

// ExpenseHandler expense records
type ExpenseHandler struct {
	store    *store.Store
	analysis Invalidator
	location *time.Location
}

// NewExpenseHandler creates the expense handler
func NewExpenseHandler(s *store.Store, analysis Invalidator, loc *time.Location) *ExpenseHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ExpenseHandler{store: s, analysis: analysis, location: loc}
}

// CreateExpenseItem one receipt line
type CreateExpenseItem struct {
	Description string   `json:"description" binding:"max=255" example:"Flat white"`
	Quantity    int      `json:"quantity" binding:"gte=0" example:"2"`
	UnitPrice   *float64 `json:"unit_price" binding:"omitempty,gte=0" example:"4.5"`
	TotalPrice  *float64 `json:"total_price" binding:"omitempty,gte=0" example:"9"`
	Category    string   `json:"category" binding:"max=50" example:"Food"`
}

// CreateExpenseRequest an extracted or manually entered expense
type CreateExpenseRequest struct {
	MerchantName  string              `json:"merchant_name" binding:"max=255" example:"Blue Bottle"`
	Date          string              `json:"date" example:"2024-06-01"`
	TotalAmount   *float64            `json:"total_amount" binding:"omitempty,gte=0" example:"9"`
	Category      string              `json:"category" binding:"max=50" example:"Food"`
	Currency      string              `json:"currency" binding:"omitempty,len=3" example:"USD"`
	PaymentMethod string              `json:"payment_method" binding:"max=50" example:"card"`
	Notes         string              `json:"notes" binding:"max=1000"`
	Source        string              `json:"source" binding:"omitempty,oneof=upload camera manual" example:"manual"`
	Items         []CreateExpenseItem `json:"items" binding:"dive"`
}

// ExpenseListRequest list filters
type ExpenseListRequest struct {
	Page     int    `form:"page" example:"1"`
	PageSize int    `form:"page_size" example:"20"`
	Start    string `form:"start" example:"2024-06-01"`
	End      string `form:"end" example:"2024-06-30"`
	Category string `form:"category" example:"Food"`
}

func (r CreateExpenseRequest) model(userID uint) models.Expense {
	e := models.Expense{
		UserID:        userID,
		MerchantName:  strings.TrimSpace(r.MerchantName),
		Date:          strings.TrimSpace(r.Date),
		Category:      strings.TrimSpace(r.Category),
		Currency:      strings.ToUpper(strings.TrimSpace(r.Currency)),
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
		Source:        r.Source,
	}
	if e.Currency == "" {
		e.Currency = analytics.DefaultCurrency
	}
	if e.Source == "" {
		e.Source = "manual"
	}
	if r.TotalAmount != nil {
		e.TotalAmount = *r.TotalAmount
	}
	for _, it := range r.Items {
		q := it.Quantity
		if q <= 0 {
			q = 1
		}
		e.Items = append(e.Items, models.ExpenseItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    q,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Category:    strings.TrimSpace(it.Category),
		})
	}
	// Keep the header total consistent with the lines when only lines were sent.
	if r.TotalAmount == nil && len(e.Items) > 0 {
		var sum float64
		for _, it := range e.Raw().Items {
			sum += analytics.ResolveItemAmount(it)
		}
		e.TotalAmount = analytics.Round2(sum)
	}
	return e
}

// Create stores an expense
// @Summary Create expense
// @Description Stores an expense produced by receipt extraction or typed in manually. Either total_amount or items is required. The date may be any common layout; it is resolved during analysis.
// @Tags Expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateExpenseRequest true "Expense"
// @Success 200 {object} Response{data=models.Expense} "Created"
// @Failure 400 {object} Response "Invalid parameters"
// @Failure 401 {object} Response "Unauthorized"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	if req.TotalAmount == nil && len(req.Items) == 0 {
		BadRequest(c, "total_amount or items is required")
		return
	}
	if d := strings.TrimSpace(req.Date); d != "" && analytics.ResolveDate(h.location, d) == "" {
		BadRequest(c, "unrecognized date")
		return
	}

	expense := req.model(userID)
	if err := h.store.CreateExpense(c.Request.Context(), &expense); err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to create expense"))
		return
	}
	h.analysis.Invalidate(userID)

	SuccessWithMessage(c, "created", expense)
}

// List returns the user's expenses
// @Summary List expenses
// @Description Expenses in the range, newest first. Filtering uses the same date resolution as the analysis, so undated records only appear when no range is given.
// @Tags Expenses
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param start query string false "Range start (YYYY-MM-DD)"
// @Param end query string false "Range end (YYYY-MM-DD)"
// @Param category query string false "Category"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Expense}} "OK"
// @Failure 400 {object} Response "Invalid range"
// @Failure 401 {object} Response "Unauthorized"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	r, err := analytics.ParseDateRange(req.Start, req.End)
	if err != nil {
		BadRequest(c, rangeErrorMessage(err))
		return
	}

	page := NewPage(req.Page, req.PageSize)

	rows, err := h.store.Expenses(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to list expenses"))
		return
	}

	cats := analytics.NewCategorySet(nil)
	type dated struct {
		row  models.Expense
		date string
	}
	matched := make([]dated, 0, len(rows))
	for _, row := range rows {
		x := analytics.Normalize(row.Raw(), cats, h.location)
		if !r.IsAllTime() && !r.Contains(x.DateStr) {
			continue
		}
		if req.Category != "" && !strings.EqualFold(x.Category, req.Category) {
			continue
		}
		matched = append(matched, dated{row: row, date: x.DateStr})
	}
	// newest first, undated last, id breaks ties
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.date != b.date {
			return a.date > b.date
		}
		return a.row.ID > b.row.ID
	})

	from, to := page.Bounds(len(matched))
	list := make([]models.Expense, 0, to-from)
	for _, d := range matched[from:to] {
		list = append(list, d.row)
	}
	page.Send(c, int64(len(matched)), list)
}

// Delete removes an expense
// @Summary Delete expense
// @Tags Expenses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Expense ID"
// @Success 200 {object} Response "Deleted"
// @Failure 400 {object} Response "Invalid ID"
// @Failure 404 {object} Response "Not found"
// @Router /api/v1/expenses/{id} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid expense ID")
		return
	}

	if err := h.store.DeleteExpense(c.Request.Context(), userID, uint(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "expense not found")
			return
		}
		InternalError(c, SafeErrorMessage(err, "failed to delete expense"))
		return
	}
	h.analysis.Invalidate(userID)

	SuccessWithMessage(c, "deleted", nil)
}
