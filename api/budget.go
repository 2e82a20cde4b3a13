package api

import (
	"fmt"
	"math"
	"strings"
	"time"

	"expensight/analytics"
	"expensight/middleware"
	"expensight/store"

	"github.com/gin-gonic/gin"
)

// BudgetHandler monthly category budgets
type BudgetHandler struct {
	store    *store.Store
	analysis Analyzer
	now      func() time.Time
}

// NewBudgetHandler creates the budget handler
func NewBudgetHandler(s *store.Store, analysis Analyzer) *BudgetHandler {
	return &BudgetHandler{store: s, analysis: analysis, now: time.Now}
}

// SetBudgetRequest a month's budget map
type SetBudgetRequest struct {
	Month   string             `json:"month" binding:"required" example:"2024-06"`
	Amounts map[string]float64 `json:"amounts" binding:"required"`
}

// Get returns the budget in effect for a month
// @Summary Get budget
// @Description Returns the month's own budget, else the most recent earlier month's, else the defaults. origin and source_month say which.
// @Tags Budgets
// @Produce json
// @Security BearerAuth
// @Param month query string false "Month (YYYY-MM), defaults to the current month"
// @Success 200 {object} Response{data=analytics.ResolvedBudget} "OK"
// @Failure 400 {object} Response "Invalid month"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	month := analytics.MonthOf(h.now())
	if raw := c.Query("month"); raw != "" {
		m, err := analytics.ParseMonth(raw)
		if err != nil {
			BadRequest(c, rangeErrorMessage(err))
			return
		}
		month = m
	}

	rb, err := h.analysis.ResolveBudget(c.Request.Context(), userID, month)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load budget"))
		return
	}
	Success(c, rb)
}

// Set replaces a month's budget
// @Summary Set budget
// @Description Replaces every category amount for the month. An empty map clears the month so it inherits again.
// @Tags Budgets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SetBudgetRequest true "Budget"
// @Success 200 {object} Response{data=analytics.ResolvedBudget} "Saved"
// @Failure 400 {object} Response "Invalid parameters"
// @Router /api/v1/budgets [put]
func (h *BudgetHandler) Set(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req SetBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	month, err := analytics.ParseMonth(req.Month)
	if err != nil {
		BadRequest(c, rangeErrorMessage(err))
		return
	}

	amounts := make(map[string]float64, len(req.Amounts))
	for name, amount := range req.Amounts {
		name = strings.TrimSpace(name)
		if name == "" {
			BadRequest(c, "category name is required")
			return
		}
		if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
			BadRequest(c, fmt.Sprintf("invalid amount for %s", name))
			return
		}
		amounts[name] = analytics.Round2(amount)
	}

	if err := h.store.UpsertBudget(c.Request.Context(), userID, month, amounts); err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to save budget"))
		return
	}
	h.analysis.Invalidate(userID)

	rb, err := h.analysis.ResolveBudget(c.Request.Context(), userID, month)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load budget"))
		return
	}
	SuccessWithMessage(c, "saved", rb)
}
