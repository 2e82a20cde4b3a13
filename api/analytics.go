package api

import (
	"context"
	"errors"

	"expensight/analytics"
	"expensight/middleware"
	"expensight/service"

	"github.com/gin-gonic/gin"
)

// Analyzer runs analyses for the handlers.
type Analyzer interface {
	Snapshot(ctx context.Context, userID uint, req service.AnalysisRequest) (*analytics.Snapshot, error)
	ResolveBudget(ctx context.Context, userID uint, month analytics.Month) (analytics.ResolvedBudget, error)
	Invalidate(userID uint)
}

// SelectionQuery is the range and mood shared by the analytics endpoints. The custom
// range overrides the ambient one when either custom bound is present.
type SelectionQuery struct {
	Start       string `form:"start" example:"2024-06-01"`
	End         string `form:"end" example:"2024-06-30"`
	CustomStart string `form:"custom_start" example:"2024-06-10"`
	CustomEnd   string `form:"custom_end" example:"2024-06-16"`
	Mood        string `form:"mood" example:"neutral"`
}

// Request validates the query and builds the service request.
func (q SelectionQuery) Request() (service.AnalysisRequest, error) {
	ambient, err := analytics.ParseDateRange(q.Start, q.End)
	if err != nil {
		return service.AnalysisRequest{}, err
	}
	sel := analytics.Selection{Ambient: ambient}
	if q.CustomStart != "" || q.CustomEnd != "" {
		custom, err := analytics.ParseDateRange(q.CustomStart, q.CustomEnd)
		if err != nil {
			return service.AnalysisRequest{}, err
		}
		sel.Custom = &custom
	}
	return service.AnalysisRequest{Selection: sel, Mood: analytics.ParseMood(q.Mood)}, nil
}

func bindSelection(c *gin.Context) (service.AnalysisRequest, bool) {
	var q SelectionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return service.AnalysisRequest{}, false
	}
	req, err := q.Request()
	if err != nil {
		BadRequest(c, rangeErrorMessage(err))
		return service.AnalysisRequest{}, false
	}
	return req, true
}

func rangeErrorMessage(err error) string {
	switch {
	case errors.Is(err, analytics.ErrInvalidDate):
		return "invalid date, expected YYYY-MM-DD"
	case errors.Is(err, analytics.ErrInvalidRange):
		return "start must not be after end"
	case errors.Is(err, analytics.ErrInvalidMonth):
		return "invalid month, expected YYYY-MM"
	}
	return err.Error()
}

// AnalyticsHandler spending analysis
type AnalyticsHandler struct {
	analysis Analyzer
}

// NewAnalyticsHandler creates the analytics handler
func NewAnalyticsHandler(analysis Analyzer) *AnalyticsHandler {
	return &AnalyticsHandler{analysis: analysis}
}

// Snapshot returns the full analysis for a range
// @Summary Analysis snapshot
// @Description Category totals, budget usage, previous-period comparison, leaderboards, daily trend and a one-line insight for the selected range. Without start and end the whole history is analyzed.
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param start query string false "Ambient range start (YYYY-MM-DD)"
// @Param end query string false "Ambient range end (YYYY-MM-DD)"
// @Param custom_start query string false "Custom range start, overrides the ambient range"
// @Param custom_end query string false "Custom range end"
// @Param mood query string false "Insight phrasing" Enums(neutral, playful)
// @Success 200 {object} Response{data=analytics.Snapshot} "OK"
// @Failure 400 {object} Response "Invalid range"
// @Failure 401 {object} Response "Unauthorized"
// @Router /api/v1/analytics/snapshot [get]
func (h *AnalyticsHandler) Snapshot(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	req, ok := bindSelection(c)
	if !ok {
		return
	}

	snap, err := h.analysis.Snapshot(c.Request.Context(), userID, req)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "analysis failed"))
		return
	}
	Success(c, snap)
}

// SignatureResponse signature only
type SignatureResponse struct {
	Signature string              `json:"signature"`
	Range     analytics.DateRange `json:"range"`
}

// Signature returns only the content signature of the analysis
// @Summary Analysis signature
// @Description Clients poll this to learn whether the numbers changed without downloading the snapshot.
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param start query string false "Ambient range start (YYYY-MM-DD)"
// @Param end query string false "Ambient range end (YYYY-MM-DD)"
// @Param custom_start query string false "Custom range start"
// @Param custom_end query string false "Custom range end"
// @Success 200 {object} Response{data=SignatureResponse} "OK"
// @Failure 400 {object} Response "Invalid range"
// @Router /api/v1/analytics/signature [get]
func (h *AnalyticsHandler) Signature(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	req, ok := bindSelection(c)
	if !ok {
		return
	}

	snap, err := h.analysis.Snapshot(c.Request.Context(), userID, req)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "analysis failed"))
		return
	}
	Success(c, SignatureResponse{Signature: snap.Signature, Range: snap.Range})
}
