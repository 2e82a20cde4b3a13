package api

import (
	"context"
	"errors"

	"expensight/middleware"
	"expensight/models"
	"expensight/service"

	"github.com/gin-gonic/gin"
)

// Coach orchestrates narrative requests.
type Coach interface {
	Request(userID uint, req service.AnalysisRequest) (requestID string, started bool, err error)
	Generate(ctx context.Context, userID uint, req service.AnalysisRequest) (*models.CoachNarrative, error)
	Status(ctx context.Context, userID uint, signature string) (service.CoachStatus, error)
	MarkRead(userID uint)
	SetPanel(userID uint, open bool)
}

// CoachHandler AI coach narratives
type CoachHandler struct {
	coach    Coach
	analysis Analyzer
}

// NewCoachHandler creates the coach handler
func NewCoachHandler(coach Coach, analysis Analyzer) *CoachHandler {
	return &CoachHandler{coach: coach, analysis: analysis}
}

// CoachRequestResponse accepted request
type CoachRequestResponse struct {
	RequestID string `json:"request_id"`
	Started   bool   `json:"started"`
}

// PanelRequest panel visibility
type PanelRequest struct {
	Open *bool `json:"open" binding:"required"`
}

// Request asks the coach to narrate the current analysis
// @Summary Request coach narrative
// @Description Starts a narrative for the selected range in the background. While one is outstanding further requests return the same request_id with started=false. With wait=true the call blocks and returns the narrative.
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param start query string false "Ambient range start (YYYY-MM-DD)"
// @Param end query string false "Ambient range end (YYYY-MM-DD)"
// @Param custom_start query string false "Custom range start"
// @Param custom_end query string false "Custom range end"
// @Param wait query bool false "Block until the narrative is ready"
// @Success 200 {object} Response{data=CoachRequestResponse} "Accepted"
// @Failure 400 {object} Response "Invalid range"
// @Failure 409 {object} Response "Numbers changed while writing"
// @Failure 503 {object} Response "Coach disabled"
// @Router /api/v1/analytics/coach [post]
func (h *CoachHandler) Request(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	req, ok := bindSelection(c)
	if !ok {
		return
	}

	if c.Query("wait") == "true" {
		n, err := h.coach.Generate(c.Request.Context(), userID, req)
		if err != nil {
			h.coachError(c, err)
			return
		}
		Success(c, n)
		return
	}

	id, started, err := h.coach.Request(userID, req)
	if err != nil {
		h.coachError(c, err)
		return
	}
	Success(c, CoachRequestResponse{RequestID: id, Started: started})
}

func (h *CoachHandler) coachError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCoachDisabled):
		Unavailable(c, "coach is not configured")
	case errors.Is(err, service.ErrStaleNarrative):
		Conflict(c, "spending changed while the narrative was written, request again")
	default:
		InternalError(c, SafeErrorMessage(err, "coach request failed"))
	}
}

// Status returns the latest narrative and flags
// @Summary Coach status
// @Description Latest narrative with pending and unread flags. stale is true when the narrative was written for numbers other than the selected range's current ones.
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param start query string false "Ambient range start (YYYY-MM-DD)"
// @Param end query string false "Ambient range end (YYYY-MM-DD)"
// @Param custom_start query string false "Custom range start"
// @Param custom_end query string false "Custom range end"
// @Success 200 {object} Response{data=service.CoachStatus} "OK"
// @Router /api/v1/analytics/coach [get]
func (h *CoachHandler) Status(c *gin.Context) {
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
	status, err := h.coach.Status(c.Request.Context(), userID, snap.Signature)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load narrative"))
		return
	}
	Success(c, status)
}

// MarkRead clears the unread flag
// @Summary Mark narrative read
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "OK"
// @Router /api/v1/analytics/coach/read [post]
func (h *CoachHandler) MarkRead(c *gin.Context) {
	h.coach.MarkRead(middleware.GetCurrentUserID(c))
	SuccessWithMessage(c, "ok", nil)
}

// Panel records whether the results panel is open
// @Summary Set panel state
// @Description Narratives arriving while the panel is closed are flagged unread. Opening the panel marks them read.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PanelRequest true "Panel state"
// @Success 200 {object} Response "OK"
// @Failure 400 {object} Response "Invalid parameters"
// @Router /api/v1/analytics/coach/panel [put]
func (h *CoachHandler) Panel(c *gin.Context) {
	var req PanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	h.coach.SetPanel(middleware.GetCurrentUserID(c), *req.Open)
	SuccessWithMessage(c, "ok", gin.H{"open": *req.Open})
}
