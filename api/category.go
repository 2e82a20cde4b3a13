package api

import (
	"errors"
	"strings"

	"expensight/middleware"
	"expensight/models"
	"expensight/store"

	"github.com/gin-gonic/gin"
)

// CategoryHandler spending categories
type CategoryHandler struct {
	store    *store.Store
	analysis Invalidator
}

func NewCategoryHandler(s *store.Store, analysis Invalidator) *CategoryHandler {
	return &CategoryHandler{store: s, analysis: analysis}
}

type CategoryCreateRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=50" example:"Pets"`
	Icon  string `json:"icon" binding:"max=16" example:"🐾"`
	Sort  int    `json:"sort"`
	Color string `json:"color" binding:"omitempty,max=20" example:"#f97316"`
}

// List built-in categories followed by the user's own
// @Summary List categories
// @Tags Categories
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.ExpenseCategory} "OK"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	list, err := h.store.CategoryRows(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to list categories"))
		return
	}
	Success(c, list)
}

// Create adds a user-defined category
// @Summary Create category
// @Description Names must be unique, ignoring case, across built-in and the user's categories.
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "Category"
// @Success 200 {object} Response{data=models.ExpenseCategory} "Created"
// @Failure 400 {object} Response "Invalid parameters or duplicate name"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid parameters"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "name is required")
		return
	}

	color := req.Color
	if color == "" {
		color = "#64748b"
	}
	cat := models.ExpenseCategory{
		UserID: userID,
		Name:   req.Name,
		Icon:   req.Icon,
		Sort:   req.Sort,
		Color:  color,
	}
	if err := h.store.CreateCategory(c.Request.Context(), &cat); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			BadRequest(c, "category already exists")
			return
		}
		InternalError(c, SafeErrorMessage(err, "failed to create category"))
		return
	}
	h.analysis.Invalidate(userID)

	SuccessWithMessage(c, "created", cat)
}
