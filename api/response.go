package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every JSON endpoint returns. Code mirrors the HTTP status.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse paged list
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a validated page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps a requested page: numbers start at 1, sizes default to 20 and cap at 100.
func NewPage(number, size int) Page {
	if number <= 0 {
		number = 1
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return Page{Number: number, Size: size}
}

// Bounds returns the slice window [from, to) of this page over n rows.
func (p Page) Bounds(n int) (from, to int) {
	from = (p.Number - 1) * p.Size
	if from > n {
		from = n
	}
	to = from + p.Size
	if to > n {
		to = n
	}
	return from, to
}

// Send writes list as this page of total rows.
func (p Page) Send(c *gin.Context, total int64, list interface{}) {
	Success(c, PageResponse{
		Total:    total,
		Page:     p.Number,
		PageSize: p.Size,
		List:     list,
	})
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

// Success 200 with data
func Success(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "success", data)
}

// SuccessWithMessage 200 with a custom message, e.g. "created" or "saved"
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	respond(c, http.StatusOK, message, data)
}

// Error writes an error envelope with no data.
func Error(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict means the request raced a change to the user's data.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// Unavailable means an optional upstream is not configured.
func Unavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}
