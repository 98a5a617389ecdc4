package response

import (
	"net/http"

	"github.com/cleanfanatics/service-booking/internal/domain"
	"github.com/gin-gonic/gin"
)

// Body is the envelope every endpoint returns.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries pagination details on list responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Paginated writes a list response with pagination metadata.
func Paginated[T any](c *gin.Context, result *domain.PaginatedResult[T]) {
	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.Total + int64(result.Limit) - 1) / int64(result.Limit))
	}
	c.JSON(http.StatusOK, Body{
		Success: true,
		Data:    result.Items,
		Meta: &Meta{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: totalPages,
		},
	})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: message})
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: message})
}

func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: message})
}

func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: message})
}

func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: message})
}

func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: message})
}

// Error maps a domain error to the right HTTP status.
func Error(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		BadRequest(c, err.Error())
	case domain.IsForbidden(err):
		Forbidden(c, err.Error())
	case domain.IsNotFound(err):
		NotFound(c, err.Error())
	case domain.IsConflict(err):
		Conflict(c, err.Error())
	default:
		InternalError(c, "internal server error")
	}
}
