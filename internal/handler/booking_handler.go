package handler

import (
	"strconv"

	"github.com/cleanfanatics/service-booking/internal/application"
	"github.com/cleanfanatics/service-booking/internal/auth"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/cleanfanatics/service-booking/internal/middleware"
	"github.com/cleanfanatics/service-booking/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(string(userDomain.RoleCustomer)), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/history", h.GetHistory)
		bookings.POST("/:id/assign", h.AssignProvider)
		bookings.PATCH("/:id/status", h.SetStatus)
		bookings.POST("/:id/reject", middleware.RequireRole(string(userDomain.RoleProvider)), h.RejectAssignment)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Customers see their own
// bookings, providers the ones assigned to them, admins everything.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)

	status, err := parseStatusFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	switch middleware.GetUserRole(c) {
	case string(userDomain.RoleProvider):
		result, err := h.service.GetProviderBookings(c.Request.Context(), userID, status, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result)

	case string(userDomain.RoleAdmin):
		result, err := h.service.ListAllBookings(c.Request.Context(), status, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result)

	default:
		result, err := h.service.GetCustomerBookings(c.Request.Context(), userID, status, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result)
	}
}

// GetBooking handles GET /api/v1/bookings/:id. Only the booking's customer,
// its assigned provider or an admin may read it.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !mayAccessBooking(c, result) {
		response.Forbidden(c, "access denied")
		return
	}

	response.Success(c, result)
}

// GetHistory handles GET /api/v1/bookings/:id/history.
func (h *BookingHandler) GetHistory(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	bk, err := h.service.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !mayAccessBooking(c, bk) {
		response.Forbidden(c, "access denied")
		return
	}

	events, err := h.service.GetBookingHistory(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, events)
}

// AssignProvider handles POST /api/v1/bookings/:id/assign. Without a
// provider_id in the body the ranked automatic selection runs.
func (h *BookingHandler) AssignProvider(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var body struct {
		ProviderID *uuid.UUID `json:"provider_id"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.AssignProvider(c.Request.Context(), bookingID, middleware.GetUserID(c), body.ProviderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetStatus handles PATCH /api/v1/bookings/:id/status.
func (h *BookingHandler) SetStatus(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	status, err := bookingDomain.ParseBookingStatus(body.Status)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetStatus(c.Request.Context(), bookingID, middleware.GetUserID(c), status, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectAssignment handles POST /api/v1/bookings/:id/reject.
func (h *BookingHandler) RejectAssignment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.RejectAssignment(c.Request.Context(), bookingID, middleware.GetUserID(c), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.CancelBooking(c.Request.Context(), bookingID, middleware.GetUserID(c), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func mayAccessBooking(c *gin.Context, bk *application.BookingDTO) bool {
	userID := middleware.GetUserID(c)
	switch middleware.GetUserRole(c) {
	case string(userDomain.RoleAdmin):
		return true
	case string(userDomain.RoleProvider):
		return bk.ProviderID != nil && *bk.ProviderID == userID
	default:
		return bk.CustomerID == userID
	}
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// parseStatusFilter reads the optional status query parameter.
func parseStatusFilter(c *gin.Context) (*bookingDomain.BookingStatus, error) {
	raw := c.Query("status")
	if raw == "" {
		return nil, nil
	}
	status, err := bookingDomain.ParseBookingStatus(raw)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
