package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanfanatics/service-booking/internal/application"
	"github.com/cleanfanatics/service-booking/internal/auth"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/cleanfanatics/service-booking/internal/middleware"
	"github.com/cleanfanatics/service-booking/internal/response"
)

// AdminHandler handles the admin HTTP surface: dashboard stats, booking
// management, the audit trail and provider administration.
type AdminHandler struct {
	bookings *application.BookingService
	users    *application.UserService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService, users *application.UserService) *AdminHandler {
	return &AdminHandler{bookings: bookings, users: users}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(string(userDomain.RoleAdmin))

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/stats", h.Stats)
		admin.GET("/bookings", h.ListBookings)
		admin.PATCH("/bookings/:id/override", h.OverrideBooking)
		admin.GET("/events", h.ListEvents)
		admin.GET("/providers", h.ListProviders)
		admin.PATCH("/providers/:id", h.UpdateProvider)
		admin.GET("/users", h.ListUsers)
	}
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.users.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)
	status, err := parseStatusFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.ListAllBookings(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result)
}

// OverrideBooking handles PATCH /api/v1/admin/bookings/:id/override. It
// forces the booking into the given status regardless of the state machine.
func (h *AdminHandler) OverrideBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
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

	result, err := h.bookings.AdminOverride(c.Request.Context(), bookingID, middleware.GetUserID(c), status, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListEvents handles GET /api/v1/admin/events.
func (h *AdminHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var bookingID *uuid.UUID
	if raw := c.Query("booking_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid booking ID")
			return
		}
		bookingID = &id
	}

	events, err := h.bookings.GetRecentEvents(c.Request.Context(), limit, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, events)
}

// ListProviders handles GET /api/v1/admin/providers.
func (h *AdminHandler) ListProviders(c *gin.Context) {
	result, err := h.users.ListProviders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateProvider handles PATCH /api/v1/admin/providers/:id.
func (h *AdminHandler) UpdateProvider(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid provider ID")
		return
	}

	var body struct {
		IsActive     *bool `json:"is_active"`
		Availability *bool `json:"availability"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if body.IsActive == nil && body.Availability == nil {
		response.BadRequest(c, "nothing to update")
		return
	}

	result, err := h.users.UpdateProviderFlags(c.Request.Context(), providerID, body.IsActive, body.Availability)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var role *userDomain.Role
	if raw := c.Query("role"); raw != "" {
		parsed := userDomain.Role(raw)
		if !parsed.IsValid() {
			response.BadRequest(c, "invalid role")
			return
		}
		role = &parsed
	}

	result, err := h.users.ListUsers(c.Request.Context(), role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
