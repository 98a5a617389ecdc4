package handler

import (
	"github.com/cleanfanatics/service-booking/internal/application"
	"github.com/cleanfanatics/service-booking/internal/auth"
	bookingDomain "github.com/cleanfanatics/service-booking/internal/domain/booking"
	userDomain "github.com/cleanfanatics/service-booking/internal/domain/user"
	"github.com/cleanfanatics/service-booking/internal/middleware"
	"github.com/cleanfanatics/service-booking/internal/response"
	"github.com/gin-gonic/gin"
)

// ProviderHandler handles the provider-facing HTTP surface.
type ProviderHandler struct {
	users    *application.UserService
	bookings *application.BookingService
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(users *application.UserService, bookings *application.BookingService) *ProviderHandler {
	return &ProviderHandler{users: users, bookings: bookings}
}

// RegisterRoutes registers provider routes.
func (h *ProviderHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	providerRole := middleware.RequireRole(string(userDomain.RoleProvider))

	providers := r.Group("/api/v1/providers")
	providers.Use(authMW)
	{
		providers.GET("/available", h.ListAvailable)
		providers.PATCH("/availability", providerRole, h.SetAvailability)
		providers.GET("/my-bookings", providerRole, h.MyBookings)
		providers.GET("/pending", providerRole, h.PendingBookings)
		providers.GET("/stats", providerRole, h.Stats)
	}
}

// ListAvailable handles GET /api/v1/providers/available.
func (h *ProviderHandler) ListAvailable(c *gin.Context) {
	var service *bookingDomain.ServiceCategory
	if raw := c.Query("service"); raw != "" {
		parsed, err := bookingDomain.ParseServiceCategory(raw)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		service = &parsed
	}

	result, err := h.users.ListAvailableProviders(c.Request.Context(), service)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetAvailability handles PATCH /api/v1/providers/availability.
func (h *ProviderHandler) SetAvailability(c *gin.Context) {
	var body struct {
		Availability *bool `json:"availability" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.users.SetAvailability(c.Request.Context(), middleware.GetUserID(c), *body.Availability)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// MyBookings handles GET /api/v1/providers/my-bookings.
func (h *ProviderHandler) MyBookings(c *gin.Context) {
	page, limit := parsePagination(c)
	status, err := parseStatusFilter(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.GetProviderBookings(c.Request.Context(), middleware.GetUserID(c), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result)
}

// PendingBookings handles GET /api/v1/providers/pending: assignments still
// awaiting the provider's accept or reject.
func (h *ProviderHandler) PendingBookings(c *gin.Context) {
	page, limit := parsePagination(c)
	status := bookingDomain.StatusAssigned

	result, err := h.bookings.GetProviderBookings(c.Request.Context(), middleware.GetUserID(c), &status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result)
}

// Stats handles GET /api/v1/providers/stats.
func (h *ProviderHandler) Stats(c *gin.Context) {
	result, err := h.users.ProviderStats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
