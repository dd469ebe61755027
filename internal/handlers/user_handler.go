package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	profileService services.ProfileService
}

func NewUserHandler(profileService services.ProfileService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler:    NewBaseHandler(logger),
		profileService: profileService,
	}
}

// Me returns the caller's profile
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.Profile
// @Router /profiles/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileService.Me(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetUser
// @Summary Get a user's profile
// @Tags users
// @Param user_id path string true "User ID"
// @Success 200 {object} models.Profile
// @Router /profiles/{user_id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	viewerID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileService.Get(c.Request.Context(), c.Param("user_id"), viewerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListUsers lists users known to the service
// @Summary List profiles
// @Tags users
// @Produce json
// @Param q query string false "Name or email"
// @Param role query string false "student, teacher or admin"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} services.ProfileListResponse
// @Router /profiles [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	viewerID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := repositories.ProfileFilters{Query: c.Query("q")}
	filters.Limit, filters.Offset = h.parsePage(c)
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filters.Role = &r
	}

	profiles, err := h.profileService.List(c.Request.Context(), filters, viewerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// SearchDirectory searches the identity provider, including users who never signed in
// @Summary Search user directory
// @Tags users
// @Produce json
// @Param q query string false "Name or email"
// @Success 200 {object} services.DirectoryResponse
// @Router /users/search [get]
func (h *UserHandler) SearchDirectory(c *gin.Context) {
	viewerID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	query := c.Query("q")
	h.LogRequest(c, "Searching directory", "query", query)

	var filters repositories.UserFilters
	filters.Limit, filters.Offset = h.parsePage(c)

	users, err := h.profileService.SearchDirectory(c.Request.Context(), query, filters, viewerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
