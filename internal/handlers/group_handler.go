package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type GroupHandler struct {
	BaseHandler
	groupService services.GroupService
}

func NewGroupHandler(groupService services.GroupService, logger utils.Logger) *GroupHandler {
	return &GroupHandler{
		BaseHandler:  NewBaseHandler(logger),
		groupService: groupService,
	}
}

// GenerateSmartGroups splits users into balanced groups by competency
// @Summary Generate balanced groups
// @Description Previews the grouping, or stores it when persist is true
// @Tags groups
// @Accept json
// @Produce json
// @Param request body models.SmartGroupRequest true "Grouping request"
// @Success 200 {object} models.GroupingResult "Preview"
// @Success 201 {object} models.GroupingResult "Stored"
// @Failure 422 {object} ErrorResponse "No candidates"
// @Router /groups/smart [post]
func (h *GroupHandler) GenerateSmartGroups(c *gin.Context) {
	var req models.SmartGroupRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Generating smart groups", "strategy", req.Strategy, "test_id", req.TestID, "persist", req.Persist)

	result, err := h.groupService.GenerateSmart(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondGrouping(c, result)
}

// GenerateLeaderboardGroups groups the top of a test leaderboard
// @Summary Generate groups from a leaderboard
// @Tags groups
// @Accept json
// @Produce json
// @Param request body models.LeaderboardGroupRequest true "Grouping request"
// @Success 200 {object} models.GroupingResult
// @Router /groups/leaderboard [post]
func (h *GroupHandler) GenerateLeaderboardGroups(c *gin.Context) {
	var req models.LeaderboardGroupRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Generating leaderboard groups", "test_id", req.TestID, "top_n", req.TopN, "persist", req.Persist)

	result, err := h.groupService.GenerateFromLeaderboard(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondGrouping(c, result)
}

// @Summary List groups visible to the caller
// @Tags groups
// @Produce json
// @Param test_id query uint false "Test ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} services.GroupListResponse
// @Router /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	groups, err := h.groupService.List(c.Request.Context(), h.parseGroupFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// @Summary Get group with members
// @Tags groups
// @Param id path uint true "Group ID"
// @Success 200 {object} models.Group
// @Router /groups/{id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	group, err := h.groupService.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// @Summary Delete group
// @Tags groups
// @Param id path uint true "Group ID"
// @Success 204
// @Router /groups/{id} [delete]
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting group", "group_id", id)

	if err := h.groupService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Add member to group
// @Tags groups
// @Accept json
// @Param id path uint true "Group ID"
// @Param member body models.AddGroupMemberRequest true "Member"
// @Success 200 {object} models.Group
// @Failure 409 {object} ErrorResponse "Already a member"
// @Router /groups/{id}/members [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req models.AddGroupMemberRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Adding group member", "group_id", id, "member_id", req.UserID)

	group, err := h.groupService.AddMember(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// @Summary Remove member from group
// @Tags groups
// @Param id path uint true "Group ID"
// @Param user_id path string true "Member user ID"
// @Success 200 {object} models.Group
// @Router /groups/{id}/members/{user_id} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	memberID := c.Param("user_id")

	h.LogRequest(c, "Removing group member", "group_id", id, "member_id", memberID)

	group, err := h.groupService.RemoveMember(c.Request.Context(), id, memberID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// @Summary Download groups and members as .xlsx
// @Tags groups
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param test_id query uint false "Test ID"
// @Router /groups/export [get]
func (h *GroupHandler) ExportGroups(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.groupService.ExportGroups(c.Request.Context(), h.parseGroupFilters(c), userID, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendWorkbook(c, "groups.xlsx", &buf)
}

func (h *GroupHandler) respondGrouping(c *gin.Context, result *models.GroupingResult) {
	if result.Persisted {
		c.JSON(http.StatusCreated, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *GroupHandler) parseGroupFilters(c *gin.Context) repositories.GroupFilters {
	filters := repositories.GroupFilters{TestID: h.parseOptionalUint(c, "test_id")}
	filters.Limit, filters.Offset = h.parsePage(c)
	return filters
}
