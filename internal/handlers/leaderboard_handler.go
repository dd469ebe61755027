package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LeaderboardHandler serves rankings and per-category competency.
type LeaderboardHandler struct {
	BaseHandler
	leaderboardService services.LeaderboardService
	competencyService  services.CompetencyService
}

func NewLeaderboardHandler(leaderboardService services.LeaderboardService, competencyService services.CompetencyService, logger utils.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		BaseHandler:        NewBaseHandler(logger),
		leaderboardService: leaderboardService,
		competencyService:  competencyService,
	}
}

// TestLeaderboard ranks users by their best attempt on one test
// @Summary Test leaderboard
// @Tags leaderboards
// @Produce json
// @Param id path uint true "Test ID"
// @Param limit query int false "Entries to return" default(10)
// @Success 200 {object} models.Leaderboard
// @Router /leaderboards/tests/{id} [get]
func (h *LeaderboardHandler) TestLeaderboard(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	board, err := h.leaderboardService.TestLeaderboard(c.Request.Context(), testID, h.parseIntQuery(c, "limit", 0))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// GlobalLeaderboard ranks users across tests, optionally within a category
// @Summary Global leaderboard
// @Tags leaderboards
// @Produce json
// @Param category_id query uint false "Category ID"
// @Param limit query int false "Entries to return" default(10)
// @Success 200 {object} models.Leaderboard
// @Router /leaderboards/global [get]
func (h *LeaderboardHandler) GlobalLeaderboard(c *gin.Context) {
	board, err := h.leaderboardService.GlobalLeaderboard(c.Request.Context(), h.parseOptionalUint(c, "category_id"), h.parseIntQuery(c, "limit", 0))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// MyRank
// @Summary The caller's position on a test leaderboard
// @Tags leaderboards
// @Param id path uint true "Test ID"
// @Success 200 {object} models.LeaderboardEntry
// @Failure 404 {object} ErrorResponse "No finished attempt"
// @Router /leaderboards/tests/{id}/me [get]
func (h *LeaderboardHandler) MyRank(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	entry, err := h.leaderboardService.UserRank(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ExportLeaderboard
// @Summary Download the full test leaderboard as .xlsx
// @Tags leaderboards
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Test ID"
// @Router /leaderboards/tests/{id}/export [get]
func (h *LeaderboardHandler) ExportLeaderboard(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Exporting leaderboard", "test_id", testID)

	var buf bytes.Buffer
	if err := h.leaderboardService.ExportLeaderboard(c.Request.Context(), testID, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}
	sendWorkbook(c, fmt.Sprintf("leaderboard-test-%d.xlsx", testID), &buf)
}

// UserCompetency
// @Summary Competency per category for a user
// @Tags competency
// @Produce json
// @Param user_id query string false "User ID, defaults to the caller"
// @Param category_id query uint false "Restrict to one category"
// @Success 200 {object} models.UserCompetency
// @Router /competencies [get]
func (h *LeaderboardHandler) UserCompetency(c *gin.Context) {
	viewerID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	targetID := c.Query("user_id")
	if targetID == "" || targetID == "me" {
		targetID = viewerID
	}

	competency, err := h.competencyService.View(c.Request.Context(), targetID, h.parseOptionalUint(c, "category_id"), viewerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, competency)
}

func sendWorkbook(c *gin.Context, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
