package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type RecommendationHandler struct {
	BaseHandler
	recommendationService services.RecommendationService
}

func NewRecommendationHandler(recommendationService services.RecommendationService, logger utils.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		BaseHandler:           NewBaseHandler(logger),
		recommendationService: recommendationService,
	}
}

// GenerateRecommendation asks the model for study advice on a finished result
// @Summary Generate AI recommendation
// @Tags recommendations
// @Produce json
// @Param result_id path uint true "Result ID"
// @Param force query bool false "Regenerate even when one is ready"
// @Success 200 {object} models.AIRecommendation
// @Failure 422 {object} ErrorResponse "Result not finished"
// @Failure 503 {object} ErrorResponse "AI provider unavailable"
// @Router /results/{result_id}/recommendation [post]
func (h *RecommendationHandler) GenerateRecommendation(c *gin.Context) {
	resultID := h.parseIDParam(c, "result_id")
	if resultID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	h.LogRequest(c, "Generating recommendation", "result_id", resultID, "force", force)

	rec, err := h.recommendationService.Generate(c.Request.Context(), resultID, userID, force)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Get the stored recommendation of a result
// @Tags recommendations
// @Param result_id path uint true "Result ID"
// @Success 200 {object} models.AIRecommendation
// @Failure 404 {object} ErrorResponse
// @Router /results/{result_id}/recommendation [get]
func (h *RecommendationHandler) GetRecommendation(c *gin.Context) {
	resultID := h.parseIDParam(c, "result_id")
	if resultID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	rec, err := h.recommendationService.Get(c.Request.Context(), resultID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary List my recommendations
// @Tags recommendations
// @Success 200 {array} models.AIRecommendation
// @Router /recommendations/me [get]
func (h *RecommendationHandler) ListMyRecommendations(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	recs, err := h.recommendationService.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}
