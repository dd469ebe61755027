package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts a new attempt or resumes the caller's open one
// @Summary Start test attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Test ID"
// @Success 201 {object} services.AttemptResponse "New attempt"
// @Success 200 {object} services.AttemptResponse "Resumed attempt"
// @Failure 422 {object} ErrorResponse "Not published or attempt limit reached"
// @Router /tests/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting attempt", "test_id", testID)

	attempt, err := h.attemptService.Start(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// SaveAnswer stores one answer of an open attempt
// @Summary Save answer
// @Tags attempts
// @Accept json
// @Param result_id path uint true "Result ID"
// @Param answer body models.AnswerSubmission true "Answer"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse "Attempt already finished"
// @Failure 422 {object} ErrorResponse "Time limit exceeded"
// @Router /results/{result_id}/answers [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	resultID := h.parseIDParam(c, "result_id")
	if resultID == 0 {
		return
	}
	var req models.AnswerSubmission
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), resultID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved"})
}

// SubmitAttempt grades the attempt
// @Summary Submit attempt
// @Description Answers in the body override answers saved earlier for the same question
// @Tags attempts
// @Accept json
// @Produce json
// @Param result_id path uint true "Result ID"
// @Param submission body models.SubmitResultRequest false "Final answers"
// @Success 200 {object} services.ResultResponse
// @Router /results/{result_id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	resultID := h.parseIDParam(c, "result_id")
	if resultID == 0 {
		return
	}

	var req models.SubmitResultRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "result_id", resultID, "answers", len(req.Answers))

	result, err := h.attemptService.Submit(c.Request.Context(), resultID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetResult
// @Summary Get result with per-question review
// @Tags attempts
// @Produce json
// @Param result_id path uint true "Result ID"
// @Success 200 {object} services.ResultResponse
// @Router /results/{result_id} [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	resultID := h.parseIDParam(c, "result_id")
	if resultID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Get(c.Request.Context(), resultID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMyResults
// @Summary List my results
// @Tags attempts
// @Produce json
// @Param test_id query uint false "Test ID"
// @Param status query string false "in_progress, completed or timed_out"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} services.ResultListResponse
// @Router /results/me [get]
func (h *AttemptHandler) ListMyResults(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	results, err := h.attemptService.ListMine(c.Request.Context(), userID, h.parseResultFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// ListTestResults
// @Summary List results of a test
// @Tags attempts
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} services.ResultListResponse
// @Router /tests/{id}/results [get]
func (h *AttemptHandler) ListTestResults(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	results, err := h.attemptService.ListByTest(c.Request.Context(), testID, userID, h.parseResultFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *AttemptHandler) parseResultFilters(c *gin.Context) repositories.ResultFilters {
	filters := repositories.ResultFilters{
		TestID:    h.parseOptionalUint(c, "test_id"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filters.Limit, filters.Offset = h.parsePage(c)
	if status := c.Query("status"); status != "" {
		s := models.ResultStatus(status)
		filters.Status = &s
	}
	return filters
}
