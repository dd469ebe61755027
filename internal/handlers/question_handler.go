package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

const maxImportSize = 10 << 20

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
}

func NewQuestionHandler(questionService services.QuestionService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
	}
}

// AddQuestion appends a question to a test
// @Summary Add question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param question body models.QuestionCreateRequest true "Question"
// @Success 201 {object} models.Question
// @Router /tests/{id}/questions [post]
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	var req models.QuestionCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Adding question", "test_id", testID, "type", req.Type)

	question, err := h.questionService.Add(c.Request.Context(), testID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

// ListQuestions
// @Summary List questions of a test in order
// @Tags questions
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {array} models.Question
// @Router /tests/{id}/questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// UpdateQuestion
// @Summary Update question
// @Tags questions
// @Accept json
// @Produce json
// @Param question_id path uint true "Question ID"
// @Param question body models.QuestionUpdateRequest true "Fields to change"
// @Success 200 {object} models.Question
// @Router /questions/{question_id} [put]
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "question_id")
	if id == 0 {
		return
	}
	var req models.QuestionUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Updating question", "question_id", id)

	question, err := h.questionService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

// DeleteQuestion
// @Summary Delete question
// @Tags questions
// @Param question_id path uint true "Question ID"
// @Success 204
// @Router /questions/{question_id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "question_id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", id)

	if err := h.questionService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderQuestions
// @Summary Set the order of every question in a test
// @Tags questions
// @Accept json
// @Param id path uint true "Test ID"
// @Param order body models.ReorderQuestionsRequest true "Question IDs in their new order"
// @Success 200 {object} SuccessResponse
// @Router /tests/{id}/questions/reorder [put]
func (h *QuestionHandler) ReorderQuestions(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	var req models.ReorderQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Reordering questions", "test_id", testID, "count", len(req.QuestionIDs))

	if err := h.questionService.Reorder(c.Request.Context(), testID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Questions reordered"})
}

// ImportQuestions reads questions from an uploaded .xlsx file
// @Summary Import questions from a spreadsheet
// @Tags questions
// @Accept multipart/form-data
// @Produce json
// @Param id path uint true "Test ID"
// @Param file formData file true "Workbook"
// @Success 200 {object} models.ImportResult
// @Router /tests/{id}/questions/import [post]
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "File is required", Details: err.Error()})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Only .xlsx files are supported"})
		return
	}
	if header.Size > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "File too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.LogError(c, err, "Failed to open upload")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Failed to read file", Details: err.Error()})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "test_id", testID, "file", header.Filename, "size", header.Size)

	result, err := h.questionService.ImportFromSpreadsheet(c.Request.Context(), testID, file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
