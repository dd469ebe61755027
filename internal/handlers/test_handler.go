package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type TestHandler struct {
	BaseHandler
	testService services.TestService
}

func NewTestHandler(testService services.TestService, logger utils.Logger) *TestHandler {
	return &TestHandler{
		BaseHandler: NewBaseHandler(logger),
		testService: testService,
	}
}

// CreateTest creates a new test, optionally with its questions
// @Summary Create test
// @Tags tests
// @Accept json
// @Produce json
// @Param test body models.TestCreateRequest true "Test data"
// @Success 201 {object} services.TestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /tests [post]
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req models.TestCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating test", "title", req.Title, "questions", len(req.Questions))

	test, err := h.testService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, test)
}

// GetTest returns a test with its questions
// @Summary Get test
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} services.TestResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id} [get]
func (h *TestHandler) GetTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	test, err := h.testService.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

// UpdateTest
// @Summary Update test
// @Tags tests
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param test body models.TestUpdateRequest true "Fields to change"
// @Success 200 {object} services.TestResponse
// @Router /tests/{id} [put]
func (h *TestHandler) UpdateTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req models.TestUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Updating test", "test_id", id)

	test, err := h.testService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

// DeleteTest
// @Summary Delete test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 204
// @Router /tests/{id} [delete]
func (h *TestHandler) DeleteTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting test", "test_id", id)

	if err := h.testService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTests lists the tests visible to the caller
// @Summary List tests
// @Tags tests
// @Produce json
// @Param status query string false "draft, published or archived"
// @Param category_id query uint false "Category"
// @Param q query string false "Title search"
// @Param mine query bool false "Only tests I created"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} services.TestListResponse
// @Router /tests [get]
func (h *TestHandler) ListTests(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseTestFilters(c, userID)
	tests, err := h.testService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tests)
}

// PublishTest
// @Summary Publish test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 200 {object} services.TestResponse
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id}/publish [post]
func (h *TestHandler) PublishTest(c *gin.Context) {
	h.transition(c, "Publishing test", h.testService.Publish)
}

// UnpublishTest
// @Summary Move a published test back to draft
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 200 {object} services.TestResponse
// @Router /tests/{id}/unpublish [post]
func (h *TestHandler) UnpublishTest(c *gin.Context) {
	h.transition(c, "Unpublishing test", h.testService.Unpublish)
}

// ArchiveTest
// @Summary Archive test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 200 {object} services.TestResponse
// @Router /tests/{id}/archive [post]
func (h *TestHandler) ArchiveTest(c *gin.Context) {
	h.transition(c, "Archiving test", h.testService.Archive)
}

// DuplicateTest copies a test and its questions into a new draft
// @Summary Duplicate test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 201 {object} services.TestResponse
// @Router /tests/{id}/duplicate [post]
func (h *TestHandler) DuplicateTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Duplicating test", "test_id", id)

	test, err := h.testService.Duplicate(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, test)
}

// ===== HELPERS =====

type testTransition func(ctx context.Context, id uint, userID string) (*services.TestResponse, error)

func (h *TestHandler) transition(c *gin.Context, msg string, fn testTransition) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, msg, "test_id", id)

	test, err := fn(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) parseTestFilters(c *gin.Context, userID string) repositories.TestFilters {
	filters := repositories.TestFilters{
		CategoryID: h.parseOptionalUint(c, "category_id"),
		Query:      c.Query("q"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	filters.Limit, filters.Offset = h.parsePage(c)

	if status := c.Query("status"); status != "" {
		s := models.TestStatus(status)
		filters.Status = &s
	}
	if c.Query("mine") == "true" {
		filters.CreatedBy = &userID
	}
	return filters
}
