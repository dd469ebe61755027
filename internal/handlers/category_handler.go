package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

// CategoryHandler serves categories and the assessment scales that label results.
type CategoryHandler struct {
	BaseHandler
	categoryService services.CategoryService
	scaleService    services.ScaleService
}

func NewCategoryHandler(categoryService services.CategoryService, scaleService services.ScaleService, logger utils.Logger) *CategoryHandler {
	return &CategoryHandler{
		BaseHandler:     NewBaseHandler(logger),
		categoryService: categoryService,
		scaleService:    scaleService,
	}
}

// ===== CATEGORIES =====

// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// @Summary Get category
// @Tags categories
// @Param id path uint true "Category ID"
// @Success 200 {object} models.Category
// @Router /categories/{id} [get]
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	category, err := h.categoryService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// @Summary Create category
// @Tags categories
// @Accept json
// @Param category body models.CategoryRequest true "Category"
// @Success 201 {object} models.Category
// @Failure 409 {object} ErrorResponse
// @Router /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating category", "name", req.Name)

	category, err := h.categoryService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// @Summary Update category
// @Tags categories
// @Accept json
// @Param id path uint true "Category ID"
// @Param category body models.CategoryRequest true "Category"
// @Success 200 {object} models.Category
// @Router /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req models.CategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Updating category", "category_id", id)

	category, err := h.categoryService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// @Summary Delete category
// @Tags categories
// @Param id path uint true "Category ID"
// @Success 204
// @Failure 409 {object} ErrorResponse "Category still used by tests"
// @Router /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting category", "category_id", id)

	if err := h.categoryService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== SCALES =====

// ListScales returns the global scales, or those of one test when test_id is given
// @Summary List assessment scales
// @Tags scales
// @Param test_id query uint false "Test ID"
// @Success 200 {array} models.AssessmentScale
// @Router /scales [get]
func (h *CategoryHandler) ListScales(c *gin.Context) {
	scales, err := h.scaleService.List(c.Request.Context(), h.parseOptionalUint(c, "test_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, scales)
}

// @Summary Get scale
// @Tags scales
// @Param id path uint true "Scale ID"
// @Success 200 {object} models.AssessmentScale
// @Router /scales/{id} [get]
func (h *CategoryHandler) GetScale(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	scale, err := h.scaleService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, scale)
}

// @Summary Create scale
// @Tags scales
// @Accept json
// @Param scale body models.ScaleRequest true "Scale"
// @Success 201 {object} models.AssessmentScale
// @Router /scales [post]
func (h *CategoryHandler) CreateScale(c *gin.Context) {
	var req models.ScaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating scale", "label", req.Label, "test_id", req.TestID)

	scale, err := h.scaleService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scale)
}

// @Summary Update scale
// @Tags scales
// @Accept json
// @Param id path uint true "Scale ID"
// @Param scale body models.ScaleRequest true "Scale"
// @Success 200 {object} models.AssessmentScale
// @Router /scales/{id} [put]
func (h *CategoryHandler) UpdateScale(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req models.ScaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	scale, err := h.scaleService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, scale)
}

// @Summary Delete scale
// @Tags scales
// @Param id path uint true "Scale ID"
// @Success 204
// @Router /scales/{id} [delete]
func (h *CategoryHandler) DeleteScale(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.scaleService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
