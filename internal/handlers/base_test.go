package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func TestHandleServiceError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", validator.ValidationErrors{{Field: "title", Message: "is required"}}, http.StatusBadRequest},
		{"bad request", fmt.Errorf("%w: question 9 is not part of the test", services.ErrBadRequest), http.StatusBadRequest},
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized},
		{"permission", services.NewPermissionError("u1", 3, "test", "update", "not the author"), http.StatusForbidden},
		{"not found", fmt.Errorf("loading: %w", services.ErrTestNotFound), http.StatusNotFound},
		{"member exists", services.ErrMemberExists, http.StatusConflict},
		{"already completed", services.ErrResultAlreadyCompleted, http.StatusConflict},
		{"business rule", services.NewBusinessRuleError("time_limit", "time limit exceeded", nil), http.StatusUnprocessableEntity},
		{"attempt limit", services.ErrAttemptLimitExceeded, http.StatusUnprocessableEntity},
		{"no candidates", services.ErrNoCandidates, http.StatusUnprocessableEntity},
		{"ai", fmt.Errorf("%w: timeout", services.ErrAIUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBaseHandler(testLogger())
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.handleServiceError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestHandleServiceErrorHidesInternalDetails(t *testing.T) {
	h := NewBaseHandler(testLogger())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.handleServiceError(c, errors.New("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password")
}

func TestParseIDParam(t *testing.T) {
	h := NewBaseHandler(testLogger())

	for _, tc := range []struct {
		raw  string
		want uint
	}{
		{"42", 42},
		{"0", 0},
		{"-1", 0},
		{"abc", 0},
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tc.raw}}

		got := h.parseIDParam(c, "id")
		assert.Equal(t, tc.want, got, tc.raw)
		if tc.want == 0 {
			assert.Equal(t, http.StatusBadRequest, w.Code, tc.raw)
		}
	}
}

func TestParsePage(t *testing.T) {
	h := NewBaseHandler(testLogger())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&size=20", nil)

	limit, offset := h.parsePage(c)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 40, offset)

	c.Request = httptest.NewRequest(http.MethodGet, "/?page=-2&size=x", nil)
	limit, offset = h.parsePage(c)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 0, offset)
}
