package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
)

// Each stub records the arguments of the last call it served.

type stubLeaderboards struct {
	services.LeaderboardService
	testID     uint
	categoryID *uint
	limit      int
	rankFor    string
}

func (s *stubLeaderboards) TestLeaderboard(_ context.Context, testID uint, limit int) (*models.Leaderboard, error) {
	s.testID, s.limit = testID, limit
	return &models.Leaderboard{TestID: &testID, Entries: []models.LeaderboardEntry{{Rank: 1, UserID: "s1"}}, Total: 1}, nil
}

func (s *stubLeaderboards) GlobalLeaderboard(_ context.Context, categoryID *uint, limit int) (*models.Leaderboard, error) {
	s.categoryID, s.limit = categoryID, limit
	return &models.Leaderboard{CategoryID: categoryID}, nil
}

func (s *stubLeaderboards) UserRank(_ context.Context, testID uint, userID string) (*models.LeaderboardEntry, error) {
	s.testID, s.rankFor = testID, userID
	return &models.LeaderboardEntry{Rank: 2, UserID: userID}, nil
}

func (s *stubLeaderboards) ExportLeaderboard(_ context.Context, testID uint, w io.Writer) error {
	s.testID = testID
	_, err := w.Write([]byte("PK-ranking"))
	return err
}

type stubCompetency struct {
	services.CompetencyService
	target     string
	viewer     string
	categoryID *uint
}

func (s *stubCompetency) View(_ context.Context, targetID string, categoryID *uint, viewerID string) (*models.UserCompetency, error) {
	s.target, s.categoryID, s.viewer = targetID, categoryID, viewerID
	if targetID != viewerID && viewerID == "s1" {
		return nil, services.NewPermissionError(viewerID, 0, "competency", "view", "students only see themselves")
	}
	return &models.UserCompetency{UserID: targetID, Overall: 80}, nil
}

type stubGroups struct {
	services.GroupService
	smart    *models.SmartGroupRequest
	board    *models.LeaderboardGroupRequest
	filters  repositories.GroupFilters
	removed  string
	deleted  uint
	addedTo  uint
	exported bool
}

func (s *stubGroups) GenerateSmart(_ context.Context, req *models.SmartGroupRequest, _ string) (*models.GroupingResult, error) {
	s.smart = req
	return &models.GroupingResult{Strategy: req.Strategy, Persisted: req.Persist}, nil
}

func (s *stubGroups) GenerateFromLeaderboard(_ context.Context, req *models.LeaderboardGroupRequest, _ string) (*models.GroupingResult, error) {
	s.board = req
	return &models.GroupingResult{Strategy: models.GroupStrategy("leaderboard"), Persisted: req.Persist}, nil
}

func (s *stubGroups) List(_ context.Context, filters repositories.GroupFilters, _ string) (*services.GroupListResponse, error) {
	s.filters = filters
	return &services.GroupListResponse{Groups: []*models.Group{{ID: 1, Name: "Group 1"}}, Total: 1}, nil
}

func (s *stubGroups) Get(_ context.Context, id uint, _ string) (*models.Group, error) {
	if id != 1 {
		return nil, services.ErrGroupNotFound
	}
	return &models.Group{ID: id, Name: "Group 1"}, nil
}

func (s *stubGroups) Delete(_ context.Context, id uint, _ string) error {
	s.deleted = id
	return nil
}

func (s *stubGroups) AddMember(_ context.Context, groupID uint, req *models.AddGroupMemberRequest, _ string) (*models.Group, error) {
	s.addedTo = groupID
	return &models.Group{ID: groupID, Members: []models.GroupMember{{GroupID: groupID, UserID: req.UserID}}}, nil
}

func (s *stubGroups) RemoveMember(_ context.Context, groupID uint, memberID string, _ string) (*models.Group, error) {
	s.removed = memberID
	return &models.Group{ID: groupID}, nil
}

func (s *stubGroups) ExportGroups(_ context.Context, filters repositories.GroupFilters, _ string, w io.Writer) error {
	s.filters, s.exported = filters, true
	_, err := w.Write([]byte("PK-groups"))
	return err
}

type stubRecommendations struct {
	services.RecommendationService
	resultID uint
	force    bool
}

func (s *stubRecommendations) Generate(_ context.Context, resultID uint, userID string, force bool) (*models.AIRecommendation, error) {
	s.resultID, s.force = resultID, force
	return &models.AIRecommendation{ResultID: resultID, UserID: userID, Status: models.RecommendationReady}, nil
}

func (s *stubRecommendations) Get(_ context.Context, resultID uint, _ string) (*models.AIRecommendation, error) {
	s.resultID = resultID
	return nil, services.ErrRecommendationNotFound
}

func (s *stubRecommendations) ListMine(_ context.Context, userID string) ([]*models.AIRecommendation, error) {
	return []*models.AIRecommendation{{ResultID: 5, UserID: userID}}, nil
}

type stubQuestions struct {
	services.QuestionService
	testID   uint
	uploaded []byte
}

func (s *stubQuestions) ImportFromSpreadsheet(_ context.Context, testID uint, r io.Reader, _ string) (*models.ImportResult, error) {
	s.testID = testID
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.uploaded = data
	return &models.ImportResult{Created: 2, Errors: []models.ImportRowError{{Row: 4, Message: "missing text"}}}, nil
}

type stubProfiles struct {
	services.ProfileService
	got    string
	query  string
	search string
}

func (s *stubProfiles) Me(_ context.Context, userID string) (*models.Profile, error) {
	return &models.Profile{ID: userID}, nil
}

func (s *stubProfiles) Get(_ context.Context, id string, _ string) (*models.Profile, error) {
	s.got = id
	return &models.Profile{ID: id}, nil
}

func (s *stubProfiles) List(_ context.Context, filters repositories.ProfileFilters, _ string) (*services.ProfileListResponse, error) {
	s.query = filters.Query
	return &services.ProfileListResponse{}, nil
}

func (s *stubProfiles) SearchDirectory(_ context.Context, query string, _ repositories.UserFilters, _ string) (*services.DirectoryResponse, error) {
	s.search = query
	return &services.DirectoryResponse{Users: []*models.User{{ID: "s9"}}, Total: 1}, nil
}

type stubServiceManager struct {
	services.ServiceManager
	leaderboards    *stubLeaderboards
	competency      *stubCompetency
	groups          *stubGroups
	recommendations *stubRecommendations
	questions       *stubQuestions
	profiles        *stubProfiles
}

func (m *stubServiceManager) Test() services.TestService { return nil }
func (m *stubServiceManager) Question() services.QuestionService { return m.questions }
func (m *stubServiceManager) Category() services.CategoryService { return nil }
func (m *stubServiceManager) Scale() services.ScaleService { return nil }
func (m *stubServiceManager) Attempt() services.AttemptService { return &stubAttempts{} }
func (m *stubServiceManager) Leaderboard() services.LeaderboardService { return m.leaderboards }
func (m *stubServiceManager) Competency() services.CompetencyService { return m.competency }
func (m *stubServiceManager) Group() services.GroupService { return m.groups }
func (m *stubServiceManager) Recommendation() services.RecommendationService { return m.recommendations }
func (m *stubServiceManager) Profile() services.ProfileService { return m.profiles }
func (m *stubServiceManager) Dashboard() services.DashboardService { return nil }

func newStubServiceManager() *stubServiceManager {
	return &stubServiceManager{
		leaderboards:    &stubLeaderboards{},
		competency:      &stubCompetency{},
		groups:          &stubGroups{},
		recommendations: &stubRecommendations{},
		questions:       &stubQuestions{},
		profiles:        &stubProfiles{},
	}
}

// apiRouter mounts the real route table behind the token-checking middleware.
func apiRouter(sm *stubServiceManager) *gin.Engine {
	hm := NewHandlerManager(sm, newTestAuth(nil), testLogger())
	r := gin.New()
	hm.SetupRoutes(r)
	return r
}

func call(r http.Handler, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouteTable(t *testing.T) {
	r := apiRouter(newStubServiceManager())

	// path shapes a client is allowed to call
	cases := []struct {
		method string
		path   string
		token  string
		status int
	}{
		{http.MethodGet, "/api/v1/profiles/me", "student-token", http.StatusOK},
		{http.MethodGet, "/api/v1/profiles", "teacher-token", http.StatusOK},
		{http.MethodGet, "/api/v1/profiles/s2", "student-token", http.StatusOK},
		{http.MethodGet, "/api/v1/users/search?q=sam", "teacher-token", http.StatusOK},
		{http.MethodGet, "/api/v1/leaderboards/tests/3", "student-token", http.StatusOK},
		{http.MethodGet, "/api/v1/leaderboards/tests/3/me", "student-token", http.StatusOK},
		{http.MethodGet, "/api/v1/leaderboards/tests/3/export", "teacher-token", http.StatusOK},
		{http.MethodGet, "/api/v1/leaderboards/global", "student-token", http.StatusOK},
		{http.MethodGet, "/api/v1/competencies", "student-token", http.StatusOK},
		{http.MethodGet, "/api/v1/recommendations/me", "student-token", http.StatusOK},

		// staff only
		{http.MethodGet, "/api/v1/profiles", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/v1/users/search", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/v1/leaderboards/tests/3/export", "student-token", http.StatusForbidden},
		{http.MethodGet, "/api/v1/groups/export", "student-token", http.StatusForbidden},

		// earlier shapes are gone
		{http.MethodGet, "/api/v1/users/me", "student-token", http.StatusNotFound},
		{http.MethodGet, "/api/v1/tests/3/leaderboard", "student-token", http.StatusNotFound},
		{http.MethodGet, "/api/v1/leaderboard", "student-token", http.StatusNotFound},
		{http.MethodGet, "/api/v1/competency/s1", "student-token", http.StatusNotFound},

		{http.MethodGet, "/api/v1/leaderboards/global", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := call(r, tc.method, tc.path, tc.token, nil, "")
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestProfileRoutes(t *testing.T) {
	sm := newStubServiceManager()
	r := apiRouter(sm)

	w := call(r, http.MethodGet, "/api/v1/profiles/me", "student-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var me models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "s1", me.ID)

	require.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/profiles/s2", "student-token", nil, "").Code)
	assert.Equal(t, "s2", sm.profiles.got)

	require.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/profiles?q=ann", "teacher-token", nil, "").Code)
	assert.Equal(t, "ann", sm.profiles.query)

	w = call(r, http.MethodGet, "/api/v1/users/search?q=sven", "teacher-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sven", sm.profiles.search)
	assert.Contains(t, w.Body.String(), "s9")
}

func TestLeaderboardRoutes(t *testing.T) {
	sm := newStubServiceManager()
	r := apiRouter(sm)

	t.Run("test ranking", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/leaderboards/tests/3?limit=5", "student-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint(3), sm.leaderboards.testID)
		assert.Equal(t, 5, sm.leaderboards.limit)

		var board models.Leaderboard
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
		require.Len(t, board.Entries, 1)
		assert.Equal(t, "s1", board.Entries[0].UserID)
	})

	t.Run("bad test id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api/v1/leaderboards/tests/x", "student-token", nil, "").Code)
	})

	t.Run("own rank", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/leaderboards/tests/4/me", "student-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint(4), sm.leaderboards.testID)
		assert.Equal(t, "s1", sm.leaderboards.rankFor)
	})

	t.Run("global by category", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/leaderboards/global?category_id=7", "student-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, sm.leaderboards.categoryID)
		assert.Equal(t, uint(7), *sm.leaderboards.categoryID)
	})

	t.Run("global without category", func(t *testing.T) {
		require.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/leaderboards/global", "student-token", nil, "").Code)
		assert.Nil(t, sm.leaderboards.categoryID)
	})

	t.Run("export", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/leaderboards/tests/3/export", "teacher-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "leaderboard-test-3.xlsx")
		assert.Equal(t, "PK-ranking", w.Body.String())
	})
}

func TestCompetencyRoute(t *testing.T) {
	sm := newStubServiceManager()
	r := apiRouter(sm)

	t.Run("defaults to the caller", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/competencies?category_id=2", "student-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "s1", sm.competency.target)
		require.NotNil(t, sm.competency.categoryID)
		assert.Equal(t, uint(2), *sm.competency.categoryID)
	})

	t.Run("teacher looks up a student", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/competencies?user_id=s3", "teacher-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "s3", sm.competency.target)
		assert.Equal(t, "t1", sm.competency.viewer)
		assert.Nil(t, sm.competency.categoryID)
	})

	t.Run("student looks up someone else", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/competencies?user_id=s3", "student-token", nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGroupRoutes(t *testing.T) {
	sm := newStubServiceManager()
	r := apiRouter(sm)

	t.Run("smart preview", func(t *testing.T) {
		body := bytes.NewBufferString(`{"test_id": 3, "group_count": 2, "strategy": "complement"}`)
		w := call(r, http.MethodPost, "/api/v1/groups/smart", "teacher-token", body, "application/json")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, sm.groups.smart)
		assert.Equal(t, 2, sm.groups.smart.GroupCount)
		assert.Equal(t, models.GroupStrategy("complement"), sm.groups.smart.Strategy)
	})

	t.Run("smart persisted", func(t *testing.T) {
		body := bytes.NewBufferString(`{"group_count": 2, "persist": true}`)
		w := call(r, http.MethodPost, "/api/v1/groups/smart", "teacher-token", body, "application/json")
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("students cannot generate", func(t *testing.T) {
		body := bytes.NewBufferString(`{"group_count": 2}`)
		w := call(r, http.MethodPost, "/api/v1/groups/smart", "student-token", body, "application/json")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("from leaderboard", func(t *testing.T) {
		body := bytes.NewBufferString(`{"test_id": 3, "top_n": 6, "group_count": 2}`)
		w := call(r, http.MethodPost, "/api/v1/groups/leaderboard", "teacher-token", body, "application/json")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, sm.groups.board)
		assert.Equal(t, uint(3), sm.groups.board.TestID)
		assert.Equal(t, 6, sm.groups.board.TopN)
	})

	t.Run("list", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/groups?test_id=3&page=2&size=5", "student-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, sm.groups.filters.TestID)
		assert.Equal(t, uint(3), *sm.groups.filters.TestID)
		assert.Equal(t, 5, sm.groups.filters.Limit)
		assert.Equal(t, 5, sm.groups.filters.Offset)
	})

	t.Run("get", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/groups/1", "student-token", nil, "").Code)
		assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/api/v1/groups/2", "student-token", nil, "").Code)
	})

	t.Run("members", func(t *testing.T) {
		body := bytes.NewBufferString(`{"user_id": "s4"}`)
		w := call(r, http.MethodPost, "/api/v1/groups/1/members", "teacher-token", body, "application/json")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint(1), sm.groups.addedTo)

		w = call(r, http.MethodDelete, "/api/v1/groups/1/members/s4", "teacher-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "s4", sm.groups.removed)
	})

	t.Run("delete", func(t *testing.T) {
		w := call(r, http.MethodDelete, "/api/v1/groups/1", "teacher-token", nil, "")
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, uint(1), sm.groups.deleted)
	})

	t.Run("export", func(t *testing.T) {
		w := call(r, http.MethodGet, "/api/v1/groups/export", "teacher-token", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, sm.groups.exported)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "groups.xlsx")
	})
}

func TestRecommendationRoutes(t *testing.T) {
	sm := newStubServiceManager()
	r := apiRouter(sm)

	w := call(r, http.MethodPost, "/api/v1/results/5/recommendation?force=true", "student-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(5), sm.recommendations.resultID)
	assert.True(t, sm.recommendations.force)

	var rec models.AIRecommendation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "s1", rec.UserID)

	w = call(r, http.MethodGet, "/api/v1/results/6/recommendation", "student-token", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, uint(6), sm.recommendations.resultID)

	w = call(r, http.MethodGet, "/api/v1/recommendations/me", "student-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result_id":5`)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestImportQuestionsRoute(t *testing.T) {
	sm := newStubServiceManager()
	r := apiRouter(sm)

	t.Run("workbook", func(t *testing.T) {
		body, ct := multipartUpload(t, "questions.xlsx", []byte("PK-questions"))
		w := call(r, http.MethodPost, "/api/v1/tests/8/questions/import", "teacher-token", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, uint(8), sm.questions.testID)
		assert.Equal(t, []byte("PK-questions"), sm.questions.uploaded)

		var result models.ImportResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 2, result.Created)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 4, result.Errors[0].Row)
	})

	t.Run("wrong extension", func(t *testing.T) {
		body, ct := multipartUpload(t, "questions.csv", []byte("a,b"))
		w := call(r, http.MethodPost, "/api/v1/tests/8/questions/import", "teacher-token", body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no file", func(t *testing.T) {
		w := call(r, http.MethodPost, "/api/v1/tests/8/questions/import", "teacher-token", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("students cannot import", func(t *testing.T) {
		body, ct := multipartUpload(t, "questions.xlsx", []byte("PK"))
		w := call(r, http.MethodPost, "/api/v1/tests/8/questions/import", "student-token", body, ct)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
