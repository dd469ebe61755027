package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/quiz-service/internal/ai"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// emptyDirectory knows nobody, so roles always come from local profiles.
type emptyDirectory struct{}

func (emptyDirectory) GetByID(context.Context, string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

func (emptyDirectory) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

func (emptyDirectory) GetByIDs(context.Context, []string) ([]*models.User, error) {
	return nil, nil
}

func (emptyDirectory) List(context.Context, repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (emptyDirectory) Search(context.Context, string, repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (emptyDirectory) ExistsByID(context.Context, string) (bool, error) { return false, nil }

func (emptyDirectory) HasRole(context.Context, string, models.UserRole) (bool, error) {
	return false, nil
}

type testEnv struct {
	repo        repositories.Repository
	cache       *cache.CacheManager
	publisher   *events.MockEventPublisher
	recommender *ai.MockRecommender

	tests       TestService
	questions   QuestionService
	categories  CategoryService
	scales      ScaleService
	attempts    *attemptService
	leaderboard LeaderboardService
	competency  CompetencyService
	groups      GroupService
	recs        RecommendationService
	profiles    ProfileService
	dashboard   DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRedis(t, nil)
}

func newTestEnvWithMiniredis(t *testing.T) (*testEnv, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newTestEnvWithRedis(t, client), mr
}

func newTestEnvWithRedis(t *testing.T, client *redis.Client) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:                                   logger.Discard,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:            db,
		RedisClient:   client,
		UserDirectory: emptyDirectory{},
	})

	log := slog.New(slog.DiscardHandler)
	v := validator.New()
	cm := cache.NewCacheManager(client)
	publisher := events.NewMockEventPublisher(log)
	recommender := &ai.MockRecommender{Response: "Review addition facts."}
	competency := NewCompetencyService(repo, cm, log)

	env := &testEnv{
		repo:        repo,
		cache:       cm,
		publisher:   publisher,
		recommender: recommender,
		tests:       NewTestService(repo, db, cm, log, v),
		questions:   NewQuestionService(repo, db, log, v),
		categories:  NewCategoryService(repo, log, v),
		scales:      NewScaleService(repo, log, v),
		attempts:    NewAttemptService(repo, cm, publisher, log, v, DefaultSubmissionGrace).(*attemptService),
		leaderboard: NewLeaderboardService(repo, cm, log),
		competency:  competency,
		groups:      NewGroupService(repo, competency, publisher, log, v),
		recs:        NewRecommendationService(repo, recommender, competency, publisher, log),
		profiles:    NewProfileService(repo, log),
		dashboard:   NewDashboardService(repo, cm, log),
	}
	env.seedProfiles(t)
	return env
}

func (e *testEnv) seedProfiles(t *testing.T) {
	t.Helper()
	for _, p := range []models.Profile{
		{ID: "admin", FullName: "Ada Admin", Email: "admin@example.com", Role: models.RoleAdmin},
		{ID: "t1", FullName: "Tina Teacher", Email: "t1@example.com", Role: models.RoleTeacher},
		{ID: "t2", FullName: "Theo Teacher", Email: "t2@example.com", Role: models.RoleTeacher},
		{ID: "s1", FullName: "Sara", Email: "s1@example.com", Role: models.RoleStudent},
		{ID: "s2", FullName: "Sven", Email: "s2@example.com", Role: models.RoleStudent},
		{ID: "s3", FullName: "Sofia", Email: "s3@example.com", Role: models.RoleStudent},
		{ID: "s4", FullName: "Sam", Email: "s4@example.com", Role: models.RoleStudent},
	} {
		p := p
		require.NoError(t, e.repo.Profile().Upsert(context.Background(), nil, &p))
	}
}

// quiz is a published test with a 2 point Algebra choice question and a 1 point
// text question that inherits the test's Geometry category.
type quiz struct {
	test     *models.Test
	algebra  *models.Category
	geometry *models.Category

	choice  models.Question
	text    models.Question
	correct uint
	wrong   uint
}

type quizOption func(*models.TestCreateRequest)

func withMaxAttempts(n int) quizOption {
	return func(r *models.TestCreateRequest) { r.MaxAttempts = n }
}

func withTimeLimit(minutes int) quizOption {
	return func(r *models.TestCreateRequest) { r.TimeLimit = minutes }
}

func hideAnswers() quizOption {
	return func(r *models.TestCreateRequest) { r.ShowCorrectAnswers = lo.ToPtr(false) }
}

func (e *testEnv) createQuiz(t *testing.T, opts ...quizOption) *quiz {
	t.Helper()
	ctx := context.Background()

	algebra, err := e.categories.Create(ctx, &models.CategoryRequest{Name: "Algebra"}, "t1")
	if err != nil {
		algebra = e.categoryByName(t, "Algebra")
	}
	geometry, err := e.categories.Create(ctx, &models.CategoryRequest{Name: "Geometry"}, "t1")
	if err != nil {
		geometry = e.categoryByName(t, "Geometry")
	}

	req := &models.TestCreateRequest{
		Title:        "Math basics",
		CategoryID:   &geometry.ID,
		PassingScore: 50,
		Questions: []models.QuestionCreateRequest{
			{
				Text: "2+2?", Type: models.SingleChoice, Points: 2, CategoryID: &algebra.ID,
				Options: []models.AnswerOptionRequest{{Text: "4", IsCorrect: true}, {Text: "5"}},
			},
			{
				Text: "Shape with 3 sides?", Type: models.TextAnswer, Points: 1,
				Options: []models.AnswerOptionRequest{{Text: "triangle", IsCorrect: true}},
			},
		},
	}
	for _, opt := range opts {
		opt(req)
	}

	created, err := e.tests.Create(ctx, req, "t1")
	require.NoError(t, err)
	_, err = e.tests.Publish(ctx, created.ID, "t1")
	require.NoError(t, err)

	full, err := e.repo.Test().GetByIDWithDetails(ctx, nil, created.ID)
	require.NoError(t, err)

	q := &quiz{test: full, algebra: algebra, geometry: geometry}
	for _, question := range full.Questions {
		if question.Type == models.SingleChoice {
			q.choice = question
		} else {
			q.text = question
		}
	}
	for _, o := range q.choice.Options {
		if o.IsCorrect {
			q.correct = o.ID
		} else {
			q.wrong = o.ID
		}
	}
	return q
}

func (e *testEnv) categoryByName(t *testing.T, name string) *models.Category {
	t.Helper()
	all, err := e.categories.List(context.Background())
	require.NoError(t, err)
	c, ok := lo.Find(all, func(c *models.Category) bool { return c.Name == name })
	require.True(t, ok, name)
	return c
}

// answers builds a submission: choiceRight and textAnswer select what the user gives.
func (q *quiz) answers(choiceRight bool, textAnswer string) []models.AnswerSubmission {
	option := lo.Ternary(choiceRight, q.correct, q.wrong)
	return []models.AnswerSubmission{
		{QuestionID: q.choice.ID, SelectedOptionIDs: []uint{option}},
		{QuestionID: q.text.ID, TextAnswer: &textAnswer},
	}
}

// take runs a full attempt for userID and returns the graded result.
func (e *testEnv) take(t *testing.T, q *quiz, userID string, answers []models.AnswerSubmission) *ResultResponse {
	t.Helper()
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, q.test.ID, userID)
	require.NoError(t, err)
	res, err := e.attempts.Submit(ctx, attempt.Result.ID, &models.SubmitResultRequest{Answers: answers}, userID)
	require.NoError(t, err)
	return res
}

// clockAt pins the attempt service's clock.
func (e *testEnv) clockAt(at time.Time) {
	e.attempts.now = func() time.Time { return at }
}
