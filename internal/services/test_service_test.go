package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func TestTestService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tests.Create(ctx, &models.TestCreateRequest{Title: "History", PassingScore: 70}, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TestDraft, created.Status)
	assert.True(t, created.ShowCorrectAnswers)
	assert.True(t, created.IsPublic)
	assert.Equal(t, "t1", created.CreatedBy)
	assert.True(t, created.CanEdit)
	assert.False(t, created.CanTake)

	_, err = env.tests.Create(ctx, &models.TestCreateRequest{Title: "Mine"}, "s1")
	assert.True(t, IsPermissionError(err))

	_, err = env.tests.Create(ctx, &models.TestCreateRequest{Title: ""}, "t1")
	assert.True(t, IsValidationError(err))

	_, err = env.tests.Create(ctx, &models.TestCreateRequest{
		Title: "Bad question",
		Questions: []models.QuestionCreateRequest{{
			Text: "Pick", Type: models.SingleChoice,
			Options: []models.AnswerOptionRequest{{Text: "a"}, {Text: "b"}},
		}},
	}, "t1")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "questions[0].options", verrs[0].Field)

	missing := uint(55)
	_, err = env.tests.Create(ctx, &models.TestCreateRequest{Title: "Nowhere", CategoryID: &missing}, "t1")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestTestService_Visibility(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()
	draft := env.draftTest(t, "t1")

	_, err := env.tests.Get(ctx, draft.ID, "s1")
	assert.True(t, IsPermissionError(err))
	_, err = env.tests.Get(ctx, draft.ID, "t2")
	assert.True(t, IsPermissionError(err))

	byStudent, err := env.tests.Get(ctx, q.test.ID, "s1")
	require.NoError(t, err)
	assert.False(t, byStudent.CanEdit)
	assert.True(t, byStudent.CanTake)
	for _, question := range byStudent.Questions {
		assert.False(t, lo.SomeBy(question.Options, func(o models.AnswerOption) bool { return o.IsCorrect }))
	}

	byOwner, err := env.tests.Get(ctx, q.test.ID, "t1")
	require.NoError(t, err)
	assert.True(t, byOwner.CanEdit)
	choice, _ := lo.Find(byOwner.Questions, func(q models.Question) bool { return q.Type == models.SingleChoice })
	assert.Len(t, choice.CorrectOptionIDs(), 1)

	_, err = env.tests.Get(ctx, 4321, "t1")
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestTestService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createQuiz(t)
	env.draftTest(t, "t1")
	env.draftTest(t, "t2")

	count := func(userID string) int64 {
		t.Helper()
		list, err := env.tests.List(ctx, repositories.TestFilters{}, userID)
		require.NoError(t, err)
		return list.Total
	}
	assert.EqualValues(t, 1, count("s1"))
	assert.EqualValues(t, 2, count("t1"))
	assert.EqualValues(t, 2, count("t2"))
	assert.EqualValues(t, 3, count("admin"))

	page, err := env.tests.List(ctx, repositories.TestFilters{Limit: 1, Offset: 1}, "admin")
	require.NoError(t, err)
	assert.Len(t, page.Tests, 1)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 1, page.Size)
}

func TestTestService_StatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty := env.draftTest(t, "t1")
	_, err := env.tests.Publish(ctx, empty.ID, "t1")
	assert.True(t, IsValidationError(err), "tests without questions cannot be published")

	q := env.createQuiz(t)
	_, err = env.tests.Publish(ctx, q.test.ID, "t2")
	assert.True(t, IsPermissionError(err))

	unpublished, err := env.tests.Unpublish(ctx, q.test.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TestDraft, unpublished.Status)

	_, err = env.tests.Publish(ctx, q.test.ID, "t1")
	require.NoError(t, err)
	env.take(t, q, "s1", q.answers(true, "triangle"))

	_, err = env.tests.Unpublish(ctx, q.test.ID, "t1")
	assert.True(t, IsValidationError(err), "tests with results stay published")

	archived, err := env.tests.Archive(ctx, q.test.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TestArchived, archived.Status)
	assert.False(t, archived.CanEdit)

	_, err = env.tests.Publish(ctx, q.test.ID, "t1")
	assert.True(t, IsValidationError(err))

	title := "Renamed"
	_, err = env.tests.Update(ctx, q.test.ID, &models.TestUpdateRequest{Title: &title}, "t1")
	assert.ErrorIs(t, err, ErrTestArchived)

	_, err = env.attempts.Start(ctx, q.test.ID, "s2")
	assert.ErrorIs(t, err, ErrTestNotPublished)
}

func TestTestService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := env.draftTest(t, "t1")

	title := "World Geography"
	limit := 15
	hide := false
	updated, err := env.tests.Update(ctx, draft.ID, &models.TestUpdateRequest{
		Title: &title, TimeLimit: &limit, ShowCorrectAnswers: &hide,
	}, "t1")
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 15, updated.TimeLimit)
	assert.False(t, updated.ShowCorrectAnswers)
	assert.Equal(t, 60.0, updated.PassingScore)

	_, err = env.tests.Update(ctx, draft.ID, &models.TestUpdateRequest{Title: &title}, "t2")
	assert.True(t, IsPermissionError(err))

	_, err = env.tests.Update(ctx, draft.ID, &models.TestUpdateRequest{Title: &title}, "admin")
	assert.NoError(t, err)
}

func TestTestService_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()

	_, err := env.scales.Create(ctx, &models.ScaleRequest{
		TestID: &q.test.ID, Name: "Bands", Label: "Expert", MinPercentage: 90, MaxPercentage: 100,
	}, "t1")
	require.NoError(t, err)

	copied, err := env.tests.Duplicate(ctx, q.test.ID, "t2")
	require.NoError(t, err)
	assert.NotEqual(t, q.test.ID, copied.ID)
	assert.Equal(t, "Math basics (copy)", copied.Title)
	assert.Equal(t, models.TestDraft, copied.Status)
	assert.Equal(t, "t2", copied.CreatedBy)
	require.Len(t, copied.Questions, 2)
	assert.Equal(t, []string{"2+2?", "Shape with 3 sides?"}, lo.Map(copied.Questions, func(q models.Question, _ int) string { return q.Text }))
	assert.Len(t, copied.Questions[0].CorrectOptionIDs(), 1)
	require.Len(t, copied.Scales, 1)
	assert.Equal(t, "Expert", copied.Scales[0].Label)

	_, err = env.tests.Duplicate(ctx, q.test.ID, "s1")
	assert.True(t, IsPermissionError(err))
}

func TestTestService_Delete(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()
	draft := env.draftTest(t, "t1")

	assert.True(t, IsPermissionError(env.tests.Delete(ctx, draft.ID, "t2")))
	require.NoError(t, env.tests.Delete(ctx, draft.ID, "t1"))
	_, err := env.tests.Get(ctx, draft.ID, "t1")
	assert.ErrorIs(t, err, ErrTestNotFound)

	env.take(t, q, "s1", q.answers(true, "triangle"))
	err = env.tests.Delete(ctx, q.test.ID, "t1")
	assert.True(t, IsBusinessRuleError(err))

	require.NoError(t, env.tests.Delete(ctx, q.test.ID, "admin"))
	board, err := env.leaderboard.GlobalLeaderboard(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, board.Entries, "deleted tests leave the global board")
}

func TestTestService_InvalidatesCachedTest(t *testing.T) {
	env, mr := newTestEnvWithMiniredis(t)
	ctx := context.Background()
	draft := env.draftTest(t, "t1")

	key := cache.TestCacheConfig.Prefix + cache.TestKey(draft.ID)
	require.NoError(t, mr.Set(key, `{"id":1}`))
	statsKey := cache.StatsCacheConfig.Prefix + "overview:t1"
	require.NoError(t, mr.Set(statsKey, `{}`))

	title := fmt.Sprintf("Geography %d", draft.ID)
	_, err := env.tests.Update(ctx, draft.ID, &models.TestUpdateRequest{Title: &title}, "t1")
	require.NoError(t, err)

	assert.False(t, mr.Exists(key))
	assert.False(t, mr.Exists(statsKey))
}
