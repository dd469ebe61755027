package services

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func competencyFor(t *testing.T, uc *models.UserCompetency, categoryID uint) models.CompetencyScore {
	t.Helper()
	c, ok := lo.Find(uc.Competencies, func(c models.CompetencyScore) bool { return c.CategoryID == categoryID })
	require.True(t, ok, "no competency for category %d", categoryID)
	return c
}

func TestCompetencyService_ForUser(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()

	env.take(t, q, "s1", q.answers(true, "circle"))

	uc, err := env.competency.ForUser(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sara", uc.FullName)
	require.Len(t, uc.Competencies, 2)

	algebra := competencyFor(t, uc, q.algebra.ID)
	assert.Equal(t, "Algebra", algebra.CategoryName)
	assert.Equal(t, 2.0, algebra.PointsEarned)
	assert.Equal(t, 100.0, algebra.Percentage)

	// the text question has no category of its own and counts for the test's
	geometry := competencyFor(t, uc, q.geometry.ID)
	assert.Equal(t, 0.0, geometry.Percentage)
	assert.Equal(t, 1.0, geometry.PointsTotal)

	assert.Equal(t, 50.0, uc.Overall)

	env.take(t, q, "s1", q.answers(false, "triangle"))
	uc, err = env.competency.ForUser(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, competencyFor(t, uc, q.algebra.ID).Percentage)
	assert.Equal(t, 50.0, competencyFor(t, uc, q.geometry.ID).Percentage)

	only, err := env.competency.ForUser(ctx, "s1", &q.algebra.ID)
	require.NoError(t, err)
	require.Len(t, only.Competencies, 1)
	assert.Equal(t, q.algebra.ID, only.Competencies[0].CategoryID)
}

func TestCompetencyService_NoResults(t *testing.T) {
	env := newTestEnv(t)

	uc, err := env.competency.ForUser(context.Background(), "s4", nil)
	require.NoError(t, err)
	assert.Equal(t, "s4", uc.UserID)
	assert.Empty(t, uc.Competencies)
	assert.Zero(t, uc.Overall)
}

func TestCompetencyService_Uncategorized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tests.Create(ctx, &models.TestCreateRequest{
		Title: "Loose ends",
		Questions: []models.QuestionCreateRequest{{
			Text: "Capital of France?", Type: models.TextAnswer, Points: 1,
			Options: []models.AnswerOptionRequest{{Text: "Paris", IsCorrect: true}},
		}},
	}, "t1")
	require.NoError(t, err)
	_, err = env.tests.Publish(ctx, created.ID, "t1")
	require.NoError(t, err)

	full, err := env.repo.Test().GetByIDWithDetails(ctx, nil, created.ID)
	require.NoError(t, err)
	answer := "paris"
	env.take(t, &quiz{test: full}, "s2", []models.AnswerSubmission{{QuestionID: full.Questions[0].ID, TextAnswer: &answer}})

	uc, err := env.competency.ForUser(ctx, "s2", nil)
	require.NoError(t, err)
	require.Len(t, uc.Competencies, 1)
	assert.Equal(t, uint(0), uc.Competencies[0].CategoryID)
	assert.Equal(t, "Uncategorized", uc.Competencies[0].CategoryName)
	assert.Equal(t, 100.0, uc.Overall)
}

func TestCompetencyService_CompetenciesKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)

	env.take(t, q, "s1", q.answers(true, "triangle"))
	env.take(t, q, "s2", q.answers(false, "triangle"))

	list, err := env.competency.Competencies(context.Background(), []string{"s3", "s2", "s1"}, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"s3", "s2", "s1"}, lo.Map(list, func(uc models.UserCompetency, _ int) string { return uc.UserID }))
	assert.Empty(t, list[0].Competencies)
	assert.Equal(t, 100.0, list[2].Overall)

	everyone, err := env.competency.Competencies(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, lo.Map(everyone, func(uc models.UserCompetency, _ int) string { return uc.UserID }))
}

func TestCompetencyService_View(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()
	env.take(t, q, "s1", q.answers(true, "triangle"))

	_, err := env.competency.View(ctx, "s1", nil, "s1")
	assert.NoError(t, err)

	_, err = env.competency.View(ctx, "s1", nil, "s2")
	assert.True(t, IsPermissionError(err))

	uc, err := env.competency.View(ctx, "s1", nil, "t2")
	require.NoError(t, err)
	assert.Equal(t, 100.0, uc.Overall)

	missing := uint(4040)
	_, err = env.competency.View(ctx, "s1", &missing, "t1")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCompetencyService_CacheInvalidatedOnSubmit(t *testing.T) {
	env, mr := newTestEnvWithMiniredis(t)
	q := env.createQuiz(t)
	ctx := context.Background()

	env.take(t, q, "s1", q.answers(true, ""))
	uc, err := env.competency.ForUser(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, uc.Overall)

	key := cache.CompetencyCacheConfig.Prefix + cache.CompetencyKey("s1", nil)
	require.True(t, mr.Exists(key))

	env.take(t, q, "s1", q.answers(true, "triangle"))
	assert.False(t, mr.Exists(key))

	uc, err = env.competency.ForUser(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 75.0, uc.Overall)
}
