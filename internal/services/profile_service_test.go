package services

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func TestProfileService_Sync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	profile, err := env.profiles.Sync(ctx, &models.User{ID: "n1", Email: "newbie@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "newbie", profile.FullName)
	assert.Equal(t, models.RoleStudent, profile.Role)

	_, err = env.profiles.Sync(ctx, &models.User{ID: "n1", FullName: "Nora New", Email: "newbie@example.com", Role: models.RoleTeacher})
	require.NoError(t, err)

	me, err := env.profiles.Me(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Nora New", me.FullName)
	assert.Equal(t, models.RoleTeacher, me.Role)

	_, err = env.profiles.Sync(ctx, &models.User{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfileService_Access(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	self, err := env.profiles.Get(ctx, "s1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Sara", self.FullName)

	_, err = env.profiles.Get(ctx, "s2", "s1")
	assert.True(t, IsPermissionError(err))

	other, err := env.profiles.Get(ctx, "s2", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Sven", other.FullName)

	_, err = env.profiles.Get(ctx, "ghost", "t1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.profiles.Me(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfileService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.profiles.List(ctx, repositories.ProfileFilters{}, "s1")
	assert.True(t, IsPermissionError(err))

	student := models.RoleStudent
	students, err := env.profiles.List(ctx, repositories.ProfileFilters{Role: &student}, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, students.Total)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3", "s4"},
		lo.Map(students.Profiles, func(p *models.Profile, _ int) string { return p.ID }))

	all, err := env.profiles.List(ctx, repositories.ProfileFilters{Limit: 3}, "admin")
	require.NoError(t, err)
	assert.EqualValues(t, 7, all.Total)
	assert.Len(t, all.Profiles, 3)

	dir, err := env.profiles.SearchDirectory(ctx, "sara", repositories.UserFilters{}, "t1")
	require.NoError(t, err)
	assert.Zero(t, dir.Total)

	_, err = env.profiles.SearchDirectory(ctx, "", repositories.UserFilters{}, "s1")
	assert.True(t, IsPermissionError(err))
}

func TestDashboardService_Overview(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()

	env.take(t, q, "s1", q.answers(true, "triangle"))
	env.take(t, q, "s2", q.answers(false, ""))
	_, err := env.attempts.Start(ctx, q.test.ID, "s3")
	require.NoError(t, err)

	dash, err := env.dashboard.Overview(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, dash.Overview.TotalTests)
	assert.EqualValues(t, 1, dash.Overview.PublishedTests)
	assert.EqualValues(t, 2, dash.Overview.TotalQuestions)
	assert.EqualValues(t, 3, dash.Overview.TotalAttempts)
	assert.EqualValues(t, 2, dash.Overview.FinishedAttempts)
	assert.Equal(t, 66.67, dash.CompletionRate)
	assert.Equal(t, 50.0, dash.PassRate)
	assert.NotEmpty(t, dash.QuestionDistribution)

	empty, err := env.dashboard.Overview(ctx, "t2")
	require.NoError(t, err)
	assert.Zero(t, empty.Overview.TotalTests)
	assert.Zero(t, empty.CompletionRate)

	_, err = env.dashboard.Overview(ctx, "s1")
	assert.True(t, IsPermissionError(err))
}
