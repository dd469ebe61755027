package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func memberIDs(members []models.GroupMember) []string {
	return lo.Map(members, func(m models.GroupMember, _ int) string { return m.UserID })
}

// rankedClass gives s1..s4 best scores of 100, 66.67, 33.33 and 0 on the quiz.
func (e *testEnv) rankedClass(t *testing.T) *quiz {
	t.Helper()
	q := e.createQuiz(t)
	e.take(t, q, "s1", q.answers(true, "triangle"))
	e.take(t, q, "s2", q.answers(true, ""))
	e.take(t, q, "s3", q.answers(false, "triangle"))
	e.take(t, q, "s4", q.answers(false, ""))
	return q
}

func TestGroupService_GenerateSmartSnake(t *testing.T) {
	env := newTestEnv(t)
	q := env.rankedClass(t)

	result, err := env.groups.GenerateSmart(context.Background(), &models.SmartGroupRequest{
		Name:       "Team",
		TestID:     &q.test.ID,
		GroupCount: 2,
	}, "t1")
	require.NoError(t, err)

	assert.Equal(t, models.StrategySnake, result.Strategy)
	assert.False(t, result.Persisted)
	assert.Empty(t, result.GroupIDs)
	require.Len(t, result.Groups, 2)

	assert.Equal(t, "Team 1", result.Groups[0].Name)
	assert.Equal(t, []string{"s1", "s4"}, memberIDs(result.Groups[0].Members))
	assert.Equal(t, []string{"s2", "s3"}, memberIDs(result.Groups[1].Members))
	assert.Equal(t, 50.0, result.Groups[0].AverageScore)
	assert.Equal(t, 50.0, result.Groups[1].AverageScore)
	assert.True(t, result.Groups[0].Members[0].IsLeader)
	assert.Equal(t, "Sara", result.Groups[0].Members[0].Profile.FullName)

	assert.Empty(t, env.publisher.EventsOnTopic(events.TopicGroupsGenerated))
}

func TestGroupService_GenerateFromLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	q := env.rankedClass(t)

	result, err := env.groups.GenerateFromLeaderboard(context.Background(), &models.LeaderboardGroupRequest{
		TestID:     q.test.ID,
		TopN:       3,
		GroupCount: 1,
	}, "t1")
	require.NoError(t, err)

	assert.Equal(t, models.StrategyLeaderboard, result.Strategy)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "Group 1", result.Groups[0].Name)
	assert.Equal(t, []string{"s1", "s2", "s3"}, memberIDs(result.Groups[0].Members))
}

func TestGroupService_GenerateRejections(t *testing.T) {
	env := newTestEnv(t)
	q := env.rankedClass(t)
	ctx := context.Background()

	_, err := env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{TestID: &q.test.ID, GroupCount: 2}, "s1")
	assert.True(t, IsPermissionError(err))

	_, err = env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{TestID: &q.test.ID, GroupCount: 9}, "t1")
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{TestID: &q.test.ID, Strategy: "random", GroupCount: 2}, "t1")
	assert.True(t, IsValidationError(err))

	missing := uint(777)
	_, err = env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{TestID: &missing, GroupCount: 2}, "t1")
	assert.ErrorIs(t, err, ErrTestNotFound)

	empty := env.createQuiz(t)
	_, err = env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{TestID: &empty.test.ID, GroupCount: 1}, "t1")
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGroupService_ComplementByCompetency(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuiz(t)
	ctx := context.Background()

	// s1 and s2 are strong in algebra, s3 and s4 in geometry
	env.take(t, q, "s1", q.answers(true, ""))
	env.take(t, q, "s2", q.answers(true, ""))
	env.take(t, q, "s3", q.answers(false, "triangle"))
	env.take(t, q, "s4", q.answers(false, "triangle"))

	result, err := env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{
		UserIDs:    []string{"s1", "s2", "s3", "s4"},
		GroupCount: 2,
		Strategy:   models.StrategyComplement,
	}, "t1")
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)

	for _, g := range result.Groups {
		ids := memberIDs(g.Members)
		require.Len(t, ids, 2)
		strongAlgebra := lo.CountBy(ids, func(id string) bool { return id == "s1" || id == "s2" })
		assert.Equal(t, 1, strongAlgebra, "each group mixes both strengths: %v", ids)
	}
}

func TestGroupService_PersistAndManage(t *testing.T) {
	env := newTestEnv(t)
	q := env.rankedClass(t)
	ctx := context.Background()

	result, err := env.groups.GenerateSmart(ctx, &models.SmartGroupRequest{
		TestID:     &q.test.ID,
		GroupCount: 2,
		Persist:    true,
	}, "t1")
	require.NoError(t, err)
	assert.True(t, result.Persisted)
	require.Len(t, result.GroupIDs, 2)

	published := env.publisher.EventsOnTopic(events.TopicGroupsGenerated)
	require.Len(t, published, 1)
	var data events.GroupsGeneratedData
	require.NoError(t, published[0].Decode(&data))
	assert.Equal(t, result.GroupIDs, data.GroupIDs)
	assert.Equal(t, 4, data.MemberCount)

	first := result.GroupIDs[0]

	t.Run("listing is scoped by role", func(t *testing.T) {
		mine, err := env.groups.List(ctx, repositories.GroupFilters{}, "t1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, mine.Total)

		other, err := env.groups.List(ctx, repositories.GroupFilters{}, "t2")
		require.NoError(t, err)
		assert.Zero(t, other.Total)

		member, err := env.groups.List(ctx, repositories.GroupFilters{}, "s1")
		require.NoError(t, err)
		require.Len(t, member.Groups, 1)
		assert.Equal(t, first, member.Groups[0].ID)

		all, err := env.groups.List(ctx, repositories.GroupFilters{}, "admin")
		require.NoError(t, err)
		assert.EqualValues(t, 2, all.Total)
	})

	t.Run("members read their own group only", func(t *testing.T) {
		_, err := env.groups.Get(ctx, first, "s1")
		assert.NoError(t, err)

		_, err = env.groups.Get(ctx, first, "s2")
		assert.True(t, IsPermissionError(err))
	})

	t.Run("add and remove members", func(t *testing.T) {
		group, err := env.groups.AddMember(ctx, first, &models.AddGroupMemberRequest{UserID: "s2"}, "t1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2", "s4"}, memberIDs(group.Members))
		added, _ := lo.Find(group.Members, func(m models.GroupMember) bool { return m.UserID == "s2" })
		assert.Equal(t, 66.67, added.Score)
		assert.Equal(t, 55.56, group.AverageScore)

		_, err = env.groups.AddMember(ctx, first, &models.AddGroupMemberRequest{UserID: "s2"}, "t1")
		assert.ErrorIs(t, err, ErrMemberExists)

		_, err = env.groups.AddMember(ctx, first, &models.AddGroupMemberRequest{UserID: "s3"}, "t2")
		assert.True(t, IsPermissionError(err))

		group, err = env.groups.AddMember(ctx, first, &models.AddGroupMemberRequest{UserID: "s3", IsLeader: true}, "admin")
		require.NoError(t, err)
		leaders := lo.Filter(group.Members, func(m models.GroupMember, _ int) bool { return m.IsLeader })
		require.Len(t, leaders, 1)
		assert.Equal(t, "s3", leaders[0].UserID)

		group, err = env.groups.RemoveMember(ctx, first, "s4", "t1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, memberIDs(group.Members))

		_, err = env.groups.RemoveMember(ctx, first, "s4", "t1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("export", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, env.groups.ExportGroups(ctx, repositories.GroupFilters{}, "t1", &buf))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Groups", "Members"}, f.GetSheetList())
		groups, err := f.GetRows("Groups")
		require.NoError(t, err)
		assert.Len(t, groups, 3)
		members, err := f.GetRows("Members")
		require.NoError(t, err)
		assert.Len(t, members, 6)
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(t, IsPermissionError(env.groups.Delete(ctx, first, "t2")))
		require.NoError(t, env.groups.Delete(ctx, first, "t1"))

		_, err := env.groups.Get(ctx, first, "t1")
		assert.ErrorIs(t, err, ErrGroupNotFound)
	})
}

func TestRefreshGroupStats(t *testing.T) {
	group := &models.Group{Members: []models.GroupMember{
		{UserID: "a", Score: 40},
		{UserID: "b", Score: 80},
		{UserID: "c", Score: 60},
	}}

	refreshGroupStats(group, "")
	assert.Equal(t, 60.0, group.AverageScore)
	assert.InDelta(t, 266.67, group.ScoreVariance, 0.01)
	assert.True(t, group.Members[1].IsLeader)

	refreshGroupStats(group, "a")
	assert.True(t, group.Members[0].IsLeader)
	assert.False(t, group.Members[1].IsLeader)
}
