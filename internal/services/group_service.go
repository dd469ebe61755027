package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grouping"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/scoring"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

const defaultGroupName = "Group"

type groupService struct {
	repo       repositories.Repository
	competency CompetencyService
	publisher  events.EventPublisher
	logger     *slog.Logger
	validator  *validator.Validator
}

func NewGroupService(repo repositories.Repository, competency CompetencyService, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) GroupService {
	return &groupService{
		repo:       repo,
		competency: competency,
		publisher:  publisher,
		logger:     logger,
		validator:  validator,
	}
}

// ===== GENERATION =====

func (s *groupService) GenerateSmart(ctx context.Context, req *models.SmartGroupRequest, userID string) (*models.GroupingResult, error) {
	s.logger.Info("Generating smart groups",
		"user_id", userID,
		"strategy", req.Strategy,
		"test_id", req.TestID,
		"category_id", req.CategoryID,
		"candidates", len(req.UserIDs))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := requireStaff(ctx, s.repo, userID, "group", "generate"); err != nil {
		return nil, err
	}
	if req.TestID != nil {
		if _, err := loadTest(ctx, s.repo, *req.TestID, false); err != nil {
			return nil, err
		}
	}
	if err := checkCategory(ctx, s.repo, req.CategoryID); err != nil {
		return nil, err
	}

	strategy := grouping.Strategy(lo.CoalesceOrEmpty(string(req.Strategy), string(grouping.Snake)))
	result, err := s.Plan(ctx, PlanRequest{
		Strategy:   strategy,
		TestID:     req.TestID,
		CategoryID: req.CategoryID,
		UserIDs:    req.UserIDs,
		Options: grouping.Options{
			GroupCount: req.GroupCount,
			GroupSize:  req.GroupSize,
			Strategy:   strategy,
			Rebalance:  req.Rebalance,
		},
	})
	if err != nil {
		return nil, err
	}
	nameGroups(result, req.Name)

	if req.Persist {
		if err := s.persist(ctx, result, req.TestID, req.CategoryID, userID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// GenerateFromLeaderboard groups the top of a test's leaderboard, spreading ranks snake-wise.
func (s *groupService) GenerateFromLeaderboard(ctx context.Context, req *models.LeaderboardGroupRequest, userID string) (*models.GroupingResult, error) {
	s.logger.Info("Generating leaderboard groups", "user_id", userID, "test_id", req.TestID, "top_n", req.TopN)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := requireStaff(ctx, s.repo, userID, "group", "generate"); err != nil {
		return nil, err
	}
	test, err := loadTest(ctx, s.repo, req.TestID, false)
	if err != nil {
		return nil, err
	}

	result, err := s.Plan(ctx, PlanRequest{
		Strategy: grouping.Leaderboard,
		TestID:   &req.TestID,
		TopN:     req.TopN,
		Options: grouping.Options{
			GroupCount: req.GroupCount,
			GroupSize:  req.GroupSize,
			Strategy:   grouping.Leaderboard,
			Rebalance:  req.Rebalance,
		},
	})
	if err != nil {
		return nil, err
	}
	nameGroups(result, req.Name)

	if req.Persist {
		if err := s.persist(ctx, result, &req.TestID, test.CategoryID, userID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *groupService) Plan(ctx context.Context, req PlanRequest) (*models.GroupingResult, error) {
	members, err := s.candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrNoCandidates
	}

	opts := req.Options
	opts.Strategy = req.Strategy
	plan, err := grouping.Build(members, opts)
	if err != nil {
		switch {
		case errors.Is(err, grouping.ErrNoMembers):
			return nil, ErrNoCandidates
		case errors.Is(err, grouping.ErrInvalidGroupSize),
			errors.Is(err, grouping.ErrTooManyGroups),
			errors.Is(err, grouping.ErrUnknownStrategy):
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return nil, err
	}

	s.logger.Info("Grouping plan built",
		"strategy", plan.Strategy,
		"members", len(members),
		"groups", len(plan.Groups),
		"balance_score", plan.BalanceScore,
		"swaps", plan.Swaps)

	return planToResult(plan), nil
}

// candidates collects scored members for req. Leaderboard plans take the ranked top
// of the test; other plans score users by their best result on the test, or by
// their overall competency when no test is given.
func (s *groupService) candidates(ctx context.Context, req PlanRequest) ([]grouping.Member, error) {
	if req.Strategy == grouping.Leaderboard {
		if req.TestID == nil {
			return nil, fmt.Errorf("%w: leaderboard grouping needs a test", ErrBadRequest)
		}
		best, err := s.repo.Result().BestResultsByTest(ctx, nil, *req.TestID)
		if err != nil {
			return nil, err
		}
		if req.TopN > 0 {
			best = lo.Subset(best, 0, uint(req.TopN))
		}
		return lo.Map(best, func(b repositories.BestResult, _ int) grouping.Member {
			return grouping.Member{
				UserID: b.UserID,
				Name:   lo.Ternary(b.FullName != "", b.FullName, b.UserID),
				Score:  b.Percentage,
			}
		}), nil
	}

	userIDs := req.UserIDs
	if len(userIDs) == 0 {
		ids, err := s.repo.Result().FinishedUserIDs(ctx, nil, req.TestID, req.CategoryID)
		if err != nil {
			return nil, err
		}
		userIDs = ids
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	competencies, err := s.competency.Competencies(ctx, userIDs, req.CategoryID)
	if err != nil {
		return nil, err
	}

	var testScores map[string]float64
	if req.TestID != nil {
		best, err := s.repo.Result().BestResultsByTest(ctx, nil, *req.TestID)
		if err != nil {
			return nil, err
		}
		testScores = lo.SliceToMap(best, func(b repositories.BestResult) (string, float64) { return b.UserID, b.Percentage })
	}

	return lo.Map(competencies, func(uc models.UserCompetency, _ int) grouping.Member {
		score := uc.Overall
		if testScores != nil {
			score = testScores[uc.UserID]
		}
		return grouping.Member{
			UserID:       uc.UserID,
			Name:         uc.FullName,
			Score:        score,
			Competencies: competencyMap(uc),
		}
	}), nil
}

func (s *groupService) persist(ctx context.Context, result *models.GroupingResult, testID, categoryID *uint, userID string) error {
	now := time.Now()
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for _, preview := range result.Groups {
			group := &models.Group{
				Name:          preview.Name,
				TestID:        testID,
				CategoryID:    categoryID,
				Strategy:      result.Strategy,
				AverageScore:  preview.AverageScore,
				ScoreVariance: preview.Variance,
				BalanceScore:  result.BalanceScore,
				CreatedBy:     userID,
				Members: lo.Map(preview.Members, func(m models.GroupMember, _ int) models.GroupMember {
					return models.GroupMember{UserID: m.UserID, Score: m.Score, IsLeader: m.IsLeader, JoinedAt: now}
				}),
			}
			if err := txRepo.Group().Create(ctx, nil, group); err != nil {
				return err
			}
			result.GroupIDs = append(result.GroupIDs, group.ID)
		}
		return nil
	})
	if err != nil {
		result.GroupIDs = nil
		return fmt.Errorf("failed to save groups: %w", err)
	}
	result.Persisted = true

	s.logger.Info("Groups saved", "group_ids", result.GroupIDs, "user_id", userID)

	if s.publisher != nil {
		memberCount := lo.SumBy(result.Groups, func(g models.GroupPreview) int { return len(g.Members) })
		event, err := events.NewEvent(events.TopicGroupsGenerated, events.GroupsGeneratedData{
			GroupIDs:     result.GroupIDs,
			Strategy:     string(result.Strategy),
			TestID:       testID,
			MemberCount:  memberCount,
			BalanceScore: result.BalanceScore,
			CreatedBy:    userID,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, events.TopicGroupsGenerated, event)
		}
		if err != nil {
			s.logger.Error("Failed to publish groups generated event", "error", err)
		}
	}
	return nil
}

// ===== MANAGEMENT =====

func (s *groupService) Get(ctx context.Context, id uint, userID string) (*models.Group, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	group, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	isMember := lo.ContainsBy(group.Members, func(m models.GroupMember) bool { return m.UserID == userID })
	if !role.IsStaff() && !isMember {
		return nil, NewPermissionError(userID, id, "group", "read", "not a member of the group")
	}
	return group, nil
}

// List shows students the groups they belong to and teachers the groups they created.
func (s *groupService) List(ctx context.Context, filters repositories.GroupFilters, userID string) (*GroupListResponse, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	switch role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filters.CreatedBy = &userID
	default:
		filters.MemberID = &userID
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	groups, total, err := s.repo.Group().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return &GroupListResponse{Groups: groups, Total: total, Page: page, Size: filters.Limit}, nil
}

func (s *groupService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting group", "group_id", id, "user_id", userID)

	if _, err := s.loadManaged(ctx, id, userID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Group().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

func (s *groupService) AddMember(ctx context.Context, groupID uint, req *models.AddGroupMemberRequest, userID string) (*models.Group, error) {
	s.logger.Info("Adding group member", "group_id", groupID, "member_id", req.UserID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	group, err := s.loadManaged(ctx, groupID, userID, "update")
	if err != nil {
		return nil, err
	}
	if lo.ContainsBy(group.Members, func(m models.GroupMember) bool { return m.UserID == req.UserID }) {
		return nil, ErrMemberExists
	}
	if _, err := getUserRole(ctx, s.repo, req.UserID); err != nil {
		return nil, err
	}

	score, err := s.memberScore(ctx, group, req.UserID)
	if err != nil {
		return nil, err
	}

	member := models.GroupMember{
		GroupID:  groupID,
		UserID:   req.UserID,
		Score:    score,
		IsLeader: req.IsLeader,
		JoinedAt: time.Now(),
	}
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Group().AddMember(ctx, nil, &member); err != nil {
			return err
		}
		group.Members = append(group.Members, member)
		refreshGroupStats(group, lo.Ternary(req.IsLeader, req.UserID, ""))
		return txRepo.Group().UpdateStats(ctx, nil, group)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return s.load(ctx, groupID)
}

func (s *groupService) RemoveMember(ctx context.Context, groupID uint, memberID string, userID string) (*models.Group, error) {
	s.logger.Info("Removing group member", "group_id", groupID, "member_id", memberID, "user_id", userID)

	group, err := s.loadManaged(ctx, groupID, userID, "update")
	if err != nil {
		return nil, err
	}
	if !lo.ContainsBy(group.Members, func(m models.GroupMember) bool { return m.UserID == memberID }) {
		return nil, fmt.Errorf("%w: %s is not a member of group %d", ErrUserNotFound, memberID, groupID)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Group().RemoveMember(ctx, nil, groupID, memberID); err != nil {
			return err
		}
		group.Members = lo.Reject(group.Members, func(m models.GroupMember, _ int) bool { return m.UserID == memberID })
		refreshGroupStats(group, "")
		return txRepo.Group().UpdateStats(ctx, nil, group)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}
	return s.load(ctx, groupID)
}

func (s *groupService) ExportGroups(ctx context.Context, filters repositories.GroupFilters, userID string, w io.Writer) error {
	var groups []*models.Group
	filters.Offset = 0
	filters.Limit = maxPageSize
	for {
		page, err := s.List(ctx, filters, userID)
		if err != nil {
			return err
		}
		groups = append(groups, page.Groups...)
		if len(page.Groups) < filters.Limit || int64(len(groups)) >= page.Total {
			break
		}
		filters.Offset += filters.Limit
	}

	s.logger.Info("Exporting groups", "user_id", userID, "groups", len(groups))

	summary := sheet{
		Name:    "Groups",
		Headers: []string{"Group ID", "Name", "Strategy", "Members", "Average Score", "Variance", "Balance Score"},
	}
	members := sheet{
		Name:    "Members",
		Headers: []string{"Group ID", "Group", "User ID", "Name", "Score", "Leader"},
	}
	for _, g := range groups {
		summary.Rows = append(summary.Rows, []interface{}{
			g.ID, g.Name, string(g.Strategy), len(g.Members), g.AverageScore, g.ScoreVariance, g.BalanceScore,
		})
		for _, m := range g.Members {
			name := m.UserID
			if m.Profile != nil {
				name = m.Profile.FullName
			}
			members.Rows = append(members.Rows, []interface{}{
				g.ID, g.Name, m.UserID, name, m.Score, lo.Ternary(m.IsLeader, "yes", ""),
			})
		}
	}
	return writeWorkbook(w, summary, members)
}

// ===== HELPERS =====

func (s *groupService) load(ctx context.Context, id uint) (*models.Group, error) {
	group, err := s.repo.Group().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

func (s *groupService) loadManaged(ctx context.Context, id uint, userID, action string) (*models.Group, error) {
	role, err := requireStaff(ctx, s.repo, userID, "group", action)
	if err != nil {
		return nil, err
	}
	group, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && group.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "group", action, "not owner or insufficient permissions")
	}
	return group, nil
}

// memberScore scores a newcomer the same way generation did for the group.
func (s *groupService) memberScore(ctx context.Context, group *models.Group, userID string) (float64, error) {
	if group.TestID != nil {
		best, err := s.repo.Result().BestResultsByTest(ctx, nil, *group.TestID)
		if err != nil {
			return 0, err
		}
		if b, ok := lo.Find(best, func(b repositories.BestResult) bool { return b.UserID == userID }); ok {
			return b.Percentage, nil
		}
		return 0, nil
	}
	uc, err := s.competency.ForUser(ctx, userID, group.CategoryID)
	if err != nil {
		return 0, err
	}
	return uc.Overall, nil
}

// refreshGroupStats recomputes score statistics. leaderID, when set, becomes the
// only leader; otherwise an existing leader is kept, or the top scorer is promoted.
func refreshGroupStats(group *models.Group, leaderID string) {
	scores := lo.Map(group.Members, func(m models.GroupMember, _ int) float64 { return m.Score })
	group.AverageScore = scoring.Round2(grouping.Mean(scores))
	group.ScoreVariance = scoring.Round2(grouping.Variance(scores))

	if len(group.Members) == 0 {
		return
	}
	if leaderID == "" {
		if lo.ContainsBy(group.Members, func(m models.GroupMember) bool { return m.IsLeader }) {
			return
		}
		top := lo.MaxBy(group.Members, func(a, b models.GroupMember) bool {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.UserID < b.UserID
		})
		leaderID = top.UserID
	}
	for i := range group.Members {
		group.Members[i].IsLeader = group.Members[i].UserID == leaderID
	}
}

func planToResult(plan *grouping.Plan) *models.GroupingResult {
	result := &models.GroupingResult{
		Strategy:     models.GroupStrategy(plan.Strategy),
		BalanceScore: plan.BalanceScore,
		Groups:       make([]models.GroupPreview, 0, len(plan.Groups)),
	}
	for _, g := range plan.Groups {
		result.Groups = append(result.Groups, models.GroupPreview{
			Name:         fmt.Sprintf("%s %d", defaultGroupName, g.Index+1),
			AverageScore: g.AverageScore,
			Variance:     g.Variance,
			Members: lo.Map(g.Members, func(m grouping.Member, _ int) models.GroupMember {
				return models.GroupMember{
					UserID:   m.UserID,
					Score:    m.Score,
					IsLeader: m.UserID == g.Leader,
					Profile:  &models.Profile{ID: m.UserID, FullName: m.Name},
				}
			}),
		})
	}
	return result
}

func nameGroups(result *models.GroupingResult, base string) {
	if base == "" {
		return
	}
	for i := range result.Groups {
		result.Groups[i].Name = fmt.Sprintf("%s %d", base, i+1)
	}
}
