package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionService) Add(ctx context.Context, testID uint, req *models.QuestionCreateRequest, userID string) (*models.Question, error) {
	s.logger.Info("Adding question", "test_id", testID, "user_id", userID, "type", req.Type)

	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	if _, err := s.loadEditableTest(ctx, testID, userID); err != nil {
		return nil, err
	}
	if err := checkCategory(ctx, s.repo, req.CategoryID); err != nil {
		return nil, err
	}

	maxOrder, err := s.repo.Question().MaxOrder(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question order: %w", err)
	}

	question := buildQuestion(req, testID, maxOrder+1)
	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question added successfully", "question_id", question.ID, "test_id", testID)
	return question, nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *models.QuestionUpdateRequest, userID string) (*models.Question, error) {
	s.logger.Info("Updating question", "question_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadEditableTest(ctx, question.TestID, userID); err != nil {
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Type != nil {
		question.Type = *req.Type
	}
	if req.Points != nil {
		question.Points = *req.Points
	}
	if req.Explanation != nil {
		question.Explanation = req.Explanation
	}
	if req.CategoryID != nil {
		if err := checkCategory(ctx, s.repo, req.CategoryID); err != nil {
			return nil, err
		}
		question.CategoryID = req.CategoryID
	}
	if req.FuzzyMatch != nil {
		question.FuzzyMatch = *req.FuzzyMatch
	}

	options := req.Options
	if options == nil {
		options = lo.Map(question.Options, func(o models.AnswerOption, _ int) models.AnswerOptionRequest {
			return models.AnswerOptionRequest{Text: o.Text, IsCorrect: o.IsCorrect}
		})
	}
	if errs := s.validator.Business.ValidateQuestion(question.Type, options, question.FuzzyMatch); len(errs) > 0 {
		return nil, errs
	}

	if req.Options != nil {
		question.Options = buildOptions(req.Options)
	} else {
		question.Options = nil
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated successfully", "question_id", id)
	return s.getQuestion(ctx, id)
}

func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting question", "question_id", id, "user_id", userID)

	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.loadEditableTest(ctx, question.TestID, userID); err != nil {
		return err
	}

	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted successfully", "question_id", id)
	return nil
}

func (s *questionService) List(ctx context.Context, testID uint, userID string) ([]*models.Question, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	test, err := loadTest(ctx, s.repo, testID, false)
	if err != nil {
		return nil, err
	}
	if !canManageTest(test, userID, role) {
		return nil, NewPermissionError(userID, testID, "test", "list questions of", "not owner or insufficient permissions")
	}

	questions, err := s.repo.Question().ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// Reorder assigns orders 1..n following req.QuestionIDs, which must list every
// question of the test exactly once.
func (s *questionService) Reorder(ctx context.Context, testID uint, req *models.ReorderQuestionsRequest, userID string) error {
	s.logger.Info("Reordering questions", "test_id", testID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if _, err := s.loadEditableTest(ctx, testID, userID); err != nil {
		return err
	}

	existing, err := s.repo.Question().ListByTest(ctx, nil, testID)
	if err != nil {
		return fmt.Errorf("failed to list questions: %w", err)
	}
	existingIDs := lo.Map(existing, func(q *models.Question, _ int) uint { return q.ID })
	missing, unknown := lo.Difference(existingIDs, req.QuestionIDs)
	if len(missing) > 0 || len(unknown) > 0 {
		return ValidationErrors{{
			Field:   "question_ids",
			Message: "must list every question of the test exactly once",
			Value:   req.QuestionIDs,
			Rule:    "business_logic",
		}}
	}

	orders := make([]repositories.QuestionOrder, len(req.QuestionIDs))
	for i, qid := range req.QuestionIDs {
		orders[i] = repositories.QuestionOrder{QuestionID: qid, Order: i + 1}
	}

	if err := s.repo.Question().Reorder(ctx, nil, testID, orders); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to reorder questions: %w", err)
	}
	return nil
}

// ===== IMPORT =====

// ImportFromSpreadsheet reads questions from the first sheet of an xlsx document.
// Columns are text, type, points, explanation, then one option per column; correct
// options (accepted answers for text questions) start with "*". A header row whose
// first cell is "text" is skipped. Valid rows are created even when others fail.
func (s *questionService) ImportFromSpreadsheet(ctx context.Context, testID uint, r io.Reader, userID string) (*models.ImportResult, error) {
	s.logger.Info("Importing questions", "test_id", testID, "user_id", userID)

	if _, err := s.loadEditableTest(ctx, testID, userID); err != nil {
		return nil, err
	}

	rows, err := readFirstSheet(r)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{Errors: []models.ImportRowError{}}
	var questions []*models.Question

	maxOrder, err := s.repo.Question().MaxOrder(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question order: %w", err)
	}

	for i, row := range rows {
		rowNum := i + 1
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "text") {
			continue
		}
		if lo.EveryBy(row, func(c string) bool { return strings.TrimSpace(c) == "" }) {
			continue
		}

		req, err := parseQuestionRow(row)
		if err == nil {
			err = s.validateCreate(req)
		}
		if err != nil {
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}

		maxOrder++
		questions = append(questions, buildQuestion(req, testID, maxOrder))
	}

	if len(questions) > 0 {
		if err := s.repo.Question().CreateBatch(ctx, nil, questions); err != nil {
			return nil, fmt.Errorf("failed to create questions: %w", err)
		}
	}
	result.Created = len(questions)

	s.logger.Info("Questions imported", "test_id", testID, "created", result.Created, "failed", len(result.Errors))
	return result, nil
}

func parseQuestionRow(row []string) (*models.QuestionCreateRequest, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	qType, err := parseQuestionType(cell(1))
	if err != nil {
		return nil, err
	}

	req := &models.QuestionCreateRequest{
		Text:       cell(0),
		Type:       qType,
		Points:     1,
		FuzzyMatch: false,
	}
	if p := cell(2); p != "" {
		points, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("points %q is not a number", p)
		}
		req.Points = points
	}
	if e := cell(3); e != "" {
		req.Explanation = &e
	}

	for i := 4; i < len(row); i++ {
		text := cell(i)
		if text == "" {
			continue
		}
		correct := strings.HasPrefix(text, "*")
		if correct {
			text = strings.TrimSpace(strings.TrimPrefix(text, "*"))
		}
		req.Options = append(req.Options, models.AnswerOptionRequest{Text: text, IsCorrect: correct})
	}

	// every listed answer of a text question is accepted
	if req.Type == models.TextAnswer {
		for i := range req.Options {
			req.Options[i].IsCorrect = true
		}
	}
	return req, nil
}

func parseQuestionType(s string) (models.QuestionType, error) {
	switch strings.ToLower(strings.ReplaceAll(s, " ", "_")) {
	case "single", "single_choice", "sc":
		return models.SingleChoice, nil
	case "multiple", "multiple_choice", "mc":
		return models.MultipleChoice, nil
	case "text", "open":
		return models.TextAnswer, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// ===== HELPERS =====

func (s *questionService) validateCreate(req *models.QuestionCreateRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	return s.validator.Business.ValidateQuestion(req.Type, req.Options, req.FuzzyMatch).OrNil()
}

// loadEditableTest returns the test when userID may change its questions: the caller
// manages it, it is not archived and nobody has taken it yet.
func (s *questionService) loadEditableTest(ctx context.Context, testID uint, userID string) (*models.Test, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	test, err := loadTest(ctx, s.repo, testID, false)
	if err != nil {
		return nil, err
	}
	if !canManageTest(test, userID, role) {
		return nil, NewPermissionError(userID, testID, "test", "edit questions of", "not owner or insufficient permissions")
	}
	if test.Status == models.TestArchived {
		return nil, ErrTestArchived
	}

	hasResults, err := s.repo.Test().HasResults(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to check results: %w", err)
	}
	if hasResults {
		return nil, NewBusinessRuleError("test_has_results", "questions cannot change once the test has results",
			map[string]interface{}{"test_id": testID})
	}
	return test, nil
}

func (s *questionService) getQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func buildQuestion(req *models.QuestionCreateRequest, testID uint, order int) *models.Question {
	points := req.Points
	if points <= 0 {
		points = 1
	}
	return &models.Question{
		TestID:      testID,
		Text:        strings.TrimSpace(req.Text),
		Type:        req.Type,
		Points:      points,
		Order:       order,
		Explanation: req.Explanation,
		CategoryID:  req.CategoryID,
		FuzzyMatch:  req.FuzzyMatch && req.Type == models.TextAnswer,
		Options:     buildOptions(req.Options),
	}
}

func buildOptions(reqs []models.AnswerOptionRequest) []models.AnswerOption {
	options := make([]models.AnswerOption, 0, len(reqs))
	for i, o := range reqs {
		if strings.TrimSpace(o.Text) == "" {
			continue
		}
		options = append(options, models.AnswerOption{
			Text:      strings.TrimSpace(o.Text),
			IsCorrect: o.IsCorrect,
			Order:     i + 1,
		})
	}
	return options
}
