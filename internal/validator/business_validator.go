package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// BusinessValidator checks rules that span fields or need stored state.
type BusinessValidator struct{}

// ValidateQuestion checks the option set against the question type.
func (bv *BusinessValidator) ValidateQuestion(qType models.QuestionType, options []models.AnswerOptionRequest, fuzzyMatch bool) ValidationErrors {
	var errs ValidationErrors

	nonEmpty := 0
	correct := 0
	for i, o := range options {
		if strings.TrimSpace(o.Text) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("options[%d].text", i),
				Message: "option text cannot be blank",
				Rule:    "business_logic",
			})
			continue
		}
		nonEmpty++
		if o.IsCorrect {
			correct++
		}
	}

	switch qType {
	case models.SingleChoice, models.MultipleChoice:
		if nonEmpty < 2 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "choice questions need at least 2 options",
				Value:   nonEmpty,
				Rule:    "business_logic",
			})
		}
		if qType == models.SingleChoice && correct != 1 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "single choice questions need exactly one correct option",
				Value:   correct,
				Rule:    "business_logic",
			})
		}
		if qType == models.MultipleChoice && correct < 1 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "multiple choice questions need at least one correct option",
				Value:   correct,
				Rule:    "business_logic",
			})
		}
		if fuzzyMatch {
			errs = append(errs, ValidationError{
				Field:   "fuzzy_match",
				Message: "fuzzy matching only applies to text questions",
				Rule:    "business_logic",
			})
		}
	case models.TextAnswer:
		if nonEmpty < 1 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "text questions need at least one accepted answer",
				Rule:    "business_logic",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "type",
			Message: "unsupported question type",
			Value:   qType,
			Rule:    "question_type",
		})
	}

	return errs
}

// ValidateStatusTransition allows draft->published, published->archived,
// draft->archived and published->draft while no results exist.
func (bv *BusinessValidator) ValidateStatusTransition(current, next models.TestStatus, hasResults bool, questionCount int) ValidationErrors {
	var errs ValidationErrors

	allowed := map[models.TestStatus][]models.TestStatus{
		models.TestDraft:     {models.TestPublished, models.TestArchived},
		models.TestPublished: {models.TestArchived, models.TestDraft},
		models.TestArchived:  {},
	}

	ok := false
	for _, s := range allowed[current] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	if current == models.TestPublished && next == models.TestDraft && hasResults {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: "cannot unpublish a test that already has results",
			Value:   next,
			Rule:    "status_transition",
		})
	}

	if next == models.TestPublished && questionCount == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "test must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidatePublishable checks every question of test still satisfies its type rules.
func (bv *BusinessValidator) ValidatePublishable(test *models.Test) ValidationErrors {
	var errs ValidationErrors
	for i, q := range test.Questions {
		opts := make([]models.AnswerOptionRequest, len(q.Options))
		for j, o := range q.Options {
			opts[j] = models.AnswerOptionRequest{Text: o.Text, IsCorrect: o.IsCorrect}
		}
		for _, e := range bv.ValidateQuestion(q.Type, opts, q.FuzzyMatch) {
			e.Field = fmt.Sprintf("questions[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	return errs
}

// ValidateScaleRange rejects a band overlapping any existing band of the same scope.
func (bv *BusinessValidator) ValidateScaleRange(minPct, maxPct float64, existing []models.AssessmentScale, excludeID uint) ValidationErrors {
	var errs ValidationErrors
	if minPct > maxPct {
		errs = append(errs, ValidationError{
			Field:   "min_percentage",
			Message: "must not exceed max_percentage",
			Value:   minPct,
			Rule:    "business_logic",
		})
		return errs
	}
	for _, s := range existing {
		if s.ID == excludeID {
			continue
		}
		if minPct <= s.MaxPercentage && s.MinPercentage <= maxPct {
			errs = append(errs, ValidationError{
				Field:   "min_percentage",
				Message: fmt.Sprintf("range overlaps scale %q (%.2f-%.2f)", s.Label, s.MinPercentage, s.MaxPercentage),
				Value:   minPct,
				Rule:    "scale_overlap",
			})
		}
	}
	return errs
}

// ValidateAttemptStart checks the test can be taken and the attempt limit.
func (bv *BusinessValidator) ValidateAttemptStart(status models.TestStatus, attemptCount int64, maxAttempts int) ValidationErrors {
	var errs ValidationErrors
	if status != models.TestPublished {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: "test is not published",
			Value:   status,
			Rule:    "business_logic",
		})
	}
	if maxAttempts > 0 && attemptCount >= int64(maxAttempts) {
		errs = append(errs, ValidationError{
			Field:   "attempts",
			Message: "maximum attempts exceeded",
			Value:   attemptCount,
			Rule:    "max_attempts",
		})
	}
	return errs
}
