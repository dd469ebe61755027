package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func TestValidator_StructTags(t *testing.T) {
	v := New()

	err := v.Validate(&models.QuestionCreateRequest{
		Text:    "",
		Type:    "essay",
		Options: []models.AnswerOptionRequest{{Text: ""}},
	})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := map[string]string{}
	for _, e := range verrs {
		fields[e.Field] = e.Rule
	}
	assert.Equal(t, "required", fields["text"])
	assert.Equal(t, "question_type", fields["type"])
	assert.Equal(t, "required", fields["options[0].text"])
}

func TestValidator_ScaleRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&models.ScaleRequest{Name: "a", Label: "A", MinPercentage: 10, MaxPercentage: 20}))

	err := v.Validate(&models.ScaleRequest{Name: "a", Label: "A", MinPercentage: 30, MaxPercentage: 20})
	assert.Error(t, err)
}

func TestBusinessValidator_ValidateQuestion(t *testing.T) {
	bv := &BusinessValidator{}
	opt := func(text string, correct bool) models.AnswerOptionRequest {
		return models.AnswerOptionRequest{Text: text, IsCorrect: correct}
	}

	tests := []struct {
		name    string
		qType   models.QuestionType
		options []models.AnswerOptionRequest
		fuzzy   bool
		wantErr bool
	}{
		{"single ok", models.SingleChoice, []models.AnswerOptionRequest{opt("a", true), opt("b", false)}, false, false},
		{"single two correct", models.SingleChoice, []models.AnswerOptionRequest{opt("a", true), opt("b", true)}, false, true},
		{"single one option", models.SingleChoice, []models.AnswerOptionRequest{opt("a", true)}, false, true},
		{"multiple ok", models.MultipleChoice, []models.AnswerOptionRequest{opt("a", true), opt("b", true), opt("c", false)}, false, false},
		{"multiple none correct", models.MultipleChoice, []models.AnswerOptionRequest{opt("a", false), opt("b", false)}, false, true},
		{"fuzzy on choice", models.SingleChoice, []models.AnswerOptionRequest{opt("a", true), opt("b", false)}, true, true},
		{"text ok", models.TextAnswer, []models.AnswerOptionRequest{opt("answer", true)}, true, false},
		{"text blank", models.TextAnswer, []models.AnswerOptionRequest{opt("  ", true)}, false, true},
		{"unknown type", "essay", []models.AnswerOptionRequest{opt("a", true)}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bv.ValidateQuestion(tt.qType, tt.options, tt.fuzzy)
			assert.Equal(t, tt.wantErr, len(errs) > 0, errs)
		})
	}
}

func TestBusinessValidator_ValidateStatusTransition(t *testing.T) {
	bv := &BusinessValidator{}

	assert.Empty(t, bv.ValidateStatusTransition(models.TestDraft, models.TestPublished, false, 3))
	assert.NotEmpty(t, bv.ValidateStatusTransition(models.TestDraft, models.TestPublished, false, 0))
	assert.Empty(t, bv.ValidateStatusTransition(models.TestPublished, models.TestArchived, true, 3))
	assert.Empty(t, bv.ValidateStatusTransition(models.TestPublished, models.TestDraft, false, 3))
	assert.NotEmpty(t, bv.ValidateStatusTransition(models.TestPublished, models.TestDraft, true, 3))
	assert.NotEmpty(t, bv.ValidateStatusTransition(models.TestArchived, models.TestPublished, false, 3))
}

func TestBusinessValidator_ValidateScaleRange(t *testing.T) {
	bv := &BusinessValidator{}
	existing := []models.AssessmentScale{
		{ID: 1, Label: "Low", MinPercentage: 0, MaxPercentage: 49.99},
		{ID: 2, Label: "High", MinPercentage: 80, MaxPercentage: 100},
	}

	assert.Empty(t, bv.ValidateScaleRange(50, 79.99, existing, 0))
	assert.NotEmpty(t, bv.ValidateScaleRange(40, 60, existing, 0))
	assert.Empty(t, bv.ValidateScaleRange(0, 40, existing, 1))
	assert.NotEmpty(t, bv.ValidateScaleRange(60, 50, nil, 0))
}

func TestBusinessValidator_ValidateAttemptStart(t *testing.T) {
	bv := &BusinessValidator{}

	assert.Empty(t, bv.ValidateAttemptStart(models.TestPublished, 5, 0))
	assert.Empty(t, bv.ValidateAttemptStart(models.TestPublished, 1, 2))
	assert.NotEmpty(t, bv.ValidateAttemptStart(models.TestPublished, 2, 2))
	assert.NotEmpty(t, bv.ValidateAttemptStart(models.TestDraft, 0, 0))
}

func TestValidationErrors_OrNil(t *testing.T) {
	var empty ValidationErrors
	assert.NoError(t, empty.OrNil())
	assert.EqualError(t, ValidationErrors{{Field: "a", Message: "bad"}}.OrNil(), "validation failed: a: bad")
}
