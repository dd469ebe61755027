package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func strPtr(s string) *string { return &s }

func choiceQuestion(t models.QuestionType, correct ...uint) *models.Question {
	q := &models.Question{ID: 1, Type: t, Points: 2}
	for id := uint(1); id <= 4; id++ {
		isCorrect := false
		for _, c := range correct {
			if c == id {
				isCorrect = true
			}
		}
		q.Options = append(q.Options, models.AnswerOption{ID: id, IsCorrect: isCorrect})
	}
	return q
}

func TestGradeAnswer_SingleChoice(t *testing.T) {
	q := choiceQuestion(models.SingleChoice, 2)

	tests := []struct {
		name     string
		selected []uint
		correct  bool
		answered bool
	}{
		{"correct", []uint{2}, true, true},
		{"wrong", []uint{1}, false, true},
		{"two selected", []uint{1, 2}, false, true},
		{"duplicate of correct", []uint{2, 2}, true, true},
		{"unknown option", []uint{9}, false, true},
		{"nothing", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := GradeAnswer(q, &models.AnswerSubmission{QuestionID: 1, SelectedOptionIDs: tt.selected})
			assert.Equal(t, tt.correct, out.IsCorrect)
			assert.Equal(t, tt.answered, out.Answered)
			if tt.correct {
				assert.Equal(t, 2.0, out.PointsEarned)
			} else {
				assert.Zero(t, out.PointsEarned)
			}
		})
	}
}

func TestGradeAnswer_MultipleChoice(t *testing.T) {
	q := choiceQuestion(models.MultipleChoice, 1, 3)

	tests := []struct {
		name     string
		selected []uint
		want     bool
	}{
		{"exact", []uint{1, 3}, true},
		{"reordered", []uint{3, 1}, true},
		{"with duplicate", []uint{1, 3, 3}, true},
		{"partial", []uint{1}, false},
		{"extra", []uint{1, 3, 4}, false},
		{"wrong pair", []uint{1, 4}, false},
		{"empty", []uint{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := GradeAnswer(q, &models.AnswerSubmission{SelectedOptionIDs: tt.selected})
			assert.Equal(t, tt.want, out.IsCorrect)
		})
	}
}

func TestGradeAnswer_Text(t *testing.T) {
	exact := &models.Question{ID: 5, Type: models.TextAnswer, Points: 1, Options: []models.AnswerOption{
		{ID: 1, Text: "Photosynthesis", IsCorrect: true},
		{ID: 2, Text: "light reaction", IsCorrect: true},
	}}
	fuzzyQ := &models.Question{ID: 6, Type: models.TextAnswer, Points: 1, FuzzyMatch: true, Options: []models.AnswerOption{
		{ID: 1, Text: "Photosynthesis", IsCorrect: true},
	}}

	tests := []struct {
		name   string
		q      *models.Question
		answer *string
		want   bool
	}{
		{"exact match", exact, strPtr("photosynthesis"), true},
		{"whitespace and case", exact, strPtr("  LIGHT   Reaction "), true},
		{"typo without fuzzy", exact, strPtr("photosynthesys"), false},
		{"typo with fuzzy", fuzzyQ, strPtr("photosynthesys"), true},
		{"too far with fuzzy", fuzzyQ, strPtr("photo"), false},
		{"blank", exact, strPtr("   "), false},
		{"nil", exact, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := GradeAnswer(tt.q, &models.AnswerSubmission{TextAnswer: tt.answer})
			assert.Equal(t, tt.want, out.IsCorrect)
		})
	}
}

func TestGradeAnswer_Unanswered(t *testing.T) {
	out := GradeAnswer(choiceQuestion(models.SingleChoice, 1), nil)
	assert.False(t, out.Answered)
	assert.False(t, out.IsCorrect)
	assert.Equal(t, 2.0, out.PointsMax)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, max, want float64
	}{
		{0, 0, 0},
		{5, 10, 50},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{10, 10, 100},
		{3, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.score, tt.max))
	}
}

func TestPassed(t *testing.T) {
	assert.True(t, Passed(60, 60))
	assert.False(t, Passed(59.99, 60))
	assert.True(t, Passed(0, 0))
}

func TestResolveScale(t *testing.T) {
	testID := uint(1)
	global := []models.AssessmentScale{
		{Label: "Low", MinPercentage: 0, MaxPercentage: 49.99},
		{Label: "Mid", MinPercentage: 50, MaxPercentage: 79.99},
		{Label: "High", MinPercentage: 80, MaxPercentage: 100},
	}
	specific := []models.AssessmentScale{
		{TestID: &testID, Label: "Expert", MinPercentage: 90, MaxPercentage: 100},
	}

	assert.Equal(t, "Mid", ResolveScale(65, nil, global).Label)
	assert.Equal(t, "Expert", ResolveScale(95, specific, global).Label)
	assert.Equal(t, "High", ResolveScale(85, specific, global).Label)
	assert.Nil(t, ResolveScale(50, nil, nil))

	overlapping := []models.AssessmentScale{
		{Label: "Pass", MinPercentage: 0, MaxPercentage: 80},
		{Label: "Merit", MinPercentage: 80, MaxPercentage: 100},
	}
	assert.Equal(t, "Merit", ResolveScale(80, overlapping, nil).Label)
}

func TestGradeTest(t *testing.T) {
	test := &models.Test{
		PassingScore: 50,
		Questions: []models.Question{
			{ID: 1, Type: models.SingleChoice, Points: 1, Options: []models.AnswerOption{{ID: 10, IsCorrect: true}, {ID: 11}}},
			{ID: 2, Type: models.MultipleChoice, Points: 2, Options: []models.AnswerOption{{ID: 20, IsCorrect: true}, {ID: 21, IsCorrect: true}, {ID: 22}}},
			{ID: 3, Type: models.TextAnswer, Points: 1, Options: []models.AnswerOption{{ID: 30, Text: "Go", IsCorrect: true}}},
		},
	}
	global := []models.AssessmentScale{{Label: "Good", MinPercentage: 70, MaxPercentage: 100}}

	g := GradeTest(test, []models.AnswerSubmission{
		{QuestionID: 1, SelectedOptionIDs: []uint{10}},
		{QuestionID: 2, SelectedOptionIDs: []uint{20, 21}},
		{QuestionID: 99, SelectedOptionIDs: []uint{1}},
	}, global)

	assert.Len(t, g.Outcomes, 3)
	assert.Equal(t, 3.0, g.Score)
	assert.Equal(t, 4.0, g.MaxScore)
	assert.Equal(t, 75.0, g.Percentage)
	assert.True(t, g.Passed)
	if assert.NotNil(t, g.Scale) {
		assert.Equal(t, "Good", g.Scale.Label)
	}
}
