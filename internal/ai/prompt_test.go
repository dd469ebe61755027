package ai

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/config"
)

func TestLoadPrompts_Default(t *testing.T) {
	p, err := LoadPrompts(nil)
	require.NoError(t, err)
	assert.Contains(t, p.System, "tutor")

	out, err := p.Render(PromptInput{
		UserName:     "Ana",
		TestTitle:    "Fractions",
		CategoryName: "Math",
		Score:        3,
		MaxScore:     4,
		Percentage:   75,
		Passed:       true,
		ScaleLabel:   "Good",
		TimeSpent:    61,
		Competencies: []CompetencyLine{{Name: "Math", Percentage: 75}},
		Missed: []MissedQuestion{
			{Question: "1/2 + 1/4?", Given: "2/6", Correct: "3/4", Explanation: "Use a common denominator."},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Learner: Ana")
	assert.Contains(t, out, "(category: Math)")
	assert.Contains(t, out, "3.0 / 4.0 (75.00%)")
	assert.Contains(t, out, `passed, level "Good"`)
	assert.Contains(t, out, "Time spent: 2 min")
	assert.Contains(t, out, "- Math: 75.0%")
	assert.Contains(t, out, "1. 1/2 + 1/4?")
	assert.Contains(t, out, "Correct answer: 3/4")
	assert.Contains(t, out, "Explanation: Use a common denominator.")
}

func TestLoadPrompts_AllCorrect(t *testing.T) {
	p, err := LoadPrompts(nil)
	require.NoError(t, err)

	out, err := p.Render(PromptInput{UserName: "Bo", TestTitle: "T", MaxScore: 1, Score: 1, Percentage: 100, Passed: true})
	require.NoError(t, err)
	assert.Contains(t, out, "All questions were answered correctly.")
	assert.NotContains(t, out, "category:")
}

func TestLoadPrompts_Invalid(t *testing.T) {
	_, err := LoadPrompts([]byte("system: hi\n"))
	assert.Error(t, err)

	_, err = LoadPrompts([]byte("system: hi\nrecommendation: \"{{ .Broken \"\n"))
	assert.Error(t, err)

	_, err = LoadPrompts([]byte("system: [unclosed"))
	assert.Error(t, err)
}

func TestNewRecommender_Disabled(t *testing.T) {
	r, err := NewRecommender(config.AIConfig{Provider: "anthropic"}, slog.Default())
	require.NoError(t, err)

	_, err = r.Recommend(context.Background(), PromptInput{})
	assert.ErrorIs(t, err, ErrAIDisabled)
}

func TestNewRecommender_Anthropic(t *testing.T) {
	r, err := NewRecommender(config.AIConfig{Provider: "anthropic", APIKey: "k", Model: "claude-x", MaxTokens: 100}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "claude-x", r.Model())
	assert.IsType(t, &AnthropicRecommender{}, r)
}
