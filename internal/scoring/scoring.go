// Package scoring grades submitted answers and turns raw points into
// percentages, pass flags and scale labels.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// Outcome is the grade of one question.
type Outcome struct {
	QuestionID   uint
	Answered     bool
	IsCorrect    bool
	PointsEarned float64
	PointsMax    float64
}

// GradeAnswer grades a single answer against q. A nil answer counts as unanswered.
func GradeAnswer(q *models.Question, a *models.AnswerSubmission) Outcome {
	out := Outcome{
		QuestionID: q.ID,
		PointsMax:  float64(q.Points),
	}
	if a == nil {
		return out
	}

	switch q.Type {
	case models.SingleChoice:
		out.Answered = len(a.SelectedOptionIDs) > 0
		out.IsCorrect = gradeSingle(q, a.SelectedOptionIDs)
	case models.MultipleChoice:
		out.Answered = len(a.SelectedOptionIDs) > 0
		out.IsCorrect = gradeMultiple(q, a.SelectedOptionIDs)
	case models.TextAnswer:
		out.Answered = a.TextAnswer != nil && strings.TrimSpace(*a.TextAnswer) != ""
		if out.Answered {
			out.IsCorrect = gradeText(q, *a.TextAnswer)
		}
	}

	if out.IsCorrect {
		out.PointsEarned = out.PointsMax
	}
	return out
}

func gradeSingle(q *models.Question, selected []uint) bool {
	ids := lo.Uniq(selected)
	if len(ids) != 1 {
		return false
	}
	opt, ok := lo.Find(q.Options, func(o models.AnswerOption) bool { return o.ID == ids[0] })
	return ok && opt.IsCorrect
}

// gradeMultiple is all-or-nothing: the selected set must equal the correct set.
func gradeMultiple(q *models.Question, selected []uint) bool {
	correct := q.CorrectOptionIDs()
	if len(correct) == 0 {
		return false
	}
	chosen := lo.Uniq(selected)
	if len(chosen) != len(correct) {
		return false
	}
	return lo.Every(correct, chosen)
}

func gradeText(q *models.Question, answer string) bool {
	given := NormalizeText(answer)
	if given == "" {
		return false
	}
	for _, opt := range q.Options {
		if !opt.IsCorrect {
			continue
		}
		expected := NormalizeText(opt.Text)
		if expected == "" {
			continue
		}
		if given == expected {
			return true
		}
		if q.FuzzyMatch && fuzzy.LevenshteinDistance(given, expected) <= FuzzyTolerance(expected) {
			return true
		}
	}
	return false
}

// NormalizeText trims, lowercases and collapses runs of whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// FuzzyTolerance is the edit distance accepted for an expected answer.
func FuzzyTolerance(expected string) int {
	return max(1, len([]rune(expected))/5)
}

// Summarize adds up earned and available points.
func Summarize(outcomes []Outcome) (score, maxScore float64) {
	for _, o := range outcomes {
		score += o.PointsEarned
		maxScore += o.PointsMax
	}
	return score, maxScore
}

// Percentage is score/max*100 rounded to two decimals, clamped to [0,100].
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	p := Round2(score / maxScore * 100)
	return math.Max(0, math.Min(100, p))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func Passed(percentage, passingScore float64) bool {
	return percentage >= passingScore
}

// ResolveScale picks the band containing percentage. Test scales win over global ones,
// and within a set the band with the highest lower bound wins on overlap.
func ResolveScale(percentage float64, testScales, globalScales []models.AssessmentScale) *models.AssessmentScale {
	if s := matchScale(percentage, testScales); s != nil {
		return s
	}
	return matchScale(percentage, globalScales)
}

func matchScale(percentage float64, scales []models.AssessmentScale) *models.AssessmentScale {
	sorted := make([]models.AssessmentScale, len(scales))
	copy(sorted, scales)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPercentage > sorted[j].MinPercentage
	})
	for i := range sorted {
		if sorted[i].Contains(percentage) {
			s := sorted[i]
			return &s
		}
	}
	return nil
}

// Grade is the full grading of an attempt.
type Grade struct {
	Outcomes   []Outcome
	Score      float64
	MaxScore   float64
	Percentage float64
	Passed     bool
	Scale      *models.AssessmentScale
}

// GradeTest grades every question of test. Answers are matched by question id;
// answers to unknown questions are ignored.
func GradeTest(test *models.Test, answers []models.AnswerSubmission, globalScales []models.AssessmentScale) Grade {
	byQuestion := lo.SliceToMap(answers, func(a models.AnswerSubmission) (uint, models.AnswerSubmission) {
		return a.QuestionID, a
	})

	g := Grade{Outcomes: make([]Outcome, 0, len(test.Questions))}
	for i := range test.Questions {
		q := &test.Questions[i]
		var sub *models.AnswerSubmission
		if a, ok := byQuestion[q.ID]; ok {
			sub = &a
		}
		g.Outcomes = append(g.Outcomes, GradeAnswer(q, sub))
	}

	g.Score, g.MaxScore = Summarize(g.Outcomes)
	g.Percentage = Percentage(g.Score, g.MaxScore)
	g.Passed = Passed(g.Percentage, test.PassingScore)
	g.Scale = ResolveScale(g.Percentage, test.Scales, globalScales)
	return g
}
