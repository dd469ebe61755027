package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptInput is everything the model sees about one completed attempt.
type PromptInput struct {
	UserName     string
	TestTitle    string
	CategoryName string
	Score        float64
	MaxScore     float64
	Percentage   float64
	Passed       bool
	ScaleLabel   string
	TimeSpent    int
	Competencies []CompetencyLine
	Missed       []MissedQuestion
}

func (p PromptInput) TimeSpentMinutes() int {
	return (p.TimeSpent + 59) / 60
}

type CompetencyLine struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

type MissedQuestion struct {
	Question    string `json:"question"`
	Given       string `json:"given"`
	Correct     string `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

type promptFile struct {
	Version        int    `yaml:"version"`
	System         string `yaml:"system"`
	Recommendation string `yaml:"recommendation"`
}

// Prompts holds the parsed system prompt and the user message template.
type Prompts struct {
	System string
	user   *template.Template
}

// LoadPrompts parses a prompts document. Passing nil loads the embedded defaults.
func LoadPrompts(data []byte) (*Prompts, error) {
	if data == nil {
		data = defaultPrompts
	}

	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if strings.TrimSpace(pf.System) == "" || strings.TrimSpace(pf.Recommendation) == "" {
		return nil, fmt.Errorf("prompts must define system and recommendation")
	}

	tmpl, err := template.New("recommendation").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Option("missingkey=error").
		Parse(pf.Recommendation)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recommendation template: %w", err)
	}

	return &Prompts{System: strings.TrimSpace(pf.System), user: tmpl}, nil
}

func (p *Prompts) Render(in PromptInput) (string, error) {
	var sb strings.Builder
	if err := p.user.Execute(&sb, in); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
