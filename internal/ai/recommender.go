// Package ai turns graded attempts into written feedback using an LLM.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/SAP-F-2025/quiz-service/internal/config"
)

var (
	ErrAIDisabled    = errors.New("ai recommendations are disabled")
	ErrEmptyResponse = errors.New("model returned no text")
)

type Recommendation struct {
	Content string
	Model   string
	Prompt  string
}

type Recommender interface {
	Recommend(ctx context.Context, in PromptInput) (*Recommendation, error)
	Model() string
}

// NewRecommender returns the recommender configured by cfg, or a disabled one.
func NewRecommender(cfg config.AIConfig, logger *slog.Logger) (Recommender, error) {
	if !cfg.Enabled() {
		return NoopRecommender{}, nil
	}
	prompts, err := LoadPrompts(nil)
	if err != nil {
		return nil, err
	}
	return NewAnthropicRecommender(cfg, prompts, logger), nil
}

type AnthropicRecommender struct {
	client    *anthropic.Client
	prompts   *Prompts
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *slog.Logger
}

func NewAnthropicRecommender(cfg config.AIConfig, prompts *Prompts, logger *slog.Logger) *AnthropicRecommender {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicRecommender{
		client:    &client,
		prompts:   prompts,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

func (r *AnthropicRecommender) Model() string {
	return r.model
}

func (r *AnthropicRecommender) Recommend(ctx context.Context, in PromptInput) (*Recommendation, error) {
	prompt, err := r.prompts.Render(in)
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: r.prompts.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	r.logger.Info("AI recommendation generated",
		"model", r.model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds())

	return &Recommendation{Content: content, Model: string(resp.Model), Prompt: prompt}, nil
}

type NoopRecommender struct{}

func (NoopRecommender) Recommend(context.Context, PromptInput) (*Recommendation, error) {
	return nil, ErrAIDisabled
}

func (NoopRecommender) Model() string { return "" }

// MockRecommender records inputs and returns a canned response or error.
type MockRecommender struct {
	mu       sync.Mutex
	Response string
	Err      error
	Inputs   []PromptInput
}

func (m *MockRecommender) Recommend(_ context.Context, in PromptInput) (*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inputs = append(m.Inputs, in)
	if m.Err != nil {
		return nil, m.Err
	}
	return &Recommendation{Content: m.Response, Model: m.Model()}, nil
}

func (m *MockRecommender) Model() string { return "mock-model" }

func (m *MockRecommender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}
