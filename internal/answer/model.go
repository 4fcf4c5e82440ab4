package answer

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// DefaultModelName is the Gemini model used for answer generation unless
// configured otherwise.
const DefaultModelName = "gemini-2.5-flash"

// CompletionModel is the language-model collaborator. It may fail with
// rate-limit or timeout errors, which implementations report as retryable.
type CompletionModel interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GeminiModel calls the Gemini API for completions.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates the client. Credentials come from the environment.
func NewGeminiModel(ctx context.Context, model string) (*GeminiModel, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiModel: create genai client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Complete implements CompletionModel. Temperature is pinned low: the answer
// must stay on the supplied evidence, not get creative.
func (m *GeminiModel) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: ptr(float32(0.3)),
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("GeminiModel.Complete: %w: %v", domain.ErrResourceUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GeminiModel.Complete: empty response from model")
	}
	return text, nil
}

func ptr[T any](v T) *T { return &v }
