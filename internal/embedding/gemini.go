package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// DefaultEmbeddingModel is the Gemini embedding model used unless configured
// otherwise.
const DefaultEmbeddingModel = "gemini-embedding-001"

// DefaultDimension is the output dimensionality requested from the model.
const DefaultDimension = 768

// GeminiEmbedder produces embeddings via the Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGeminiEmbedder creates an embedder pinned to a model and output
// dimensionality. Credentials come from the environment, same as the rest of
// the GenAI client usage in this repo.
func NewGeminiEmbedder(ctx context.Context, model string, dimension int) (*GeminiEmbedder, error) {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("NewGeminiEmbedder: invalid dimension %d", dimension)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEmbedder: create genai client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}, nil
}

// Dimension implements the Embedder interface.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// Embed implements the Embedder interface. API failures are reported as
// retryable so indexing fails fast instead of persisting a partial source.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	outputDim := int32(e.dimension)
	cfg := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("GeminiEmbedder.Embed: %w: %v", domain.ErrResourceUnavailable, err)
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("GeminiEmbedder.Embed: empty embedding from model")
	}

	vec := result.Embeddings[0].Values
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("GeminiEmbedder.Embed: dimension mismatch: expected %d, got %d", e.dimension, len(vec))
	}

	return Normalize(vec), nil
}
