// Package extractor is the black-box text extraction collaborator: document
// bytes in, plain text out. The Gemini implementation handles PDFs and images
// without any local format parsing.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// DefaultModelName is the Gemini model used for text extraction.
const DefaultModelName = "gemini-2.5-flash"

// TextExtractor yields plain text for a document. A document the extractor
// cannot read is reported as domain.ErrNoText, not a hard failure.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

const extractionPrompt = "Extract ALL text content from the attached document.\n\n" +
	"Rules:\n" +
	"- Output the plain text only, preserving reading order and line breaks.\n" +
	"- Keep tables as one line per row with values separated by \" | \".\n" +
	"- Do not summarize, annotate, or add commentary.\n" +
	"- If the document contains no readable text, output exactly: NO_TEXT\n"

// GeminiExtractor sends the document to Gemini as an inline blob.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates the extractor. Credentials come from the
// environment.
func NewGeminiExtractor(ctx context.Context, model string) (*GeminiExtractor, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Extract implements TextExtractor.
func (e *GeminiExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("Extract: %w", domain.ErrNoText)
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Extract: generate content: %w: %v", domain.ErrResourceUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" || text == "NO_TEXT" {
		return "", fmt.Errorf("Extract: %w", domain.ErrNoText)
	}
	return text, nil
}
