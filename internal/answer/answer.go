// Package answer turns an assembled evidence context into a grounded reply.
// It is the only place the language model is consulted, and the only place
// that decides not to consult it.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Fixed responses. The engine always returns a response object; these are the
// worst cases.
const (
	// InsufficientDataMessage is returned deterministically, without a model
	// call, when there is no usable evidence. No grounding, no generation.
	InsufficientDataMessage = "I couldn't find any matching records to answer that. " +
		"Try adding transactions or uploading a statement, or ask about a different period."

	// DegradedMessage is returned after the model failed twice.
	DegradedMessage = "Sorry, I'm having trouble generating an answer right now. " +
		"Your data is fine - please try again in a moment."

	unverifiedCaveat = "\n\nNote: some figures above could not be verified against your records."
)

// Defaults for prompt shaping.
const (
	DefaultMaxTokens     = 1024
	DefaultHistoryWindow = 6

	retryBackoff = 500 * time.Millisecond
)

// Result is the generated answer plus the provenance it was grounded on.
type Result struct {
	Text         string
	EvidenceRefs []string
	// Degraded is set when the fixed fallback was returned because the model
	// was unavailable.
	Degraded bool
}

// Generator produces grounded answers from evidence.
type Generator struct {
	model         CompletionModel
	log           zerolog.Logger
	maxTokens     int
	historyWindow int
}

// New creates a generator with default prompt bounds.
func New(model CompletionModel, log zerolog.Logger) *Generator {
	return &Generator{
		model:         model,
		log:           log,
		maxTokens:     DefaultMaxTokens,
		historyWindow: DefaultHistoryWindow,
	}
}

// Answer builds the grounding prompt and asks the model. A transient model
// failure is retried once with backoff; a second failure yields the degraded
// apology instead of an error. Figures that cannot be traced back to the
// evidence are surfaced as a caveat, never silently passed through.
func (g *Generator) Answer(ctx context.Context, question string, evCtx *assembler.Context, history []domain.ConversationTurn) (*Result, error) {
	if evCtx == nil || len(evCtx.Evidence) == 0 {
		return &Result{Text: InsufficientDataMessage}, nil
	}

	refs := make([]string, len(evCtx.Evidence))
	for i, e := range evCtx.Evidence {
		refs[i] = e.Ref
	}

	prompt := buildPrompt(question, evCtx, history, g.historyWindow)

	text, err := g.complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("Answer: %w", ctx.Err())
		}
		g.log.Error().Err(err).Msg("Model unavailable after retry, returning degraded answer")
		return &Result{Text: DegradedMessage, Degraded: true}, nil
	}

	if unverified := verifyFigures(text, evCtx); len(unverified) > 0 {
		g.log.Warn().Strs("figures", unverified).Msg("Answer contains figures not traceable to evidence")
		text = strings.TrimSpace(text) + unverifiedCaveat
	}

	return &Result{Text: strings.TrimSpace(text), EvidenceRefs: refs}, nil
}

// complete calls the model, retrying once on a retryable failure.
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	text, err := g.model.Complete(ctx, prompt, g.maxTokens)
	if err == nil {
		return text, nil
	}
	if !domain.IsRetryable(err) {
		return "", err
	}

	g.log.Warn().Err(err).Msg("Model call failed, retrying once")
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.model.Complete(ctx, prompt, g.maxTokens)
}
