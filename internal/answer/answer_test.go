package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

type mockModel struct {
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)
	calls        int
}

func (m *mockModel) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.calls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, maxTokens)
	}
	return "ok", nil
}

func evidenceContext(amounts ...int64) *assembler.Context {
	evCtx := &assembler.Context{}
	for i, minor := range amounts {
		evCtx.Evidence = append(evCtx.Evidence, domain.RetrievedEvidence{
			Ref:  domain.TransactionRef(string(rune('a' + i))),
			Kind: domain.EvidenceTransaction,
			Transaction: &domain.Transaction{
				ID:          string(rune('a' + i)),
				UserID:      "u1",
				AmountMinor: minor,
				Category:    "Food",
				Description: "purchase",
				OccurredAt:  time.Date(2024, 5, i+1, 0, 0, 0, 0, time.UTC),
			},
		})
	}
	return evCtx
}

func newTestGenerator(m CompletionModel) *Generator {
	return New(m, logger.NewWithWriter(&strings.Builder{}))
}

func TestAnswerEmptyEvidenceSkipsModel(t *testing.T) {
	model := &mockModel{}
	g := newTestGenerator(model)

	res, err := g.Answer(context.Background(), "how much?", &assembler.Context{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != InsufficientDataMessage {
		t.Errorf("text = %q", res.Text)
	}
	if model.calls != 0 {
		t.Errorf("model was called %d times for empty evidence", model.calls)
	}
	if len(res.EvidenceRefs) != 0 {
		t.Errorf("unexpected refs: %v", res.EvidenceRefs)
	}
}

func TestAnswerCarriesRefs(t *testing.T) {
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "You spent 200.00 on Food [txn:a].", nil
		},
	}
	g := newTestGenerator(model)

	res, err := g.Answer(context.Background(), "how much on food?", evidenceContext(-20000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.EvidenceRefs) != 1 || res.EvidenceRefs[0] != "txn:a" {
		t.Errorf("refs = %v", res.EvidenceRefs)
	}
	if strings.Contains(res.Text, "could not be verified") {
		t.Errorf("verified figure flagged: %q", res.Text)
	}
}

func TestAnswerRetriesOnceOnRetryable(t *testing.T) {
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", domain.ErrResourceUnavailable
		},
	}
	g := newTestGenerator(model)

	res, err := g.Answer(context.Background(), "how much?", evidenceContext(-20000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if model.calls != 2 {
		t.Errorf("model called %d times, want 2 (original + one retry)", model.calls)
	}
	if !res.Degraded || res.Text != DegradedMessage {
		t.Errorf("expected degraded result, got %+v", res)
	}
}

func TestAnswerNonRetryableFailsFast(t *testing.T) {
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", errors.New("invalid request")
		},
	}
	g := newTestGenerator(model)

	res, err := g.Answer(context.Background(), "how much?", evidenceContext(-20000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if model.calls != 1 {
		t.Errorf("model called %d times, want 1", model.calls)
	}
	if !res.Degraded {
		t.Error("expected degraded result")
	}
}

func TestAnswerRetrySucceeds(t *testing.T) {
	model := &mockModel{}
	model.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if model.calls == 1 {
			return "", domain.ErrResourceUnavailable
		}
		return "You spent 200.00 [txn:a].", nil
	}
	g := newTestGenerator(model)

	res, err := g.Answer(context.Background(), "how much?", evidenceContext(-20000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Degraded {
		t.Error("retry succeeded but result marked degraded")
	}
	if model.calls != 2 {
		t.Errorf("model called %d times, want 2", model.calls)
	}
}

func TestAnswerUnverifiedFigureGetsCaveat(t *testing.T) {
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "You spent about 999.99 on Food.", nil
		},
	}
	g := newTestGenerator(model)

	res, err := g.Answer(context.Background(), "how much?", evidenceContext(-20000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "could not be verified") {
		t.Errorf("expected caveat, got %q", res.Text)
	}
}

func TestAnswerCancelledContext(t *testing.T) {
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", ctx.Err()
		},
	}
	g := newTestGenerator(model)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Answer(ctx, "how much?", evidenceContext(-20000), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
