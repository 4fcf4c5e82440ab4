package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/answer"
	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/engine"
	"github.com/dvloznov/finance-assistant/internal/indexer"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/planner"
	"github.com/dvloznov/finance-assistant/internal/vectorindex/memory"
)

type mockStore struct {
	inserted []*domain.Transaction
}

func (m *mockStore) FindTransactions(ctx context.Context, userID string, f domain.Filter, limit int) ([]*domain.Transaction, error) {
	return nil, nil
}

func (m *mockStore) AggregateTransactions(ctx context.Context, userID string, f domain.Filter, op domain.AggregateOp) (int64, error) {
	return 0, nil
}

func (m *mockStore) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	m.inserted = append(m.inserted, t)
	return nil
}

func (m *mockStore) GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	return nil
}

type mockEmbedder struct{}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) Dimension() int { return 2 }

type mockModel struct{}

func (m *mockModel) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "ok", nil
}

func newTransactionsHandler(t *testing.T) (*TransactionsHandler, *mockStore) {
	t.Helper()

	log := logger.NewWithWriter(&strings.Builder{})
	store := &mockStore{}
	embedder := &mockEmbedder{}
	model := &mockModel{}

	index, err := memory.New(embedder.Dimension())
	if err != nil {
		t.Fatal(err)
	}

	eng := engine.New(
		store,
		planner.New(),
		assembler.New(store, index, embedder, log),
		answer.New(model, log),
		conversation.NewStore(0),
		indexer.New(embedder, index, log),
		nil,
		model,
		engine.Config{},
		log,
	)

	return NewTransactionsHandler(eng, store, log), store
}

func postTransaction(t *testing.T, h *TransactionsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.CreateTransaction(rec, req)
	return rec
}

func TestCreateTransactionExpenseStoredNegative(t *testing.T) {
	h, store := newTransactionsHandler(t)

	rec := postTransaction(t, h, `{"user_id":"u1","amount":"200","category":"Food","description":"groceries"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d transactions", len(store.inserted))
	}
	if got := store.inserted[0].AmountMinor; got != -20000 {
		t.Errorf("amount = %d, want -20000", got)
	}
}

func TestCreateTransactionNegativeWireAmount(t *testing.T) {
	h, store := newTransactionsHandler(t)

	rec := postTransaction(t, h, `{"user_id":"u1","amount":"-200","category":"Food"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got := store.inserted[0].AmountMinor; got != -20000 {
		t.Errorf("amount = %d, want -20000", got)
	}
}

func TestCreateTransactionIncomeStoredPositive(t *testing.T) {
	h, store := newTransactionsHandler(t)

	rec := postTransaction(t, h, `{"user_id":"u1","amount":"500.25","type":"income","description":"salary"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got := store.inserted[0].AmountMinor; got != 50025 {
		t.Errorf("amount = %d, want 50025", got)
	}
}

func TestCreateTransactionRejectsUnknownType(t *testing.T) {
	h, store := newTransactionsHandler(t)

	rec := postTransaction(t, h, `{"user_id":"u1","amount":"10","type":"transfer"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d transactions, want 0", len(store.inserted))
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body["error"], "type") {
		t.Errorf("error = %q", body["error"])
	}
}
