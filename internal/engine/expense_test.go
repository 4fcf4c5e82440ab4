package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

func TestIsExpenseCommand(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"I spent 200 on transport", true},
		{"Add 500 in Food for lunch", true},
		{"bought a coffee for 4.50", true},
		{"Paid 120 for electricity", true},
		{"how much have I spent?", false},
		{"How much did I spend on food in May?", false},
		{"what did I buy last week", false},
		{"did I pay rent this month?", false},
		{"show my transactions", false},
		{"spent way too much lately?", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := isExpenseCommand(tt.question); got != tt.want {
				t.Errorf("isExpenseCommand(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"raw json", `{"amount": 500}`, `{"amount": 500}`},
		{"fenced", "```json\n{\"amount\": 500}\n```", `{"amount": 500}`},
		{"bare fence", "```\n{\"amount\": 500}\n```", `{"amount": 500}`},
		{"surrounding prose", `Sure! {"amount": 500} Hope that helps.`, `{"amount": 500}`},
		{"no object", "no json here", "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCaptureExpense(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return `{"amount": 12.50, "category": "Food", "description": "lunch"}`, nil
		},
	}
	rig := newTestRig(t, store, model, nil)

	res, err := rig.engine.Query(context.Background(), "u1", "s1", "I spent 12.50 on lunch")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(res.Answer, "12.50") || !strings.Contains(res.Answer, "Food") {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d transactions", len(store.inserted))
	}

	got := store.inserted[0]
	if got.AmountMinor != -1250 {
		t.Errorf("amount = %d, want -1250", got.AmountMinor)
	}
	if got.Category != "Food" {
		t.Errorf("category = %q", got.Category)
	}
	if got.Source != domain.SourceManual {
		t.Errorf("source = %q", got.Source)
	}
	if got.ID == "" {
		t.Error("id not assigned")
	}
}

func TestCaptureExpenseUnknownCategory(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return `{"amount": 30, "category": "Llamas", "description": "petting zoo"}`, nil
		},
	}
	rig := newTestRig(t, store, model, nil)

	if _, err := rig.engine.Query(context.Background(), "u1", "s1", "I spent 30 at the petting zoo"); err != nil {
		t.Fatal(err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d transactions", len(store.inserted))
	}
	if got := store.inserted[0].Category; got != "Other" {
		t.Errorf("category = %q, want Other", got)
	}
}

func TestCaptureExpenseUnparseable(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "I am not JSON", nil
		},
	}
	rig := newTestRig(t, store, model, nil)

	res, err := rig.engine.Query(context.Background(), "u1", "s1", "I spent something somewhere")
	if err != nil {
		t.Fatal(err)
	}

	if res.Answer != CannotParseExpenseMessage {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d transactions, want 0", len(store.inserted))
	}
}

func TestCaptureExpenseModelError(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", domain.ErrResourceUnavailable
		},
	}
	rig := newTestRig(t, store, model, nil)

	res, err := rig.engine.Query(context.Background(), "u1", "s1", "I spent 40 on groceries")
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != CannotParseExpenseMessage {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestCaptureExpenseModelDeclines(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return `{"error": "unable to parse expense"}`, nil
		},
	}
	rig := newTestRig(t, store, model, nil)

	res, err := rig.engine.Query(context.Background(), "u1", "s1", "I spent a fortune")
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != CannotParseExpenseMessage {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d transactions, want 0", len(store.inserted))
	}
}
