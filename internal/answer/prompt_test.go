package answer

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

func TestBuildPromptTagsEvidence(t *testing.T) {
	evCtx := evidenceContext(-20000)
	prompt := buildPrompt("how much on food?", evCtx, nil, DefaultHistoryWindow)

	if !strings.Contains(prompt, "[txn:a]") {
		t.Error("prompt missing evidence reference tag")
	}
	if !strings.Contains(prompt, "200.00") {
		t.Error("prompt missing evidence amount")
	}
	if !strings.Contains(prompt, "Question: how much on food?") {
		t.Error("prompt missing question")
	}
	if strings.Contains(prompt, "truncated") {
		t.Error("truncation instruction present without truncation")
	}
}

func TestBuildPromptTruncatedInstruction(t *testing.T) {
	evCtx := evidenceContext(-20000)
	evCtx.Truncated = true

	prompt := buildPrompt("how much?", evCtx, nil, DefaultHistoryWindow)
	if !strings.Contains(prompt, "truncated") {
		t.Error("expected truncation instruction")
	}
}

func TestBuildPromptStatistics(t *testing.T) {
	evCtx := evidenceContext(-20000, -15000)
	evCtx.Aggregates = []assembler.AggregateResult{
		{
			Op: domain.AggregateSum,
			Filter: domain.Filter{
				Category: "Food",
				DateFrom: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				DateTo:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			},
			Value: -35000,
		},
	}

	prompt := buildPrompt("how much on food in may?", evCtx, nil, DefaultHistoryWindow)

	if !strings.Contains(prompt, "Statistics") {
		t.Fatal("prompt missing statistics block")
	}
	if !strings.Contains(prompt, "total for Food, 2024-05-01 to 2024-05-31: 350.00") {
		t.Errorf("aggregate line missing or wrong:\n%s", prompt)
	}
	if !strings.Contains(prompt, "transactions in evidence: 2, combined amount: 350.00") {
		t.Errorf("breakdown line missing:\n%s", prompt)
	}
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	evCtx := evidenceContext(-20000)

	var history []domain.ConversationTurn
	for i := 0; i < 10; i++ {
		history = append(history,
			domain.ConversationTurn{Role: domain.RoleUser, Content: "question " + string(rune('a'+i))},
			domain.ConversationTurn{Role: domain.RoleAssistant, Content: "answer " + string(rune('a'+i))},
		)
	}

	prompt := buildPrompt("and now?", evCtx, history, 4)

	if strings.Contains(prompt, "question a") {
		t.Error("old history leaked past the window")
	}
	if !strings.Contains(prompt, "answer j") {
		t.Error("latest history turn missing")
	}
	if !strings.Contains(prompt, "User:") || !strings.Contains(prompt, "Assistant:") {
		t.Error("history turns missing role labels")
	}
}

func TestBuildPromptOpenVocabularyCategories(t *testing.T) {
	evCtx := evidenceContext(-20000)
	evCtx.Evidence = append(evCtx.Evidence, domain.RetrievedEvidence{
		Ref:  domain.TransactionRef("z"),
		Kind: domain.EvidenceTransaction,
		Transaction: &domain.Transaction{
			ID:          "z",
			AmountMinor: -5000,
			Category:    "Alpaca Grooming",
			OccurredAt:  time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC),
		},
	})

	prompt := buildPrompt("how much?", evCtx, nil, DefaultHistoryWindow)
	if !strings.Contains(prompt, "Alpaca Grooming: 50.00") {
		t.Errorf("non-canonical category missing from breakdown:\n%s", prompt)
	}
}
