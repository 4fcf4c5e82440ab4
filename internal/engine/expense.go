package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// CannotParseExpenseMessage is the fixed reply when the extraction model
// could not read an expense out of the message.
const CannotParseExpenseMessage = "I couldn't understand the expense details. " +
	"Please include the amount, category, and what it was for, e.g. " +
	"\"Add 500 in Food for lunch\"."

const extractMaxTokens = 256

var expenseKeywords = []string{"add ", "spent ", "bought ", "paid "}
var questionPrefixes = []string{"how", "what", "which", "when", "where", "why", "did", "have", "show"}

// isExpenseCommand distinguishes "I spent 200 on transport" (capture) from
// "how much have I spent?" (query). Questions always go to retrieval.
func isExpenseCommand(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if strings.Contains(q, "?") {
		return false
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(q, prefix) {
			return false
		}
	}
	for _, k := range expenseKeywords {
		if strings.HasPrefix(q, strings.TrimSpace(k)+" ") || strings.Contains(q, " "+k) {
			return true
		}
	}
	return false
}

const expenseExtractionPrompt = `You are a financial assistant that extracts expense information from natural language.

Extract the following from the user's message:
- amount (as a number, no currency symbols)
- category (must be one of: %s)
- description (brief description of the expense)

Respond ONLY with a valid JSON object in this exact format:
{"amount": <number>, "category": "<category>", "description": "<description>"}

If you cannot extract the information, respond with:
{"error": "unable to parse expense"}

Return ONLY raw JSON. Do not wrap the response in code fences.

User message: %s`

type extractedExpense struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Error       string      `json:"error"`
}

// captureExpense asks the model for a structured parse of the message, then
// inserts and indexes the resulting transaction.
func (e *Engine) captureExpense(ctx context.Context, userID, message string) (string, error) {
	prompt := fmt.Sprintf(expenseExtractionPrompt, strings.Join(domain.Categories, ", "), message)

	raw, err := e.model.Complete(ctx, prompt, extractMaxTokens)
	if err != nil {
		e.log.Error().Err(err).Msg("Expense extraction model call failed")
		return CannotParseExpenseMessage, nil
	}

	var parsed extractedExpense
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		e.log.Warn().Str("raw", raw).Msg("Expense extraction returned unparseable JSON")
		return CannotParseExpenseMessage, nil
	}
	if parsed.Error != "" || parsed.Amount == "" || parsed.Description == "" {
		return CannotParseExpenseMessage, nil
	}

	amount, err := decimal.NewFromString(parsed.Amount.String())
	if err != nil || amount.IsZero() {
		return CannotParseExpenseMessage, nil
	}

	category := strings.TrimSpace(parsed.Category)
	if !domain.ValidCategory(category) {
		category = "Other"
	}

	// Captured expenses are spending, stored negative like any other outflow.
	t := &domain.Transaction{
		UserID:      userID,
		AmountMinor: -domain.AmountFromDecimal(amount.Abs()),
		Category:    category,
		Description: parsed.Description,
		OccurredAt:  time.Now().UTC(),
		Source:      domain.SourceManual,
	}
	if err := e.AddTransaction(ctx, t); err != nil {
		return "", fmt.Errorf("captureExpense: %w", err)
	}

	return fmt.Sprintf("Added %s in %s for %q.",
		domain.FormatAmount(-t.AmountMinor), t.Category, t.Description), nil
}

// cleanModelJSON strips markdown fences and surrounding prose if the model
// ignored the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Keep only the outermost JSON object.
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
