package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

const systemInstructions = "You are a personal finance assistant.\n" +
	"Answer the user's question using ONLY the evidence items below.\n" +
	"Each evidence item is tagged with a reference id in square brackets.\n" +
	"Cite the reference ids of the items you relied on.\n" +
	"If the evidence does not contain the answer, say so plainly.\n" +
	"Never invent amounts, dates, or merchants that are not in the evidence.\n" +
	"Keep the answer concise and friendly.\n"

const truncatedInstruction = "The evidence was truncated to fit the context budget, " +
	"so it may be incomplete. Hedge accordingly, and suggest the user narrow " +
	"the question if the answer looks partial.\n"

// buildPrompt lays out system instructions, tagged evidence, aggregate
// statistics, the recent conversation window, and the question.
func buildPrompt(question string, evCtx *assembler.Context, history []domain.ConversationTurn, historyWindow int) string {
	var b strings.Builder

	b.WriteString(systemInstructions)
	if evCtx.Truncated {
		b.WriteString(truncatedInstruction)
	}

	b.WriteString("\nEvidence:\n")
	for _, e := range evCtx.Evidence {
		b.WriteString("[" + e.Ref + "] " + assembler.EvidenceText(e) + "\n")
	}

	if len(evCtx.Aggregates) > 0 || hasTransactionEvidence(evCtx) {
		b.WriteString("\nStatistics (computed from your records, safe to quote):\n")
		for _, agg := range evCtx.Aggregates {
			b.WriteString("- " + describeAggregate(agg) + "\n")
		}
		writeBreakdown(&b, evCtx)
	}

	if historyWindow > 0 && len(history) > 0 {
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		b.WriteString("\nRecent conversation:\n")
		for _, turn := range history[start:] {
			role := "User"
			if turn.Role == domain.RoleAssistant {
				role = "Assistant"
			}
			b.WriteString(role + ": " + turn.Content + "\n")
		}
	}

	b.WriteString("\nQuestion: " + question + "\n")
	return b.String()
}

func describeAggregate(agg assembler.AggregateResult) string {
	scope := describeFilter(agg.Filter)
	// Spending sums come back negative from the ledger; the statistics block
	// speaks in magnitudes, same as the verifier.
	value := agg.Value
	if value < 0 {
		value = -value
	}
	switch agg.Op {
	case domain.AggregateCount:
		return fmt.Sprintf("count of %s: %d", scope, value)
	case domain.AggregateAvg:
		return fmt.Sprintf("average amount for %s: %s", scope, domain.FormatAmount(value))
	default:
		return fmt.Sprintf("total for %s: %s", scope, domain.FormatAmount(value))
	}
}

func describeFilter(f domain.Filter) string {
	parts := []string{}
	if f.Category != "" {
		parts = append(parts, f.Category)
	} else {
		parts = append(parts, "all transactions")
	}
	if !f.DateFrom.IsZero() {
		to := f.DateTo.AddDate(0, 0, -1)
		parts = append(parts, f.DateFrom.Format("2006-01-02")+" to "+to.Format("2006-01-02"))
	}
	return strings.Join(parts, ", ")
}

func hasTransactionEvidence(evCtx *assembler.Context) bool {
	for _, e := range evCtx.Evidence {
		if e.Kind == domain.EvidenceTransaction {
			return true
		}
	}
	return false
}

// writeBreakdown adds total and per-category spend over the transaction
// evidence, mirroring what the ledger itself would report for the same set.
func writeBreakdown(b *strings.Builder, evCtx *assembler.Context) {
	var total int64
	perCategory := map[string]int64{}
	count := 0
	for _, e := range evCtx.Evidence {
		if e.Kind != domain.EvidenceTransaction || e.Transaction == nil {
			continue
		}
		amount := e.Transaction.AmountMinor
		if amount < 0 {
			amount = -amount
		}
		total += amount
		perCategory[e.Transaction.Category] += amount
		count++
	}
	if count == 0 {
		return
	}

	fmt.Fprintf(b, "- transactions in evidence: %d, combined amount: %s\n", count, domain.FormatAmount(total))
	for _, cat := range domain.Categories {
		if v, ok := perCategory[cat]; ok {
			fmt.Fprintf(b, "- %s: %s\n", cat, domain.FormatAmount(v))
			delete(perCategory, cat)
		}
	}
	// Storage is open-vocabulary, so list whatever categories remain too.
	rest := make([]string, 0, len(perCategory))
	for cat := range perCategory {
		rest = append(rest, cat)
	}
	sort.Strings(rest)
	for _, cat := range rest {
		fmt.Fprintf(b, "- %s: %s\n", cat, domain.FormatAmount(perCategory[cat]))
	}
}
