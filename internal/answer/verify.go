package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

var (
	dateRe   = regexp.MustCompile(`\b\d{4}-\d{2}(-\d{2})?\b`)
	figureRe = regexp.MustCompile(`[$₹£€]?\s?\d+(?:,\d{3})*(?:\.\d+)?`)
	yearRe   = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// verifyFigures scans the generated text for currency figures and checks each
// one against the amounts present in the evidence and the computed
// aggregates. It returns the figures that could not be traced to evidence.
// Dates and bare years are not treated as claims.
func verifyFigures(text string, evCtx *assembler.Context) []string {
	allowed := allowedFigures(evCtx)

	scrubbed := dateRe.ReplaceAllString(text, "")

	var unverified []string
	seen := map[string]bool{}
	for _, raw := range figureRe.FindAllString(scrubbed, -1) {
		figure := normalizeFigure(raw)
		if figure == "" || yearRe.MatchString(figure) {
			continue
		}
		if allowed[figure] || seen[figure] {
			continue
		}
		seen[figure] = true
		unverified = append(unverified, figure)
	}
	return unverified
}

// allowedFigures collects every figure the model may legitimately echo: each
// evidence transaction amount, each aggregate value, and the evidence totals
// from the statistics block.
func allowedFigures(evCtx *assembler.Context) map[string]bool {
	allowed := map[string]bool{}

	addMinor := func(minor int64) {
		if minor < 0 {
			minor = -minor
		}
		full := domain.FormatAmount(minor) // "350.00"
		allowed[full] = true
		allowed[strings.TrimSuffix(full, ".00")] = true // "350"
	}

	var total int64
	count := 0
	for _, e := range evCtx.Evidence {
		if e.Kind != domain.EvidenceTransaction || e.Transaction == nil {
			continue
		}
		amount := e.Transaction.AmountMinor
		addMinor(amount)
		if amount < 0 {
			amount = -amount
		}
		total += amount
		count++
	}
	if count > 0 {
		addMinor(total)
		allowed[strconv.Itoa(count)] = true
	}

	for _, agg := range evCtx.Aggregates {
		if agg.Op == domain.AggregateCount {
			allowed[strconv.FormatInt(agg.Value, 10)] = true
			continue
		}
		addMinor(agg.Value)
	}

	return allowed
}

// normalizeFigure strips currency symbols, whitespace, and thousand
// separators so "₹1,234.50" and "1234.50" compare equal.
func normalizeFigure(raw string) string {
	s := strings.TrimLeft(raw, "$₹£€ ")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	return s
}
