// Package planner turns a natural-language question into an ordered retrieval
// plan: structured sub-queries against the ledger first, then semantic
// sub-queries against the vector index. Anything the structured parse cannot
// resolve degrades to semantic lookup instead of failing.
package planner

import (
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Default result limits per sub-query kind.
const (
	DefaultStructuredLimit = 20
	DefaultSemanticLimit   = 8
)

var amountCmpRe = regexp.MustCompile(`(over|above|more than|greater than|under|below|less than)\s+[$₹£€]?\s?(\d+(?:\.\d+)?)`)

// Planner derives sub-queries from questions and conversation history. The
// clock is injectable so relative date parsing is testable.
type Planner struct {
	now             func() time.Time
	structuredLimit int
	semanticLimit   int
}

// New creates a planner with the wall clock and default limits.
func New() *Planner {
	return NewWithClock(time.Now)
}

// NewWithClock creates a planner with a fixed clock, used by tests.
func NewWithClock(now func() time.Time) *Planner {
	return &Planner{
		now:             now,
		structuredLimit: DefaultStructuredLimit,
		semanticLimit:   DefaultSemanticLimit,
	}
}

// Plan classifies the question's intent and derives concrete sub-queries.
// Aggregation sub-queries always precede semantic ones: structured data is
// cheaper and more precise, and it seeds the semantic query text when the
// question carries no independent terms.
func (p *Planner) Plan(question string, history []domain.ConversationTurn) []domain.SubQuery {
	raw := strings.TrimSpace(question)
	q := strings.ToLower(raw)
	if raw == "" {
		return []domain.SubQuery{p.semantic(raw)}
	}

	filter, monthNoYear := p.parseFilter(q)
	op, hasAgg := aggregateIntent(q)
	wantsLookup := lookupIntent(q)

	// Follow-up resolution: substitute entities and date ranges from the most
	// recent prior turn's sub-queries before classifying.
	if isFollowUp(q) {
		if prior, ok := lastPlannedFilter(history); ok {
			if monthNoYear && !prior.DateFrom.IsZero() {
				r := MonthRange(prior.DateFrom.Year(), filter.DateFrom.Month())
				filter.DateFrom, filter.DateTo = r.From, r.To
			}
			if filter.Category == "" {
				filter.Category = prior.Filter.Category
			}
			if filter.DateFrom.IsZero() && filter.DateTo.IsZero() {
				filter.DateFrom, filter.DateTo = prior.Filter.DateFrom, prior.Filter.DateTo
			}
			if filter.Amount == nil {
				filter.Amount = prior.Filter.Amount
			}
			if !hasAgg && prior.Aggregate != "" {
				op, hasAgg = prior.Aggregate, true
			}
		}
	}

	independent := independentTerms(q)

	var subs []domain.SubQuery
	switch {
	case hasAgg && !filter.IsZero():
		subs = append(subs, domain.SubQuery{
			Kind:      domain.SubQueryStructured,
			Filter:    filter,
			Aggregate: op,
			Limit:     p.structuredLimit,
		})
		if wantsLookup || independent != "" {
			// Hybrid: the question also asks for something the ledger filter
			// cannot express.
			subs = append(subs, p.semantic(raw))
		}
	case !hasAgg && !filter.IsZero():
		// Filtered listing plus a semantic pass, ranked together downstream.
		subs = append(subs, domain.SubQuery{
			Kind:   domain.SubQueryStructured,
			Filter: filter,
			Limit:  p.structuredLimit,
		})
		query := raw
		if independent == "" {
			query = seedQuery(filter)
		}
		subs = append(subs, domain.SubQuery{
			Kind:  domain.SubQuerySemantic,
			Query: query,
			Limit: p.semanticLimit,
		})
	default:
		// Pure lookup, or an aggregation whose filters could not be resolved:
		// semantic search over the chunks (transaction sentences included).
		subs = append(subs, p.semantic(raw))
	}
	return subs
}

func (p *Planner) semantic(query string) domain.SubQuery {
	return domain.SubQuery{
		Kind:  domain.SubQuerySemantic,
		Query: query,
		Limit: p.semanticLimit,
	}
}

// parseFilter extracts category, date range, and amount comparator from the
// lowercased question.
func (p *Planner) parseFilter(q string) (domain.Filter, bool) {
	var f domain.Filter

	for _, word := range strings.Fields(q) {
		term := strings.Trim(word, ".,?!;:'\"")
		if cat, ok := domain.CanonicalCategory(term); ok {
			f.Category = cat
			break
		}
	}

	rng, matched, monthNoYear := ParseDateRange(q, p.now())
	if matched {
		f.DateFrom, f.DateTo = rng.From, rng.To
	}

	if m := amountCmpRe.FindStringSubmatch(q); m != nil {
		minor, err := domain.ParseAmount(m[2])
		if err == nil {
			op := domain.AmountGT
			switch m[1] {
			case "under", "below", "less than":
				op = domain.AmountLT
			}
			f.Amount = &domain.AmountFilter{Op: op, Minor: minor}
		}
	}

	return f, monthNoYear
}

// plannedStructured is the structured part of a prior turn's plan.
type plannedStructured struct {
	Filter    domain.Filter
	Aggregate domain.AggregateOp
	DateFrom  time.Time
}

// lastPlannedFilter walks history backwards for the most recent user turn
// that produced a structured sub-query.
func lastPlannedFilter(history []domain.ConversationTurn) (plannedStructured, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		if turn.Role != domain.RoleUser {
			continue
		}
		for _, sq := range turn.SubQueries {
			if sq.Kind == domain.SubQueryStructured {
				return plannedStructured{
					Filter:    sq.Filter,
					Aggregate: sq.Aggregate,
					DateFrom:  sq.Filter.DateFrom,
				}, true
			}
		}
	}
	return plannedStructured{}, false
}

var followUpPrefixes = []string{"and ", "what about", "how about", "same for", "also "}

// isFollowUp detects an unresolved referent that needs the prior turn's plan.
func isFollowUp(q string) bool {
	for _, prefix := range followUpPrefixes {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

var sumKeywords = []string{"how much", "total", "sum", "spend", "spent", "spending", "cost"}
var avgKeywords = []string{"average", "avg", "mean"}
var countKeywords = []string{"how many", "count", "number of"}

func aggregateIntent(q string) (domain.AggregateOp, bool) {
	for _, k := range countKeywords {
		if strings.Contains(q, k) {
			return domain.AggregateCount, true
		}
	}
	for _, k := range avgKeywords {
		if strings.Contains(q, k) {
			return domain.AggregateAvg, true
		}
	}
	for _, k := range sumKeywords {
		if strings.Contains(q, k) {
			return domain.AggregateSum, true
		}
	}
	return "", false
}

var lookupKeywords = []string{
	"what was", "which", "find", "show", "tell me", "describe",
	"search", "purchase", "receipt", "statement", "biggest", "largest", "big",
}

func lookupIntent(q string) bool {
	for _, k := range lookupKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// filterStopwords are words the structured parse already accounts for, plus
// grammatical filler. Whatever survives is an independent semantic term.
var filterStopwords = map[string]bool{
	"i": true, "me": true, "my": true, "we": true, "you": true,
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"on": true, "in": true, "at": true, "of": true, "for": true, "to": true,
	"did": true, "do": true, "was": true, "is": true, "are": true, "have": true,
	"how": true, "much": true, "many": true, "what": true, "when": true,
	"and": true, "or": true, "about": true, "all": true,
	"spend": true, "spent": true, "spending": true, "total": true, "sum": true,
	"average": true, "avg": true, "count": true, "number": true, "cost": true,
	"last": true, "past": true, "month": true, "months": true,
	"week": true, "weeks": true, "year": true, "years": true, "day": true,
	"days": true, "today": true, "yesterday": true,
	"over": true, "above": true, "under": true, "below": true, "more": true,
	"less": true, "than": true, "greater": true,
}

func independentTerms(q string) string {
	var kept []string
	for _, word := range strings.Fields(q) {
		term := strings.Trim(word, ".,?!;:'\"")
		if term == "" || filterStopwords[term] {
			continue
		}
		if _, isCategory := domain.CanonicalCategory(term); isCategory {
			continue
		}
		if _, isMonth := months[term]; isMonth {
			continue
		}
		if yearRe.MatchString(term) || isNumeric(term) {
			continue
		}
		kept = append(kept, term)
	}
	return strings.Join(kept, " ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '$' {
			return false
		}
	}
	return len(s) > 0
}

// seedQuery builds semantic query text from structured filters when the
// question itself has no independent terms.
func seedQuery(f domain.Filter) string {
	parts := []string{}
	if f.Category != "" {
		parts = append(parts, f.Category)
	}
	parts = append(parts, "transactions")
	if !f.DateFrom.IsZero() {
		parts = append(parts, f.DateFrom.Format("January 2006"))
	}
	return strings.Join(parts, " ")
}
