// Package assembler executes a retrieval plan and squeezes the results into a
// token-bounded context for the answer generator.
package assembler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/embedding"
	"github.com/dvloznov/finance-assistant/internal/indexer"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
)

// DefaultTokenBudget bounds the evidence context handed to the model.
const DefaultTokenBudget = 2000

// TransactionReader is the read facade over the transaction ledger the
// assembler consumes. The BigQuery repository implements it.
type TransactionReader interface {
	FindTransactions(ctx context.Context, userID string, f domain.Filter, limit int) ([]*domain.Transaction, error)
	AggregateTransactions(ctx context.Context, userID string, f domain.Filter, op domain.AggregateOp) (int64, error)
}

// AggregateResult is one computed aggregation, carried alongside the evidence
// so the answer generator can state and verify exact figures.
type AggregateResult struct {
	Op     domain.AggregateOp
	Filter domain.Filter
	// Value is minor units for sum and avg, a plain count for count.
	Value    int64
	SubQuery int
}

// Context is the assembled, bounded evidence set for one question.
type Context struct {
	Evidence   []domain.RetrievedEvidence
	Aggregates []AggregateResult
	Truncated  bool
}

// Assembler runs sub-queries against the ledger and the vector index. All
// retrieval is scoped by the requesting user id; there is no unscoped path.
type Assembler struct {
	reader   TransactionReader
	index    vectorindex.Index
	embedder embedding.Embedder
	log      zerolog.Logger
}

// New creates an assembler around the injected collaborator handles.
func New(reader TransactionReader, index vectorindex.Index, embedder embedding.Embedder, log zerolog.Logger) *Assembler {
	return &Assembler{
		reader:   reader,
		index:    index,
		embedder: embedder,
		log:      log,
	}
}

// Assemble executes the plan in order: structured sub-queries first (exact,
// deterministic), then semantic ones. Semantic results already covered by a
// structured result are dropped by source id. The union is ranked structured
// before semantic, within each kind by recency then score, and truncated to
// the token budget.
//
// If the vector index or embedder is down but structured evidence exists, the
// semantic side is skipped and the structured context is returned on its own.
func (a *Assembler) Assemble(ctx context.Context, subs []domain.SubQuery, userID string, tokenBudget int) (*Context, error) {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	out := &Context{}
	seenSources := make(map[string]bool)

	var structured, semantic []domain.RetrievedEvidence

	for i, sq := range subs {
		if sq.Kind != domain.SubQueryStructured {
			continue
		}
		txs, err := a.reader.FindTransactions(ctx, userID, sq.Filter, sq.Limit)
		if err != nil {
			return nil, fmt.Errorf("Assemble: structured sub-query %d: %w", i, err)
		}
		for _, t := range txs {
			if seenSources[t.ID] {
				continue
			}
			seenSources[t.ID] = true
			structured = append(structured, domain.RetrievedEvidence{
				Ref:         domain.TransactionRef(t.ID),
				Kind:        domain.EvidenceTransaction,
				Transaction: t,
				Score:       1.0,
				SubQuery:    i,
			})
		}

		if sq.Aggregate != "" {
			value, err := a.reader.AggregateTransactions(ctx, userID, sq.Filter, sq.Aggregate)
			if err != nil {
				return nil, fmt.Errorf("Assemble: aggregate sub-query %d: %w", i, err)
			}
			out.Aggregates = append(out.Aggregates, AggregateResult{
				Op:       sq.Aggregate,
				Filter:   sq.Filter,
				Value:    value,
				SubQuery: i,
			})
		}
	}

	seenChunks := make(map[string]bool)
	for i, sq := range subs {
		if sq.Kind != domain.SubQuerySemantic || sq.Query == "" || sq.Limit <= 0 {
			continue
		}
		results, err := a.searchSemantic(ctx, sq, userID)
		if err != nil {
			if len(structured) > 0 {
				a.log.Warn().Err(err).Int("sub_query", i).Msg("Semantic retrieval unavailable, continuing with structured evidence")
				continue
			}
			return nil, fmt.Errorf("Assemble: semantic sub-query %d: %w", i, err)
		}
		for _, r := range results {
			if seenSources[r.Chunk.SourceID] || seenChunks[r.Chunk.ID] {
				continue
			}
			seenChunks[r.Chunk.ID] = true
			chunk := r.Chunk
			semantic = append(semantic, domain.RetrievedEvidence{
				Ref:      chunk.Ref(),
				Kind:     domain.EvidenceChunk,
				Chunk:    &chunk,
				Score:    r.Score,
				SubQuery: i,
			})
		}
	}

	rank(structured)
	rank(semantic)

	ranked := append(structured, semantic...)

	used := 0
	for _, e := range ranked {
		cost := indexer.EstimateTokens(evidenceText(e))
		if used+cost > tokenBudget {
			out.Truncated = true
			break
		}
		used += cost
		out.Evidence = append(out.Evidence, e)
	}

	return out, nil
}

func (a *Assembler) searchSemantic(ctx context.Context, sq domain.SubQuery, userID string) ([]vectorindex.Result, error) {
	vector, err := a.embedder.Embed(ctx, sq.Query)
	if err != nil {
		return nil, err
	}
	return a.index.Search(ctx, vector, userID, sq.Limit)
}

// rank orders evidence by recency descending, then relevance score, then ref
// for a stable result.
func rank(evidence []domain.RetrievedEvidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		ti, tj := evidence[i].OccurredAt(), evidence[j].OccurredAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		return evidence[i].Ref < evidence[j].Ref
	})
}

// evidenceText is the textual form an evidence item takes in the prompt; the
// budget is measured against it.
func evidenceText(e domain.RetrievedEvidence) string {
	if e.Kind == domain.EvidenceTransaction && e.Transaction != nil {
		return indexer.TransactionSentence(e.Transaction)
	}
	if e.Chunk != nil {
		return e.Chunk.Text
	}
	return ""
}

// EvidenceText exposes the prompt form of an evidence item to the answer
// generator so both sides measure the same text.
func EvidenceText(e domain.RetrievedEvidence) string {
	return evidenceText(e)
}
