package domain

import (
	"time"
)

// SubQueryKind discriminates the two retrieval strategies a planned sub-query
// can use. Unrecognized filter text degrades to the semantic kind rather than
// failing the plan.
type SubQueryKind string

const (
	SubQueryStructured SubQueryKind = "structured"
	SubQuerySemantic   SubQueryKind = "semantic"
)

// AggregateOp is an aggregation over filtered transactions.
type AggregateOp string

const (
	AggregateSum   AggregateOp = "sum"
	AggregateAvg   AggregateOp = "avg"
	AggregateCount AggregateOp = "count"
)

// AmountCmpOp compares a transaction amount against a threshold.
type AmountCmpOp string

const (
	AmountGT AmountCmpOp = "gt"
	AmountLT AmountCmpOp = "lt"
)

// AmountFilter restricts transactions by absolute amount in minor units.
type AmountFilter struct {
	Op    AmountCmpOp
	Minor int64
}

// Filter is a structured restriction over the transaction ledger. Zero
// time values mean the corresponding bound is open.
type Filter struct {
	Category string
	DateFrom time.Time
	DateTo   time.Time
	Amount   *AmountFilter
}

// IsZero reports whether no restriction was extracted at all.
func (f Filter) IsZero() bool {
	return f.Category == "" && f.DateFrom.IsZero() && f.DateTo.IsZero() && f.Amount == nil
}

// SubQuery is one concrete retrieval step derived from a question. It is
// transient: planned, executed, and kept only on the user's conversation turn
// so a follow-up question can inherit its filters.
type SubQuery struct {
	Kind SubQueryKind

	// Structured fields.
	Filter    Filter
	Aggregate AggregateOp // empty when the sub-query only lists transactions

	// Semantic fields.
	Query string

	Limit int
}

// EvidenceKind tags which side of the union a retrieved item came from.
type EvidenceKind string

const (
	EvidenceTransaction EvidenceKind = "transaction"
	EvidenceChunk       EvidenceKind = "chunk"
)

// RetrievedEvidence is one item retrieved to ground an answer: either a
// transaction projection or a document chunk, with a relevance score and the
// index of the sub-query that produced it (provenance).
type RetrievedEvidence struct {
	Ref         string
	Kind        EvidenceKind
	Transaction *Transaction
	Chunk       *DocumentChunk
	Score       float64
	SubQuery    int
}

// SourceID returns the source identity used for cross-sub-query
// deduplication: the transaction id itself, or the chunk's parent source.
func (e RetrievedEvidence) SourceID() string {
	if e.Kind == EvidenceTransaction && e.Transaction != nil {
		return e.Transaction.ID
	}
	if e.Chunk != nil {
		return e.Chunk.SourceID
	}
	return ""
}

// OccurredAt returns the recency key used for ranking. Chunks fall back to
// their creation time.
func (e RetrievedEvidence) OccurredAt() time.Time {
	if e.Kind == EvidenceTransaction && e.Transaction != nil {
		return e.Transaction.OccurredAt
	}
	if e.Chunk != nil {
		return e.Chunk.CreatedAt
	}
	return time.Time{}
}
