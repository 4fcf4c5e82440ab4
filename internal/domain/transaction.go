package domain

import (
	"time"
)

// TransactionSource says where a transaction came from: entered by hand or
// parsed out of an uploaded document.
type TransactionSource string

const (
	SourceManual   TransactionSource = "manual"
	SourceDocument TransactionSource = "document"
)

// Transaction represents one normalized ledger entry. Amounts are stored as
// signed minor currency units (e.g. cents) so aggregation stays exact; use the
// helpers in money.go to convert to and from decimal values.
// A transaction is immutable once indexed except for an explicit edit, which
// re-triggers indexing of its derived chunk.
type Transaction struct {
	ID          string
	UserID      string
	AmountMinor int64  // signed, minor currency units
	Currency    string // ISO code; one canonical currency per ledger
	Category    string
	Description string
	OccurredAt  time.Time
	Source      TransactionSource

	// SourceDocumentID links back to the uploaded document when Source is
	// SourceDocument; empty for manual entries.
	SourceDocumentID string

	CreatedAt time.Time
}
