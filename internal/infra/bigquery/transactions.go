package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// TransactionRow maps the ledger.transactions table. Amounts are NUMERIC in
// major currency units; the domain works in minor units, so the conversions
// below go through *big.Rat exactly, never through float64.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID string `bigquery:"user_id"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Category    string `bigquery:"category"`    // REQUIRED STRING (open vocabulary)
	Description string `bigquery:"description"` // REQUIRED STRING

	OccurredAt time.Time `bigquery:"occurred_at"` // REQUIRED TIMESTAMP

	Source           string              `bigquery:"source"`             // manual | document
	SourceDocumentID bigquery.NullString `bigquery:"source_document_id"` // NULLABLE

	CreatedAt time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// minorPerMajor is the NUMERIC scale between minor and major units.
var minorPerMajor = big.NewRat(100, 1)

// RowFromTransaction converts a domain transaction into its table row.
func RowFromTransaction(t *domain.Transaction) *TransactionRow {
	amount := new(big.Rat).Quo(big.NewRat(t.AmountMinor, 1), minorPerMajor)

	row := &TransactionRow{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Amount:        amount,
		Currency:      t.Currency,
		Category:      t.Category,
		Description:   t.Description,
		OccurredAt:    t.OccurredAt,
		Source:        string(t.Source),
		CreatedAt:     t.CreatedAt,
	}
	if t.SourceDocumentID != "" {
		row.SourceDocumentID = bigquery.NullString{StringVal: t.SourceDocumentID, Valid: true}
	}
	return row
}

// ToTransaction converts a table row back into the domain type.
func (r *TransactionRow) ToTransaction() *domain.Transaction {
	t := &domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		AmountMinor: ratToMinor(r.Amount),
		Currency:    r.Currency,
		Category:    r.Category,
		Description: r.Description,
		OccurredAt:  r.OccurredAt,
		Source:      domain.TransactionSource(r.Source),
		CreatedAt:   r.CreatedAt,
	}
	if r.SourceDocumentID.Valid {
		t.SourceDocumentID = r.SourceDocumentID.StringVal
	}
	return t
}

// ratToMinor converts a NUMERIC major-unit amount into minor units, rounding
// half away from zero.
func ratToMinor(amount *big.Rat) int64 {
	if amount == nil {
		return 0
	}
	scaled := new(big.Rat).Mul(amount, minorPerMajor)

	num := new(big.Int).Abs(scaled.Num())
	den := scaled.Denom()
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))

	// Round the fractional remainder.
	if rem.Mul(rem, big.NewInt(2)).Cmp(den) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if scaled.Sign() < 0 {
		quo.Neg(quo)
	}
	return quo.Int64()
}
