package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Repository is the BigQuery-backed structured data accessor. It holds one
// shared client and delegates to the *WithClient functions, so the same
// operations stay callable with an externally-managed client.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a repository for the given project and dataset.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close releases the underlying client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertTransaction writes one transaction to the ledger.
func (r *Repository) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, []*TransactionRow{RowFromTransaction(t)})
}

// FindTransactions returns the user's transactions matching the filter,
// ordered by occurred_at descending with id tiebreak.
func (r *Repository) FindTransactions(ctx context.Context, userID string, f domain.Filter, limit int) ([]*domain.Transaction, error) {
	rows, err := FindTransactionsWithClient(ctx, r.client, r.dataset, userID, f, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, len(rows))
	for i, row := range rows {
		out[i] = row.ToTransaction()
	}
	return out, nil
}

// AggregateTransactions computes sum|avg|count over the filtered ledger.
func (r *Repository) AggregateTransactions(ctx context.Context, userID string, f domain.Filter, op domain.AggregateOp) (int64, error) {
	return AggregateTransactionsWithClient(ctx, r.client, r.dataset, userID, f, op)
}

// GetTransaction fetches one transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	row, err := GetTransactionWithClient(ctx, r.client, r.dataset, userID, transactionID)
	if err != nil {
		return nil, err
	}
	return row.ToTransaction(), nil
}

// DeleteTransaction removes one transaction by id. Missing ids are a no-op.
func (r *Repository) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	return DeleteTransactionWithClient(ctx, r.client, r.dataset, userID, transactionID)
}
