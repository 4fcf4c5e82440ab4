package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

const transactionsTable = "transactions"

// InsertTransactionsWithClient streams a batch of rows into the transactions
// table using the provided client.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// FindTransactionsWithClient queries the ledger for one user with the given
// structured filter. Results are ordered by occurred_at descending, ties
// broken by transaction id, so retrieval is deterministic.
func FindTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string, f domain.Filter, limit int) ([]*TransactionRow, error) {
	where, params := filterClauses(userID, f)

	sql := fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			amount,
			currency,
			category,
			description,
			occurred_at,
			source,
			source_document_id,
			created_ts
		FROM %s.%s
		WHERE %s
		ORDER BY occurred_at DESC, transaction_id
	`, dataset, transactionsTable, strings.Join(where, "\n		  AND "))

	if limit > 0 {
		sql += fmt.Sprintf("\n		LIMIT %d", limit)
	}

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FindTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// AggregateTransactionsWithClient computes sum, avg, or count over the
// filtered transactions. Sum and avg are returned in minor units (avg rounded
// to the canonical scale); count is a plain count.
func AggregateTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string, f domain.Filter, op domain.AggregateOp) (int64, error) {
	where, params := filterClauses(userID, f)

	var expr string
	switch op {
	case domain.AggregateSum:
		expr = "SUM(amount)"
	case domain.AggregateAvg:
		expr = "AVG(amount)"
	case domain.AggregateCount:
		expr = "COUNT(*)"
	default:
		return 0, fmt.Errorf("AggregateTransactions: unknown op %q", op)
	}

	sql := fmt.Sprintf(`
		SELECT %s AS value
		FROM %s.%s
		WHERE %s
	`, expr, dataset, transactionsTable, strings.Join(where, "\n		  AND "))

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("AggregateTransactions: query read: %w", err)
	}

	if op == domain.AggregateCount {
		var row struct {
			Value int64 `bigquery:"value"`
		}
		if err := it.Next(&row); err != nil && err != iterator.Done {
			return 0, fmt.Errorf("AggregateTransactions: iter next: %w", err)
		}
		return row.Value, nil
	}

	var row struct {
		Value *big.Rat `bigquery:"value"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("AggregateTransactions: iter next: %w", err)
	}
	return ratToMinor(row.Value), nil
}

// DeleteTransactionWithClient removes one transaction by id. Deleting a
// missing id is not an error; the DML simply affects zero rows.
func DeleteTransactionWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, transactionID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE user_id = @user_id
		  AND transaction_id = @transaction_id
	`, dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: transactionID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: running delete: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("DeleteTransaction: job error: %w", err)
	}
	return nil
}

// GetTransactionWithClient fetches one transaction by id, scoped to its user.
func GetTransactionWithClient(ctx context.Context, client *bigquery.Client, dataset, userID, transactionID string) (*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			amount,
			currency,
			category,
			description,
			occurred_at,
			source,
			source_document_id,
			created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		  AND transaction_id = @transaction_id
	`, dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: transactionID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: query read: %w", err)
	}

	var r TransactionRow
	if err := it.Next(&r); err != nil {
		if err == iterator.Done {
			return nil, fmt.Errorf("GetTransaction: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetTransaction: iter next: %w", err)
	}
	return &r, nil
}

// filterClauses builds the WHERE clauses and parameters for a scoped filter.
// Every query is scoped by user_id; the engine never retrieves without one.
func filterClauses(userID string, f domain.Filter) ([]string, []bigquery.QueryParameter) {
	where := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	if f.Category != "" {
		where = append(where, "LOWER(category) = LOWER(@category)")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}
	if !f.DateFrom.IsZero() {
		where = append(where, "occurred_at >= @date_from")
		params = append(params, bigquery.QueryParameter{Name: "date_from", Value: f.DateFrom})
	}
	if !f.DateTo.IsZero() {
		where = append(where, "occurred_at < @date_to")
		params = append(params, bigquery.QueryParameter{Name: "date_to", Value: f.DateTo})
	}
	if f.Amount != nil {
		threshold := new(big.Rat).Quo(big.NewRat(f.Amount.Minor, 1), minorPerMajor)
		switch f.Amount.Op {
		case domain.AmountGT:
			where = append(where, "ABS(amount) > @amount_threshold")
		case domain.AmountLT:
			where = append(where, "ABS(amount) < @amount_threshold")
		}
		params = append(params, bigquery.QueryParameter{Name: "amount_threshold", Value: threshold})
	}

	return where, params
}
