package sqlite

import (
	"context"
	"fmt"
	"time"

	"tradesim/internal/model"
)

// Transactions returns the account's transactions, newest first. A
// positive limit returns only the most recent limit rows.
func (s *Store) Transactions(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	query := `
		SELECT id, amount, direction, category, description, date
		FROM transactions WHERE account_id = ?
		ORDER BY seq DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var (
			t    model.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &t.Amount, &t.Direction, &t.Category, &t.Description, &date); err != nil {
			return nil, fmt.Errorf("sqlite scan transaction: %w", err)
		}
		if t.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, fmt.Errorf("sqlite transaction %s: date: %w", t.ID, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
