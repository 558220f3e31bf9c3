// Package sqlite persists accounts to a local SQLite database in WAL mode.
// An account is spread over three tables (accounts, holdings,
// transactions) and always written in one SQL transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradesim/internal/model"
)

// Store is a model.AccountStore backed by SQLite.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	slog.Info("sqlite account store opened", "path", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			currency         TEXT NOT NULL,
			opening_balance  TEXT NOT NULL,
			balance          TEXT NOT NULL,
			realized_pnl     TEXT NOT NULL,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS holdings (
			account_id     TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			position       INTEGER NOT NULL,
			symbol         TEXT NOT NULL,
			name           TEXT NOT NULL,
			kind           TEXT NOT NULL,
			quantity       TEXT NOT NULL,
			avg_buy_price  TEXT NOT NULL,
			PRIMARY KEY (account_id, symbol)
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id           TEXT PRIMARY KEY,
			account_id   TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			seq          INTEGER NOT NULL,
			amount       TEXT NOT NULL,
			direction    TEXT NOT NULL,
			category     TEXT NOT NULL,
			description  TEXT NOT NULL,
			date         TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, seq);
	`)
	return err
}

func (s *Store) Load(ctx context.Context, id string) (*model.Account, error) {
	acct := &model.Account{ID: id}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, currency, opening_balance, balance, realized_pnl, created_at
		FROM accounts WHERE id = ?
	`, id).Scan(&acct.Name, &acct.Currency, &acct.OpeningBalance, &acct.Balance, &acct.RealizedPnL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: %s: %w", id, model.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load account %s: %w", id, err)
	}
	if acct.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("sqlite load account %s: created_at: %w", id, err)
	}

	if acct.Holdings, err = s.loadHoldings(ctx, id); err != nil {
		return nil, err
	}
	if acct.Transactions, err = s.Transactions(ctx, id, 0); err != nil {
		return nil, err
	}
	if err := acct.Verify(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return acct, nil
}

func (s *Store) loadHoldings(ctx context.Context, id string) ([]model.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, name, kind, quantity, avg_buy_price
		FROM holdings WHERE account_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []model.Holding{}
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.Symbol, &h.Name, &h.Kind, &h.Quantity, &h.AvgBuyPrice); err != nil {
			return nil, fmt.Errorf("sqlite scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// Save writes the account in a single transaction: the account row is
// upserted, holdings are replaced and unseen transactions are appended.
func (s *Store) Save(ctx context.Context, acct *model.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	if err := saveAccount(ctx, tx, acct); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite save account %s: %w", acct.ID, err)
	}
	return tx.Commit()
}

func saveAccount(ctx context.Context, tx *sql.Tx, acct *model.Account) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, currency, opening_balance, balance, realized_pnl, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			balance = excluded.balance,
			realized_pnl = excluded.realized_pnl,
			updated_at = excluded.updated_at
	`, acct.ID, acct.Name, acct.Currency, acct.OpeningBalance.String(), acct.Balance.String(),
		acct.RealizedPnL.String(), acct.CreatedAt.UTC().Format(time.RFC3339Nano), now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE account_id = ?`, acct.ID); err != nil {
		return err
	}
	hstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO holdings (account_id, position, symbol, name, kind, quantity, avg_buy_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer hstmt.Close()
	for i, h := range acct.Holdings {
		if _, err := hstmt.ExecContext(ctx, acct.ID, i, h.Symbol, h.Name, string(h.Kind),
			h.Quantity.String(), h.AvgBuyPrice.String()); err != nil {
			return err
		}
	}

	// Transactions are newest first; seq counts from the oldest so that
	// existing rows keep their position as new ones are prepended.
	tstmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (id, account_id, seq, amount, direction, category, description, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer tstmt.Close()
	n := len(acct.Transactions)
	for i, t := range acct.Transactions {
		if _, err := tstmt.ExecContext(ctx, t.ID, acct.ID, n-1-i, t.Amount.String(), string(t.Direction),
			string(t.Category), t.Description, t.Date.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ model.AccountStore = (*Store)(nil)

