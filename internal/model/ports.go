package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the ledger and market engine from concrete
// storage (memory, SQLite, Redis). Each store satisfies one or more of them.

// AccountStore loads and saves whole accounts.
type AccountStore interface {
	// Load returns the account with the given id, validated with Verify.
	// Returns ErrAccountNotFound if it does not exist.
	Load(ctx context.Context, id string) (*Account, error)

	// Save persists the account, replacing any previous version.
	Save(ctx context.Context, acct *Account) error

	// Close releases underlying resources.
	Close() error
}

// SnapshotSink receives every snapshot produced by a market clock.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap Snapshot) error
}
