package storage

import (
	"context"

	"solana-token-radar/internal/domain"
)

// TokenStore provides access to the tracked tokens table.
// Keyed by pool address. Writes are last-write-wins; LastUpdated never moves backwards.
type TokenStore interface {
	// InsertIfAbsent adds a record unless its address is already stored.
	// Returns true if the record was inserted.
	InsertIfAbsent(ctx context.Context, r *domain.TokenRecord) (bool, error)

	// UpdateFields applies the non-nil fields of u. Returns ErrNotFound if address is not stored.
	UpdateFields(ctx context.Context, address string, u *domain.TokenUpdate) error

	// Delete removes a record. Deleting a missing address is not an error.
	Delete(ctx context.Context, address string) error

	// ListAll returns every stored record, ordered by created_at DESC.
	ListAll(ctx context.Context) ([]*domain.TokenRecord, error)

	// ListKeys returns every stored address.
	ListKeys(ctx context.Context) ([]string, error)

	// ClearAll removes every record.
	ClearAll(ctx context.Context) error
}

// SignalSnapshotStore provides access to the append-only signal history.
type SignalSnapshotStore interface {
	// Insert appends a snapshot.
	Insert(ctx context.Context, s *domain.SignalSnapshot) error

	// GetByPool returns up to limit snapshots for a pool, newest first.
	// A non-positive limit returns all snapshots.
	GetByPool(ctx context.Context, pool string, limit int) ([]*domain.SignalSnapshot, error)
}
