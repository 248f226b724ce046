package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage"
)

// SignalSnapshotStore is an in-memory implementation of storage.SignalSnapshotStore.
type SignalSnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.SignalSnapshot // keyed by pool address, insertion order
}

// NewSignalSnapshotStore creates a new in-memory snapshot store.
func NewSignalSnapshotStore() *SignalSnapshotStore {
	return &SignalSnapshotStore{
		data: make(map[string][]*domain.SignalSnapshot),
	}
}

// Insert appends a snapshot.
func (s *SignalSnapshotStore) Insert(_ context.Context, snap *domain.SignalSnapshot) error {
	if snap == nil || snap.PoolAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snap
	s.data[snap.PoolAddress] = append(s.data[snap.PoolAddress], &snapCopy)
	return nil
}

// GetByPool returns up to limit snapshots for a pool, newest first.
func (s *SignalSnapshotStore) GetByPool(_ context.Context, pool string, limit int) ([]*domain.SignalSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[pool]
	result := make([]*domain.SignalSnapshot, 0, len(stored))
	for _, snap := range stored {
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimestampMs > result[j].TimestampMs
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SignalSnapshotStore = (*SignalSnapshotStore)(nil)
