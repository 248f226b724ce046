package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenRecord // keyed by pool address
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.TokenRecord),
	}
}

// InsertIfAbsent adds a record unless its address is already stored.
func (s *TokenStore) InsertIfAbsent(_ context.Context, r *domain.TokenRecord) (bool, error) {
	if r == nil || r.Address == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Address]; exists {
		return false, nil
	}

	// Store a copy to prevent external mutation
	recordCopy := *r
	s.data[r.Address] = &recordCopy
	return true, nil
}

// UpdateFields applies the non-nil fields of u. Returns ErrNotFound if address is not stored.
func (s *TokenStore) UpdateFields(_ context.Context, address string, u *domain.TokenUpdate) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[address]
	if !exists {
		return storage.ErrNotFound
	}
	u.Apply(r)
	return nil
}

// Delete removes a record.
func (s *TokenStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, address)
	return nil
}

// ListAll returns every stored record, ordered by created_at DESC.
func (s *TokenStore) ListAll(_ context.Context) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// ListKeys returns every stored address in ascending order.
func (s *TokenStore) ListKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearAll removes every record.
func (s *TokenStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.TokenRecord)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
