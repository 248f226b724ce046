package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage"
)

func testRecord(address string, createdAt time.Time) *domain.TokenRecord {
	return &domain.TokenRecord{
		Address:         address,
		Name:            "FOO / SOL",
		MintAddress:     "MintFoo",
		CreatedAt:       createdAt,
		FirstSeen:       createdAt.Add(time.Minute),
		LastUpdated:     createdAt.Add(time.Minute),
		FDVUSD:          120000,
		ReserveUSD:      30000,
		Transactions24h: 420,
		Volume24h:       85000,
		MintAuthority:   false,
		FreezeAuthority: true,
		Top10Pct:        35.5,
		TopHolderPct:    4.2,
		Top20Pct:        28.1,
		GTScore:         61.3,
		EntropyScore:    3.912,
	}
}

func TestTokenStore_InsertIfAbsentAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := testRecord("PoolA", created)

	inserted, err := store.InsertIfAbsent(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := testRecord("PoolA", created)
	dup.Name = "overwritten"
	inserted, err = store.InsertIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "FOO / SOL", got.Name)
	assert.Equal(t, rec.MintAddress, got.MintAddress)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, rec.LastUpdated.Equal(got.LastUpdated))
	assert.InDelta(t, rec.FDVUSD, got.FDVUSD, 0.0001)
	assert.Equal(t, rec.Transactions24h, got.Transactions24h)
	assert.Equal(t, rec.FreezeAuthority, got.FreezeAuthority)
	assert.InDelta(t, rec.EntropyScore, got.EntropyScore, 0.0001)
}

func TestTokenStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewTokenStore(pool).InsertIfAbsent(context.Background(), &domain.TokenRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTokenStore_UpdateFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := testRecord("PoolA", created)
	_, err := store.InsertIfAbsent(ctx, rec)
	require.NoError(t, err)

	later := rec.LastUpdated.Add(5 * time.Minute)
	err = store.UpdateFields(ctx, "PoolA", &domain.TokenUpdate{
		FDVUSD:      ptr(250000.0),
		IsHoneypot:  ptr(true),
		LastUpdated: ptr(later),
	})
	require.NoError(t, err)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.InDelta(t, 250000.0, all[0].FDVUSD, 0.0001)
	assert.True(t, all[0].IsHoneypot)
	assert.InDelta(t, rec.Volume24h, all[0].Volume24h, 0.0001, "untouched field")
	assert.True(t, later.Equal(all[0].LastUpdated))

	// Older timestamp is ignored.
	err = store.UpdateFields(ctx, "PoolA", &domain.TokenUpdate{LastUpdated: ptr(created)})
	require.NoError(t, err)
	all, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.True(t, later.Equal(all[0].LastUpdated))
}

func TestTokenStore_UpdateMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	err := store.UpdateFields(ctx, "Missing", &domain.TokenUpdate{FDVUSD: ptr(1.0)})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.UpdateFields(ctx, "Missing", &domain.TokenUpdate{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_OrderDeleteClear(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, addr := range []string{"PoolOld", "PoolMid", "PoolNew"} {
		_, err := store.InsertIfAbsent(ctx, testRecord(addr, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "PoolNew", all[0].Address)
	assert.Equal(t, "PoolOld", all[2].Address)

	require.NoError(t, store.Delete(ctx, "PoolMid"))
	require.NoError(t, store.Delete(ctx, "PoolMid"))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PoolNew", "PoolOld"}, keys)

	require.NoError(t, store.ClearAll(ctx))
	keys, err = store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
