package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/storage"
)

const snapshotColumns = `
	pool_address, mint_address, timestamp_ms, source,
	fdv_usd, reserve_in_usd, volume_24h,
	top_holder, top_20_holders, lp_pct, entropy_score,
	uniform_balance, cliff_distribution, decimal_pattern, low_entropy, is_honeypot`

// SignalSnapshotStore implements storage.SignalSnapshotStore using ClickHouse.
type SignalSnapshotStore struct {
	conn *Conn
}

// NewSignalSnapshotStore creates a new SignalSnapshotStore.
func NewSignalSnapshotStore(conn *Conn) *SignalSnapshotStore {
	return &SignalSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalSnapshotStore = (*SignalSnapshotStore)(nil)

// Insert appends a snapshot.
func (s *SignalSnapshotStore) Insert(ctx context.Context, snap *domain.SignalSnapshot) (err error) {
	if snap == nil || snap.PoolAddress == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_snapshot", time.Since(start).Seconds(), err)
	}()

	query := `INSERT INTO signal_snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = s.conn.Exec(ctx, query,
		snap.PoolAddress, snap.MintAddress, snap.TimestampMs, snap.Source,
		snap.FDVUSD, snap.ReserveUSD, snap.Volume24h,
		snap.TopHolderPct, snap.Top20Pct, snap.LPPct, snap.EntropyScore,
		snap.UniformBalance, snap.CliffDistribution, snap.DecimalPattern, snap.LowEntropy, snap.IsHoneypot,
	)
	if err != nil {
		return fmt.Errorf("insert signal snapshot: %w", err)
	}
	return nil
}

// GetByPool returns up to limit snapshots for a pool, newest first.
func (s *SignalSnapshotStore) GetByPool(ctx context.Context, pool string, limit int) (_ []*domain.SignalSnapshot, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "get_snapshots", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT ` + snapshotColumns + `
		FROM signal_snapshots
		WHERE pool_address = ?
		ORDER BY timestamp_ms DESC
	`
	args := []any{pool}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signal snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.SignalSnapshot
	for rows.Next() {
		var snap domain.SignalSnapshot
		err := rows.Scan(
			&snap.PoolAddress, &snap.MintAddress, &snap.TimestampMs, &snap.Source,
			&snap.FDVUSD, &snap.ReserveUSD, &snap.Volume24h,
			&snap.TopHolderPct, &snap.Top20Pct, &snap.LPPct, &snap.EntropyScore,
			&snap.UniformBalance, &snap.CliffDistribution, &snap.DecimalPattern, &snap.LowEntropy, &snap.IsHoneypot,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return result, nil
}
