package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/storage"
)

const tokenColumns = `
	address, name, mint_address, created_at, first_seen, last_updated,
	fdv_usd, reserve_in_usd, transactions_24h, volume_24h,
	mint_authority, freeze_authority, top_10_holders, top_holder, top_20_holders,
	gt_score, entropy_score, is_honeypot`

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// InsertIfAbsent adds a record unless its address is already stored.
func (s *TokenStore) InsertIfAbsent(ctx context.Context, r *domain.TokenRecord) (inserted bool, err error) {
	if r == nil || r.Address == "" {
		return false, storage.ErrInvalidInput
	}
	defer observeQuery("insert_if_absent", time.Now(), &err)

	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (address) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		r.Address,
		r.Name,
		r.MintAddress,
		r.CreatedAt,
		r.FirstSeen,
		r.LastUpdated,
		r.FDVUSD,
		r.ReserveUSD,
		r.Transactions24h,
		r.Volume24h,
		r.MintAuthority,
		r.FreezeAuthority,
		r.Top10Pct,
		r.TopHolderPct,
		r.Top20Pct,
		r.GTScore,
		r.EntropyScore,
		r.IsHoneypot,
	)
	if err != nil {
		return false, fmt.Errorf("insert token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateFields applies the non-nil fields of u. Returns ErrNotFound if address is not stored.
// last_updated is written as GREATEST(stored, new).
func (s *TokenStore) UpdateFields(ctx context.Context, address string, u *domain.TokenUpdate) (err error) {
	if address == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("update_fields", time.Now(), &err)

	set, args := updateClauses(u)
	var query string
	if len(set) == 0 {
		// Still report a missing row.
		query = `SELECT 1 FROM tokens WHERE address = $1`
		var one int
		if err := s.pool.QueryRow(ctx, query, address).Scan(&one); err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("check token: %w", err)
		}
		return nil
	}

	args = append(args, address)
	query = fmt.Sprintf(`UPDATE tokens SET %s WHERE address = $%d`, strings.Join(set, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// updateClauses builds the SET list and positional args for the non-nil fields of u.
func updateClauses(u *domain.TokenUpdate) ([]string, []any) {
	if u.IsEmpty() {
		return nil, nil
	}

	var (
		set  []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.MintAddress != nil {
		add("mint_address", *u.MintAddress)
	}
	if u.FDVUSD != nil {
		add("fdv_usd", *u.FDVUSD)
	}
	if u.ReserveUSD != nil {
		add("reserve_in_usd", *u.ReserveUSD)
	}
	if u.Transactions24h != nil {
		add("transactions_24h", *u.Transactions24h)
	}
	if u.Volume24h != nil {
		add("volume_24h", *u.Volume24h)
	}
	if u.MintAuthority != nil {
		add("mint_authority", *u.MintAuthority)
	}
	if u.FreezeAuthority != nil {
		add("freeze_authority", *u.FreezeAuthority)
	}
	if u.Top10Pct != nil {
		add("top_10_holders", *u.Top10Pct)
	}
	if u.TopHolderPct != nil {
		add("top_holder", *u.TopHolderPct)
	}
	if u.Top20Pct != nil {
		add("top_20_holders", *u.Top20Pct)
	}
	if u.GTScore != nil {
		add("gt_score", *u.GTScore)
	}
	if u.EntropyScore != nil {
		add("entropy_score", *u.EntropyScore)
	}
	if u.IsHoneypot != nil {
		add("is_honeypot", *u.IsHoneypot)
	}
	if u.LastUpdated != nil {
		args = append(args, *u.LastUpdated)
		set = append(set, fmt.Sprintf("last_updated = GREATEST(last_updated, $%d)", len(args)))
	}
	return set, args
}

// Delete removes a record.
func (s *TokenStore) Delete(ctx context.Context, address string) (err error) {
	defer observeQuery("delete", time.Now(), &err)

	if _, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE address = $1`, address); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// ListAll returns every stored record, ordered by created_at DESC.
func (s *TokenStore) ListAll(ctx context.Context) (_ []*domain.TokenRecord, err error) {
	defer observeQuery("list_all", time.Now(), &err)

	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		ORDER BY created_at DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenRecord
	for rows.Next() {
		r, err := scanTokenRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListKeys returns every stored address in ascending order.
func (s *TokenStore) ListKeys(ctx context.Context) (_ []string, err error) {
	defer observeQuery("list_keys", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT address FROM tokens ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query token keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ClearAll removes every record.
func (s *TokenStore) ClearAll(ctx context.Context) (err error) {
	defer observeQuery("clear_all", time.Now(), &err)

	if _, err := s.pool.Exec(ctx, `DELETE FROM tokens`); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// scanTokenRecord scans a single row into TokenRecord.
func scanTokenRecord(row pgx.Row) (*domain.TokenRecord, error) {
	var r domain.TokenRecord

	err := row.Scan(
		&r.Address,
		&r.Name,
		&r.MintAddress,
		&r.CreatedAt,
		&r.FirstSeen,
		&r.LastUpdated,
		&r.FDVUSD,
		&r.ReserveUSD,
		&r.Transactions24h,
		&r.Volume24h,
		&r.MintAuthority,
		&r.FreezeAuthority,
		&r.Top10Pct,
		&r.TopHolderPct,
		&r.Top20Pct,
		&r.GTScore,
		&r.EntropyScore,
		&r.IsHoneypot,
	)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = r.CreatedAt.UTC()
	r.FirstSeen = r.FirstSeen.UTC()
	r.LastUpdated = r.LastUpdated.UTC()
	return &r, nil
}

func observeQuery(op string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), *err)
}
