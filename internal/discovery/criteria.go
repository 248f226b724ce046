package discovery

import "solana-token-radar/internal/domain"

// Criteria decides whether a freshly listed pool is worth tracking.
// All bounds are inclusive except FDV > reserve.
type Criteria struct {
	MinFDV             float64 `mapstructure:"min_fdv"`
	MaxFDV             float64 `mapstructure:"max_fdv"`
	MinReserve         float64 `mapstructure:"min_reserve"`
	MinTransactions    int64   `mapstructure:"min_transactions"`
	MinVolume          float64 `mapstructure:"min_volume"`
	MinFDVReserveRatio float64 `mapstructure:"min_fdv_reserve_ratio"`
}

// DefaultCriteria returns the discovery thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		MinFDV:             5000,
		MaxFDV:             500000,
		MinReserve:         1000,
		MinTransactions:    25,
		MinVolume:          1000,
		MinFDVReserveRatio: 1.2,
	}
}

// Qualifies reports whether p passes every discovery threshold.
func (c Criteria) Qualifies(p domain.PoolSummary) bool {
	switch {
	case p.FDVUSD < c.MinFDV || p.FDVUSD > c.MaxFDV:
		return false
	case p.ReserveUSD < c.MinReserve:
		return false
	case p.Transactions24h < c.MinTransactions:
		return false
	case p.Volume24h < c.MinVolume:
		return false
	case p.FDVUSD <= p.ReserveUSD:
		return false
	case p.ReserveUSD > 0 && p.FDVUSD/p.ReserveUSD < c.MinFDVReserveRatio:
		return false
	}
	return true
}

// KeepCriteria decides whether a tracked pool stays in the dataset.
type KeepCriteria struct {
	MinFDV     float64 `mapstructure:"min_fdv"`
	MaxFDV     float64 `mapstructure:"max_fdv"`
	MinReserve float64 `mapstructure:"min_reserve"`
	MinVolume  float64 `mapstructure:"min_volume"`
}

// DefaultKeepCriteria returns the refresh thresholds.
func DefaultKeepCriteria() KeepCriteria {
	return KeepCriteria{
		MinFDV:     3000,
		MaxFDV:     100_000_000,
		MinReserve: 500,
		MinVolume:  1000,
	}
}

// Keeps reports whether refreshed market metrics still qualify.
func (k KeepCriteria) Keeps(m *domain.PoolMarket) bool {
	if m == nil {
		return false
	}
	return m.FDVUSD >= k.MinFDV && m.FDVUSD <= k.MaxFDV &&
		m.ReserveUSD >= k.MinReserve &&
		m.Volume24h >= k.MinVolume
}
