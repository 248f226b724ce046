// Package gecko talks to the GeckoTerminal public API: the new-pools feed,
// per-pool token info and the pool search used for market refreshes.
package gecko

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/fetch"
	"solana-token-radar/internal/observability"
)

// Defaults.
const (
	DefaultBaseURL          = "https://api.geckoterminal.com/api/v2"
	DefaultInterval         = 1 * time.Second
	DefaultPoolInfoTTL      = 30 * time.Second
	DefaultPoolInfoAttempts = 3
	DefaultMintAttempts     = 5
	DefaultMintFailureTTL   = 30 * time.Second
	DefaultPageSize         = 100
	network                 = "solana"
)

var (
	// ErrPoolNotFound is returned when a search yields no pool.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrMintNotFound is returned when a pool has no resolvable token mint.
	ErrMintNotFound = errors.New("mint not found")
)

// Client is a GeckoTerminal client. All calls share one pacer.
type Client struct {
	baseURL    string
	http       *fetch.Client
	infoPolicy fetch.RetryPolicy
	mintPolicy fetch.RetryPolicy
	poolInfo   *fetch.TTLCache[string, domain.PoolInfo]
	mints      *fetch.TTLCache[string, string] // "" marks a pool without a token mint
	mintErrs   *fetch.TTLCache[string, error]  // transient resolution failures
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures Client.
type Option func(*config)

type config struct {
	baseURL      string
	interval     time.Duration
	infoTTL      time.Duration
	infoAttempts int
	mintAttempts int
	mintFailTTL  time.Duration
	policy       fetch.RetryPolicy
	fetchOpts    []fetch.Option
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
	logger       *zap.Logger
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithInterval sets the minimum interval between requests.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithPoolInfoTTL sets how long pool info results are cached.
func WithPoolInfoTTL(d time.Duration) Option {
	return func(c *config) { c.infoTTL = d }
}

// WithAttempts sets the attempt bounds for pool info and mint resolution.
func WithAttempts(poolInfo, mint int) Option {
	return func(c *config) {
		c.infoAttempts = poolInfo
		c.mintAttempts = mint
	}
}

// WithMintFailureTTL sets how long a transient mint resolution failure is
// remembered before the pool is queried again.
func WithMintFailureTTL(d time.Duration) Option {
	return func(c *config) { c.mintFailTTL = d }
}

// WithRetryPolicy sets the base retry policy; attempt bounds are applied on top.
func WithRetryPolicy(p fetch.RetryPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithFetchOptions passes options through to the underlying fetch client.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(c *config) { c.fetchOpts = append(c.fetchOpts, opts...) }
}

// WithSleep replaces the self-healing retry delay, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *config) { c.sleep = fn }
}

// WithClock sets the clock used for market timestamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// NewClient creates a GeckoTerminal client.
func NewClient(opts ...Option) *Client {
	cfg := &config{
		baseURL:      DefaultBaseURL,
		interval:     DefaultInterval,
		infoTTL:      DefaultPoolInfoTTL,
		infoAttempts: DefaultPoolInfoAttempts,
		mintAttempts: DefaultMintAttempts,
		mintFailTTL:  DefaultMintFailureTTL,
		policy:       fetch.DefaultRetryPolicy(),
		sleep:        sleepContext,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fetchOpts := append([]fetch.Option{
		fetch.WithPacer(fetch.NewPacer(cfg.interval)),
		fetch.WithRetryPolicy(cfg.policy),
		fetch.WithLogger(cfg.logger),
	}, cfg.fetchOpts...)

	return &Client{
		baseURL:    cfg.baseURL,
		http:       fetch.NewClient("geckoterminal", fetchOpts...),
		infoPolicy: cfg.policy.WithMaxAttempts(cfg.infoAttempts),
		mintPolicy: cfg.policy.WithMaxAttempts(cfg.mintAttempts),
		poolInfo:   fetch.NewTTLCache[string, domain.PoolInfo](cfg.infoTTL).WithClock(cfg.now),
		mints:      fetch.NewTTLCache[string, string](0),
		mintErrs:   fetch.NewTTLCache[string, error](cfg.mintFailTTL).WithClock(cfg.now),
		sleep:      cfg.sleep,
		now:        cfg.now,
		logger:     cfg.logger.Named("gecko"),
	}
}

// NewPools returns one page of the newest pools, in feed order.
func (c *Client) NewPools(ctx context.Context) ([]domain.PoolSummary, error) {
	endpoint := fmt.Sprintf("%s/networks/%s/new_pools", c.baseURL, network)
	query := url.Values{"page_size": {strconv.Itoa(DefaultPageSize)}}

	var resp poolsResponse
	if err := c.http.GetJSON(ctx, endpoint, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch new pools: %w", err)
	}

	pools := make([]domain.PoolSummary, 0, len(resp.Data))
	for _, p := range resp.Data {
		a := p.Attributes
		if a.Address == "" {
			continue
		}
		pools = append(pools, domain.PoolSummary{
			Address:         a.Address,
			Name:            a.Name,
			CreatedAt:       a.createdAt(),
			FDVUSD:          float64(a.FDVUSD),
			ReserveUSD:      float64(a.ReserveInUSD),
			Transactions24h: a.transactions24h(),
			Volume24h:       float64(a.VolumeUSD.H24),
		})
	}
	return pools, nil
}

// MarketMetrics looks a pool up by address and returns its current metrics.
// Returns ErrPoolNotFound when the search is empty.
func (c *Client) MarketMetrics(ctx context.Context, pool string) (*domain.PoolMarket, error) {
	endpoint := c.baseURL + "/search/pools"
	query := url.Values{"query": {pool}, "page": {"1"}}

	var resp poolsResponse
	if err := c.http.GetJSON(ctx, endpoint, query, &resp); err != nil {
		return nil, fmt.Errorf("search pool %s: %w", pool, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("search pool %s: %w", pool, ErrPoolNotFound)
	}

	a := resp.Data[0].Attributes
	return &domain.PoolMarket{
		FDVUSD:          float64(a.FDVUSD),
		ReserveUSD:      float64(a.ReserveInUSD),
		Transactions24h: a.transactions24h(),
		Volume24h:       float64(a.VolumeUSD.H24),
		FetchedAt:       c.now().UTC(),
	}, nil
}

// PoolInfo returns token-level details for a pool. It never fails: upstream
// errors degrade to a zero PoolInfo, flagged RateLimited when the last
// answer was a 429. Results are cached per pool.
func (c *Client) PoolInfo(ctx context.Context, pool string) domain.PoolInfo {
	if info, ok := c.poolInfo.Get(pool); ok {
		observability.RecordCacheLookup("pool_info", true)
		return info
	}
	observability.RecordCacheLookup("pool_info", false)

	info := c.fetchPoolInfo(ctx, pool)
	if info.IsZero() && !info.RateLimited {
		if err := c.sleep(ctx, c.http.Pacer().Interval()); err == nil {
			retry := c.fetchPoolInfo(ctx, pool)
			if !retry.IsZero() {
				info = retry
			}
		}
	}

	c.poolInfo.Set(pool, info)
	if info.MintAddress != "" {
		c.mints.Set(pool, info.MintAddress)
	}
	return info
}

func (c *Client) fetchPoolInfo(ctx context.Context, pool string) domain.PoolInfo {
	token, err := c.infoToken(ctx, c.http.WithPolicy(c.infoPolicy), pool)
	if err != nil {
		c.logger.Warn("pool info unavailable", zap.String("pool", pool), zap.Error(err))
		return domain.PoolInfo{RateLimited: fetch.IsRateLimited(err)}
	}

	a := token.Attributes
	return domain.PoolInfo{
		MintAddress:     a.Address,
		MintAuthority:   a.MintAuthority == "yes",
		FreezeAuthority: a.FreezeAuthority == "yes",
		Top10Pct:        a.top10(),
		GTScore:         float64(a.GTScore),
	}
}

// MintAddress resolves the non-counter-asset mint of a pool. Resolved mints
// and pools without a token mint (ErrMintNotFound) are cached for the
// lifetime of the client; transport failures only for the failure TTL.
func (c *Client) MintAddress(ctx context.Context, pool string) (string, error) {
	if pool == "" {
		return "", fmt.Errorf("resolve mint: %w", ErrMintNotFound)
	}
	if mint, ok := c.mints.Get(pool); ok {
		observability.RecordCacheLookup("mint", true)
		if mint == "" {
			return "", fmt.Errorf("resolve mint for %s: %w", pool, ErrMintNotFound)
		}
		return mint, nil
	}
	if err, ok := c.mintErrs.Get(pool); ok {
		observability.RecordCacheLookup("mint", true)
		return "", fmt.Errorf("resolve mint for %s: %w", pool, err)
	}
	observability.RecordCacheLookup("mint", false)

	token, err := c.infoToken(ctx, c.http.WithPolicy(c.mintPolicy), pool)
	switch {
	case err == nil:
		c.mints.Set(pool, token.Attributes.Address)
		c.mintErrs.Delete(pool)
		return token.Attributes.Address, nil
	case ctx.Err() != nil:
		return "", fmt.Errorf("resolve mint for %s: %w", pool, ctx.Err())
	case errors.Is(err, ErrMintNotFound):
		c.mints.Set(pool, "")
		return "", fmt.Errorf("resolve mint for %s: %w", pool, err)
	default:
		c.logger.Warn("mint resolution failed", zap.String("pool", pool), zap.Error(err))
		c.mintErrs.Set(pool, err)
		return "", fmt.Errorf("resolve mint for %s: %w", pool, err)
	}
}

// infoToken fetches /pools/{pool}/info and returns the first token that is
// not a counter-asset. A response without such a token is ErrMintNotFound.
func (c *Client) infoToken(ctx context.Context, client *fetch.Client, pool string) (*tokenResource, error) {
	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s/info", c.baseURL, network, url.PathEscape(pool))

	var resp infoResponse
	if err := client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		addr := resp.Data[i].Attributes.Address
		if addr == "" || isCounterAsset(addr) {
			continue
		}
		return &resp.Data[i], nil
	}
	return nil, ErrMintNotFound
}

func isCounterAsset(mint string) bool {
	return mint == domain.SOLMint || mint == domain.USDCMint
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
