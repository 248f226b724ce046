// Package rugcheck fetches third-party token risk reports.
package rugcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/fetch"
)

// Defaults.
const (
	DefaultBaseURL  = "https://api.rugcheck.xyz/v1"
	DefaultInterval = 1 * time.Second
)

// ignoredRisks are liquidity-related findings that fire on every freshly
// listed token and carry no signal for it.
var ignoredRisks = map[string]struct{}{
	"Low Liquidity":              {},
	"Low amount of LP Providers": {},
}

type reportResponse struct {
	Risks           []domain.Risk     `json:"risks"`
	CreatorTokens   []json.RawMessage `json:"creatorTokens"`
	InsiderNetworks []insiderNetwork  `json:"insiderNetworks"`
	Token           *struct {
		Supply   *decimal.Decimal `json:"supply"`
		Decimals *int32           `json:"decimals"`
	} `json:"token"`
}

type insiderNetwork struct {
	Type           string          `json:"type"`
	TokenAmount    decimal.Decimal `json:"tokenAmount"`
	ActiveAccounts int64           `json:"activeAccounts"`
}

// Client fetches reports from the rugcheck API.
type Client struct {
	baseURL string
	http    *fetch.Client
	logger  *zap.Logger
}

// Option configures Client.
type Option func(*config)

type config struct {
	baseURL   string
	interval  time.Duration
	policy    fetch.RetryPolicy
	fetchOpts []fetch.Option
	logger    *zap.Logger
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithInterval sets the minimum interval between requests.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p fetch.RetryPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithFetchOptions passes options through to the underlying fetch client.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(c *config) { c.fetchOpts = append(c.fetchOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// NewClient creates a rugcheck client.
func NewClient(opts ...Option) *Client {
	cfg := &config{
		baseURL:  DefaultBaseURL,
		interval: DefaultInterval,
		policy:   fetch.DefaultRetryPolicy(),
		logger:   zap.NewNop(),
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
		baseURL: cfg.baseURL,
		http:    fetch.NewClient("rugcheck", fetchOpts...),
		logger:  cfg.logger.Named("rugcheck"),
	}
}

// Report returns the filtered risk report for mint.
func (c *Client) Report(ctx context.Context, mint string) (*domain.RiskReport, error) {
	endpoint := fmt.Sprintf("%s/tokens/%s/report", c.baseURL, url.PathEscape(mint))

	var resp reportResponse
	if err := c.http.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch rugcheck report for %s: %w", mint, err)
	}
	return buildReport(&resp), nil
}

func buildReport(resp *reportResponse) *domain.RiskReport {
	supply := decimal.NewFromInt(1)
	var decimals int32
	if resp.Token != nil {
		if resp.Token.Supply != nil && resp.Token.Supply.IsPositive() {
			supply = *resp.Token.Supply
		}
		if resp.Token.Decimals != nil && *resp.Token.Decimals > 0 {
			decimals = *resp.Token.Decimals
		}
	}
	scale := decimal.New(1, decimals)

	report := &domain.RiskReport{
		Risks:           make([]domain.Risk, 0, len(resp.Risks)),
		CreatorTokens:   resp.CreatorTokens,
		InsiderNetworks: make([]domain.InsiderNetwork, 0, len(resp.InsiderNetworks)),
	}
	if report.CreatorTokens == nil {
		report.CreatorTokens = []json.RawMessage{}
	}

	for _, r := range resp.Risks {
		if _, skip := ignoredRisks[r.Name]; skip {
			continue
		}
		report.Risks = append(report.Risks, r)
	}

	hundred := decimal.NewFromInt(100)
	for _, n := range resp.InsiderNetworks {
		amount := n.TokenAmount.Div(scale)
		pct := n.TokenAmount.Div(supply).Mul(hundred)
		report.InsiderNetworks = append(report.InsiderNetworks, domain.InsiderNetwork{
			Type:            n.Type,
			TokenAmount:     amount.InexactFloat64(),
			TokenPercentage: pct.InexactFloat64(),
			DistributedTo:   n.ActiveAccounts,
		})
	}
	return report
}
