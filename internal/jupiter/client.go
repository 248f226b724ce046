// Package jupiter is a minimal client for the Jupiter v6 swap quote API.
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/fetch"
)

// Defaults.
const (
	DefaultBaseURL  = "https://quote-api.jup.ag/v6"
	DefaultInterval = 200 * time.Millisecond
)

// QuoteError is a quote the aggregator refused, e.g. no route found.
// It is never retried.
type QuoteError struct {
	Message string
	Code    string
}

func (e *QuoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// IsQuoteError reports whether err is a refused quote.
func IsQuoteError(err error) bool {
	var qe *QuoteError
	return errors.As(err, &qe)
}

// QuoteRequest is one exact-in quote query.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// Hop is one pool touched by a route.
type Hop struct {
	AMMKey    string `json:"ammKey,omitempty"`
	LPAddress string `json:"lpAddress,omitempty"`
	Label     string `json:"label,omitempty"`
}

// Quote is a parsed quote response.
type Quote struct {
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64 // as reported, in percent
	RoutePlan      []Hop
	MarketInfos    []Hop // legacy routes[].marketInfos[]
}

// PoolRef is one pool address named by a route, with the venue label.
type PoolRef struct {
	Address string
	Label   string
}

// Pools returns every pool address named by the quote in response order:
// route plan entries (amm key before lp address), then legacy market infos
// (lp address before amm key). Duplicates are kept.
func (q *Quote) Pools() []PoolRef {
	var out []PoolRef
	add := func(addr, label string) {
		if addr != "" {
			out = append(out, PoolRef{Address: addr, Label: label})
		}
	}
	for _, h := range q.RoutePlan {
		add(h.AMMKey, h.Label)
		add(h.LPAddress, h.Label)
	}
	for _, h := range q.MarketInfos {
		add(h.LPAddress, h.Label)
		add(h.AMMKey, h.Label)
	}
	return out
}

type quoteResponse struct {
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct json.RawMessage `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo *Hop `json:"swapInfo"`
	} `json:"routePlan"`
	Routes []struct {
		MarketInfos []Hop `json:"marketInfos"`
	} `json:"routes"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Client queries quotes through a paced, retrying fetch client.
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

// WithInterval sets the minimum interval between quote requests.
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

// NewClient creates a quote client.
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
		http:    fetch.NewClient("jupiter", fetchOpts...),
		logger:  cfg.logger.Named("jupiter"),
	}
}

// Quote requests an exact-in quote. A refused quote, whether reported with
// a 4xx status or an error field, is returned as *QuoteError.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	query := url.Values{
		"inputMint":   {req.InputMint},
		"outputMint":  {req.OutputMint},
		"amount":      {strconv.FormatUint(req.Amount, 10)},
		"slippageBps": {strconv.Itoa(req.SlippageBps)},
	}

	var resp quoteResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/quote", query, &resp); err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) {
			if qe := parseQuoteError(se.Body); qe != nil {
				return nil, qe
			}
		}
		return nil, fmt.Errorf("quote %s->%s: %w", req.InputMint, req.OutputMint, err)
	}
	if resp.Error != "" {
		return nil, &QuoteError{Message: resp.Error, Code: resp.ErrorCode}
	}

	q := &Quote{PriceImpactPct: parseFloat(resp.PriceImpactPct)}
	var err error
	if resp.OutAmount != "" {
		if q.OutAmount, err = strconv.ParseUint(resp.OutAmount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse outAmount %q: %w", resp.OutAmount, err)
		}
	}
	if resp.InAmount != "" {
		if q.InAmount, err = strconv.ParseUint(resp.InAmount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse inAmount %q: %w", resp.InAmount, err)
		}
	}
	for _, step := range resp.RoutePlan {
		if step.SwapInfo != nil {
			q.RoutePlan = append(q.RoutePlan, *step.SwapInfo)
		}
	}
	for _, route := range resp.Routes {
		q.MarketInfos = append(q.MarketInfos, route.MarketInfos...)
	}
	return q, nil
}

func parseQuoteError(body []byte) *QuoteError {
	var payload struct {
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return nil
	}
	return &QuoteError{Message: payload.Error, Code: payload.ErrorCode}
}

// parseFloat accepts a JSON number or a quoted number; anything else is 0.
func parseFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
