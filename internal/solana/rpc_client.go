package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/fetch"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// HTTPClient implements TokenRPC using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint  string
	client    *fetch.Client
	requestID atomic.Uint64
}

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	policy     fetch.RetryPolicy
	pacer      *fetch.Pacer
	logger     *zap.Logger
}

// ClientOption configures HTTPClient.
type ClientOption func(*clientConfig)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts after the first call.
func WithMaxRetries(n int) ClientOption {
	return func(c *clientConfig) {
		c.policy.MaxAttempts = n + 1
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.policy.BaseDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.policy.MaxDelay = d
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(p fetch.RetryPolicy) ClientOption {
	return func(c *clientConfig) {
		c.policy = p
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithPacer sets the request pacer shared with other RPC users.
func WithPacer(p *fetch.Pacer) ClientOption {
	return func(c *clientConfig) {
		c.pacer = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	cfg := &clientConfig{
		timeout: DefaultTimeout,
		policy:  fetch.DefaultRetryPolicy().WithMaxAttempts(DefaultMaxRetries + 1),
		logger:  zap.NewNop(),
	}
	cfg.policy.BaseDelay = DefaultRetryDelay
	cfg.policy.MaxDelay = DefaultMaxDelay
	for _, opt := range opts {
		opt(cfg)
	}

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.timeout),
		fetch.WithRetryPolicy(cfg.policy),
		fetch.WithPacer(cfg.pacer),
		fetch.WithLogger(cfg.logger),
	}
	if cfg.httpClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(cfg.httpClient))
	}

	return &HTTPClient{
		endpoint: endpoint,
		client:   fetch.NewClient("solana_rpc", fetchOpts...),
	}
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call. Transport failures are retried by the
// fetch client; RPC errors are not retried.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	var resp rpcResponse
	if err := c.client.PostJSON(ctx, c.endpoint, req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}

	if result != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: unmarshal result: %w", method, err)
		}
	}

	return nil
}

// GetTokenSupply returns the raw supply and decimals of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	var result getTokenSupplyResult
	if err := c.call(ctx, "getTokenSupply", []interface{}{mint}, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("getTokenSupply: empty value for %s", mint)
	}

	return &TokenSupply{
		Amount:   result.Value.Amount,
		Decimals: result.Value.Decimals,
	}, nil
}

type getTokenSupplyResult struct {
	Value *uiTokenAmount `json:"value"`
}

type uiTokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// GetTokenLargestAccounts returns the largest accounts of a mint, descending.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var result getTokenLargestAccountsResult
	if err := c.call(ctx, "getTokenLargestAccounts", []interface{}{mint}, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccountBalance, len(result.Value))
	for i, v := range result.Value {
		accounts[i] = TokenAccountBalance{
			Address:  v.Address,
			Amount:   v.Amount,
			Decimals: v.Decimals,
		}
	}

	return accounts, nil
}

type getTokenLargestAccountsResult struct {
	Value []largestAccount `json:"value"`
}

type largestAccount struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// GetTokenAccountsByOwner returns token accounts held by owner for mint.
func (c *HTTPClient) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"mint": mint},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result getTokenAccountsByOwnerResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		acc := TokenAccount{
			Pubkey: v.Pubkey,
			Owner:  v.Account.Owner,
		}
		// Unparsed accounts come back as [data, encoding]; keep just the pubkey.
		var parsed parsedAccountData
		if err := json.Unmarshal(v.Account.Data, &parsed); err == nil {
			acc.Mint = parsed.Parsed.Info.Mint
			acc.Amount = parsed.Parsed.Info.TokenAmount.Amount
		}
		accounts = append(accounts, acc)
	}

	return accounts, nil
}

type getTokenAccountsByOwnerResult struct {
	Value []keyedAccount `json:"value"`
}

type keyedAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Owner string          `json:"owner"`
		Data  json.RawMessage `json:"data"`
	} `json:"account"`
}

type parsedAccountData struct {
	Program string `json:"program"`
	Parsed  struct {
		Info struct {
			Mint        string        `json:"mint"`
			Owner       string        `json:"owner"`
			TokenAmount uiTokenAmount `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

var _ TokenRPC = (*HTTPClient)(nil)
