package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"solana-token-radar/internal/fetch"
)

func fastPolicy() fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxAttempts:       4,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		RespectRetryAfter: true,
		DefaultRetryAfter: time.Millisecond,
	}
}

func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTokenSupply(t *testing.T) {
	server := rpcServer(t, "getTokenSupply", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": map[string]interface{}{
			"amount":         "1000000000000000",
			"decimals":       6,
			"uiAmount":       1e9,
			"uiAmountString": "1000000000",
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	supply, err := client.GetTokenSupply(context.Background(), "mint")
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}

	if supply.Amount != "1000000000000000" {
		t.Errorf("expected amount 1000000000000000, got %s", supply.Amount)
	}
	if supply.Decimals != 6 {
		t.Errorf("expected decimals 6, got %d", supply.Decimals)
	}
}

func TestHTTPClient_GetTokenLargestAccounts(t *testing.T) {
	server := rpcServer(t, "getTokenLargestAccounts", map[string]interface{}{
		"value": []map[string]interface{}{
			{"address": "acc1", "amount": "500", "decimals": 2},
			{"address": "acc2", "amount": "300", "decimals": 2},
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	accounts, err := client.GetTokenLargestAccounts(context.Background(), "mint")
	if err != nil {
		t.Fatalf("GetTokenLargestAccounts: %v", err)
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Address != "acc1" || accounts[0].Amount != "500" {
		t.Errorf("unexpected first account: %+v", accounts[0])
	}
	if accounts[1].Address != "acc2" {
		t.Errorf("order must be preserved, got %s", accounts[1].Address)
	}
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	var gotParams []interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotParams = req.Params

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []map[string]interface{}{
					{
						"pubkey": "vault1",
						"account": map[string]interface{}{
							"owner": TokenProgramID,
							"data": map[string]interface{}{
								"program": "spl-token",
								"parsed": map[string]interface{}{
									"info": map[string]interface{}{
										"mint":  "mint",
										"owner": "pool",
										"tokenAmount": map[string]interface{}{
											"amount":   "42",
											"decimals": 0,
										},
									},
								},
							},
						},
					},
					{
						"pubkey": "vault2",
						"account": map[string]interface{}{
							"owner": TokenProgramID,
							"data":  []string{"AAAA", "base64"},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	accounts, err := client.GetTokenAccountsByOwner(context.Background(), "pool", "mint")
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}

	if len(gotParams) != 3 {
		t.Fatalf("expected 3 params, got %d", len(gotParams))
	}
	if gotParams[0] != "pool" {
		t.Errorf("expected owner param pool, got %v", gotParams[0])
	}
	filter, ok := gotParams[1].(map[string]interface{})
	if !ok || filter["mint"] != "mint" {
		t.Errorf("expected mint filter, got %v", gotParams[1])
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Pubkey != "vault1" || accounts[0].Mint != "mint" || accounts[0].Amount != "42" {
		t.Errorf("unexpected parsed account: %+v", accounts[0])
	}
	if accounts[1].Pubkey != "vault2" || accounts[1].Mint != "" {
		t.Errorf("unexpected unparsed account: %+v", accounts[1])
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", map[string]interface{}{"value": nil})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid param: not a Token mint"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryPolicy(fastPolicy()))
	_, err := client.GetTokenSupply(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPClient_RetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": map[string]interface{}{"amount": "1", "decimals": 0}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryPolicy(fastPolicy()))
	supply, err := client.GetTokenSupply(context.Background(), "mint")
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}
	if supply.Amount != "1" {
		t.Errorf("expected amount 1, got %s", supply.Amount)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithRetryPolicy(fastPolicy()),
		WithMaxRetries(2),
	)
	_, err := client.GetTokenLargestAccounts(context.Background(), "mint")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls.Load())
	}
}
