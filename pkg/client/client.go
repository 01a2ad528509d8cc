// Package client is a Go client for the marketplace layer REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the client.
type Config struct {
	BaseURL string
	// Token is the bearer token presented on every request. TokenFunc takes
	// precedence when set, allowing rotation.
	Token      string
	TokenFunc  func() (string, error)
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the marketplace REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	tokenFunc  func() (string, error)
	maxRetries int
}

// New creates a marketplace API client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		tokenFunc:  cfg.TokenFunc,
		maxRetries: maxRetries,
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Body)
}

// =============================================================================
// Admin
// =============================================================================

// Initialize creates the marketplace configuration.
func (c *Client) Initialize(ctx context.Context, royaltyFeeBasisPoints uint16) (MarketplaceConfig, error) {
	var out MarketplaceConfig
	err := c.do(ctx, http.MethodPost, "/v1/admin/initialize",
		map[string]uint16{"royalty_fee_basis_points": royaltyFeeBasisPoints}, &out)
	return out, err
}

// UpdateRoyalty replaces the royalty rate.
func (c *Client) UpdateRoyalty(ctx context.Context, royaltyFeeBasisPoints uint16) (MarketplaceConfig, error) {
	var out MarketplaceConfig
	err := c.do(ctx, http.MethodPut, "/v1/admin/royalty",
		map[string]uint16{"royalty_fee_basis_points": royaltyFeeBasisPoints}, &out)
	return out, err
}

// GetConfig fetches the marketplace configuration.
func (c *Client) GetConfig(ctx context.Context) (MarketplaceConfig, error) {
	var out MarketplaceConfig
	err := c.do(ctx, http.MethodGet, "/v1/admin/config", nil, &out)
	return out, err
}

// =============================================================================
// Services
// =============================================================================

// ListServiceRequest describes a new listing.
type ListServiceRequest struct {
	AssetID    string              `json:"asset_id"`
	Price      uint64              `json:"price"`
	Soulbound  bool                `json:"soulbound"`
	Agreements []Agreement `json:"agreements,omitempty"`
}

// ListService creates a listing owned by the authenticated caller.
func (c *Client) ListService(ctx context.Context, req ListServiceRequest) (ServiceRecord, error) {
	var out ServiceRecord
	err := c.do(ctx, http.MethodPost, "/v1/services", req, &out)
	return out, err
}

// GetService fetches one listing.
func (c *Client) GetService(ctx context.Context, assetID string) (ServiceRecord, error) {
	var out ServiceRecord
	err := c.do(ctx, http.MethodGet, "/v1/services/"+assetID, nil, &out)
	return out, err
}

// ListServices fetches all listings.
func (c *Client) ListServices(ctx context.Context) ([]ServiceRecord, error) {
	var out []ServiceRecord
	err := c.do(ctx, http.MethodGet, "/v1/services", nil, &out)
	return out, err
}

// BuyService buys a listing at its listed price.
func (c *Client) BuyService(ctx context.Context, assetID string) (ServiceRecord, error) {
	var out ServiceRecord
	err := c.do(ctx, http.MethodPost, "/v1/services/"+assetID+"/buy", nil, &out)
	return out, err
}

// RepriceService sets a new listing price.
func (c *Client) RepriceService(ctx context.Context, assetID string, newPrice uint64) (ServiceRecord, error) {
	var out ServiceRecord
	err := c.do(ctx, http.MethodPut, "/v1/services/"+assetID+"/price",
		map[string]uint64{"new_price": newPrice}, &out)
	return out, err
}

// WithdrawService releases the custodied asset to the caller.
func (c *Client) WithdrawService(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodPost, "/v1/services/"+assetID+"/withdraw", nil, nil)
}

// =============================================================================
// Asks
// =============================================================================

// PlaceAsk opens or reprices the caller's resale offer on an asset.
func (c *Client) PlaceAsk(ctx context.Context, assetID string, askPrice uint64) (AskRecord, error) {
	var out AskRecord
	err := c.do(ctx, http.MethodPut, "/v1/services/"+assetID+"/ask",
		map[string]uint64{"ask_price": askPrice}, &out)
	return out, err
}

// GetAsk fetches the open offer on an asset.
func (c *Client) GetAsk(ctx context.Context, assetID string) (AskRecord, error) {
	var out AskRecord
	err := c.do(ctx, http.MethodGet, "/v1/services/"+assetID+"/ask", nil, &out)
	return out, err
}

// AcceptAsk accepts the open offer on the caller's asset.
func (c *Client) AcceptAsk(ctx context.Context, assetID, originalVendor string) (ServiceRecord, error) {
	var out ServiceRecord
	err := c.do(ctx, http.MethodPost, "/v1/services/"+assetID+"/ask/accept",
		map[string]string{"original_vendor": originalVendor}, &out)
	return out, err
}

// ListAsks fetches all open offers.
func (c *Client) ListAsks(ctx context.Context) ([]AskRecord, error) {
	var out []AskRecord
	err := c.do(ctx, http.MethodGet, "/v1/asks", nil, &out)
	return out, err
}

// Balance fetches a settlement account balance.
func (c *Client) Balance(ctx context.Context, account string) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+account+"/balance", nil, &out)
	return out.Balance, err
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		resp, err := c.send(ctx, method, path, body)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			msg, _ := readBody(resp.Body, 64<<10)
			resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: msg}
			continue
		}

		return decode(resp, target)
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token := c.token
	if c.tokenFunc != nil {
		token, err = c.tokenFunc()
		if err != nil {
			return nil, fmt.Errorf("resolve token: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.httpClient.Do(req)
}

func decode(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, err := readBody(resp.Body, 64<<10)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	if target == nil {
		_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return err
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(target)
}

func readBody(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
