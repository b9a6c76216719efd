package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPClient is the subset of *http.Client the Client needs. Tests supply a
// mock so REST paths can be exercised without a network.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin REST transport over the Binance spot API: it knows how
// to sign and send requests, and decodes responses into the wire types in
// models.go. It does not interpret order-book generations, trade sides, or
// any other domain semantics — that belongs to the callers in internal/.
type Client struct {
	config     *Config
	httpClient HTTPClient
	baseURL    string
}

// NewClient creates a REST client. A nil config yields an unauthenticated,
// production-endpoint client suitable for market-data-only use.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    config.GetBaseURL(),
	}
}

// NewClientWithHTTPClient overrides the transport, used by tests.
func NewClientWithHTTPClient(config *Config, hc HTTPClient) *Client {
	c := NewClient(config)
	c.httpClient = hc
	return c
}

func (c *Client) sign(queryString string) string {
	mac := hmac.New(sha256.New, []byte(c.config.APISecret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, signed bool) ([]byte, error) {
	if signed {
		if !c.config.IsValid() {
			return nil, NewAuthError("signed GET requires API key and secret")
		}
		if params == nil {
			params = url.Values{}
		}
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.config.APIKey)
	}

	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if !c.config.IsValid() {
		return nil, NewAuthError("signed POST requires API key and secret")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params.Encode()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-MBX-APIKEY", c.config.APIKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, ParseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// GetDepth fetches a one-shot order-book snapshot for symbol.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (*DepthSnapshot, error) {
	params := url.Values{"symbol": {symbol}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doGet(ctx, "/api/v3/depth", params, false)
	if err != nil {
		return nil, err
	}
	var snap DepthSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode depth snapshot: %w", err)
	}
	return &snap, nil
}

// GetRecentTrades fetches the most recent trades for symbol, newest last.
func (c *Client) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]RecentTrade, error) {
	params := url.Values{"symbol": {symbol}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doGet(ctx, "/api/v3/trades", params, false)
	if err != nil {
		return nil, err
	}
	var trades []RecentTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("decode recent trades: %w", err)
	}
	return trades, nil
}

// GetKlines fetches historical candlesticks for symbol at the given
// exchange interval label (e.g. "1m", "1h").
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]RawKline, error) {
	params := url.Values{"symbol": {symbol}, "interval": {interval}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doGet(ctx, "/api/v3/klines", params, false)
	if err != nil {
		return nil, err
	}
	var rows []RawKline
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	return rows, nil
}

// OrderRequest describes a new order to submit via CreateOrder.
type OrderRequest struct {
	Symbol      string
	Side        string // "BUY" | "SELL"
	Type        string // "LIMIT" | "MARKET" | ...
	Quantity    string
	Price       string // empty for market orders
	TimeInForce string // empty unless Type needs one
}

// CreateOrder submits a new order (signed, POST /api/v3/order).
func (c *Client) CreateOrder(ctx context.Context, o OrderRequest) (*OrderAck, error) {
	params := url.Values{
		"symbol": {o.Symbol},
		"side":   {o.Side},
		"type":   {o.Type},
	}
	if o.Quantity != "" {
		params.Set("quantity", o.Quantity)
	}
	if o.Price != "" {
		params.Set("price", o.Price)
	}
	if o.TimeInForce != "" {
		params.Set("timeInForce", o.TimeInForce)
	}
	params.Set("newOrderRespType", "ACK")

	body, err := c.doPost(ctx, "/api/v3/order", params)
	if err != nil {
		return nil, err
	}
	var ack OrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("decode order ack: %w", err)
	}
	return &ack, nil
}

// WSBaseURL returns the client's configured combined-stream base URL, used
// by callers that need to build a combined stream path themselves.
func (c *Client) WSBaseURL() string {
	return c.config.GetWSBaseURL()
}

// Config returns the client's configuration, used by callers (such as the
// stream engine) that need to build their own transport around it.
func (c *Client) Config() *Config {
	return c.config
}
