// Package exchange implements the Kraken REST and WebSocket clients used by
// the Kraken venue adapter.
//
// The REST client (Client) talks to Kraken's private REST API for order
// management:
//   - AddOrder:            POST /0/private/AddOrder           — place a post-only limit order
//   - CancelOrder:         POST /0/private/CancelOrder         — cancel by client order id
//   - CancelAll:           POST /0/private/CancelAll           — emergency cancel everything
//   - GetWebSocketsToken:  POST /0/private/GetWebSocketsToken  — bootstrap token for the authenticated WS feed
//
// Every private request is signed with HMAC-SHA512 over a nonce+body digest
// (see auth.go), rate-limited per endpoint category, and retried on 5xx
// errors.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"kraken-mm/internal/config"
	"kraken-mm/pkg/types"
)

const krakenBaseURL = "https://api.kraken.com"

// Client is the Kraken private REST API client. It wraps a resty HTTP
// client with rate limiting, retry, and HMAC-SHA512 signing.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(krakenBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// WithBaseURL overrides the REST base URL, for pointing the client at a
// test server or an alternate Kraken environment.
func (c *Client) WithBaseURL(url string) *Client {
	c.http.SetBaseURL(url)
	return c
}

// krakenResponse is the envelope every Kraken REST call returns.
type krakenResponse[T any] struct {
	Error  []string `json:"error"`
	Result *T       `json:"result"`
}

// AddOrderResult is the result payload of AddOrder.
type AddOrderResult struct {
	TxID  []string `json:"txid"`
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
}

// CancelResult is the result payload of CancelOrder and CancelAll.
type CancelResult struct {
	Count int `json:"count"`
}

// AddOrder places a post-only limit order and returns Kraken's txid/descr.
// The order is correlated on the client side by clientOrderID (cl_ord_id),
// which the execution-report WS feed echoes back.
func (c *Client) AddOrder(ctx context.Context, instrument types.Instrument, side types.Side, price types.Price, quantity float64, clientOrderID string) (*AddOrderResult, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	sideStr := "buy"
	if side == types.Sell {
		sideStr = "sell"
	}

	params := url.Values{}
	params.Set("ordertype", "limit")
	params.Set("type", sideStr)
	params.Set("pair", instrumentToKrakenPair(instrument))
	params.Set("price", formatDecimal(float64(price), 10))
	params.Set("volume", formatDecimal(quantity, 12))
	params.Set("oflags", "post")
	params.Set("cl_ord_id", clientOrderID)

	var result AddOrderResult
	if err := c.privatePost(ctx, "/0/private/AddOrder", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrder cancels a single order by client order id. Kraken returns
// count=0 (no error) for an order it doesn't recognize as open; the venue
// adapter reports that as CancelFailed, and treats the "unknown order"
// error string as an already-terminal cancel.
func (c *Client) CancelOrder(ctx context.Context, clientOrderID string) (*CancelResult, error) {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("cl_ord_id", clientOrderID)

	var result CancelResult
	if err := c.privatePost(ctx, "/0/private/CancelOrder", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelAll cancels every open order for the account.
func (c *Client) CancelAll(ctx context.Context) (*CancelResult, error) {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	var result CancelResult
	if err := c.privatePost(ctx, "/0/private/CancelAll", url.Values{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetWebSocketsToken obtains a short-lived token required to open the
// authenticated WS v2 connection (executions and balances channels).
func (c *Client) GetWebSocketsToken(ctx context.Context) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	if err := c.privatePost(ctx, "/0/private/GetWebSocketsToken", url.Values{}, &result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("kraken: no token in GetWebSocketsToken response")
	}
	return result.Token, nil
}

// privatePost signs params with the account's nonce/HMAC, posts the
// resulting form body, and decodes the Kraken response envelope into out.
func (c *Client) privatePost(ctx context.Context, path string, params url.Values, out interface{}) error {
	signed, err := c.auth.sign(path, params)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("API-Key", signed.APIKey).
		SetHeader("API-Sign", signed.APISign).
		SetBody(signed.Body).
		Post(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode(), resp.String())
	}

	envelope := krakenResponse[json.RawMessage]{}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("%s: kraken error: %s", path, strings.Join(envelope.Error, "; "))
	}
	if envelope.Result == nil {
		return fmt.Errorf("%s: missing result in response", path)
	}
	if out != nil {
		if err := json.Unmarshal(*envelope.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", path, err)
		}
	}
	return nil
}

// instrumentToKrakenPair renders an instrument as Kraken's concatenated pair
// symbol, mapping BTC to Kraken's legacy XBT code.
func instrumentToKrakenPair(instrument types.Instrument) string {
	base := strings.ToUpper(instrument.Base)
	if base == "BTC" {
		base = "XBT"
	}
	return base + strings.ToUpper(instrument.Quote)
}

// formatDecimal renders a float with up to the given precision, trimming
// trailing zeros, matching Kraken's expected plain decimal string form
// (no exponent notation, no unnecessary trailing zeros).
func formatDecimal(v float64, precision int) string {
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}
