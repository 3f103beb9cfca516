// Package bybit is a minimal client of the Bybit v5 public market API
package bybit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL of the Bybit v5 API
const DefaultBaseURL = "https://api.bybit.com"

// category of the instruments queried, USDT perpetuals
const category = "linear"

const maxAttempts = 3

// intervals maps screener timeframes to Bybit kline intervals
var intervals = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
}

// periods maps screener timeframes to Bybit statistics periods
var periods = map[string]string{
	"1m":  "5min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"1h":  "1h",
}

// APIError is a non-zero retCode answered by the API
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit api error %d: %s", e.Code, e.Message)
}

// Client talks to the public market endpoints
type Client struct {
	baseURL    string
	proxy      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a function that configures a Client
type Option func(*Client)

// WithBaseURL points the client to another API host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithProxy routes every request through the given proxy url
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		c.proxy = proxyURL
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a Bybit public data client
func NewClient(options ...Option) (*Client, error) {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: 10 * time.Second,
	}

	for _, option := range options {
		option(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.proxy != "" {
		proxy, err := url.Parse(c.proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	c.httpClient = &http.Client{Transport: transport, Timeout: c.timeout}

	return c, nil
}

// get performs a GET on path and returns the `result` object of the envelope
func (c *Client) get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
	}

	var (
		result gjson.Result
		err    error
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err = c.do(ctx, path, params)
		if err == nil {
			return result, nil
		}

		// the API answered, retrying would give the same answer
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return gjson.Result{}, err
		}

		select {
		case <-ctx.Done():
			return gjson.Result{}, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	return gjson.Result{}, err
}

func (c *Client) do(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("bybit %s: unexpected status %d", path, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("bybit %s: invalid json", path)
	}

	envelope := gjson.ParseBytes(body)
	if code := envelope.Get("retCode").Int(); code != 0 {
		return gjson.Result{}, &APIError{Code: code, Message: envelope.Get("retMsg").String()}
	}

	return envelope.Get("result"), nil
}
