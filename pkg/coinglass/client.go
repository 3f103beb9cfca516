// Package coinglass reads aggregated derivatives indicators from the metered
// CoinGlass API
package coinglass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultV4URL = "https://open-api-v4.coinglass.com/api"
	DefaultV2URL = "https://open-api.coinglass.com/public/v2"

	// maxConcurrent is the number of in-flight requests allowed by the plan
	maxConcurrent = 5
	// tripAfter consecutive failures open the breaker
	tripAfter = 5
)

// ErrMissingKey is returned when the client is used without credential
var ErrMissingKey = errors.New("coinglass api key not configured")

// Client is the metered aggregator client
type Client struct {
	apiKey     string
	v4URL      string
	v2URL      string
	proxy      string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	sem        *semaphore.Weighted
}

// Option is a function that configures a Client
type Option func(*Client)

// WithBaseURLs overrides the v4 and v2 API hosts
func WithBaseURLs(v4, v2 string) Option {
	return func(c *Client) {
		c.v4URL = v4
		c.v2URL = v2
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

// NewClient creates a client authenticated with apiKey
func NewClient(apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}

	c := &Client{
		apiKey:  apiKey,
		v4URL:   DefaultV4URL,
		v2URL:   DefaultV2URL,
		timeout: 10 * time.Second,
		sem:     semaphore.NewWeighted(maxConcurrent),
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

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "coinglass",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		// missing values are answers, not outages
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, core.ErrIndicatorUnavailable)
		},
	})

	return c, nil
}

// fetch performs a GET holding a concurrency slot, through the breaker
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return gjson.Result{}, err
	}
	defer c.sem.Release(1)

	result, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, endpoint, params)
	})
	if err != nil {
		return gjson.Result{}, err
	}

	return result.(gjson.Result), nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("coinglassSecret", c.apiKey)

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
		return gjson.Result{}, fmt.Errorf("coinglass: unexpected status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("coinglass: invalid json")
	}

	return gjson.ParseBytes(body), nil
}

// State reports the breaker state, eg: closed, open
func (c *Client) State() string {
	return c.breaker.State().String()
}
