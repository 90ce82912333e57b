// Package nationalgas implements the GAS_QUALITY, INSTANTANEOUS_FLOW and
// GAS_PUBLICATIONS adapters, all served by api.nationalgas.com.
package nationalgas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 60 * time.Second
	rateLimitSleep      = 15 * time.Second
	defaultRequestsPerS = 1.0 / 1.5 // one request per 1.5s, matching the upstream's politeness pause
)

// Client is the shared HTTP client for every api.nationalgas.com dataset.
// It owns the politeness throttle between requests and the 429 hard-stop
// retry; adapters never retry on their own.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *slog.Logger
	rateLimitSleep time.Duration
}

// Option configures an optional Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (e.g. for tests pointed
// at an httptest.Server).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRequestsPerSecond overrides the default politeness throttle.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRateLimitSleep overrides the 429 hard-stop sleep, chiefly so tests
// don't have to wait out the real 15s pause.
func WithRateLimitSleep(d time.Duration) Option {
	return func(c *Client) { c.rateLimitSleep = d }
}

// NewClient returns a Client with production defaults: a 60s timeout and a
// politeness pause of 1.5s between requests.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: defaultTimeout},
		limiter:        rate.NewLimiter(rate.Limit(defaultRequestsPerS), 1),
		logger:         slog.Default(),
		rateLimitSleep: rateLimitSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PostJSON sends a POST with a JSON body, honors the politeness throttle,
// and hard-stops on a single 429 by sleeping 15s and retrying exactly once.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request payload: %w", err)
	}

	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		return c.httpClient.Do(req)
	}

	return c.doWithPolitenessAndRetry(ctx, url, do)
}

// GetJSON sends a GET, honoring the same politeness throttle and 429
// hard-stop as PostJSON.
func (c *Client) GetJSON(ctx context.Context, url string) ([]byte, error) {
	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		return c.httpClient.Do(req)
	}

	return c.doWithPolitenessAndRetry(ctx, url, do)
}

func (c *Client) doWithPolitenessAndRetry(ctx context.Context, url string, do func() (*http.Response, error)) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for politeness throttle: %w", err)
	}

	resp, err := do()
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()

		c.logger.Warn("rate limited, sleeping before single retry", slog.String("url", url), slog.Duration("sleep", c.rateLimitSleep))

		select {
		case <-time.After(c.rateLimitSleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		resp, err = do()
		if err != nil {
			return nil, fmt.Errorf("retry request %s: %w", url, err)
		}
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
