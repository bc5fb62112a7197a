// Package fetch implements the HTTP retrieval layer shared by every
// provider: bounded retries with exponential backoff, a circuit breaker per
// upstream host, and per-host rate limiting. Callers get back decoded JSON
// or raw bytes; failures carry an error kind instead of crossing the
// boundary as panics.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/arbiterlab/sportsresolve/core"
)

// RetryPolicy bounds the attempts for one logical fetch. Attempt i waits
// InitialDelay * Factor^(i-1) before running.
type RetryPolicy struct {
	Retries      int
	InitialDelay time.Duration
	Factor       float64
}

// DefaultRetryPolicy returns the standard provider retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 2, InitialDelay: 300 * time.Millisecond, Factor: 2}
}

// BreakerPolicy configures the per-host circuit breakers.
type BreakerPolicy struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

// DefaultBreakerPolicy returns the standard breaker policy.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{FailureThreshold: 3, Cooldown: 15 * time.Second}
}

// Client is the shared fetcher. Safe for concurrent use; breaker and
// limiter state is process-wide per client and keyed by hostname.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
	breakers   *breakerSet
	userAgent  string

	rateLimit rate.Limit
	burst     int
	mu        sync.RWMutex
	limiters  map[string]*rate.Limiter

	breakerPolicy BreakerPolicy
	stateHook     func(host, from, to string)
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the transport timeout for a single attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithBreakerPolicy overrides the default breaker policy.
func WithBreakerPolicy(p BreakerPolicy) Option {
	return func(c *Client) { c.breakerPolicy = p }
}

// WithRateLimit sets the per-host request rate. A non-positive rps disables
// limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.rateLimit = rate.Limit(rps)
		c.burst = burst
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithStateChangeHook registers a callback for breaker state transitions.
func WithStateChangeHook(fn func(host, from, to string)) Option {
	return func(c *Client) { c.stateHook = fn }
}

// New creates a fetch client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:         DefaultRetryPolicy(),
		breakerPolicy: DefaultBreakerPolicy(),
		rateLimit:     rate.Limit(10),
		burst:         5,
		limiters:      make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breakers = newBreakerSet(c.breakerPolicy, func(host, from, to string) {
		log.Warn().Str("host", host).Str("from", from).Str("to", to).Msg("circuit breaker state change")
		if c.stateHook != nil {
			c.stateHook(host, from, to)
		}
	})
	return c
}

// JSON fetches rawURL and decodes the response body as JSON. The decoded
// value is a map, slice, or primitive as produced by encoding/json.
func (c *Client) JSON(ctx context.Context, rawURL string, headers map[string]string) (any, error) {
	return c.JSONWithRetry(ctx, rawURL, headers, c.retry)
}

// JSONWithRetry is JSON with a per-call retry policy. Providers that
// declare their own policy in the registry go through here.
func (c *Client) JSONWithRetry(ctx context.Context, rawURL string, headers map[string]string, policy RetryPolicy) (any, error) {
	var payload any
	err := c.do(ctx, rawURL, headers, policy, func(body []byte) error {
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Bytes fetches rawURL and returns the raw response body. Used for feeds
// that are not JSON (RSS).
func (c *Client) Bytes(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, rawURL, headers, c.retry, func(b []byte) error {
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do runs the full retried attempt sequence through the host's breaker.
// A fetch that never began (context already cancelled) touches neither the
// breaker nor the network.
func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string, policy RetryPolicy, decode func([]byte) error) error {
	if err := ctx.Err(); err != nil {
		return core.WrapError(core.KindProviderFailure, "", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return core.NewError(core.KindProviderFailure, "", "invalid url %q", rawURL)
	}
	host := u.Host

	br := c.breakers.get(host)
	_, err = br.Execute(func() (any, error) {
		return nil, c.attempts(ctx, host, rawURL, headers, policy, decode)
	})
	if err != nil {
		if isBreakerOpen(err) {
			return core.NewError(core.KindCircuitOpen, "", "host %s", host)
		}
		if core.KindOf(err) != "" {
			return err
		}
		return core.WrapError(core.KindProviderFailure, "", err)
	}
	return nil
}

// attempts runs up to Retries+1 attempts with exponential backoff. Any
// non-2xx status, transport error, or decode error counts as a failure.
func (c *Client) attempts(ctx context.Context, host, rawURL string, headers map[string]string, policy RetryPolicy, decode func([]byte) error) error {
	limiter := c.limiter(host)

	var lastErr error
	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 {
			delay := backoff(policy, attempt)
			log.Debug().
				Str("url", rawURL).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying fetch")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if err := c.once(ctx, rawURL, headers, decode); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// once performs a single HTTP GET.
func (c *Client) once(ctx context.Context, rawURL string, headers map[string]string, decode func([]byte) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return decode(body)
}

// backoff returns the delay before the given attempt (1-based).
func backoff(p RetryPolicy, attempt int) time.Duration {
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1)))
}

func (c *Client) limiter(host string) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}
	c.mu.RLock()
	l, ok := c.limiters[host]
	c.mu.RUnlock()
	if ok {
		return l
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(c.rateLimit, c.burst)
	c.limiters[host] = l
	return l
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
