// Package api is the REST client for the storefront backend: auth, order
// placement, order history and the admin endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBody = 4 << 20

// Client talks to one backend. The breaker, limiter and transport are shared
// by every copy returned from WithCredentials.
type Client struct {
	baseURL        string
	http           *http.Client
	breaker        *gobreaker.CircuitBreaker[*response]
	limiter        *rate.Limiter
	logger         *zap.Logger
	token          func() string
	onUnauthorized func()
}

type response struct {
	status int
	body   []byte
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithRateLimit caps outbound requests per second across all visitors.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithBreaker opens the circuit after maxFailures consecutive transport
// errors or 5xx responses and keeps it open for openFor.
func WithBreaker(maxFailures uint32, openFor time.Duration) Option {
	return func(cl *Client) {
		cl.breaker = newBreaker(maxFailures, openFor, cl)
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker(5, 30*time.Second, c)
	}
	return c
}

func newBreaker(maxFailures uint32, openFor time.Duration, c *Client) *gobreaker.CircuitBreaker[*response] {
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// A visitor hanging up says nothing about backend health.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var apiErr *Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// WithCredentials returns a copy of c that attaches the bearer token from
// token on every request and calls onUnauthorized when the backend answers 401.
func (c *Client) WithCredentials(token func() string, onUnauthorized func()) *Client {
	cp := *c
	cp.token = token
	cp.onUnauthorized = onUnauthorized
	return &cp
}

type requestOptions struct {
	headers          http.Header
	skipUnauthorized bool
}

type RequestOption func(*requestOptions)

// WithIdempotencyKey marks a request so the backend can drop duplicates.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *requestOptions) {
		if key != "" {
			o.headers.Set("Idempotency-Key", key)
		}
	}
}

// WithBearerToken sends tok instead of the token from WithCredentials.
func WithBearerToken(tok string) RequestOption {
	return func(o *requestOptions) {
		if tok != "" {
			o.headers.Set("Authorization", "Bearer "+tok)
		}
	}
}

func withoutUnauthorizedHook() RequestOption {
	return func(o *requestOptions) { o.skipUnauthorized = true }
}

// do sends one request and decodes a 2xx body into out. Non-2xx answers come
// back as *Error.
func (c *Client) do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	body, err := c.send(ctx, method, path, in, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send returns the trimmed 2xx body.
func (c *Client) send(ctx context.Context, method, path string, in any, opts ...RequestOption) ([]byte, error) {
	ro := requestOptions{headers: http.Header{}}
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = b
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, payload, ro.headers)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	}
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && c.onUnauthorized != nil && !ro.skipUnauthorized {
			c.logger.Warn("backend returned 401, discarding credential", zap.String("path", path))
			c.onUnauthorized()
		}
		return nil, err
	}
	return bytes.TrimSpace(resp.body), nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, headers http.Header) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header = headers
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil && req.Header.Get("Authorization") == "" {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	out := &response{status: resp.StatusCode, body: raw}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, newError(resp.StatusCode, raw)
	}
	return out, nil
}
