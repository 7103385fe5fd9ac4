// SPDX-License-Identifier: MIT

// Package client implements the activity-watch server REST API used by the
// watcher: bucket creation, heartbeats and the server info endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sd-tools/sd-watcher-afk/internal/event"
	"github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/metrics"
	"github.com/sd-tools/sd-watcher-afk/internal/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Config holds client tuning. Zero values fall back to sane defaults.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	Retries          int
	Backoff          time.Duration
	MaxBackoff       time.Duration
	RateLimit        float64 // requests/sec against the server
	RateBurst        int
	BreakerThreshold int
	BreakerReset     time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
}

// Bucket describes a bucket to register with the server.
type Bucket struct {
	Client   string `json:"client"`
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
}

// Info is the server's self description.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Testing  bool   `json:"testing"`
}

// Client talks to an activity-watch compatible server.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retries int
	backoff time.Duration
	maxWait time.Duration
	logger  zerolog.Logger
}

// New builds a client for the given server.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker: resilience.NewCircuitBreaker("server", cfg.BreakerThreshold, cfg.BreakerReset),
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		maxWait: cfg.MaxBackoff,
		logger:  log.WithComponent("client"),
	}
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// CreateBucket registers the bucket. A bucket that already exists (304) is
// treated as success, matching server behavior.
func (c *Client) CreateBucket(ctx context.Context, bucketID string, b Bucket) error {
	path := "/api/0/buckets/" + url.PathEscape(bucketID)
	return c.call(ctx, "create_bucket", http.MethodPost, path, nil, b, nil)
}

// Heartbeat posts an event to the bucket's heartbeat endpoint. Events within
// pulsetime seconds of the previous identical heartbeat are merged by the
// server.
func (c *Client) Heartbeat(ctx context.Context, bucketID string, ev event.Event, pulsetime float64) error {
	path := "/api/0/buckets/" + url.PathEscape(bucketID) + "/heartbeat"
	query := url.Values{"pulsetime": []string{strconv.FormatFloat(pulsetime, 'f', -1, 64)}}
	return c.call(ctx, "heartbeat", http.MethodPost, path, query, ev, nil)
}

// ServerInfo fetches the server's info endpoint.
func (c *Client) ServerInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.call(ctx, "info", http.MethodGet, "/api/0/info", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// call runs one API operation with rate limiting, retries and the breaker.
// Each attempt passes through the breaker so an open circuit fails fast.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := backoffFor(c.backoff, c.maxWait, attempt)
			c.logger.Debug().
				Str(log.FieldEvent, "client.retry").
				Str("operation", op).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("retrying request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		start := time.Now()
		err := c.breaker.Execute(func() error {
			return c.doOnce(ctx, op, method, path, query, payload, out)
		})
		metrics.ObserveServerRequest(op, err, time.Since(start))
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, resilience.ErrCircuitOpen) || !Retryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, query url.Values, payload []byte, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &APIError{Sentinel: ErrBadRequest, Operation: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotModified:
		// Bucket already exists.
		return nil
	case res.StatusCode == http.StatusNotFound:
		return &APIError{Sentinel: ErrNotFound, Operation: op, Status: res.StatusCode}
	case res.StatusCode >= 500:
		return &APIError{Sentinel: ErrServerError, Operation: op, Status: res.StatusCode, Body: readSnippet(res.Body)}
	case res.StatusCode >= 400:
		return &APIError{Sentinel: ErrBadRequest, Operation: op, Status: res.StatusCode, Body: readSnippet(res.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return &APIError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
		}
	}
	return nil
}

func transportError(op string, err error) error {
	sentinel := ErrUnavailable
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		sentinel = ErrTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		sentinel = ErrTimeout
	}
	return &APIError{Sentinel: sentinel, Operation: op, Err: err}
}

func readSnippet(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 256))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
