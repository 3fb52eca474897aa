// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package mpx implements the authenticated client for the mpx video
// platform API: sign-in token management, the long-poll notification
// endpoint, and cache-bypassing object loads.
//
// The client distinguishes three outcomes the pipeline treats very
// differently: an empty long-poll (expected, not an error), a stale
// cursor rejection (recoverable via reset), and everything else
// (TransportError, fatal for the cycle). See errors.go.
package mpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Lullabot/mpx-sync/internal/config"
	"github.com/Lullabot/mpx-sync/internal/logging"
	"github.com/Lullabot/mpx-sync/internal/metrics"
)

// maxErrorBodySize limits how much of a response body is read for error
// reporting, preventing unbounded allocation on large error responses.
const maxErrorBodySize = 64 * 1024

// maxRateLimitRetries bounds retries for HTTP 429 responses.
const maxRateLimitRetries = 5

// readBodyForError reads at most maxErrorBodySize of r for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

// Client is the authenticated mpx API client. It owns two http.Clients
// because long-poll requests need a far larger timeout than ordinary
// calls, and http.Client timeouts are fixed per client.
//
// Resilience: a circuit breaker guards all requests, HTTP 429 responses
// are retried with exponential backoff honoring Retry-After, and object
// loads pass through a client-side rate limiter so a large resync does
// not hammer the data service.
type Client struct {
	cfg        config.MpxConfig
	tokens     *TokenSource
	httpClient *http.Client
	pollClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	limiter    *rate.Limiter

	retryBaseDelay time.Duration
}

// NewClient creates a client from configuration. The token source may be
// shared with other clients for the same account.
func NewClient(cfg config.MpxConfig, tokens *TokenSource) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "mpx-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.Set(breakerStateValue(to))
		},
	})

	return &Client{
		cfg:            cfg,
		tokens:         tokens,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		pollClient:     &http.Client{Timeout: cfg.PollTimeout},
		breaker:        cb,
		limiter:        limiter,
		retryBaseDelay: time.Second,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// do executes a request through the circuit breaker with 429 backoff.
// The caller owns the response body. 4xx/5xx statuses are returned to the
// caller for classification, not treated as breaker failures, except for
// 5xx which count against the breaker.
func (c *Client) do(httpClient *http.Client, req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			resp, err := httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 {
				// Count server errors as breaker failures but hand the
				// response back so the caller sees the status.
				return resp, fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			return resp, nil
		})
		// The host keeps the label set small; paths carry object ids.
		metrics.APIRequestDuration.WithLabelValues(req.URL.Host).Observe(time.Since(start).Seconds())
		if err != nil && resp == nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		if attempt == maxRateLimitRetries {
			return nil, fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", maxRateLimitRetries)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if parsed, perr := time.ParseDuration(retryAfter + "s"); perr == nil {
				delay = parsed
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// authorizedGet builds a GET request for u with the current token applied
// as a query parameter.
func (c *Client) authorizedGet(ctx context.Context, u string) (*http.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("token", token.Value)
	q.Set("form", "cjson")
	req.URL.RawQuery = q.Encode()

	return req, nil
}
