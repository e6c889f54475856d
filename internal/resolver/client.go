// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resolver calls the external stream resolver that turns a source
// page URL into a playable HLS master URL plus the headers and cookies the
// CDN expects.
package resolver

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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
	"github.com/ManuGH/hlsgate/internal/platform/httpx"
	"github.com/ManuGH/hlsgate/internal/resilience"
	"github.com/ManuGH/hlsgate/internal/telemetry"
)

const (
	resolvePath = "/api/v1/resolve"

	defaultTimeout          = 20 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second
	maxResponseBytes        = 1 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one resolver call, rate limiter wait included.
	Timeout time.Duration
	// RateLimit caps calls per second; zero means unlimited.
	RateLimit      rate.Limit
	RateLimitBurst int
	// HTTPClient overrides the default traced client.
	HTTPClient *http.Client
	// Breaker overrides the default circuit breaker.
	Breaker *resilience.CircuitBreaker
}

// Client calls the resolver service. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
}

// New creates a resolver client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 1
		if opts.RateLimit != rate.Inf {
			opts.RateLimitBurst = max(1, int(opts.RateLimit))
		}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpx.Traced(httpx.NewClient(opts.Timeout), "resolver")
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("resolver", defaultBreakerThreshold, defaultBreakerReset,
			resilience.WithFailureClassifier(countsAgainstBreaker))
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		breaker: opts.Breaker,
	}
}

// Resolve asks the resolver for the streams behind originalURL. Concurrent
// calls for the same sourceID share one upstream request. Every failure is
// an *Error.
func (c *Client) Resolve(ctx context.Context, sourceID, originalURL string) (*Result, error) {
	ch := c.group.DoChan(sourceID, func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.resolve(callCtx, sourceID, originalURL)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) resolve(ctx context.Context, sourceID, originalURL string) (*Result, error) {
	ctx, span := telemetry.Tracer("hlsgate.resolver").Start(ctx, "hlsgate.resolver.resolve",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes("", sourceID)...)

	logger := log.WithComponentFromContext(ctx, "resolver").With().
		Str(log.FieldSourceID, sourceID).
		Logger()

	start := time.Now()
	var result *Result
	err := c.breaker.Execute(func() error {
		var err error
		result, err = c.call(ctx, originalURL)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &Error{Reason: ReasonCircuitOpen, Err: err}
	}
	metrics.ObserveResolverDuration(err == nil, time.Since(start).Seconds())

	if err != nil {
		reason := Reason(err)
		metrics.RecordResolverError(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(telemetry.ErrorAttributes(reason)...)
		logger.Warn().Err(err).Str("reason", reason).Msg("resolver call failed")
		return nil, err
	}

	live := result.Streams[0].IsLive != nil && *result.Streams[0].IsLive
	span.SetAttributes(telemetry.ResolverAttributes(len(result.Streams), live)...)
	span.SetStatus(codes.Ok, "")
	logger.Info().
		Int("streams", len(result.Streams)).
		Str(log.FieldUpstreamURL, log.RedactURL(result.MasterURL())).
		Msg("resolved source")
	return result, nil
}

func (c *Client) call(ctx context.Context, originalURL string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Reason: ReasonRateLimited, Err: err}
	}

	body, err := json.Marshal(resolveRequest{URL: originalURL})
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+resolvePath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int(telemetry.HTTPStatusCodeKey, resp.StatusCode),
		attribute.String(telemetry.HTTPRouteKey, resolvePath),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &Error{
			Reason:     statusReason(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode),
		}
	}

	var result Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, &Error{Reason: ReasonInvalidResponse, Err: fmt.Errorf("%w: %w", ErrInvalidResponse, err)}
	}
	if err := result.validate(); err != nil {
		return nil, &Error{Reason: ReasonInvalidResponse, Err: fmt.Errorf("%w: %w", ErrInvalidResponse, err)}
	}
	if len(result.Streams) == 0 || result.Streams[0].MasterURL == "" {
		return nil, &Error{Reason: ReasonNoStream, Err: ErrNoStream}
	}
	return &result, nil
}

// BreakerState exposes the circuit breaker state for readiness reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
