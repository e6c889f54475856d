// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package httpx builds the outbound HTTP clients. Nothing in hlsgate uses
// http.DefaultClient.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4

	streamingDialTimeout         = 5 * time.Second
	streamingHeaderTimeout       = 15 * time.Second
	streamingIdleConnTimeout     = 90 * time.Second
	streamingMaxIdleConns        = 128
	streamingMaxIdleConnsPerHost = 32

	expectContinueTimeout = time.Second
	tcpKeepAlive          = 30 * time.Second
)

type pool struct {
	dial, header, idle time.Duration
	idleConns, perHost int
}

func (p pool) transport() *http.Transport {
	d := &net.Dialer{Timeout: p.dial, KeepAlive: tcpKeepAlive}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   p.dial,
		ResponseHeaderTimeout: p.header,
		ExpectContinueTimeout: expectContinueTimeout,
		IdleConnTimeout:       p.idle,
		MaxIdleConns:          p.idleConns,
		MaxIdleConnsPerHost:   p.perHost,
	}
}

// NewClient is for short request/response calls such as the resolver.
// timeout bounds the whole exchange and caps dial and header waits.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	p := pool{
		dial:      min(timeout, defaultDialTimeout),
		header:    min(timeout, defaultResponseHeaderTimeout),
		idle:      defaultIdleConnTimeout,
		idleConns: defaultMaxIdleConns,
		perHost:   defaultMaxIdleConnsPerHost,
	}
	return &http.Client{Timeout: timeout, Transport: p.transport()}
}

// NewStreamingClient is for playlist and segment fetches. It has no total
// deadline; segment bodies end when the upstream or the request context
// says so. headerTimeout bounds the wait for response headers.
func NewStreamingClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = streamingHeaderTimeout
	}
	p := pool{
		dial:      min(headerTimeout, streamingDialTimeout),
		header:    headerTimeout,
		idle:      streamingIdleConnTimeout,
		idleConns: streamingMaxIdleConns,
		perHost:   streamingMaxIdleConnsPerHost,
	}
	return &http.Client{Transport: p.transport()}
}

// Traced installs an otelhttp transport on c, naming spans "<operation> <METHOD>".
// c itself is modified.
func Traced(c *http.Client, operation string) *http.Client {
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.Transport = otelhttp.NewTransport(next, otelhttp.WithSpanNameFormatter(
		func(_ string, r *http.Request) string { return operation + " " + r.Method },
	))
	return c
}
