// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/textproto"
)

// hopByHopHeaders never travel from a client request or session to the
// upstream.
var hopByHopHeaders = []string{
	"Connection",
	"Host",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher performs upstream GETs on behalf of a session.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher that uses client. client should come from
// httpx.NewStreamingClient.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch issues a single GET for target. Session headers are applied first,
// then overrides (which win on collision), then the session Cookie; hop-by-hop
// headers are removed last. The response is returned without interpreting its
// status; the caller must close the body.
func (f *Fetcher) Fetch(ctx context.Context, target string, s Session, overrides http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = buildUpstreamHeader(s, overrides)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch: %w", err)
	}
	return resp, nil
}

func buildUpstreamHeader(s Session, overrides http.Header) http.Header {
	h := make(http.Header, len(s.UpstreamHeaders)+len(overrides)+1)
	for name, value := range s.UpstreamHeaders {
		h.Set(name, value)
	}
	for name, values := range overrides {
		h[textproto.CanonicalMIMEHeaderKey(name)] = append([]string(nil), values...)
	}
	if s.CookieHeader != "" {
		h.Set("Cookie", s.CookieHeader)
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
	return h
}
