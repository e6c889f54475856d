// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
)

// allowedUpstreamHeaders are the only resolver headers replayed upstream.
var allowedUpstreamHeaders = map[string]struct{}{
	"user-agent":      {},
	"referer":         {},
	"origin":          {},
	"accept":          {},
	"accept-language": {},
}

// SanitizeHeaders keeps the allow-listed entries of required whose name and
// value are valid HTTP header tokens. Retained keys keep their spelling.
// Invalid values are dropped and counted; they never fail the session.
func SanitizeHeaders(required map[string]string) map[string]string {
	out := make(map[string]string, len(required))
	for name, value := range required {
		lower := strings.ToLower(name)
		if _, ok := allowedUpstreamHeaders[lower]; !ok {
			continue
		}
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			metrics.RecordInvalidHeader(lower)
			logger := log.WithComponent("sanitizer")
			logger.Warn().
				Str(log.FieldHeader, lower).
				Msg("dropping invalid resolver header")
			continue
		}
		out[name] = value
	}
	return out
}

// Cookie is a resolver-supplied cookie flattened into the Cookie header.
type Cookie struct {
	Name  string
	Value string
	// Expires is zero for session cookies.
	Expires time.Time
}

// BuildCookieHeader joins the cookies still valid at now as "name=value"
// pairs separated by "; ". It returns "" when no cookie survives.
func BuildCookieHeader(cookies []Cookie, now time.Time) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		pair := c.Name + "=" + c.Value
		if c.Name == "" || !httpguts.ValidHeaderFieldValue(pair) || strings.ContainsRune(pair, ';') {
			metrics.RecordInvalidHeader("cookie")
			continue
		}
		pairs = append(pairs, pair)
	}
	return strings.Join(pairs, "; ")
}
