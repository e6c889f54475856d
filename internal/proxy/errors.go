// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrSessionNotFound is returned by Registry.Lookup for unknown or
	// already swept session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrOriginMismatch is returned when origin enforcement is on and a
	// proxied URL leaves the session origin.
	ErrOriginMismatch = errors.New("url outside session origin")
)

// UpstreamStatusError reports a non-2xx upstream response.
type UpstreamStatusError struct {
	StatusCode int
	StatusText string
}

func newUpstreamStatusError(resp *http.Response) *UpstreamStatusError {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return &UpstreamStatusError{StatusCode: resp.StatusCode, StatusText: text}
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, e.StatusText)
}
