// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"fmt"
	"net/url"
	"time"
)

// StreamTypeHLS is the only stream type the gateway accepts.
const StreamTypeHLS = "HLS"

// Result is the resolver's answer for one source. It is shared between
// concurrent callers of the same source and must be treated as read-only.
type Result struct {
	SessionID       string            `json:"sessionId"`
	PageURL         string            `json:"pageUrl"`
	DetectedAt      string            `json:"detectedAt"`
	Streams         []Stream          `json:"streams"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
	RequiredCookies []Cookie          `json:"requiredCookies,omitempty"`
}

// Stream is one playable stream found on the source page.
type Stream struct {
	Type      string `json:"type"`
	MasterURL string `json:"masterUrl"`
	IsLive    *bool  `json:"isLive,omitempty"`
}

// Cookie is a cookie the upstream CDN expects. Expires is in Unix seconds;
// zero or absent means a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// ExpiresAt converts Expires to a time. The zero time means no expiry.
func (c Cookie) ExpiresAt() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// MasterURL returns the master playlist of the first stream.
func (r *Result) MasterURL() string {
	if r == nil || len(r.Streams) == 0 {
		return ""
	}
	return r.Streams[0].MasterURL
}

// validate checks the shape of a decoded response. An empty stream list is
// reported separately as ErrNoStream by the caller.
func (r *Result) validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("sessionId is required")
	}
	if !isAbsoluteURL(r.PageURL) {
		return fmt.Errorf("pageUrl %q is not an absolute URL", r.PageURL)
	}
	if _, err := time.Parse(time.RFC3339Nano, r.DetectedAt); err != nil {
		return fmt.Errorf("detectedAt: %w", err)
	}
	if r.RequiredHeaders == nil {
		return fmt.Errorf("requiredHeaders is required")
	}
	for i, s := range r.Streams {
		if s.Type != StreamTypeHLS {
			return fmt.Errorf("streams[%d]: unsupported type %q", i, s.Type)
		}
		if !isAbsoluteURL(s.MasterURL) {
			return fmt.Errorf("streams[%d]: masterUrl %q is not an absolute URL", i, s.MasterURL)
		}
	}
	for i, c := range r.RequiredCookies {
		if c.Name == "" {
			return fmt.Errorf("requiredCookies[%d]: name is required", i)
		}
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

type resolveRequest struct {
	URL string `json:"url"`
}
