// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package netutil holds the URL helpers used to rewrite playlist references.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrNoOrigin is returned when a URL has no usable scheme or host.
var ErrNoOrigin = errors.New("url has no origin")

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// hostProfile is the lookup profile without STD3 rules, so CDN hostnames
// with underscores survive.
var hostProfile = idna.New(idna.MapForLookup(), idna.BidiRule(), idna.StrictDomainName(false))

// OriginOf returns the scheme://host[:port] origin of raw.
// Hosts are lower-cased and converted to their ASCII form; default ports are
// dropped.
func OriginOf(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return originOfURL(u)
}

func originOfURL(u *url.URL) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrNoOrigin, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrNoOrigin)
	}
	if net.ParseIP(host) == nil {
		ascii, err := hostProfile.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("%w: invalid host %q: %v", ErrNoOrigin, host, err)
		}
		host = ascii
	}
	host = strings.ToLower(host)
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}

// ResolveReference makes a playlist reference absolute against base.
//
// References starting with "http" are returned unchanged, "/"-prefixed
// references resolve against the origin of base and "//"-prefixed ones
// against its scheme. Anything else is appended to the directory of base's
// path. If base cannot be parsed, ref is returned unchanged.
func ResolveReference(ref, base string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return ref
	}
	if strings.HasPrefix(ref, "//") && u.Scheme != "" {
		return u.Scheme + ":" + ref
	}
	origin, err := originOfURL(u)
	if err != nil {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return origin + ref
	}
	p := u.EscapedPath()
	dir := p[:max(strings.LastIndex(p, "/"), 0)]
	return origin + dir + "/" + ref
}

const upperhex = "0123456789ABCDEF"

// EncodeComponent percent-encodes s so it can travel as a single path
// segment. Unreserved characters are A-Z a-z 0-9 and -_.!~*'(); every other
// byte is escaped.
func EncodeComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !isUnreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// DecodeComponent reverses EncodeComponent. '+' is left as is.
func DecodeComponent(s string) (string, error) {
	return url.PathUnescape(s)
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
