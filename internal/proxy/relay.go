// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"fmt"
	"io"
	"net/http"
)

// relayHeaders are the only upstream response headers passed to clients.
var relayHeaders = []string{"Content-Type", "Cache-Control", "Expires", "Last-Modified", "Etag"}

// rangeHeaders are relayed as well when the client asked for a byte range.
var rangeHeaders = []string{"Content-Range", "Accept-Ranges", "Content-Length"}

// RelaySegment copies the allow-listed headers and status of resp to w and
// streams the body unmodified. It returns the number of body bytes written.
func RelaySegment(w http.ResponseWriter, resp *http.Response, rangeRequested bool) (int64, error) {
	copyHeaders(w.Header(), resp.Header, relayHeaders)
	if rangeRequested {
		copyHeaders(w.Header(), resp.Header, rangeHeaders)
	}
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("relay segment body: %w", err)
	}
	return n, nil
}

func copyHeaders(dst, src http.Header, names []string) {
	for _, name := range names {
		if values := src.Values(name); len(values) > 0 {
			dst[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
}
