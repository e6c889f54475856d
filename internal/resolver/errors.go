// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStream means the resolver answered but found no HLS stream.
	ErrNoStream = errors.New("resolver returned no hls stream")
	// ErrUpstreamStatus means the resolver answered with a non-2xx status.
	ErrUpstreamStatus = errors.New("resolver returned non-success status")
	// ErrInvalidResponse means the resolver body did not match the contract.
	ErrInvalidResponse = errors.New("invalid resolver response")
)

// Failure reasons, used as metric labels.
const (
	ReasonInvalidResponse = "invalid_response"
	ReasonNoStream        = "no_hls_stream"
	ReasonNetwork         = "network_error"
	ReasonCircuitOpen     = "circuit_open"
	ReasonRateLimited     = "rate_limited"
)

// Error is returned by Client.Resolve for every failed call.
type Error struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve (%s): %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func statusReason(code int) string {
	return fmt.Sprintf("http_%d", code)
}

// Reason extracts the failure reason of err, or "" when err is not a
// resolver error.
func Reason(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Reason
	}
	return ""
}

// countsAgainstBreaker reports whether err says the resolver itself is
// unhealthy. Per-source outcomes and client errors do not.
func countsAgainstBreaker(err error) bool {
	var rerr *Error
	if !errors.As(err, &rerr) {
		return true
	}
	switch rerr.Reason {
	case ReasonNoStream, ReasonRateLimited:
		return false
	case ReasonNetwork, ReasonInvalidResponse:
		return true
	}
	return rerr.StatusCode >= 500
}
