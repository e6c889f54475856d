// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

// Wiring errors.
var (
	ErrMissingLogger     = errors.New("daemon: logger missing or disabled")
	ErrMissingAPIHandler = errors.New("daemon: api handler missing")
	ErrMissingManager    = errors.New("daemon: manager missing")
)

// Lifecycle errors.
var (
	ErrManagerNotStarted = errors.New("daemon: shutdown before start")
	ErrManagerStarted    = errors.New("daemon: start called twice")
)
