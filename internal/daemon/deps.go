// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps is what a Manager needs from Bootstrap.
type Deps struct {
	Logger zerolog.Logger
	// APIHandler is the complete gateway router: /api/v1, /hls, probes and /metrics.
	APIHandler http.Handler
}

// Validate rejects a disabled logger or a missing handler.
func (d Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}
