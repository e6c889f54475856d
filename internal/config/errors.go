// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

var (
	// ErrUnknownConfigField marks a YAML key that no AppConfig field accepts.
	ErrUnknownConfigField = errors.New("config: unknown field")

	// ErrInvalidConfig is the root of every Validate failure.
	ErrInvalidConfig = errors.New("config: invalid")
)
