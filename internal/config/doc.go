// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the hlsgate runtime configuration.
//
// Precedence is ENV > YAML file > defaults. The YAML file is decoded
// strictly: unknown keys and trailing documents are rejected.
package config
