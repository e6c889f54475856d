// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the YAML file or SQLite database.
	Path  string
	Redis RedisConfig
	// Watch enables hot reload for the file backend.
	Watch bool
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Path, FileOptions{Watch: cfg.Watch})
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown source backend %q", cfg.Backend)
	}
}
