// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/hlsgate/internal/config"
	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/persistence/sqlite"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := checkListenAddr(logger, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if err := checkHTTPURL(logger, "server.publicURL", cfg.Server.PublicURL); err != nil {
		return fmt.Errorf("public url check failed: %w", err)
	}
	if err := checkHTTPURL(logger, "resolver.baseURL", cfg.Resolver.BaseURL); err != nil {
		return fmt.Errorf("resolver url check failed: %w", err)
	}

	switch cfg.Sources.Backend {
	case config.BackendFile, config.BackendSQLite:
		if err := checkDataDir(logger, filepath.Dir(cfg.Sources.Path)); err != nil {
			return fmt.Errorf("sources directory check failed: %w", err)
		}
		warnIfTemp(logger, cfg.Sources.Path)
	case config.BackendRedis:
		logger.Info().Str("addr", cfg.Sources.Redis.Addr).Msg("sources stored in redis; connectivity is checked on open")
	}
	if cfg.Sources.Backend == config.BackendSQLite {
		if err := checkDatabase(ctx, logger, cfg.Sources.Path); err != nil {
			return fmt.Errorf("sources database check failed: %w", err)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkHTTPURL(logger zerolog.Logger, field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	logger.Info().Str("field", field).Str("url", log.RedactURL(raw)).Msg("url is valid")
	return nil
}

// checkDataDir creates path if missing and probes it for writes.
func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	probe, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	logger.Info().Str("path", path).Msg("sources directory is writable")
	return nil
}

// checkDatabase runs a quick integrity check on an existing sources
// database. A missing file is created later by the store.
func checkDatabase(ctx context.Context, logger zerolog.Logger, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	issues, err := sqlite.VerifyFile(ctx, path, "quick")
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("integrity check of %s: %s", path, strings.Join(issues, "; "))
	}
	logger.Info().Str("path", path).Msg("sources database passed integrity check")
	return nil
}

func warnIfTemp(logger zerolog.Logger, path string) {
	tempDir := filepath.Clean(os.TempDir())
	dir := filepath.Clean(filepath.Dir(path))
	if tempDir != "." && (dir == tempDir || strings.HasPrefix(dir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("path", path).
			Msg("sources are stored under temp; they may be lost on reboot")
	}
}
