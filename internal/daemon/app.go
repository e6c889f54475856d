// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Reloader is implemented by source stores that can re-read their backing
// file on demand.
type Reloader interface {
	Reload() error
}

// App runs the Manager next to the SIGHUP reload loop.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	reloader     Reloader
	reloadSignal os.Signal
}

// NewApp wires an App; reloader may be nil when the source store has no file.
func NewApp(logger zerolog.Logger, manager Manager, reloader Reloader) *App {
	return &App{logger: logger, manager: manager, reloader: reloader, reloadSignal: syscall.SIGHUP}
}

// Manager exposes the server manager for extra shutdown hooks.
func (a *App) Manager() Manager {
	return a.manager
}

// Run blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.reloader != nil && a.reloadSignal != nil {
		g.Go(func() error {
			a.reloadOnSignal(ctx)
			return nil
		})
	}
	g.Go(func() error {
		if err := a.manager.Start(ctx); err != nil {
			_ = a.manager.Shutdown(context.Background())
			return err
		}
		return nil
	})
	return g.Wait()
}

func (a *App) reloadOnSignal(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.reloadSignal)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
		}
		err := a.reloader.Reload()
		ev := a.logger.Info().Str("event", "sources.reloaded")
		if err != nil {
			ev = a.logger.Warn().Err(err).Str("event", "sources.reload_failed")
		}
		ev.Str("signal", a.reloadSignal.String()).Msg("sources reload on signal")
	}
}
