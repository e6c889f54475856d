// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/hlsgate/internal/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	maxHeaderBytes    = 1 << 20

	// used when the server failed or no shutdown timeout is configured
	fallbackShutdownTimeout = 30 * time.Second
)

// ShutdownHook releases one resource. Hooks run last registered first.
type ShutdownHook func(ctx context.Context) error

// Manager owns the HTTP listener and the ordered teardown of everything
// Bootstrap built.
type Manager interface {
	// Start serves until ctx ends or the server fails, then shuts down.
	Start(ctx context.Context) error
	// Shutdown drains the server and runs the hooks. Repeat calls are no-ops.
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type hookEntry struct {
	name string
	fn   ShutdownHook
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	mu       sync.Mutex
	srv      *http.Server
	hooks    []hookEntry
	started  bool
	stopping bool
}

// NewManager checks deps and returns an unstarted Manager.
func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("daemon deps: %w", err)
	}
	return &manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: nil start context")
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrManagerStarted
	}
	m.started = true
	m.mu.Unlock()

	// Bind before returning control so a taken port fails Start itself.
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.cfg.ListenAddr, err)
	}
	serveErr := m.serve(ln)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackShutdownTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		m.logger.Info().Str("event", "daemon.stop_requested").Msg("stopping on signal")
		return m.Shutdown(stopCtx)
	case err := <-serveErr:
		m.logger.Error().Err(err).Str("event", "daemon.server_failed").Msg("http server failed, stopping")
		if sdErr := m.Shutdown(stopCtx); sdErr != nil {
			return errors.Join(err, sdErr)
		}
		return err
	}
}

// serve runs the gateway on ln. There is no WriteTimeout: a segment relay
// lasts as long as the upstream keeps sending.
func (m *manager) serve(ln net.Listener) <-chan error {
	srv := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
	m.mu.Lock()
	m.srv = srv
	m.mu.Unlock()

	out := make(chan error, 1)
	go func() {
		m.logger.Info().
			Str("addr", ln.Addr().String()).
			Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
			Msg("gateway listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			out <- fmt.Errorf("serve: %w", err)
		}
	}()
	return out
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: nil shutdown context")
	}
	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	srv := m.srv
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	timeout := m.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = fallbackShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	slices.Reverse(hooks)
	for _, h := range hooks {
		began := time.Now()
		err := h.fn(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("shutdown hook %q: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("took", time.Since(began)).Msg("shutdown hook finished")
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error().Int("failures", len(errs)).Msg("shutdown finished with errors")
		return err
	}
	m.logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hookEntry{name: name, fn: hook})
	m.mu.Unlock()
}
