// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
)

// DefaultSweepInterval bounds how long an expired session stays usable.
const DefaultSweepInterval = 60 * time.Second

// Session is the state needed to proxy one playback. It is never mutated
// after it has been handed to the Registry.
type Session struct {
	SessionID  string
	SourceID   string
	OriginBase string
	MasterURL  string
	// UpstreamHeaders holds allow-listed headers replayed on every fetch.
	UpstreamHeaders map[string]string
	// CookieHeader is sent as Cookie when non-empty.
	CookieHeader string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (s Session) clone() Session {
	s.UpstreamHeaders = maps.Clone(s.UpstreamHeaders)
	return s
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// SweepInterval is how often expired sessions are removed. Zero uses
	// DefaultSweepInterval; a negative value disables the sweeper.
	SweepInterval time.Duration
	// Now overrides the clock used by Sweep.
	Now func() time.Time
}

// Registry is the in-memory session store. It is safe for concurrent use
// and owns a background sweeper that runs until Close.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its sweeper.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		sessions: make(map[string]Session),
		now:      cfg.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if r.now == nil {
		r.now = time.Now
	}

	interval := cfg.SweepInterval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if interval > 0 {
		go r.runSweeper(interval)
	} else {
		close(r.done)
	}
	return r
}

// Create inserts s, replacing any session with the same id.
func (r *Registry) Create(s Session) {
	r.mu.Lock()
	r.sessions[s.SessionID] = s.clone()
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.RecordSessionCreated()
	metrics.SetSessionsActive(n)
}

// Get returns the session for id. Expiry is not checked here; the sweeper
// removes expired sessions.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Lookup is Get reporting a miss as ErrSessionNotFound.
func (r *Registry) Lookup(id string) (Session, error) {
	s, ok := r.Get(id)
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes id and reports whether it was present.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		metrics.RecordSessionsRemoved("deleted", 1)
		metrics.SetSessionsActive(n)
	}
	return ok
}

// Sweep removes every expired session and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.RecordSessionsRemoved("expired", removed)
	metrics.SetSessionsActive(n)
	return removed
}

// Len returns the number of held sessions, expired or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the sweeper and waits for it to exit. It is safe to call
// more than once.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Registry) runSweeper(interval time.Duration) {
	defer close(r.done)

	logger := log.WithComponent("session-registry")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Debug().
					Str(log.FieldEvent, "sessions.swept").
					Int("removed", n).
					Int("active", r.Len()).
					Msg("expired sessions removed")
			}
		case <-r.stop:
			return
		}
	}
}
