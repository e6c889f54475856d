// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
	"github.com/ManuGH/hlsgate/internal/netutil"
)

// ContentTypeHLS is served for every rewritten playlist.
const ContentTypeHLS = "application/vnd.apple.mpegurl; charset=utf-8"

// maxPlaylistBytes caps how much of an upstream playlist is read.
const maxPlaylistBytes = 8 << 20

// HandlerConfig configures the HLS routes.
type HandlerConfig struct {
	// EnforceOrigin rejects media and segment URLs outside the session origin.
	EnforceOrigin bool
}

// Handler serves the per-session HLS routes.
type Handler struct {
	registry      *Registry
	fetcher       *Fetcher
	enforceOrigin bool
}

// NewHandler creates the HLS route handler.
func NewHandler(registry *Registry, fetcher *Fetcher, cfg HandlerConfig) *Handler {
	return &Handler{
		registry:      registry,
		fetcher:       fetcher,
		enforceOrigin: cfg.EnforceOrigin,
	}
}

// Mount registers the HLS routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/hls/{sessionID}", func(r chi.Router) {
		r.Get("/master.m3u8", h.ServeMaster)
		r.Get("/media/*", h.ServeMedia)
		r.Get("/segment/*", h.ServeSegment)
	})
}

// ServeMaster fetches the session's master playlist and rewrites it.
func (h *Handler) ServeMaster(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	logger := requestLogger(r, sess)

	body, err := h.fetchPlaylist(r.Context(), sess.MasterURL, sess, metrics.ManifestMaster)
	if err != nil {
		h.writeUpstreamError(w, r, logger, err, "Failed to process master manifest")
		return
	}

	out := RewriteMaster(string(body), sess.SessionID, sess.MasterURL)
	metrics.RecordManifestRewrite(metrics.ManifestMaster)
	logger.Debug().Str(log.FieldManifestType, metrics.ManifestMaster).Msg("rewrote master manifest")

	writePlaylist(w, out)
}

// ServeMedia fetches a media playlist named by the encoded wildcard and
// rewrites its segment references.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	target, ok := decodeTarget(w, r, "Missing media playlist URL")
	if !ok {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	logger := requestLogger(r, sess)
	if !h.checkOrigin(w, logger, sess, target) {
		return
	}

	body, err := h.fetchPlaylist(r.Context(), target, sess, metrics.ManifestMedia)
	if err != nil {
		h.writeUpstreamError(w, r, logger, err, "Failed to process media manifest")
		return
	}

	out := RewriteMedia(string(body), sess.SessionID, target)
	metrics.RecordManifestRewrite(metrics.ManifestMedia)
	logger.Debug().
		Str(log.FieldManifestType, metrics.ManifestMedia).
		Str(log.FieldUpstreamURL, log.RedactURL(target)).
		Msg("rewrote media manifest")

	writePlaylist(w, out)
}

// ServeSegment relays a segment named by the encoded wildcard. A client
// Range header is forwarded upstream.
func (h *Handler) ServeSegment(w http.ResponseWriter, r *http.Request) {
	target, ok := decodeTarget(w, r, "Missing segment URL")
	if !ok {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	logger := requestLogger(r, sess)
	if !h.checkOrigin(w, logger, sess, target) {
		return
	}

	var overrides http.Header
	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		overrides = http.Header{"Range": {rangeHeader}}
	}

	start := time.Now()
	resp, err := h.fetcher.Fetch(r.Context(), target, sess, overrides)
	if err != nil {
		h.writeUpstreamError(w, r, logger, err, "Failed to process segment")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveUpstreamDuration("segment", time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.writeUpstreamError(w, r, logger, newUpstreamStatusError(resp), "Failed to process segment")
		return
	}

	n, err := RelaySegment(w, resp, rangeHeader != "")
	metrics.RecordSegmentProxied(n)
	if err != nil && r.Context().Err() == nil {
		// Headers are already sent; all that is left is to log.
		logger.Warn().Err(err).
			Str(log.FieldUpstreamURL, log.RedactURL(target)).
			Int64(log.FieldBytes, n).
			Msg("segment relay interrupted")
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.registry.Lookup(id)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "hls-proxy")
		logger.Debug().Err(err).Msg("request for unknown session")
		writeError(w, http.StatusNotFound, "Session not found")
		return Session{}, false
	}
	return sess, true
}

func (h *Handler) checkOrigin(w http.ResponseWriter, logger zerolog.Logger, sess Session, target string) bool {
	if !h.enforceOrigin {
		return true
	}
	origin, err := netutil.OriginOf(target)
	if err == nil && origin == sess.OriginBase {
		return true
	}
	metrics.RecordOriginRejection()
	logger.Warn().
		Err(ErrOriginMismatch).
		Str(log.FieldUpstreamURL, log.RedactURL(target)).
		Msg("refusing url outside session origin")
	writeError(w, http.StatusForbidden, "URL outside session origin")
	return false
}

// fetchPlaylist GETs target and returns its body, or an *UpstreamStatusError
// for a non-2xx response.
func (h *Handler) fetchPlaylist(ctx context.Context, target string, sess Session, kind string) ([]byte, error) {
	start := time.Now()
	resp, err := h.fetcher.Fetch(ctx, target, sess, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveUpstreamDuration(kind, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newUpstreamStatusError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	return body, nil
}

// writeUpstreamError propagates an upstream status verbatim and maps every
// other failure to 500. The session is left untouched either way.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error, msg string) {
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		metrics.RecordUpstreamStatus(statusErr.StatusCode)
		logger.Warn().
			Int(log.FieldUpstreamStatus, statusErr.StatusCode).
			Msg("upstream returned non-success status")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(statusErr.StatusCode)
		_, _ = io.WriteString(w, statusErr.StatusText)
		return
	}

	if r.Context().Err() != nil {
		// Client went away; nobody is left to answer.
		logger.Debug().Err(err).Msg("client cancelled upstream fetch")
		return
	}
	metrics.RecordUpstreamTransportError()
	logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

// decodeTarget returns the absolute upstream URL carried in the wildcard.
func decodeTarget(w http.ResponseWriter, r *http.Request, missingMsg string) (string, bool) {
	encoded := chi.URLParam(r, "*")
	if encoded == "" {
		writeError(w, http.StatusBadRequest, missingMsg)
		return "", false
	}
	target, err := netutil.DecodeComponent(encoded)
	if err != nil || target == "" {
		writeError(w, http.StatusBadRequest, "Invalid encoded URL")
		return "", false
	}
	return target, true
}

func requestLogger(r *http.Request, sess Session) zerolog.Logger {
	ctx := log.ContextWithSessionID(r.Context(), sess.SessionID)
	return log.WithComponentFromContext(ctx, "hls-proxy")
}

func writePlaylist(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", ContentTypeHLS)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
