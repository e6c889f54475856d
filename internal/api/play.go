// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
	"github.com/ManuGH/hlsgate/internal/netutil"
	"github.com/ManuGH/hlsgate/internal/proxy"
	"github.com/ManuGH/hlsgate/internal/resolver"
	"github.com/ManuGH/hlsgate/internal/sources"
)

// PlayResponse is returned by GET /api/v1/play.
type PlayResponse struct {
	SessionID       string `json:"sessionId"`
	PlaybackURL     string `json:"playbackUrl"`
	FullPlaybackURL string `json:"fullPlaybackUrl"`
}

// handlePlay resolves a source and opens a proxy session for it.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "play")

	sourceID := strings.TrimSpace(r.URL.Query().Get("sourceId"))
	if sourceID == "" {
		metrics.RecordPlayRequest("bad_request")
		writeError(w, http.StatusBadRequest, "Missing sourceId query parameter")
		return
	}
	logger = logger.With().Str(log.FieldSourceID, sourceID).Logger()

	originalURL, err := sources.Lookup(ctx, s.sources, sourceID)
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			metrics.RecordPlayRequest("source_not_found")
			writeError(w, http.StatusNotFound, "Source ID not found: "+sourceID)
			return
		}
		metrics.RecordPlayRequest("error")
		logger.Error().Err(err).Msg("source lookup failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	result, err := s.resolver.Resolve(ctx, sourceID, originalURL)
	if err != nil {
		if ctx.Err() != nil {
			// Client went away; nobody is left to answer.
			logger.Debug().Err(err).Msg("client cancelled play request")
			return
		}
		metrics.RecordPlayRequest("unresolvable")
		logger.Warn().
			Err(err).
			Str("reason", resolver.Reason(err)).
			Str(log.FieldEvent, "play.resolve_failed").
			Msg("resolver returned no usable stream")
		writeError(w, http.StatusUnprocessableEntity, "Failed to resolve a valid HLS stream")
		return
	}

	masterURL := result.MasterURL()
	originBase, err := netutil.OriginOf(masterURL)
	if err != nil {
		metrics.RecordPlayRequest("unresolvable")
		logger.Warn().Err(err).
			Str(log.FieldUpstreamURL, log.RedactURL(masterURL)).
			Msg("master url has no origin")
		writeError(w, http.StatusUnprocessableEntity, "Could not determine origin from master URL")
		return
	}

	now := s.now()
	sess := proxy.Session{
		SessionID:       s.newID(),
		SourceID:        sourceID,
		OriginBase:      originBase,
		MasterURL:       masterURL,
		UpstreamHeaders: s.upstreamHeaders(result.RequiredHeaders),
		CookieHeader:    proxy.BuildCookieHeader(toProxyCookies(result.RequiredCookies), now),
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.SessionTTL),
	}
	s.registry.Create(sess)
	metrics.RecordPlayRequest("ok")

	playbackURL := "/hls/" + sess.SessionID + "/master.m3u8"
	logger.Info().
		Str(log.FieldSessionID, sess.SessionID).
		Str(log.FieldEvent, "play.session_created").
		Time("expires_at", sess.ExpiresAt).
		Msg("responding with playback url")

	writeJSON(w, http.StatusOK, PlayResponse{
		SessionID:       sess.SessionID,
		PlaybackURL:     playbackURL,
		FullPlaybackURL: s.cfg.PublicURL + playbackURL,
	})
}

// upstreamHeaders sanitizes the resolver headers and fills in the
// configured Accept-Language when the resolver sent none.
func (s *Server) upstreamHeaders(required map[string]string) map[string]string {
	headers := proxy.SanitizeHeaders(required)
	if s.cfg.AcceptLanguage == "" {
		return headers
	}
	for name := range headers {
		if strings.EqualFold(name, "Accept-Language") {
			return headers
		}
	}
	headers["Accept-Language"] = s.cfg.AcceptLanguage
	return headers
}

func toProxyCookies(in []resolver.Cookie) []proxy.Cookie {
	out := make([]proxy.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, proxy.Cookie{Name: c.Name, Value: c.Value, Expires: c.ExpiresAt()})
	}
	return out
}

// handleDeleteSession ends a session early. Unknown ids are not an error.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if s.registry.Delete(id) {
		logger := log.WithComponentFromContext(r.Context(), "play")
		logger.Info().
			Str(log.FieldSessionID, id).
			Str(log.FieldEvent, "session.deleted").
			Msg("session ended by client")
	}
	w.WriteHeader(http.StatusNoContent)
}
