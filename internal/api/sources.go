// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/sources"
)

// maxBodyBytes caps management request bodies.
const maxBodyBytes = 1 << 20

type createSourceRequest struct {
	SourceURL string         `json:"source_url"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata"`
}

type updateSourceRequest struct {
	Name      *string        `json:"name"`
	SourceURL *string        `json:"source_url"`
	IsActive  *bool          `json:"is_active"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	list, err := s.sources.List(r.Context())
	if err != nil {
		writeSourceError(w, r, "", err)
		return
	}
	if list == nil {
		list = []sources.Source{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	src, err := s.sources.Get(r.Context(), key)
	if err != nil {
		writeSourceError(w, r, key, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		writeError(w, http.StatusBadRequest, "source_url is required")
		return
	}

	src, err := s.sources.Create(r.Context(), sources.CreateInput{
		SourceURL: req.SourceURL,
		Name:      req.Name,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeSourceError(w, r, "", err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "sources")
	logger.Info().
		Str(log.FieldSourceID, src.Key).
		Str(log.FieldEvent, "sources.created").
		Msg("source created")
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req updateSourceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	src, err := s.sources.Update(r.Context(), key, sources.UpdateInput{
		Name:      req.Name,
		SourceURL: req.SourceURL,
		IsActive:  req.IsActive,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeSourceError(w, r, key, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	src, err := s.sources.Delete(r.Context(), key)
	if err != nil {
		writeSourceError(w, r, key, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "sources")
	logger.Info().
		Str(log.FieldSourceID, src.Key).
		Str(log.FieldEvent, "sources.deleted").
		Msg("source deleted")
	writeJSON(w, http.StatusOK, src)
}

// decodeBody decodes a JSON body into dst, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "Request body is required")
		default:
			writeError(w, http.StatusBadRequest, "Invalid request body")
		}
		return false
	}
	return true
}
