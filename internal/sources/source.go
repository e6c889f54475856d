// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sources is the registry of playable sources. A source maps a
// short key (the sourceId clients pass to /api/v1/play) to the page URL
// the resolver understands.
package sources

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown keys and, from Lookup, for
	// inactive sources.
	ErrNotFound = errors.New("source not found")
	// ErrConflict is returned when a source URL is already registered.
	ErrConflict = errors.New("source url already exists")
	// ErrInvalid is returned for input that fails validation.
	ErrInvalid = errors.New("invalid source")
)

// ConflictError carries the key of the source that already owns a URL.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (key %s)", ErrConflict, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Source is one registered source.
type Source struct {
	ID        string         `json:"id" yaml:"id"`
	Key       string         `json:"key" yaml:"key"`
	Name      string         `json:"name" yaml:"name,omitempty"`
	SourceURL string         `json:"source_url" yaml:"source_url"`
	IsActive  bool           `json:"is_active" yaml:"is_active"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

func (s Source) clone() Source {
	s.Metadata = maps.Clone(s.Metadata)
	return s
}

// CreateInput describes a new source. The key is allocated by the store.
type CreateInput struct {
	SourceURL string
	Name      string
	Metadata  map[string]any
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name      *string
	SourceURL *string
	IsActive  *bool
	Metadata  map[string]any
}

// Store persists sources. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (Source, error)
	List(ctx context.Context) ([]Source, error)
	FindByURL(ctx context.Context, sourceURL string) (Source, error)
	Create(ctx context.Context, in CreateInput) (Source, error)
	Update(ctx context.Context, key string, in UpdateInput) (Source, error)
	Delete(ctx context.Context, key string) (Source, error)
	Ping(ctx context.Context) error
	Close() error
}

// Lookup returns the URL behind key. Missing and inactive sources are both
// ErrNotFound.
func Lookup(ctx context.Context, store Store, key string) (string, error) {
	src, err := store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !src.IsActive {
		return "", fmt.Errorf("%w: %s is disabled", ErrNotFound, src.Key)
	}
	return src.SourceURL, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: source_url must be an absolute http(s) URL", ErrInvalid)
	}
	return nil
}

func newSource(in CreateInput, key string, now time.Time) (Source, error) {
	sourceURL := strings.TrimSpace(in.SourceURL)
	if err := ValidateURL(sourceURL); err != nil {
		return Source{}, err
	}
	return Source{
		ID:        uuid.NewString(),
		Key:       key,
		Name:      strings.TrimSpace(in.Name),
		SourceURL: sourceURL,
		IsActive:  true,
		Metadata:  maps.Clone(in.Metadata),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// applyUpdate returns src with in applied.
func applyUpdate(src Source, in UpdateInput, now time.Time) (Source, error) {
	out := src.clone()
	if in.Name != nil {
		out.Name = strings.TrimSpace(*in.Name)
	}
	if in.SourceURL != nil {
		u := strings.TrimSpace(*in.SourceURL)
		if err := ValidateURL(u); err != nil {
			return Source{}, err
		}
		out.SourceURL = u
	}
	if in.IsActive != nil {
		out.IsActive = *in.IsActive
	}
	if in.Metadata != nil {
		out.Metadata = maps.Clone(in.Metadata)
	}
	out.UpdatedAt = now.UTC()
	return out, nil
}
