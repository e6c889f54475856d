// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
)

const reloadDebounce = 200 * time.Millisecond

// fileEntry is the on-disk form. Hand-written files may omit everything
// except key and source_url.
type fileEntry struct {
	ID        string         `yaml:"id,omitempty"`
	Key       string         `yaml:"key"`
	Name      string         `yaml:"name,omitempty"`
	SourceURL string         `yaml:"source_url"`
	IsActive  *bool          `yaml:"is_active,omitempty"`
	Metadata  map[string]any `yaml:"metadata,omitempty"`
	CreatedAt time.Time      `yaml:"created_at,omitempty"`
	UpdatedAt time.Time      `yaml:"updated_at,omitempty"`
}

type fileDocument struct {
	Sources []fileEntry `yaml:"sources"`
}

// FileOptions configures a FileStore.
type FileOptions struct {
	// Watch reloads the file when it changes on disk.
	Watch bool
	Now   func() time.Time
}

// FileStore keeps sources in a YAML file. Writes replace the file
// atomically; external edits are picked up when Watch is set.
type FileStore struct {
	path   string
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.RWMutex
	byKey    map[string]Source
	lastHash [sha256.Size]byte

	watcher   *fsnotify.Watcher
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileStore loads path. A missing file is an empty store; it is created
// on the first write.
func NewFileStore(path string, opts FileOptions) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sources file path: %w", err)
	}
	s := &FileStore{
		path:   abs,
		now:    opts.Now,
		logger: log.WithComponent("sources"),
		byKey:  make(map[string]Source),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.mu.Lock()
	_, err = s.reloadLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if !opts.Watch {
		close(s.done)
		return s, nil
	}
	if err := s.startWatcher(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) (Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.byKey[NormalizeKey(key)]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return src.clone(), nil
}

func (s *FileStore) List(_ context.Context) ([]Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedSources(s.byKey), nil
}

func (s *FileStore) FindByURL(_ context.Context, sourceURL string) (Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if src, ok := findURL(s.byKey, strings.TrimSpace(sourceURL)); ok {
		return src.clone(), nil
	}
	return Source{}, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
}

func (s *FileStore) Create(_ context.Context, in CreateInput) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := newSource(in, nextKey(slices.Collect(maps.Keys(s.byKey))), s.now())
	if err != nil {
		return Source{}, err
	}
	if existing, ok := findURL(s.byKey, src.SourceURL); ok {
		return Source{}, &ConflictError{Key: existing.Key}
	}

	next := cloneMap(s.byKey)
	next[src.Key] = src
	if err := s.commitLocked(next); err != nil {
		return Source{}, err
	}
	return src.clone(), nil
}

func (s *FileStore) Update(_ context.Context, key string, in UpdateInput) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = NormalizeKey(key)
	cur, ok := s.byKey[key]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	updated, err := applyUpdate(cur, in, s.now())
	if err != nil {
		return Source{}, err
	}
	if existing, ok := findURL(s.byKey, updated.SourceURL); ok && existing.Key != key {
		return Source{}, &ConflictError{Key: existing.Key}
	}

	next := cloneMap(s.byKey)
	next[key] = updated
	if err := s.commitLocked(next); err != nil {
		return Source{}, err
	}
	return updated.clone(), nil
}

func (s *FileStore) Delete(_ context.Context, key string) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = NormalizeKey(key)
	cur, ok := s.byKey[key]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	next := cloneMap(s.byKey)
	delete(next, key)
	if err := s.commitLocked(next); err != nil {
		return Source{}, err
	}
	return cur, nil
}

// Ping reports whether the directory holding the file is reachable.
func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// Close stops the watcher. It is safe to call more than once.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

// Reload re-reads the file. An invalid file leaves the current sources in
// place.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	changed, err := s.reloadLocked()
	n := len(s.byKey)
	s.mu.Unlock()

	if err != nil {
		metrics.RecordSourcesReload(false)
		s.logger.Error().Err(err).Str(log.FieldEvent, "sources.reload_failed").Msg("keeping previous sources")
		return err
	}
	if changed {
		metrics.RecordSourcesReload(true)
		s.logger.Info().Str(log.FieldEvent, "sources.reloaded").Int("sources", n).Msg("sources file reloaded")
	}
	return nil
}

// reloadLocked reports whether the in-memory view changed.
func (s *FileStore) reloadLocked() (bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return false, fmt.Errorf("read sources file: %w", err)
	}

	hash := sha256.Sum256(data)
	if hash == s.lastHash {
		return false, nil
	}

	byKey, err := decodeFile(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", s.path, err)
	}
	s.byKey = byKey
	s.lastHash = hash
	metrics.SetSourcesTotal(len(byKey))
	return true, nil
}

func (s *FileStore) commitLocked(next map[string]Source) error {
	data, err := encodeFile(next)
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending sources file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending sources file")
		}
	}()
	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write sources file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace sources file: %w", err)
	}

	s.byKey = next
	s.lastHash = sha256.Sum256(data)
	metrics.SetSourcesTotal(len(next))
	return nil
}

func (s *FileStore) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Atomic replacement swaps the inode, so the directory is watched.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch sources dir: %w", err)
	}
	s.watcher = watcher

	s.logger.Info().
		Str(log.FieldEvent, "sources.watcher_started").
		Str(log.FieldPath, s.path).
		Msg("watching sources file for changes")

	go s.watchLoop()
	return nil
}

func (s *FileStore) watchLoop() {
	defer close(s.done)
	defer func() { _ = s.watcher.Close() }()

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-s.stop:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce.Reset(reloadDebounce)
			}

		case <-debounce.C:
			_ = s.Reload()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Str(log.FieldEvent, "sources.watcher_error").Msg("sources watcher error")
		}
	}
}

func decodeFile(data []byte) (map[string]Source, error) {
	byKey := make(map[string]Source)
	if len(bytes.TrimSpace(data)) == 0 {
		return byKey, nil
	}

	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	urls := make(map[string]string, len(doc.Sources))
	for i, e := range doc.Sources {
		key := NormalizeKey(e.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: sources[%d]: key is required", ErrInvalid, i)
		}
		if err := ValidateURL(e.SourceURL); err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, key, err)
		}
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %s", ErrInvalid, key)
		}
		if other, dup := urls[e.SourceURL]; dup {
			return nil, fmt.Errorf("%w: %s and %s share source_url", ErrConflict, other, key)
		}
		urls[e.SourceURL] = key

		src := Source{
			ID:        e.ID,
			Key:       key,
			Name:      e.Name,
			SourceURL: e.SourceURL,
			IsActive:  e.IsActive == nil || *e.IsActive,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		}
		if src.ID == "" {
			// Stable across reloads of the same hand-written file.
			src.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
		}
		byKey[key] = src
	}
	return byKey, nil
}

func encodeFile(byKey map[string]Source) ([]byte, error) {
	list := sortedSources(byKey)
	doc := fileDocument{Sources: make([]fileEntry, 0, len(list))}
	for _, src := range list {
		active := src.IsActive
		doc.Sources = append(doc.Sources, fileEntry{
			ID:        src.ID,
			Key:       src.Key,
			Name:      src.Name,
			SourceURL: src.SourceURL,
			IsActive:  &active,
			Metadata:  src.Metadata,
			CreatedAt: src.CreatedAt,
			UpdatedAt: src.UpdatedAt,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode sources file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
