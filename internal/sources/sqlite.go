// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/hlsgate/internal/metrics"
	"github.com/ManuGH/hlsgate/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL UNIQUE,
	is_active INTEGER NOT NULL DEFAULT 1,
	metadata TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

const sourceColumns = `id, key, name, source_url, is_active, metadata, created_at, updated_at`

// SQLiteStore keeps sources in a SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
	// writeMu serializes read-modify-write transactions; SQLite would
	// otherwise fail lock upgrades with SQLITE_BUSY.
	writeMu sync.Mutex
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, sqliteSchemaVersion, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("source store: migration failed: %w", err)
	}
	s := &SQLiteStore{db: db, now: time.Now}
	s.refreshGauge(ctx)
	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE key = ?`, NormalizeKey(key))
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return src, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byKey := make(map[string]Source)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		byKey[src.Key] = src
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortedSources(byKey), nil
}

func (s *SQLiteStore) FindByURL(ctx context.Context, sourceURL string) (Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE source_url = ?`, strings.TrimSpace(sourceURL))
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	}
	return src, err
}

func (s *SQLiteStore) Create(ctx context.Context, in CreateInput) (Source, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Source{}, err
	}
	defer func() { _ = tx.Rollback() }()

	keys, err := queryKeys(ctx, tx)
	if err != nil {
		return Source{}, err
	}
	src, err := newSource(in, nextKey(keys), s.now())
	if err != nil {
		return Source{}, err
	}
	if err := conflictCheck(ctx, tx, src.SourceURL, ""); err != nil {
		return Source{}, err
	}

	meta, err := encodeMetadata(src.Metadata)
	if err != nil {
		return Source{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Key, src.Name, src.SourceURL, src.IsActive, meta,
		formatTime(src.CreatedAt), formatTime(src.UpdatedAt))
	if err != nil {
		return Source{}, fmt.Errorf("insert source: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Source{}, err
	}
	s.refreshGauge(ctx)
	return src, nil
}

func (s *SQLiteStore) Update(ctx context.Context, key string, in UpdateInput) (Source, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Source{}, err
	}
	defer func() { _ = tx.Rollback() }()

	key = NormalizeKey(key)
	cur, err := scanSource(tx.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Source{}, err
	}
	updated, err := applyUpdate(cur, in, s.now())
	if err != nil {
		return Source{}, err
	}
	if err := conflictCheck(ctx, tx, updated.SourceURL, key); err != nil {
		return Source{}, err
	}

	meta, err := encodeMetadata(updated.Metadata)
	if err != nil {
		return Source{}, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sources SET name = ?, source_url = ?, is_active = ?, metadata = ?, updated_at = ? WHERE key = ?`,
		updated.Name, updated.SourceURL, updated.IsActive, meta, formatTime(updated.UpdatedAt), key)
	if err != nil {
		return Source{}, fmt.Errorf("update source: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Source{}, err
	}
	return updated, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (Source, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row := s.db.QueryRowContext(ctx, `DELETE FROM sources WHERE key = ? RETURNING `+sourceColumns, NormalizeKey(key))
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Source{}, err
	}
	s.refreshGauge(ctx)
	return src, nil
}

// Ping runs a quick integrity check.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	issues, err := sqlite.VerifyIntegrity(ctx, s.db, "quick")
	if err != nil {
		return err
	}
	if issues != nil {
		return fmt.Errorf("sqlite integrity: %s", strings.Join(issues, "; "))
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) refreshGauge(ctx context.Context) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n); err == nil {
		metrics.SetSourcesTotal(n)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (Source, error) {
	var (
		src                  Source
		meta                 sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&src.ID, &src.Key, &src.Name, &src.SourceURL, &src.IsActive, &meta, &createdAt, &updatedAt); err != nil {
		return Source{}, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &src.Metadata); err != nil {
			return Source{}, fmt.Errorf("decode metadata of %s: %w", src.Key, err)
		}
	}
	src.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	src.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return src, nil
}

func queryKeys(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT key FROM sources WHERE key LIKE ?`, KeyPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// conflictCheck fails when sourceURL belongs to a key other than self.
func conflictCheck(ctx context.Context, tx *sql.Tx, sourceURL, self string) error {
	var owner string
	err := tx.QueryRowContext(ctx, `SELECT key FROM sources WHERE source_url = ?`, sourceURL).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	case owner != self:
		return &ConflictError{Key: owner}
	}
	return nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: metadata: %w", ErrInvalid, err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
