// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/metrics"
)

const (
	defaultRedisPrefix = "hlsgate:"
	maxTxRetries       = 16
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key. Defaults to "hlsgate:".
	Prefix string
}

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// RedisStore keeps one hash per source plus a key set and a URL index.
// Multi-key writes use WATCH so concurrent gateways stay consistent.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	logger := log.WithComponent("sources")
	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis source store")

	s := &RedisStore{client: client, prefix: prefix, now: time.Now}
	s.refreshGauge(ctx)
	return s, nil
}

func (s *RedisStore) sourceKey(key string) string { return s.prefix + "source:" + key }
func (s *RedisStore) indexKey() string            { return s.prefix + "sources" }
func (s *RedisStore) urlKey() string              { return s.prefix + "sources:by_url" }

func (s *RedisStore) Get(ctx context.Context, key string) (Source, error) {
	return s.load(ctx, s.client, NormalizeKey(key))
}

func (s *RedisStore) List(ctx context.Context) ([]Source, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGetAll(ctx, s.sourceKey(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	byKey := make(map[string]Source, len(keys))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		src, err := decodeHash(fields)
		if err != nil {
			return nil, err
		}
		byKey[src.Key] = src
	}
	return sortedSources(byKey), nil
}

func (s *RedisStore) FindByURL(ctx context.Context, sourceURL string) (Source, error) {
	key, err := s.client.HGet(ctx, s.urlKey(), strings.TrimSpace(sourceURL)).Result()
	if errors.Is(err, redis.Nil) {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	}
	if err != nil {
		return Source{}, err
	}
	return s.load(ctx, s.client, key)
}

func (s *RedisStore) Create(ctx context.Context, in CreateInput) (Source, error) {
	var created Source
	err := s.retryTx(ctx, func(tx *redis.Tx) error {
		keys, err := tx.SMembers(ctx, s.indexKey()).Result()
		if err != nil {
			return err
		}
		src, err := newSource(in, nextKey(keys), s.now())
		if err != nil {
			return err
		}
		if err := s.conflictCheck(ctx, tx, src.SourceURL, ""); err != nil {
			return err
		}
		fields, err := encodeHash(src)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.sourceKey(src.Key), fields)
			pipe.SAdd(ctx, s.indexKey(), src.Key)
			pipe.HSet(ctx, s.urlKey(), src.SourceURL, src.Key)
			return nil
		})
		created = src
		return err
	}, s.indexKey(), s.urlKey())
	if err != nil {
		return Source{}, err
	}
	s.refreshGauge(ctx)
	return created, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, in UpdateInput) (Source, error) {
	key = NormalizeKey(key)
	var updated Source
	err := s.retryTx(ctx, func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := applyUpdate(cur, in, s.now())
		if err != nil {
			return err
		}
		if err := s.conflictCheck(ctx, tx, next.SourceURL, key); err != nil {
			return err
		}
		fields, err := encodeHash(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.sourceKey(key), fields)
			if next.Metadata == nil {
				pipe.HDel(ctx, s.sourceKey(key), "metadata")
			}
			if next.SourceURL != cur.SourceURL {
				pipe.HDel(ctx, s.urlKey(), cur.SourceURL)
				pipe.HSet(ctx, s.urlKey(), next.SourceURL, key)
			}
			return nil
		})
		updated = next
		return err
	}, s.sourceKey(key), s.urlKey())
	if err != nil {
		return Source{}, err
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (Source, error) {
	key = NormalizeKey(key)
	var deleted Source
	err := s.retryTx(ctx, func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.sourceKey(key))
			pipe.SRem(ctx, s.indexKey(), key)
			pipe.HDel(ctx, s.urlKey(), cur.SourceURL)
			return nil
		})
		deleted = cur
		return err
	}, s.sourceKey(key), s.indexKey(), s.urlKey())
	if err != nil {
		return Source{}, err
	}
	s.refreshGauge(ctx)
	return deleted, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// retryTx runs fn under WATCH on keys, retrying when a concurrent writer
// touched them.
func (s *RedisStore) retryTx(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("source store: too much write contention on %s", strings.Join(keys, ","))
}

func (s *RedisStore) load(ctx context.Context, c hashReader, key string) (Source, error) {
	fields, err := c.HGetAll(ctx, s.sourceKey(key)).Result()
	if err != nil {
		return Source{}, err
	}
	if len(fields) == 0 {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return decodeHash(fields)
}

func (s *RedisStore) conflictCheck(ctx context.Context, c hashReader, sourceURL, self string) error {
	owner, err := c.HGet(ctx, s.urlKey(), sourceURL).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return err
	case owner != self:
		return &ConflictError{Key: owner}
	}
	return nil
}

func (s *RedisStore) refreshGauge(ctx context.Context) {
	if n, err := s.client.SCard(ctx, s.indexKey()).Result(); err == nil {
		metrics.SetSourcesTotal(int(n))
	}
}

func encodeHash(src Source) (map[string]any, error) {
	fields := map[string]any{
		"id":         src.ID,
		"key":        src.Key,
		"name":       src.Name,
		"source_url": src.SourceURL,
		"is_active":  src.IsActive,
		"created_at": formatTime(src.CreatedAt),
		"updated_at": formatTime(src.UpdatedAt),
	}
	if src.Metadata != nil {
		b, err := json.Marshal(src.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrInvalid, err)
		}
		fields["metadata"] = string(b)
	}
	return fields, nil
}

func decodeHash(fields map[string]string) (Source, error) {
	src := Source{
		ID:        fields["id"],
		Key:       fields["key"],
		Name:      fields["name"],
		SourceURL: fields["source_url"],
		IsActive:  fields["is_active"] == "1",
	}
	if raw := fields["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &src.Metadata); err != nil {
			return Source{}, fmt.Errorf("decode metadata of %s: %w", src.Key, err)
		}
	}
	src.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	src.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return src, nil
}
