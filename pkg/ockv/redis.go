// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ockv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over a Redis (or Redis-compatible) backend
// using github.com/redis/go-redis/v9. SCAN is used for prefix listing so the
// store honors the "opaque cursor" contract in spec §6 without inventing its
// own pagination token format: the cursor callers see is Redis's own SCAN
// cursor, stringified.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore wraps an existing redis.UniversalClient. keyPrefix namespaces
// every key this store touches (e.g. "oauthkv:" for multi-tenant
// deployments sharing one Redis instance).
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) prefixed(key string) string {
	return s.keyPrefix + key
}

// Close closes the underlying client's connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("ockv: redis GET %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("ockv: unmarshaling %q: %w", key, err)
	}
	return true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ockv: marshaling %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefixed(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("ockv: redis SET %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefixed(key)).Err(); err != nil {
		return fmt.Errorf("ockv: redis DEL %q: %w", key, err)
	}
	return nil
}

// List implements Store using SCAN MATCH prefix*.
func (s *RedisStore) List(ctx context.Context, prefix string, opts ListOptions) (ListResult, error) {
	var cursor uint64
	if opts.Cursor != "" {
		parsed, err := strconv.ParseUint(opts.Cursor, 10, 64)
		if err != nil {
			return ListResult{}, fmt.Errorf("ockv: invalid cursor %q: %w", opts.Cursor, err)
		}
		cursor = parsed
	}

	count := int64(opts.Limit)
	if count <= 0 {
		count = 100
	}

	matched, nextCursor, err := s.client.Scan(ctx, cursor, s.prefixed(prefix)+"*", count).Result()
	if err != nil {
		return ListResult{}, fmt.Errorf("ockv: redis SCAN prefix %q: %w", prefix, err)
	}

	keys := make([]string, len(matched))
	for i, k := range matched {
		keys[i] = k[len(s.keyPrefix):]
	}

	result := ListResult{Keys: keys}
	if nextCursor == 0 {
		result.ListComplete = true
	} else {
		result.Cursor = strconv.FormatUint(nextCursor, 10)
	}
	return result, nil
}
