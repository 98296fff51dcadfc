// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ockv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Value string `json:"value"`
}

// stores returns one instance of each backend under test. Both must satisfy
// the same contract, since an in-memory fake and a real KV store must agree.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(WithCleanupInterval(10 * time.Millisecond)),
		"redis":  NewRedisStore(redisClient, "test:"),
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := s.Get(ctx, "missing", &record{})
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "k1", record{Value: "v1"}, 0))

			var got record
			ok, err = s.Get(ctx, "k1", &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v1", got.Value)

			require.NoError(t, s.Delete(ctx, "k1"))
			ok, err = s.Get(ctx, "k1", &got)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "ephemeral", record{Value: "v"}, 30*time.Millisecond))

			var got record
			ok, err := s.Get(ctx, "ephemeral", &got)
			require.NoError(t, err)
			assert.True(t, ok)

			time.Sleep(80 * time.Millisecond)

			ok, err = s.Get(ctx, "ephemeral", &got)
			require.NoError(t, err)
			assert.False(t, ok, "key must be gone once its TTL has elapsed")
		})
	}
}

func TestStore_ListPrefixDrainsToCompletion(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 25; i++ {
				require.NoError(t, s.Put(ctx, "grant:u1:"+string(rune('a'+i)), record{Value: "v"}, 0))
			}
			require.NoError(t, s.Put(ctx, "grant:u2:x", record{Value: "other user"}, 0))

			seen := map[string]bool{}
			cursor := ""
			for {
				res, err := s.List(ctx, "grant:u1:", ListOptions{Limit: 7, Cursor: cursor})
				require.NoError(t, err)
				for _, k := range res.Keys {
					seen[k] = true
				}
				if res.ListComplete {
					break
				}
				cursor = res.Cursor
			}

			assert.Len(t, seen, 25)
			assert.False(t, seen["grant:u2:x"])
		})
	}
}

func TestStore_DeleteMissingKeyIsNotError(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Delete(context.Background(), "never-existed"))
		})
	}
}
