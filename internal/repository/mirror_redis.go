package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisMirrorBackend stores mirror keys as plain Redis strings.
type RedisMirrorBackend struct {
	client redis.Cmdable
}

// NewRedisMirrorBackend builds a Redis-backed mirror.
func NewRedisMirrorBackend(client redis.Cmdable) *RedisMirrorBackend {
	return &RedisMirrorBackend{client: client}
}

// Read fetches all keys with a single MGET.
func (b *RedisMirrorBackend) Read(ctx context.Context, keys ...string) (map[string][]byte, error) {
	values := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return values, nil
	}
	results, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, result := range results {
		if str, ok := result.(string); ok {
			values[keys[i]] = []byte(str)
		}
	}
	return values, nil
}

// WriteAll applies every SET inside MULTI/EXEC.
func (b *RedisMirrorBackend) WriteAll(ctx context.Context, entries []MirrorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			pipe.Set(ctx, entry.Key, entry.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write mirror: %w", err)
	}
	return nil
}
