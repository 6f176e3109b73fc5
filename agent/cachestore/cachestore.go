package cachestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// CacheStore is a namespaced key/value cache. A miss is reported with
// ok=false and a nil error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, name, key string, val []byte) error
	Purge(ctx context.Context, name, key string) error
}

// ContentKey is a compact, stable cache key for arbitrary text.
func ContentKey(text string) string {
	h1, h2 := murmur3.Sum128([]byte(text))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// GetJSON decodes a cached value into T. Undecodable entries are purged and
// reported as a miss, so a schema change never wedges the cache.
func GetJSON[T any](ctx context.Context, cs CacheStore, name, key string) (T, bool, error) {
	var out T
	b, ok, err := cs.Get(ctx, name, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		var zero T
		return zero, false, cs.Purge(ctx, name, key)
	}
	return out, true, nil
}

func SetJSON(ctx context.Context, cs CacheStore, name, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value %s/%s: %w", name, key, err)
	}
	return cs.Set(ctx, name, key, b)
}
