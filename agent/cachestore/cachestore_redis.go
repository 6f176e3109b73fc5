package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// local tier in front of redis, per process
const redisLocalEntries = 10_000

// RedisCacheStore shares verdicts between agent processes. A small local
// TinyLFU tier absorbs repeat reads within one process.
type RedisCacheStore struct {
	cache  *cache.Cache
	ttl    time.Duration
	prefix string
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCacheStore{
		cache: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(redisLocalEntries, ttl),
		}),
		ttl:    ttl,
		prefix: "moltguard/cache/",
	}, nil
}

func (s *RedisCacheStore) key(name, key string) string {
	return s.prefix + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) ([]byte, bool, error) {
	var val []byte
	err := s.cache.Get(ctx, s.key(name, key), &val)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val []byte) error {
	return s.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	if err := s.cache.Delete(ctx, s.key(name, key)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return nil
}
