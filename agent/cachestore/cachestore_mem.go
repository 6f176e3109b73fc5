package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore is an in-process LRU with a per-entry TTL. Entries are lost on
// restart, which only costs a rescan.
type MemCacheStore struct {
	lru *expirable.LRU[string, []byte]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		lru: expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

func memKey(name, key string) string {
	return name + "/" + key
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(memKey(name, key))
	return v, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val []byte) error {
	s.lru.Add(memKey(name, key), append([]byte(nil), val...))
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.lru.Remove(memKey(name, key))
	return nil
}

// Len is the number of live entries across all names.
func (s *MemCacheStore) Len() int {
	return s.lru.Len()
}
