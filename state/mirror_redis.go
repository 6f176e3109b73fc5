package state

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var redisStatePrefix = "moltguard/state/"

type RedisMirror struct {
	Client *redis.Client
}

func NewRedisMirror(redisURL string) (*RedisMirror, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisMirror{Client: rdb}, nil
}

func (m *RedisMirror) Put(ctx context.Context, name string, data []byte) error {
	return m.Client.Set(ctx, redisStatePrefix+name, data, 0).Err()
}

func (m *RedisMirror) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := m.Client.Get(ctx, redisStatePrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}
