package countstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCountPrefix = "moltguard/count/"

// day buckets outlive the day, so a late read around midnight still sees them
const redisDayTTL = 48 * time.Hour

type RedisCountStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCountStore{
		client: rdb,
		now:    time.Now,
	}, nil
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val string, period Period) (int, error) {
	key := redisCountPrefix + BucketKey(s.now(), name, val, period)
	c, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string, periods ...Period) error {
	now := s.now()

	// all buckets in a single round-trip
	multi := s.client.TxPipeline()
	for _, p := range periodsOrDefault(periods) {
		key := redisCountPrefix + BucketKey(now, name, val, p)
		multi.Incr(ctx, key)
		if p == PeriodDay {
			multi.Expire(ctx, key, redisDayTTL)
		}
	}
	_, err := multi.Exec(ctx)
	return err
}
