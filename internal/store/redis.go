package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis is the KV driver over a shared Redis instance.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (s *Redis) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		// data corrupt: treat as miss by deleting
		_ = s.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (s *Redis) SetJSON(ctx context.Context, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, 0).Err()
}

func (s *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

var _ KV = (*Redis)(nil)
