// Package pubsub fans live-session events out over Redis channels. The WS
// handler subscribes to the same channels, so every viewer of a session sees
// privacy and transcription state changes as they happen.
package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}
