package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisPort stores each record as a plain string value without expiry.
type RedisPort struct {
	client redis.Cmdable
}

func NewRedisPort(client redis.Cmdable) *RedisPort {
	return &RedisPort{client: client}
}

func (p *RedisPort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *RedisPort) Set(ctx context.Context, key string, value []byte) error {
	return p.client.Set(ctx, key, value, 0).Err()
}

func (p *RedisPort) Delete(ctx context.Context, key string) error {
	return p.client.Del(ctx, key).Err()
}
