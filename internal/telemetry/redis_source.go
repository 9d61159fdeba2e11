package telemetry

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisSource reads plain string keys written by the host and sensor
// crawlers.
type RedisSource struct {
	client redis.UniversalClient
}

func NewRedisSource(client redis.UniversalClient) *RedisSource {
	return &RedisSource{client: client}
}

func (s *RedisSource) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
