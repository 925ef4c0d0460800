package dedupe

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisKeyPrefix = "tipcharm:dedupe:"

// Redis records keys with SETNX and lets the server expire them.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func OpenRedis(url string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}

	logger.Info("Dedupe store opened", zap.String("backend", BackendRedis), zap.String("addr", opt.Addr))
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, redisKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "setnx")
	}
	return !ok, nil
}

func (r *Redis) Prune(context.Context) error { return nil }

func (r *Redis) Close() error {
	return r.rdb.Close()
}
