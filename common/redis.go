package common

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/logger"
)

// RDB is the primary cache/auth/pub-sub store. RChat and RBinary back the
// chat-message and raw-beatmap caches respectively; they default to RDB when
// their own connection strings are unset, so a single-instance deployment
// only needs REDIS_CONN_STRING.
var (
	RDB     redis.Cmdable
	RChat   redis.Cmdable
	RBinary redis.Cmdable
)

var redisEnabled atomic.Bool

func IsRedisEnabled() bool {
	return redisEnabled.Load()
}

func openRedis(connString string) (redis.Cmdable, error) {
	opt, err := redis.ParseURL(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis connection string")
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return client, nil
}

// InitRedisClients connects the three logical stores described in the cache
// fabric design. Call once at process start.
func InitRedisClients() error {
	if config.RedisConnString == "" {
		redisEnabled.Store(false)
		logger.Logger.Info("REDIS_CONN_STRING not set, cache fabric is disabled")
		return nil
	}

	var err error
	RDB, err = openRedis(config.RedisConnString)
	if err != nil {
		return errors.Wrap(err, "init primary redis")
	}

	if config.RedisChatConnString != "" {
		if RChat, err = openRedis(config.RedisChatConnString); err != nil {
			return errors.Wrap(err, "init chat redis")
		}
	} else {
		RChat = RDB
	}

	if config.RedisBinaryConnString != "" {
		if RBinary, err = openRedis(config.RedisBinaryConnString); err != nil {
			return errors.Wrap(err, "init binary redis")
		}
	} else {
		RBinary = RDB
	}

	redisEnabled.Store(true)
	logger.Logger.Info("cache fabric connected")
	return nil
}

func RedisSet(ctx context.Context, key, value string, expiration time.Duration) error {
	if RDB == nil {
		return errors.New("redis not initialized")
	}
	if err := RDB.Set(ctx, key, value, expiration).Err(); err != nil {
		return errors.Wrapf(err, "failed to set redis key: %s", key)
	}
	return nil
}

func RedisGet(ctx context.Context, key string) (string, error) {
	if RDB == nil {
		return "", errors.New("redis not initialized")
	}
	val, err := RDB.Get(ctx, key).Result()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get redis key: %s", key)
	}
	return val, nil
}

func RedisDel(ctx context.Context, key string) error {
	if RDB == nil {
		return errors.New("redis not initialized")
	}
	if err := RDB.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete redis key: %s", key)
	}
	return nil
}

func RedisIncr(ctx context.Context, key string) (int64, error) {
	if RDB == nil {
		return 0, errors.New("redis not initialized")
	}
	val, err := RDB.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to incr redis key: %s", key)
	}
	return val, nil
}

// LogRedisFailure records a cache-miss-by-error at warn level; callers
// always have a store-backed fallback path, per the fabric's advisory-read
// invariant, so this is never a Fatal.
func LogRedisFailure(op, key string, err error) {
	logger.Logger.Warn("redis operation failed, falling back to store",
		zap.String("op", op), zap.String("key", key), zap.Error(err))
}
