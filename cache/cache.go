// Package cache implements the multi-tier cache fabric: a
// typed wrapper per entity family over the single Redis logical store used
// for general cache/auth/pub-sub (common.RDB). Every read is advisory -
// callers always have a store-backed loader to fall back to on a miss or a
// Redis failure, per the fabric's invariant.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/aquareto/aquareto-server/common"
	"github.com/aquareto/aquareto-server/common/logger"
)

// GetOrLoad fetches key from Redis, unmarshalling into a fresh *T; on a
// miss or any Redis error it calls load, stores the result with ttl, and
// returns it. A ttl <= 0 disables writing back to the cache (used for
// natural-expiry keys whose TTL is set by the writer, not the reader).
func GetOrLoad[T any](ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (*T, error)) (*T, error) {
	if common.IsRedisEnabled() {
		if raw, err := common.RDB.Get(ctx, key).Result(); err == nil {
			var value T
			if jsonErr := json.Unmarshal([]byte(raw), &value); jsonErr == nil {
				return &value, nil
			}
			logger.Logger.Warn("cache value failed to decode, treating as miss", zap.String("key", key))
		} else if !errors.Is(err, redis.Nil) {
			common.LogRedisFailure("get", key, err)
		}
	}

	value, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	Set(ctx, key, value, ttl)
	return value, nil
}

// Set writes value to key as JSON, logging but not failing on Redis errors
// since cache writes are always best-effort.
func Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !common.IsRedisEnabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Logger.Warn("cache value failed to encode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := common.RDB.Set(ctx, key, raw, ttl).Err(); err != nil {
		common.LogRedisFailure("set", key, err)
	}
}

// Invalidate deletes zero or more keys, ignoring Redis failures since the
// store remains the source of truth.
func Invalidate(ctx context.Context, keys ...string) {
	if !common.IsRedisEnabled() || len(keys) == 0 {
		return
	}
	if err := common.RDB.Del(ctx, keys...).Err(); err != nil {
		common.LogRedisFailure("del", fmt.Sprintf("%v", keys), err)
	}
}

// InvalidatePattern deletes every key matching pattern via SCAN, so
// parameterized key families (limit/offset/filters baked into the key) can
// be dropped without enumerating each served combination.
func InvalidatePattern(ctx context.Context, pattern string) {
	if !common.IsRedisEnabled() {
		return
	}
	var cursor uint64
	for {
		keys, next, err := common.RDB.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			common.LogRedisFailure("scan", pattern, err)
			return
		}
		if len(keys) > 0 {
			if err := common.RDB.Del(ctx, keys...).Err(); err != nil {
				common.LogRedisFailure("del", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// HashQuery condenses an arbitrary query/cursor string into a short cache
// key segment, used by the beatmapset search and ranking key patterns.
func HashQuery(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Key patterns, centralized so every consumer formats
// them identically.
func UserKey(userID uint) string                      { return fmt.Sprintf("user:%d", userID) }
func UserRulesetKey(userID uint, ruleset int) string   { return fmt.Sprintf("user:%d:ruleset:%d", userID, ruleset) }
func V1UserKey(userID uint) string                     { return fmt.Sprintf("v1_user:%d", userID) }
func V1UserRulesetKey(userID uint, ruleset int) string { return fmt.Sprintf("v1_user:%d:ruleset:%d", userID, ruleset) }

func UserScoresKey(userID uint, scoreType string, ruleset *int, limit, offset int, includeFail, isLegacy bool) string {
	mode := "none"
	if ruleset != nil {
		mode = fmt.Sprintf("%d", *ruleset)
	}
	return fmt.Sprintf("user:%d:scores:%s:%s:limit:%d:offset:%d:include_fail:%t:is_legacy:%t",
		userID, scoreType, mode, limit, offset, includeFail, isLegacy)
}

func UserBeatmapsetsKey(userID uint, setType string, limit, offset int) string {
	return fmt.Sprintf("user:%d:beatmapsets:%s:limit:%d:offset:%d", userID, setType, limit, offset)
}

func BeatmapsetKey(id uint) string     { return fmt.Sprintf("beatmapset:%d", id) }
func BeatmapLookupKey(id uint) string  { return fmt.Sprintf("beatmap_lookup:%d:beatmapset", id) }
func BeatmapRawKey(id uint) string     { return fmt.Sprintf("beatmap:%d:raw", id) }
func BeatmapAttributesKey(id uint, ruleset int, modsKey string) string {
	return fmt.Sprintf("beatmap:%d:%d:%s:attributes", id, ruleset, HashQuery(modsKey))
}

func BeatmapsetSearchKey(query, cursor string) string {
	return fmt.Sprintf("beatmapset_search:%s:%s", HashQuery(query), HashQuery(cursor))
}

func RankingPageKey(ruleset int, sort, country string, page int) string {
	if country != "" {
		return fmt.Sprintf("ranking:%d:%s:%s:page:%d", ruleset, sort, country, page)
	}
	return fmt.Sprintf("ranking:%d:%s:page:%d", ruleset, sort, page)
}

func RankingStatsKey(ruleset int, sort, country string) string {
	if country != "" {
		return fmt.Sprintf("ranking:%d:%s:%s:stats", ruleset, sort, country)
	}
	return fmt.Sprintf("ranking:%d:%s:stats", ruleset, sort)
}

func OAuthCodeKey(clientID, code string) string { return fmt.Sprintf("oauth:code:%s:%s", clientID, code) }
func EmailCodeKey(service, subject string) string {
	return fmt.Sprintf("email_code:%s:%s", service, subject)
}
func PasswordResetKey(email string) string { return fmt.Sprintf("password_reset:code:%s", email) }
func PasswordResetRateLimitKey(email string) string {
	return fmt.Sprintf("password_reset:rate_limit:%s", email)
}
func TotpReplayKey(userID uint, code string) string {
	return fmt.Sprintf("totp:%d:%s", userID, code)
}
func TotpSetupKey(email string) string { return fmt.Sprintf("totp:setup:%s", email) }

func FetcherAccessTokenKey(clientID string) string { return fmt.Sprintf("fetcher:access_token:%s", clientID) }
func FetcherExpireAtKey(clientID string) string    { return fmt.Sprintf("fetcher:expire_at:%s", clientID) }
