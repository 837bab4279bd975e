package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// Key layout
const (
	KeyGeoPrefix       = "geo:complaints:"
	KeyLanguagePrefix  = "session:lang:"
	KeyRateLimitPrefix = "rate_limit:"
	KeyJobLockPrefix   = "jobs:lock:"
)

// RedisCache wraps the Redis client with the typed operations beacon needs:
// the hotspot geo index, per-session language, rate limits and job locks.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *logger.Logger
	now       func() time.Time
}

// NewRedis creates a new Redis client
func NewRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	log = log.WithComponent("redis")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("connected to Redis successfully")

	return NewRedisWithClient(client, cfg.KeyPrefix, log), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *redis.Client, keyPrefix string, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    log,
		now:       time.Now,
	}
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	c.logger.Info().Msg("closing Redis connection")
	return c.client.Close()
}

// key prepends the namespace prefix to a key
func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

func (c *RedisCache) geoKey(group models.ComplaintGroup) string {
	return c.key(KeyGeoPrefix + string(group))
}

// AddPoints adds complaint positions to the per-group geo sets
func (c *RedisCache) AddPoints(ctx context.Context, points []models.GeoPoint) error {
	if len(points) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, p := range points {
		pipe.GeoAdd(ctx, c.geoKey(p.Group), &redis.GeoLocation{
			Name:      p.CaseID,
			Longitude: p.Longitude,
			Latitude:  p.Latitude,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add geo points: %w", err)
	}
	return nil
}

// ReplacePoints swaps the whole index for the given points. Each group is
// built under a temporary key and renamed into place.
func (c *RedisCache) ReplacePoints(ctx context.Context, points []models.GeoPoint) error {
	byGroup := make(map[models.ComplaintGroup][]*redis.GeoLocation)
	for _, p := range points {
		byGroup[p.Group] = append(byGroup[p.Group], &redis.GeoLocation{
			Name:      p.CaseID,
			Longitude: p.Longitude,
			Latitude:  p.Latitude,
		})
	}

	suffix := fmt.Sprintf(":rebuild:%d", c.now().UnixNano())
	pipe := c.client.TxPipeline()
	for _, group := range models.ComplaintGroups {
		key := c.geoKey(group)
		locs := byGroup[group]
		if len(locs) == 0 {
			pipe.Del(ctx, key)
			continue
		}
		tmp := key + suffix
		pipe.GeoAdd(ctx, tmp, locs...)
		pipe.Rename(ctx, tmp, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace geo index: %w", err)
	}
	return nil
}

// Nearby returns the points of one group within radiusKm, nearest first
func (c *RedisCache) Nearby(ctx context.Context, group models.ComplaintGroup, lat, lng, radiusKm float64) ([]models.GeoPoint, error) {
	locs, err := c.client.GeoRadius(ctx, c.geoKey(group), lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search geo index: %w", err)
	}

	points := make([]models.GeoPoint, 0, len(locs))
	for _, l := range locs {
		points = append(points, models.GeoPoint{
			CaseID:    l.Name,
			Group:     group,
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
		})
	}
	return points, nil
}

// GetLanguage returns the stored language of an anonymous session, or ""
func (c *RedisCache) GetLanguage(ctx context.Context, anonID string) (string, error) {
	lang, err := c.client.Get(ctx, c.key(KeyLanguagePrefix+anonID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return lang, err
}

// SetLanguage stores the language of an anonymous session
func (c *RedisCache) SetLanguage(ctx context.Context, anonID, lang string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(KeyLanguagePrefix+anonID), lang, ttl).Err()
}

// releaseScript deletes a lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock attempts to acquire a distributed lock. The returned token
// identifies this holder for ReleaseLock.
func (c *RedisCache) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.key(KeyJobLockPrefix+lockKey), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock releases a lock still held with token. A lock that expired
// and was taken by another holder is left alone.
func (c *RedisCache) ReleaseLock(ctx context.Context, lockKey, token string) error {
	released, err := releaseScript.Run(ctx, c.client, []string{c.key(KeyJobLockPrefix + lockKey)}, token).Int64()
	if err != nil {
		return err
	}
	if released == 0 {
		c.logger.Warn().Str("lock", lockKey).Msg("lock expired before release")
	}
	return nil
}

// CheckRateLimit checks and increments the rate limit counter
// Returns (allowed, remaining, resetTime, error)
func (c *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	now := c.now()
	slot := now.Unix() / int64(window.Seconds())
	windowKey := c.key(fmt.Sprintf("%s%s:%d", KeyRateLimitPrefix, key, slot))

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := time.Unix((slot+1)*int64(window.Seconds()), 0)

	return count <= limit, remaining, resetTime, nil
}
