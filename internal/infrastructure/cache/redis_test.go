package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisWithClient(client, "beacon:", logger.NewNop()), mr
}

// Two points in central Delhi and one in Mumbai
var delhiMumbai = []models.GeoPoint{
	{CaseID: "CASE-10001", Group: models.GroupSalary, Latitude: 28.6139, Longitude: 77.2090},
	{CaseID: "CASE-10002", Group: models.GroupSalary, Latitude: 28.6200, Longitude: 77.2100},
	{CaseID: "CASE-10003", Group: models.GroupSalary, Latitude: 19.0760, Longitude: 72.8777},
	{CaseID: "CASE-10004", Group: models.GroupAbuse, Latitude: 28.6150, Longitude: 77.2050},
}

func TestRedisCache_GeoIndex(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.AddPoints(ctx, delhiMumbai))
	assert.True(t, mr.Exists("beacon:geo:complaints:salary"))

	salary, err := c.Nearby(ctx, models.GroupSalary, 28.6139, 77.2090, 10)
	require.NoError(t, err)
	require.Len(t, salary, 2)
	assert.Equal(t, "CASE-10001", salary[0].CaseID)
	assert.Equal(t, models.GroupSalary, salary[0].Group)
	assert.InDelta(t, 28.6139, salary[0].Latitude, 1e-4)

	abuse, err := c.Nearby(ctx, models.GroupAbuse, 28.6139, 77.2090, 10)
	require.NoError(t, err)
	require.Len(t, abuse, 1)

	gender, err := c.Nearby(ctx, models.GroupGender, 28.6139, 77.2090, 10)
	require.NoError(t, err)
	assert.Empty(t, gender)
}

func TestRedisCache_ReplacePoints(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.AddPoints(ctx, delhiMumbai))
	require.NoError(t, c.ReplacePoints(ctx, []models.GeoPoint{
		{CaseID: "CASE-20001", Group: models.GroupGender, Latitude: 28.6139, Longitude: 77.2090},
	}))

	assert.False(t, mr.Exists("beacon:geo:complaints:salary"))
	assert.False(t, mr.Exists("beacon:geo:complaints:abuse"))

	gender, err := c.Nearby(ctx, models.GroupGender, 28.6139, 77.2090, 5)
	require.NoError(t, err)
	require.Len(t, gender, 1)
	assert.Equal(t, "CASE-20001", gender[0].CaseID)

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, ":rebuild:")
	}
}

func TestRedisCache_Language(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	lang, err := c.GetLanguage(ctx, "anon-1")
	require.NoError(t, err)
	assert.Empty(t, lang)

	require.NoError(t, c.SetLanguage(ctx, "anon-1", "hi", time.Hour))

	lang, err = c.GetLanguage(ctx, "anon-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", lang)

	mr.FastForward(2 * time.Hour)
	lang, err = c.GetLanguage(ctx, "anon-1")
	require.NoError(t, err)
	assert.Empty(t, lang)
}

func TestRedisCache_Lock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	token, ok, err := c.AcquireLock(ctx, "hotspots", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = c.AcquireLock(ctx, "hotspots", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "hotspots", token))

	_, ok, err = c.AcquireLock(ctx, "hotspots", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_ReleaseKeepsOtherHoldersLock(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	stale, ok, err := c.AcquireLock(ctx, "stale-sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the first run outlives its TTL and another instance takes the lock
	mr.FastForward(2 * time.Minute)
	current, ok, err := c.AcquireLock(ctx, "stale-sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "stale-sweep", stale))

	_, ok, err = c.AcquireLock(ctx, "stale-sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock of the current holder must survive")

	require.NoError(t, c.ReleaseLock(ctx, "stale-sweep", current))
	_, ok, err = c.AcquireLock(ctx, "stale-sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_CheckRateLimit(t *testing.T) {
	c, _ := newTestCache(t)
	c.now = func() time.Time { return time.Unix(1_773_480_600, 0) }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		allowed, remaining, _, err := c.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 3-i, remaining)
	}

	allowed, remaining, reset, err := c.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.Equal(t, time.Unix(1_773_480_660, 0), reset)

	allowed, _, _, err = c.CheckRateLimit(ctx, "10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
