package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbs-billing-assistant/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func sampleRecommendations() []domain.Recommendation {
	return []domain.Recommendation{
		{
			ItemNumber:  "36",
			Description: "Level C consultation - long",
			Category:    domain.StandardConsultation,
			Fee:         76.95,
			Confidence:  0.95,
			Rationale:   []string{"consultation duration of 25 minutes falls within the 20-40 minute tier (item 36)"},
		},
	}
}

func TestRecommendationCache_Key(t *testing.T) {
	c, err := New(testLogger(), domain.CacheConfig{})
	require.NoError(t, err)
	defer c.Close()

	age := 80
	base := c.Key("diabetes review", 25, &age, "v1")

	assert.Equal(t, base, c.Key("diabetes review", 25, &age, "v1"))
	assert.NotEqual(t, base, c.Key("diabetes review", 26, &age, "v1"))
	assert.NotEqual(t, base, c.Key("diabetes review", 25, nil, "v1"))
	// A schedule reload invalidates by version.
	assert.NotEqual(t, base, c.Key("diabetes review", 25, &age, "v2"))
}

func TestRecommendationCache_KeyAbsentAgeIsDistinct(t *testing.T) {
	c, err := New(testLogger(), domain.CacheConfig{})
	require.NoError(t, err)
	defer c.Close()

	// No numeric age may alias the absent-age encoding.
	noAge := c.Key("diabetes review", 25, nil, "v1")
	for _, age := range []int{-1, 0, 80} {
		age := age
		assert.NotEqual(t, noAge, c.Key("diabetes review", 25, &age, "v1"))
	}
}

func TestRecommendationCache_MemoryTier(t *testing.T) {
	c, err := New(testLogger(), domain.CacheConfig{MaxMemorySize: 8})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := c.Key("text", 25, nil, "v1")

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Put(ctx, key, sampleRecommendations())

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sampleRecommendations(), got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.MemoryMisses)
}

func TestRecommendationCache_RedisTier(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(testLogger(), domain.CacheConfig{
		RedisURL:      "redis://" + mr.Addr(),
		DefaultTTL:    time.Minute,
		MaxMemorySize: 8,
	})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := c.Key("text", 25, nil, "v1")

	c.Put(ctx, key, sampleRecommendations())

	// Drop the memory tier entry so the lookup has to go to Redis.
	c.memory.Purge()

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sampleRecommendations(), got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.RedisHits)

	// The Redis hit is promoted back into memory.
	_, ok = c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().MemoryHits)
}

func TestRecommendationCache_RedisExpiry(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(testLogger(), domain.CacheConfig{
		RedisURL:   "redis://" + mr.Addr(),
		DefaultTTL: time.Second,
	})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := c.Key("text", 25, nil, "v1")

	c.Put(ctx, key, sampleRecommendations())
	c.memory.Purge()
	mr.FastForward(2 * time.Second)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRecommendationCache_InvalidRedisURL(t *testing.T) {
	_, err := New(testLogger(), domain.CacheConfig{RedisURL: "not a url"})
	assert.Error(t, err)
}
