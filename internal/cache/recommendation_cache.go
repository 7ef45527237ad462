package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/domain"
)

// RecommendationCache memoizes recommendation results behind two tiers: an
// in-process LRU for hot entries and an optional Redis tier shared between
// instances. The engine is deterministic over a catalog snapshot, so a cached
// entry keyed by input and catalog version never goes stale.
type RecommendationCache struct {
	logger *logrus.Logger

	memory *lru.Cache[string, []byte]
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	stats Stats
}

// Stats tracks cache tier effectiveness.
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
}

// New creates a recommendation cache. An empty RedisURL disables the Redis
// tier; the memory tier is always on.
func New(logger *logrus.Logger, cfg domain.CacheConfig) (*RecommendationCache, error) {
	size := cfg.MaxMemorySize
	if size <= 0 {
		size = 1024
	}
	memory, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &RecommendationCache{
		logger: logger,
		memory: memory,
		ttl:    ttl,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		c.client = redis.NewClient(opts)
	}

	return c, nil
}

// Key derives a deterministic cache key from the request tuple and the
// catalog snapshot version. An absent age is encoded distinctly from every
// numeric age so an invalid request can never alias a cached valid one.
func (c *RecommendationCache) Key(text string, durationMinutes int, patientAge *int, catalogVersion string) string {
	age := "nil"
	if patientAge != nil {
		age = strconv.Itoa(*patientAge)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s", text, durationMinutes, age, catalogVersion)))
	return "mbs:rec:" + hex.EncodeToString(sum[:])
}

// Get returns the cached recommendations for a key, checking memory first and
// falling back to Redis. A Redis hit is promoted into the memory tier.
func (c *RecommendationCache) Get(ctx context.Context, key string) ([]domain.Recommendation, bool) {
	if data, ok := c.memory.Get(key); ok {
		c.count(func(s *Stats) { s.MemoryHits++ })
		return decode(data)
	}
	c.count(func(s *Stats) { s.MemoryMisses++ })

	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Redis cache lookup failed")
		}
		c.count(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}
	c.count(func(s *Stats) { s.RedisHits++ })

	c.memory.Add(key, data)
	return decode(data)
}

// Put stores recommendations in both tiers. Cache failures are logged and
// otherwise ignored; the caller already has the result.
func (c *RecommendationCache) Put(ctx context.Context, key string, recommendations []domain.Recommendation) {
	data, err := json.Marshal(recommendations)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode recommendations for cache")
		return
	}

	c.memory.Add(key, data)

	if c.client != nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WithError(err).Warn("Redis cache store failed")
		}
	}
}

// Stats returns a copy of the current cache statistics.
func (c *RecommendationCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close releases the Redis connection if one is configured.
func (c *RecommendationCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *RecommendationCache) count(update func(*Stats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}

func decode(data []byte) ([]domain.Recommendation, bool) {
	var recommendations []domain.Recommendation
	if err := json.Unmarshal(data, &recommendations); err != nil {
		return nil, false
	}
	return recommendations, true
}
