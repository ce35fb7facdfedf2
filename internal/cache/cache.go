package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ===============================
// CACHE INTERFACE
// ===============================

// Cache stores serialized values under string keys. Values are copied in
// and out, so callers never share memory with the cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error

	Stats(ctx context.Context) (*CacheStats, error)
	Health(ctx context.Context) error
	Close() error
}

// CacheStats represents cache statistics
type CacheStats struct {
	Provider    string        `json:"provider"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Sets        int64         `json:"sets"`
	Deletes     int64         `json:"deletes"`
	Keys        int64         `json:"keys"`
	EvictedKeys int64         `json:"evicted_keys"`
	HitRatio    float64       `json:"hit_ratio"`
	Uptime      time.Duration `json:"uptime"`
}

// ===============================
// CACHE CONFIGURATION
// ===============================

// Config holds cache configuration
type Config struct {
	Provider        string        // "memory", "redis"
	TTL             time.Duration // default TTL
	MaxKeys         int           // memory cache only
	CleanupInterval time.Duration // memory cache only

	RedisURL       string
	PoolSize       int
	ConnectRetries int
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:        "memory",
		TTL:             5 * time.Minute,
		MaxKeys:         10000,
		CleanupInterval: time.Minute,
		PoolSize:        10,
		ConnectRetries:  3,
	}
}

// NewCache creates a cache instance based on configuration
func NewCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(config.Provider) {
	case "redis":
		return NewRedisCache(config, logger)
	case "memory", "":
		logger.Info("Using in-memory cache", zap.Int("max_keys", config.MaxKeys))
		return NewMemoryCache(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}

// ===============================
// TYPED HELPERS
// ===============================

// GetJSON decodes a cached JSON value into dst. A value that no longer
// decodes is treated as a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst interface{}) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// SetJSON encodes value as JSON and stores it
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Remember returns the cached value for key, or computes it with fn and
// caches the result. Cache failures are logged and never returned.
func Remember[T any](ctx context.Context, c Cache, logger *zap.Logger, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var cached T
	if c != nil && GetJSON(ctx, c, key, &cached) {
		logger.Debug("Cache hit", zap.String("key", key))
		return cached, nil
	}

	result, err := fn()
	if err != nil {
		return result, err
	}

	if c != nil {
		if err := SetJSON(ctx, c, key, result, ttl); err != nil {
			logger.Warn("Failed to cache result", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// ===============================
// KEYS
// ===============================

const keyPrefix = "achievehub"

// HeldBadgesKey caches the held-badge listing of a user
func HeldBadgesKey(userID int64, catalogTag string) string {
	return fmt.Sprintf("%s:user:%d:badges:%s", keyPrefix, userID, catalogTag)
}

// BadgeStatsKey caches the badge statistics of a user
func BadgeStatsKey(userID int64, catalogTag string) string {
	return fmt.Sprintf("%s:user:%d:badge_stats:%s", keyPrefix, userID, catalogTag)
}

// CalendarKey caches an activity calendar window ending on day
func CalendarKey(userID int64, day string, days int) string {
	return fmt.Sprintf("%s:user:%d:calendar:%s:%d", keyPrefix, userID, day, days)
}

// UserPattern matches every key cached for a user
func UserPattern(userID int64) string {
	return fmt.Sprintf("%s:user:%d:*", keyPrefix, userID)
}

// matchPattern supports "*", a trailing "*" and a leading "*"
func matchPattern(str, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(str, prefix)
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(str, suffix)
	}
	return str == pattern
}
