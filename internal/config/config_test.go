package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDriverDefaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CACHE_PROVIDER", "memory")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Engine.StorageDriver)
	assert.Equal(t, 50, cfg.Engine.AchievementHistoryLimit)
	assert.Equal(t, 30, cfg.Engine.CalendarDefaultDays)
	assert.Equal(t, 366, cfg.Engine.CalendarMaxDays)
	assert.Equal(t, 5*time.Second, cfg.Engine.StatsTimeout)
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEngineConfig_Validate(t *testing.T) {
	base := func() EngineConfig {
		return EngineConfig{
			StorageDriver:           "memory",
			AchievementHistoryLimit: 50,
			CalendarDefaultDays:     30,
			CalendarMaxDays:         366,
			StatsConcurrency:        4,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr bool
	}{
		{"valid", func(*EngineConfig) {}, false},
		{"bad driver", func(e *EngineConfig) { e.StorageDriver = "mongo" }, true},
		{"bad zone", func(e *EngineConfig) { e.TimeZone = "Mars/Olympus" }, true},
		{"zero history", func(e *EngineConfig) { e.AchievementHistoryLimit = 0 }, true},
		{"inverted calendar", func(e *EngineConfig) { e.CalendarMaxDays = 7 }, true},
		{"named zone", func(e *EngineConfig) { e.TimeZone = "UTC" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	assert.NoError(t, (&AuthConfig{}).Validate("development"))
	assert.Error(t, (&AuthConfig{}).Validate("production"))
	assert.Error(t, (&AuthConfig{JWTSecret: "short"}).Validate("development"))
}

func TestCacheConfig_Validate(t *testing.T) {
	assert.NoError(t, (&CacheConfig{Provider: "memory"}).Validate())
	assert.Error(t, (&CacheConfig{Provider: "redis"}).Validate())
	assert.NoError(t, (&CacheConfig{Provider: "redis", RedisURL: "redis://localhost:6379/0"}).Validate())
	assert.Error(t, (&CacheConfig{Provider: "memcached"}).Validate())
}
