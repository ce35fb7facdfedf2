package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Engine   EngineConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	AllowedOrigins  []string

	// Requests per caller per minute; 0 disables limiting
	RateLimitPerMinute int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	MigrationsPath     string
	AutoMigrate        bool
	ConnectRetries     int
}

// CacheConfig selects and tunes the cache provider
type CacheConfig struct {
	Provider string
	RedisURL string
	TTL      time.Duration
	MaxKeys  int
}

// AuthConfig holds bearer token verification settings.
// Tokens are issued by the platform's auth service.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	Leeway    time.Duration
}

// EngineConfig tunes the achievement engine
type EngineConfig struct {
	StorageDriver           string
	TimeZone                string
	AchievementHistoryLimit int
	CalendarDefaultDays     int
	CalendarMaxDays         int
	StatsTimeout            time.Duration
	StatsConcurrency        int
	HeldBadgesCacheTTL      time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	// Load environment file based on GO_ENV
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load() // fallback to .env
		}
	}

	config := &Config{
		Server:   loadServerConfig(env),
		Database: loadDatabaseConfig(env),
		Cache:    loadCacheConfig(),
		Auth:     loadAuthConfig(),
		Engine:   loadEngineConfig(),
		Logging:  loadLoggingConfig(env),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		AllowedOrigins:  getSliceEnv("WS_ALLOWED_ORIGINS", nil),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 600),
	}
}

func loadDatabaseConfig(env string) DatabaseConfig {
	maxOpen := 25
	if env == "production" {
		maxOpen = 50
	}

	return DatabaseConfig{
		URL:                getEnv("DATABASE_URL", ""),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", maxOpen),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		MigrationsPath:     getEnv("DB_MIGRATIONS_PATH", "./migrations"),
		AutoMigrate:        getBoolEnv("AUTO_MIGRATE", true),
		ConnectRetries:     getIntEnv("DB_CONNECT_RETRIES", 5),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider: getEnv("CACHE_PROVIDER", "memory"),
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      getDurationEnv("CACHE_TTL", 5*time.Minute),
		MaxKeys:  getIntEnv("CACHE_MAX_KEYS", 10000),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),
		Leeway:    getDurationEnv("JWT_LEEWAY", 30*time.Second),
	}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		StorageDriver:           getEnv("STORAGE_DRIVER", "postgres"),
		TimeZone:                getEnv("ACTIVITY_TIMEZONE", ""),
		AchievementHistoryLimit: getIntEnv("ACHIEVEMENT_HISTORY_LIMIT", 50),
		CalendarDefaultDays:     getIntEnv("CALENDAR_DEFAULT_DAYS", 30),
		CalendarMaxDays:         getIntEnv("CALENDAR_MAX_DAYS", 366),
		StatsTimeout:            getDurationEnv("STATS_TIMEOUT", 5*time.Second),
		StatsConcurrency:        getIntEnv("STATS_CONCURRENCY", 4),
		HeldBadgesCacheTTL:      getDurationEnv("HELD_BADGES_CACHE_TTL", 2*time.Minute),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		Format: getEnv("LOG_FORMAT", getDefaultLogFormat(env)),
	}
}

// ===============================
// VALIDATION
// ===============================

// Validate checks the whole configuration
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if c.Engine.StorageDriver == "postgres" {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database config: %w", err)
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Auth.Validate(c.Server.Environment); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server config: PORT is required")
	}

	return nil
}

// Validate checks database settings
func (d *DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("MaxOpenConns must be positive")
	}

	if d.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}

	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("MaxIdleConns cannot be greater than MaxOpenConns")
	}

	if d.ConnMaxLifetime <= 0 {
		return fmt.Errorf("ConnMaxLifetime must be positive")
	}

	if d.SlowQueryThreshold <= 0 {
		return fmt.Errorf("SlowQueryThreshold must be positive")
	}

	return nil
}

// Validate checks cache settings
func (c *CacheConfig) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "memory", "":
		return nil
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_PROVIDER=redis")
		}
		return nil
	default:
		return fmt.Errorf("unsupported cache provider: %s", c.Provider)
	}
}

// Validate checks token settings. Development may run without a secret.
func (a *AuthConfig) Validate(env string) error {
	if a.JWTSecret == "" && env == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if a.JWTSecret != "" && len(a.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

// Validate checks engine settings
func (e *EngineConfig) Validate() error {
	switch e.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %s", e.StorageDriver)
	}

	if _, err := e.Location(); err != nil {
		return err
	}

	if e.AchievementHistoryLimit <= 0 {
		return fmt.Errorf("ACHIEVEMENT_HISTORY_LIMIT must be positive")
	}

	if e.CalendarDefaultDays <= 0 || e.CalendarMaxDays < e.CalendarDefaultDays {
		return fmt.Errorf("calendar window must satisfy 0 < CALENDAR_DEFAULT_DAYS <= CALENDAR_MAX_DAYS")
	}

	if e.StatsConcurrency <= 0 {
		return fmt.Errorf("STATS_CONCURRENCY must be positive")
	}

	return nil
}

// Location resolves the canonical ledger time zone. Empty means server-local.
func (e *EngineConfig) Location() (*time.Location, error) {
	if e.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_TIMEZONE %q: %w", e.TimeZone, err)
	}
	return loc, nil
}

// IsProduction reports whether the server runs in production
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// ===============================
// ENV HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getDefaultLogLevel(env string) string {
	switch env {
	case "production":
		return "info"
	default:
		return "debug"
	}
}

func getDefaultLogFormat(env string) string {
	switch env {
	case "production":
		return "json"
	default:
		return "console"
	}
}
