package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"achievehub/internal/cache"
	"achievehub/internal/contextutils"
	"achievehub/internal/response"
	"achievehub/internal/services"

	"go.uber.org/zap"
)

// RateLimiterConfig holds the fixed-window limit applied per caller
type RateLimiterConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	// "allow" lets requests through when the cache errors, "deny" rejects them
	FailureMode string
}

// DefaultRateLimiterConfig returns the production limit
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Enabled:     true,
		Limit:       600,
		Window:      time.Minute,
		FailureMode: "allow",
	}
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
	LimitKey  string
}

// RateLimiter counts requests per authenticated caller (or client IP)
// in the shared cache. Counts are best effort across replicas.
type RateLimiter struct {
	cache  cache.Cache
	config *RateLimiterConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter backed by c
func NewRateLimiter(c cache.Cache, config *RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{cache: c, config: config, logger: logger, now: time.Now}
}

// RateLimit rejects callers over their window budget with 429
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !limiter.config.Enabled || limiter.config.Limit <= 0 || limiter.cache == nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.check(r.Context(), callerKey(r))
			if err != nil {
				GetRequestLogger(r.Context()).Warn("Rate limit check failed", zap.Error(err))
				if limiter.config.FailureMode == "deny" {
					response.QuickError(w, r, services.NewServiceUnavailableError("Rate limiting is unavailable"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			writeRateLimitHeaders(w, result)

			if !result.Allowed {
				GetRequestLogger(r.Context()).Warn("Rate limit exceeded",
					zap.String("limit_key", result.LimitKey),
					zap.Int("limit", result.Limit),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetTime).Seconds())+1))
				response.QuickError(w, r, &services.ServiceError{
					Type:       "RATE_LIMITED",
					Message:    "Rate limit exceeded",
					StatusCode: http.StatusTooManyRequests,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if userID := contextutils.GetUserID(r.Context()); userID > 0 {
		return fmt.Sprintf("%s:%d", contextutils.GetRole(r.Context()), userID)
	}
	return "ip:" + getClientIP(r)
}

// check implements a fixed window: one counter key per caller per window
func (rl *RateLimiter) check(ctx context.Context, key string) (*RateLimitResult, error) {
	now := rl.now()
	windowStart := now.Truncate(rl.config.Window)
	windowKey := fmt.Sprintf("achievehub:ratelimit:%s:%d", key, windowStart.Unix())

	count := 0
	if raw, ok := rl.cache.Get(ctx, windowKey); ok {
		if n, err := strconv.Atoi(string(raw)); err == nil {
			count = n
		}
	}

	result := &RateLimitResult{
		Allowed:   count < rl.config.Limit,
		Limit:     rl.config.Limit,
		Remaining: max(rl.config.Limit-count-1, 0),
		ResetTime: windowStart.Add(rl.config.Window),
		LimitKey:  key,
	}

	if result.Allowed {
		if err := rl.cache.Set(ctx, windowKey, []byte(strconv.Itoa(count+1)), rl.config.Window); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func writeRateLimitHeaders(w http.ResponseWriter, result *RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
}
