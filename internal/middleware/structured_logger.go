package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/slices"
)

// LoggingConfig holds configuration for the request logging middleware
type LoggingConfig struct {
	SlowRequestThreshold time.Duration
	// Paths logged at debug only, e.g. health probes
	QuietPaths []string
}

// DefaultLoggingConfig returns the production logging configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SlowRequestThreshold: time.Second,
		QuietPaths:           []string{"/health"},
	}
}

// StructuredLogging logs one line per completed request using the
// request-scoped logger set by RequestID.
func StructuredLogging(config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := GetRequestStart(r.Context())
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			logger := GetRequestLogger(r.Context())

			fields := []zap.Field{
				zap.Int("status", rw.status),
				zap.Duration("duration", duration),
				zap.Int64("response_size", rw.bytesWritten),
			}
			level := levelFor(rw.status)
			if level == zapcore.InfoLevel && slices.Contains(config.QuietPaths, r.URL.Path) {
				level = zapcore.DebugLevel
			}
			if ce := logger.Check(level, "Request completed"); ce != nil {
				ce.Write(fields...)
			}

			if config.SlowRequestThreshold > 0 && duration > config.SlowRequestThreshold {
				logger.Warn("Slow request detected",
					zap.Duration("duration", duration),
					zap.Duration("threshold", config.SlowRequestThreshold),
				)
			}
		})
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
