package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"achievehub/internal/contextutils"
	"achievehub/internal/responseutil"
	"achievehub/internal/services"

	"go.uber.org/zap"
)

// RecoveryConfig holds configuration for panic recovery middleware
type RecoveryConfig struct {
	EnableStackTrace bool
	MaxStackFrames   int
}

// DefaultRecoveryConfig returns production-ready recovery configuration
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		EnableStackTrace: true,
		MaxStackFrames:   20,
	}
}

// StackFrame represents a single stack frame
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Recovery converts handler panics into a 500 envelope and logs the stack
func Recovery(config *RecoveryConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultRecoveryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a response on purpose
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logPanic(contextutils.Logger(r.Context(), logger), r, rec, config)
				sendPanicResponse(w, r, rec)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(logger *zap.Logger, r *http.Request, rec interface{}, config *RecoveryConfig) {
	fields := []zap.Field{
		zap.String("event", "panic_recovered"),
		zap.Any("panic_error", rec),
		zap.String("panic_type", fmt.Sprintf("%T", rec)),
		zap.String("endpoint", r.Method+" "+r.URL.Path),
		zap.Int("goroutines", runtime.NumGoroutine()),
	}

	if userID := contextutils.GetUserID(r.Context()); userID != 0 {
		fields = append(fields, zap.Int64("user_id", userID))
	}

	if config.EnableStackTrace {
		frames := captureStackTrace(config.MaxStackFrames)
		stack := make([]string, len(frames))
		for i, frame := range frames {
			stack[i] = fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		fields = append(fields, zap.Strings("stack_trace", stack))
	}

	logger.Error("Panic recovered", fields...)
}

// captureStackTrace skips runtime frames and the recovery machinery
func captureStackTrace(maxFrames int) []StackFrame {
	if maxFrames <= 0 {
		return nil
	}

	pcs := make([]uintptr, maxFrames+4)
	n := runtime.Callers(4, pcs)
	callersFrames := runtime.CallersFrames(pcs[:n])

	frames := make([]StackFrame, 0, maxFrames)
	for len(frames) < maxFrames {
		frame, more := callersFrames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			frames = append(frames, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}
		if !more {
			break
		}
	}
	return frames
}

func sendPanicResponse(w http.ResponseWriter, r *http.Request, rec interface{}) {
	err := services.NewInternalError("panic while handling request", fmt.Errorf("panic: %v", rec))

	if rb, ok := responseutil.GetBuilder(r.Context()).(responseutil.ResponseBuilder); ok {
		rb.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusInternalServerError)

	body, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"type":    services.ErrorTypeInternal,
			"message": "Internal server error",
		},
		"request_id": contextutils.GetRequestID(r.Context()),
		"timestamp":  time.Now().Unix(),
	})
	_, _ = w.Write(body)
}
