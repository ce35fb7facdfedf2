package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"achievehub/internal/cache"
	"achievehub/internal/contextutils"
	"achievehub/internal/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Type
}

func TestRequestID_ReusesOrGenerates(t *testing.T) {
	var seen string
	h := RequestID(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextutils.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXCorrelationID, "corr-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "corr-7", seen)
	assert.Equal(t, "corr-7", rec.Header().Get(HeaderXRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(HeaderXRequestID))
}

func TestStructuredLogging_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	handler := func(status int) http.Handler {
		return RequestID(logger)(StructuredLogging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})))
	}

	handler(http.StatusOK).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/badges", nil))
	handler(http.StatusNotFound).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	handler(http.StatusOK).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, int64(404), entries[1].ContextMap()["status"])
}

func TestRecovery_WritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	builder := response.NewBuilder(nil, zap.NewNop())

	h := response.Middleware(builder)(Recovery(nil, zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorType(t, rec))
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRecovery_FallbackWithoutBuilder(t *testing.T) {
	h := Recovery(nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(42)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorType(t, rec))
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	h := Recovery(nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func authChain(am *AuthMiddleware, gate func() func(http.Handler) http.Handler) (http.Handler, *AuthContext) {
	seen := &AuthContext{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.UserID = contextutils.GetUserID(r.Context())
		seen.Role = contextutils.GetRole(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	var h http.Handler = final
	if gate != nil {
		h = gate()(h)
	}
	return am.Authenticate()(h), seen
}

func TestAuthenticate(t *testing.T) {
	am := NewAuthMiddleware(&AuthConfig{JWTSecret: testSecret}, zap.NewNop())

	userToken, err := IssueToken(testSecret, 42, "", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, 42, "", -time.Hour)
	require.NoError(t, err)
	otherKey, err := IssueToken("ffffffffffffffffffffffffffffffff", 42, "", time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "42", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + userToken, http.StatusNoContent},
		{"lowercase scheme", "bearer " + userToken, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + otherKey, http.StatusUnauthorized},
		{"alg none", "Bearer " + noneAlg, http.StatusUnauthorized},
		{"non numeric subject", "Bearer " + badSubject, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, seen := authChain(am, nil)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, int64(42), seen.UserID)
			} else {
				assert.Equal(t, "UNAUTHORIZED", errorType(t, rec))
			}
		})
	}
}

func TestAuthenticate_NoSecretRejects(t *testing.T) {
	am := NewAuthMiddleware(&AuthConfig{}, zap.NewNop())
	token, err := IssueToken(testSecret, 1, "", time.Hour)
	require.NoError(t, err)

	h, _ := authChain(am, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_WebsocketQueryToken(t *testing.T) {
	am := NewAuthMiddleware(&AuthConfig{JWTSecret: testSecret}, zap.NewNop())
	token, err := IssueToken(testSecret, 9, "", time.Hour)
	require.NoError(t, err)

	h, seen := authChain(am, nil)

	// plain requests may not use the query parameter
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(9), seen.UserID)
}

func TestRequireServiceAndUser(t *testing.T) {
	am := NewAuthMiddleware(&AuthConfig{JWTSecret: testSecret}, zap.NewNop())
	serviceToken, err := IssueToken(testSecret, 0, RoleService, time.Hour)
	require.NoError(t, err)
	userToken, err := IssueToken(testSecret, 5, "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		gate   func() func(http.Handler) http.Handler
		token  string
		status int
	}{
		{"service on service route", am.RequireService, serviceToken, http.StatusNoContent},
		{"user on service route", am.RequireService, userToken, http.StatusForbidden},
		{"user on user route", am.RequireUser, userToken, http.StatusNoContent},
		{"service on user route", am.RequireUser, serviceToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := authChain(am, tt.gate)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRateLimit_FixedWindow(t *testing.T) {
	c, err := cache.NewCache(&cache.Config{Provider: "memory", TTL: time.Minute, MaxKeys: 100}, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	limiter := NewRateLimiter(c, &RateLimiterConfig{Enabled: true, Limit: 2, Window: time.Minute}, zap.NewNop())
	fixed := time.Date(2024, 9, 20, 10, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do("10.0.0.1")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)

	third := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "RATE_LIMITED", errorType(t, third))
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	// other callers have their own budget
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code)

	// a new window resets the count
	fixed = fixed.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
