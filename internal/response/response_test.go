package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"achievehub/internal/contextutils"
	"achievehub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var out APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWriteSuccess_Envelope(t *testing.T) {
	b := NewBuilder(nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextutils.WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	b.WriteSuccess(rec, req, map[string]int{"n": 1})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	out := decode(t, rec)
	assert.True(t, out.Success)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, "v1", out.Version)
	assert.Nil(t, out.Error)
}

func TestWriteError_StatusFromServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", services.NewValidationError("bad days", nil), http.StatusBadRequest, services.ErrorTypeValidation},
		{"unauthorized", services.NewUnauthorizedError("no token"), http.StatusUnauthorized, services.ErrorTypeUnauthorized},
		{"wrapped forbidden", fmt.Errorf("route: %w", services.NewForbiddenError("nope")), http.StatusForbidden, services.ErrorTypeForbidden},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, services.ErrorTypeInternal},
	}

	b := NewBuilder(nil, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			b.WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			out := decode(t, rec)
			assert.False(t, out.Success)
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.typ, out.Error.Type)
		})
	}
}

func TestWriteError_MasksInternalMessages(t *testing.T) {
	err := services.NewInternalError("pq: connection refused on 10.0.0.3", errors.New("dial"))

	masked := NewBuilder(DefaultConfig(), zap.NewNop())
	rec := httptest.NewRecorder()
	masked.WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)
	assert.Equal(t, "An internal error occurred", decode(t, rec).Error.Message)

	cfg := DefaultConfig()
	cfg.MaskInternalErrors = false
	open := NewBuilder(cfg, zap.NewNop())
	rec = httptest.NewRecorder()
	open.WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)
	assert.Contains(t, decode(t, rec).Error.Message, "connection refused")
}

func TestMiddleware_QuickHelpersUseContextBuilder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIVersion = "v9"
	builder := NewBuilder(cfg, zap.NewNop())

	h := Middleware(builder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, builder, GetBuilder(r.Context()))
		QuickSuccess(w, r, "ok")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "v9", decode(t, rec).Version)

	// without middleware a default builder is used
	rec = httptest.NewRecorder()
	QuickError(rec, httptest.NewRequest(http.MethodGet, "/", nil), services.NewNotFoundError("gone"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
