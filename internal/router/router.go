package router

import (
	"net/http"

	"achievehub/internal/middleware"
	"achievehub/internal/notifications"
	"achievehub/internal/response"
	"achievehub/internal/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Options carries everything the route table needs
type Options struct {
	Services        *services.ServiceCollection
	Hub             *notifications.Hub
	Auth            *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimiter
	ResponseBuilder *response.Builder
	AllowedOrigins  []string
	Logging         *middleware.LoggingConfig
	Recovery        *middleware.RecoveryConfig
	Logger          *zap.Logger
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ResponseBuilder == nil {
		opts.ResponseBuilder = response.NewBuilder(nil, opts.Logger)
	}
	if opts.Auth == nil {
		opts.Auth = middleware.NewAuthMiddleware(nil, opts.Logger)
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		response.QuickError(w, req, services.NewNotFoundError("Route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		response.QuickError(w, req, &services.ServiceError{
			Type:       "METHOD_NOT_ALLOWED",
			Message:    "Method not allowed",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})

	r.HandleFunc("/health", healthHandler(opts)).Methods(http.MethodGet)
	AddAPIv1Routes(r, opts)

	// wrapped outside the router so 404 and 405 responses get the same treatment
	var handler http.Handler = r
	handler = middleware.CORS(opts.AllowedOrigins)(handler)
	handler = middleware.SecureHeaders(handler)
	handler = middleware.Recovery(opts.Recovery, opts.Logger)(handler)
	handler = response.Middleware(opts.ResponseBuilder)(handler)
	handler = middleware.StructuredLogging(opts.Logging)(handler)
	handler = middleware.RequestID(opts.Logger)(handler)
	return handler
}

// healthHandler reports storage, cache, bus and catalog health.
// Unhealthy answers 503 so load balancers can act on it.
func healthHandler(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opts.Services == nil {
			response.QuickError(w, r, services.NewServiceUnavailableError("Services are not initialized"))
			return
		}

		health := opts.Services.HealthCheck(r.Context())
		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}

		resp := opts.ResponseBuilder.Success(r.Context(), health)
		resp.Success = status == http.StatusOK
		opts.ResponseBuilder.WriteJSON(w, r, resp, status)
	}
}
