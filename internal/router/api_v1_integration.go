package router

import (
	"net/http"

	"achievehub/internal/handlers/api/v1/activities"
	"achievehub/internal/handlers/api/v1/badges"
	"achievehub/internal/handlers/api/v1/notifications"
	"achievehub/internal/middleware"

	"github.com/gorilla/mux"
)

// AddAPIv1Routes mounts the /api/v1 surface. Every route needs a bearer
// token; collaborator routes need a service token, /me routes a learner token.
func AddAPIv1Routes(r *mux.Router, opts Options) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(opts.Auth.Authenticate())
	if opts.RateLimiter != nil {
		api.Use(middleware.RateLimit(opts.RateLimiter))
	}

	if opts.Services == nil {
		return
	}

	activityController := activities.NewActivityController(opts.Services.ActivityService, opts.Logger, opts.ResponseBuilder)
	badgeController := badges.NewBadgeController(opts.Services.BadgeService, opts.Logger, opts.ResponseBuilder)

	// ===============================
	// COLLABORATOR ENDPOINTS
	// ===============================

	collaborators := api.PathPrefix("/users/{userID}").Subrouter()
	collaborators.Use(opts.Auth.RequireService())
	collaborators.HandleFunc("/activities", activityController.Track).Methods(http.MethodPost)
	collaborators.HandleFunc("/badges/check", activityController.Check).Methods(http.MethodPost)

	// ===============================
	// CATALOG
	// ===============================

	api.HandleFunc("/badges", badgeController.ListCatalog).Methods(http.MethodGet)

	// ===============================
	// LEARNER ENDPOINTS
	// ===============================

	me := api.PathPrefix("/me").Subrouter()
	me.Use(opts.Auth.RequireUser())
	me.HandleFunc("/badges", badgeController.GetMyBadges).Methods(http.MethodGet)
	me.HandleFunc("/badges/stats", badgeController.GetMyBadgeStats).Methods(http.MethodGet)
	me.HandleFunc("/activity", badgeController.GetMyActivity).Methods(http.MethodGet)

	if opts.Hub != nil {
		notificationController := notifications.NewNotificationController(opts.Hub, opts.Logger)
		me.HandleFunc("/notifications/ws", notificationController.Connect).Methods(http.MethodGet)
	}
}
