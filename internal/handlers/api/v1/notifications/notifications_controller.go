package notifications

import (
	"net/http"

	"achievehub/internal/contextutils"

	"go.uber.org/zap"
)

// Connector upgrades a request into a learner's notification stream
type Connector interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID int64)
}

// NotificationController exposes the badge-award push channel
type NotificationController struct {
	hub    Connector
	logger *zap.Logger
}

// NewNotificationController creates the controller
func NewNotificationController(hub Connector, logger *zap.Logger) *NotificationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationController{hub: hub, logger: logger}
}

// Connect handles GET /api/v1/me/notifications/ws
func (c *NotificationController) Connect(w http.ResponseWriter, r *http.Request) {
	userID := contextutils.GetUserID(r.Context())
	contextutils.Logger(r.Context(), c.logger).Debug("Notification stream requested", zap.Int64("user_id", userID))
	c.hub.ServeWS(w, r, userID)
}
