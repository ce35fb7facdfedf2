package badges

import (
	"net/http"
	"strconv"

	"achievehub/internal/contextutils"
	"achievehub/internal/response"
	"achievehub/internal/services"

	"go.uber.org/zap"
)

// BadgeController serves catalog and per-learner badge queries
type BadgeController struct {
	badgeService    services.BadgeService
	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewBadgeController creates the controller
func NewBadgeController(
	badgeService services.BadgeService,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *BadgeController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeController{
		badgeService:    badgeService,
		logger:          logger,
		responseBuilder: responseBuilder,
	}
}

// ListCatalog handles GET /api/v1/badges
func (c *BadgeController) ListCatalog(w http.ResponseWriter, r *http.Request) {
	list, err := c.badgeService.ListCatalog(r.Context())
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, list)
}

// GetMyBadges handles GET /api/v1/me/badges
func (c *BadgeController) GetMyBadges(w http.ResponseWriter, r *http.Request) {
	held, err := c.badgeService.GetHeldBadges(r.Context(), contextutils.GetUserID(r.Context()))
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, held)
}

// GetMyBadgeStats handles GET /api/v1/me/badges/stats
func (c *BadgeController) GetMyBadgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.badgeService.GetBadgeStats(r.Context(), contextutils.GetUserID(r.Context()))
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, stats)
}

// GetMyActivity handles GET /api/v1/me/activity?days=N. A missing days
// parameter uses the service default.
func (c *BadgeController) GetMyActivity(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.responseBuilder.WriteError(w, r, services.InvalidInputError("days", "must be an integer"))
			return
		}
		days = n
	}

	calendar, err := c.badgeService.GetActivityCalendar(r.Context(), contextutils.GetUserID(r.Context()), days)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, calendar)
}
