package activities

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"achievehub/internal/contextutils"
	"achievehub/internal/response"
	"achievehub/internal/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// ActivityController receives activity events from collaborator subsystems
type ActivityController struct {
	activityService services.ActivityService
	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewActivityController creates the controller
func NewActivityController(
	activityService services.ActivityService,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *ActivityController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityController{
		activityService: activityService,
		logger:          logger,
		responseBuilder: responseBuilder,
	}
}

// Track handles POST /api/v1/users/{userID}/activities
func (c *ActivityController) Track(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.TrackActivityRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.activityService.Track(r.Context(), userID, &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	contextutils.Logger(r.Context(), c.logger).Info("Activity tracked",
		zap.Int64("user_id", userID),
		zap.String("activity_type", string(req.ActivityType)),
		zap.Int("awarded", result.Count),
	)
	c.responseBuilder.WriteCreated(w, r, result)
}

// Check handles POST /api/v1/users/{userID}/badges/check. The body is optional.
func (c *ActivityController) Check(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.CheckRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.activityService.Check(r.Context(), userID, &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, result)
}

func pathUserID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["userID"]
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, services.InvalidInputError("userID", "must be a positive integer")
	}
	return userID, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return services.NewValidationError("Request body is required", err)
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.NewValidationError("Request body is too large", err)
		}
		return services.NewValidationError("Invalid request body format", err)
	}
}
