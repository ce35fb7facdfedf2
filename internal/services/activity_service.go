package services

import (
	"context"
	"fmt"
	"time"

	"achievehub/internal/cache"
	"achievehub/internal/contextutils"
	"achievehub/internal/events"
	"achievehub/internal/ledger"
	"achievehub/internal/models"
	"achievehub/internal/repositories"
	"achievehub/internal/streak"
	"achievehub/internal/validation"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// activityService implements ActivityService
type activityService struct {
	ledger   *ledger.Ledger
	recorder repositories.Recorder
	engine   AwardEngine
	bus      events.EventBus
	cache    cache.Cache
	now      func() time.Time
	logger   *zap.Logger
}

// ActivityServiceDeps groups the collaborators of the activity service.
// EventBus and Cache are optional.
type ActivityServiceDeps struct {
	Ledger   *ledger.Ledger
	Recorder repositories.Recorder
	Engine   AwardEngine
	EventBus events.EventBus
	Cache    cache.Cache
	Clock    func() time.Time
}

// NewActivityService creates the activity service
func NewActivityService(deps ActivityServiceDeps, logger *zap.Logger) (ActivityService, error) {
	if deps.Ledger == nil || deps.Recorder == nil || deps.Engine == nil {
		return nil, fmt.Errorf("activity service requires ledger, recorder and award engine")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &activityService{
		ledger:   deps.Ledger,
		recorder: deps.Recorder,
		engine:   deps.Engine,
		bus:      deps.EventBus,
		cache:    deps.Cache,
		now:      deps.Clock,
		logger:   logger,
	}, nil
}

// Track records the activity, refreshes lifetime counters and runs a
// check cycle. Recording errors are returned; award errors never are.
func (s *activityService) Track(ctx context.Context, userID int64, req *TrackActivityRequest) (*models.CheckResult, error) {
	if userID <= 0 {
		return nil, InvalidInputError("userId", "must be a positive integer")
	}
	if req == nil {
		return nil, NewValidationError("Activity event is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError("Invalid activity event", err)
	}
	if err := validatePayload(req.ActivityType, req.Payload); err != nil {
		return nil, err
	}

	event := req.Event(s.now())
	logger := contextutils.Logger(ctx, s.logger).With(
		zap.Int64("user_id", userID),
		zap.String("activity_type", string(event.Type)),
	)

	if event.Type.RecordsActivity() {
		day, delta, err := s.record(ctx, userID, &event, logger)
		if err != nil {
			logger.Error("Failed to record activity", zap.Error(err))
			return nil, NewInternalError("Failed to record activity", err)
		}
		s.invalidate(ctx, userID, logger)
		s.publishRecorded(ctx, userID, event.Type, day, delta, logger)
	}

	awarded := s.engine.CheckAndAward(ctx, userID, event.Type, event.Payload)
	return &models.CheckResult{NewlyAwarded: awarded, Count: len(awarded)}, nil
}

// Check runs a check cycle without recording activity. An empty activity
// type means a manual check.
func (s *activityService) Check(ctx context.Context, userID int64, req *CheckRequest) (*models.CheckResult, error) {
	if userID <= 0 {
		return nil, InvalidInputError("userId", "must be a positive integer")
	}
	if req == nil {
		req = &CheckRequest{}
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError("Invalid check request", err)
	}

	activityType := req.ActivityType
	if activityType == "" {
		activityType = models.ActivityManual
	}

	awarded := s.engine.CheckAndAward(ctx, userID, activityType, req.Payload)
	return &models.CheckResult{NewlyAwarded: awarded, Count: len(awarded)}, nil
}

// validatePayload checks the fields each activity type cannot do without
func validatePayload(t models.ActivityType, p models.ActivityPayload) error {
	switch t {
	case models.ActivityQuizCompleted:
		if !p.HasScore() {
			return InvalidInputError("payload.score", "required for quiz_completed")
		}
		if *p.Score > 100 {
			return InvalidInputError("payload.score", "must be between 0 and 100")
		}
	case models.ActivityGameCompleted:
		if p.GameType == "" {
			return InvalidInputError("payload.gameType", "required for game_completed")
		}
	case models.ActivityForumCommentCreated:
		if p.PostID == "" {
			return InvalidInputError("payload.postId", "required for forum_comment_created")
		}
	}
	return nil
}

// record writes the source records, the ledger delta and the refreshed
// counters of the event in one transaction. It fills in a post id when the
// forum did not send one and returns the delta that reached the ledger.
func (s *activityService) record(ctx context.Context, userID int64, event *models.ActivityEvent, logger *zap.Logger) (models.Day, models.ActivityDelta, error) {
	day := s.ledger.DayOf(event.OccurredAt)
	var delta models.ActivityDelta

	err := s.recorder.InTx(ctx, func(tx repositories.Stores) error {
		var err error
		delta, err = s.recordSource(ctx, tx, userID, event, logger)
		if err != nil {
			return err
		}

		txLedger := s.ledger.Bind(tx.Activity)
		if _, err := txLedger.RecordAt(ctx, userID, event.OccurredAt, delta); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}

		if err := s.refreshState(ctx, tx, txLedger, userID, *event, delta, logger); err != nil {
			return fmt.Errorf("achievement state: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Day{}, models.ActivityDelta{}, err
	}
	return day, delta, nil
}

// recordSource stores the quiz, game or forum record of the event and
// returns the ledger delta it earns. A post the engine already knows earns
// nothing.
func (s *activityService) recordSource(ctx context.Context, tx repositories.Stores, userID int64, event *models.ActivityEvent, logger *zap.Logger) (models.ActivityDelta, error) {
	delta := event.Delta()
	p := &event.Payload

	switch event.Type {
	case models.ActivityQuizCompleted:
		outcome := &models.QuizOutcome{
			UserID:       userID,
			QuizType:     p.QuizType,
			Score:        *p.Score,
			TopicResults: topicResults(*p),
			CompletedAt:  event.OccurredAt.UTC(),
		}
		if err := tx.Quizzes.RecordOutcome(ctx, outcome); err != nil {
			return delta, fmt.Errorf("quiz outcome: %w", err)
		}

	case models.ActivityGameCompleted:
		if _, err := tx.Achievements.RecordGame(ctx, userID, p.GameType, gameScore(*p), event.OccurredAt.UTC()); err != nil {
			return delta, fmt.Errorf("game stats: %w", err)
		}

	case models.ActivityForumPostCreated:
		if p.PostID == "" {
			p.PostID = newPostID()
		}
		post := &models.ForumPost{
			PostID:    p.PostID,
			UserID:    userID,
			Topic:     p.Topic,
			CreatedAt: event.OccurredAt.UTC(),
		}
		inserted, err := tx.Forum.RecordPost(ctx, post)
		if err != nil {
			return delta, fmt.Errorf("forum post: %w", err)
		}
		if !inserted {
			logger.Debug("Forum post already recorded", zap.String("post_id", p.PostID))
			delta.ForumPosts = 0
		}

	case models.ActivityForumCommentCreated:
		found, err := tx.Forum.RecordComment(ctx, p.PostID, p.CommentCount)
		if err != nil {
			return delta, fmt.Errorf("forum comment: %w", err)
		}
		if !found {
			logger.Debug("Comment on a post the engine never saw", zap.String("post_id", p.PostID))
		}
	}
	return delta, nil
}

// refreshState folds the event into the lifetime counters and recomputes
// the streak from the ledger as written so far in the transaction. A
// streak that cannot be computed leaves the stored one as is.
func (s *activityService) refreshState(ctx context.Context, tx repositories.Stores, txLedger *ledger.Ledger, userID int64, event models.ActivityEvent, delta models.ActivityDelta, logger *zap.Logger) error {
	current, streakErr := streak.NewCalculator(txLedger).Current(ctx, userID, txLedger.Today())
	if streakErr != nil {
		logger.Warn("Failed to compute streak", zap.Error(streakErr))
	}

	_, err := tx.Achievements.UpdateState(ctx, userID, func(state *models.UserAchievementState) error {
		switch event.Type {
		case models.ActivityQuizCompleted:
			state.RecordQuiz(*event.Payload.Score, delta.MinutesSpent)
		case models.ActivityGameCompleted:
			state.RecordGame(gameScore(event.Payload), delta.MinutesSpent)
		}
		if streakErr == nil {
			state.UpdateStreak(current)
		}
		return nil
	})
	return err
}

// invalidate drops the user's cached calendar and badge listings
func (s *activityService) invalidate(ctx context.Context, userID int64, logger *zap.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, cache.UserPattern(userID)); err != nil {
		logger.Warn("Failed to invalidate user cache", zap.Error(err))
	}
}

func (s *activityService) publishRecorded(ctx context.Context, userID int64, activityType models.ActivityType, day models.Day, delta models.ActivityDelta, logger *zap.Logger) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishAsync(ctx, events.NewActivityRecordedEvent(userID, activityType, day, delta)); err != nil {
		logger.Warn("Failed to publish activity event", zap.Error(err))
	}
}

// topicResults returns the reported per-topic tallies, merging repeated
// topics
func topicResults(p models.ActivityPayload) []models.TopicResult {
	if len(p.TopicResults) == 0 {
		return nil
	}
	index := make(map[string]int, len(p.TopicResults))
	out := make([]models.TopicResult, 0, len(p.TopicResults))
	for _, r := range p.TopicResults {
		if i, ok := index[r.Topic]; ok {
			out[i].Correct += r.Correct
			out[i].Total += r.Total
			continue
		}
		index[r.Topic] = len(out)
		out = append(out, r)
	}
	return out
}

func gameScore(p models.ActivityPayload) float64 {
	if p.Score == nil {
		return 0
	}
	return *p.Score
}

func newPostID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("post_%d", time.Now().UnixNano())
	}
	return id.String()
}
