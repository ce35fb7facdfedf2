package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"achievehub/internal/cache"
	"achievehub/internal/ledger"
	"achievehub/internal/models"
	"achievehub/internal/repositories"
	"achievehub/internal/stats"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const recentAchievementsLimit = 10

// BadgeServiceConfig tunes badge queries
type BadgeServiceConfig struct {
	CacheTTL            time.Duration
	CalendarDefaultDays int
	CalendarMaxDays     int
}

// badgeService implements BadgeService
type badgeService struct {
	catalog      CatalogProvider
	achievements repositories.AchievementRepository
	ledger       *ledger.Ledger
	streaks      stats.StreakCounter
	cache        cache.Cache
	config       BadgeServiceConfig
	logger       *zap.Logger
}

// NewBadgeService creates the badge query service. c may be nil.
func NewBadgeService(
	catalog CatalogProvider,
	achievements repositories.AchievementRepository,
	l *ledger.Ledger,
	streaks stats.StreakCounter,
	c cache.Cache,
	config BadgeServiceConfig,
	logger *zap.Logger,
) BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CalendarDefaultDays <= 0 {
		config.CalendarDefaultDays = 30
	}
	if config.CalendarMaxDays < config.CalendarDefaultDays {
		config.CalendarMaxDays = 366
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 2 * time.Minute
	}

	return &badgeService{
		catalog:      catalog,
		achievements: achievements,
		ledger:       l,
		streaks:      streaks,
		cache:        c,
		config:       config,
		logger:       logger,
	}
}

// GetHeldBadges lists the catalog with the user's earned flags. Held badges
// that were deprecated stay in Earned; ids the catalog does not know are
// listed by id only.
func (s *badgeService) GetHeldBadges(ctx context.Context, userID int64) (*models.HeldBadges, error) {
	if userID <= 0 {
		return nil, InvalidInputError("userId", "must be a positive integer")
	}

	catalog := s.catalog.Snapshot()
	key := cache.HeldBadgesKey(userID, catalog.Tag())

	result, err := cache.Remember(ctx, s.cache, s.logger, key, s.config.CacheTTL, func() (*models.HeldBadges, error) {
		held, err := s.achievements.GetHeldBadges(ctx, userID)
		if err != nil {
			return nil, err
		}

		earnedAt := make(map[string]time.Time, len(held))
		for _, h := range held {
			earnedAt[h.BadgeID] = h.AwardedAt
		}

		out := &models.HeldBadges{
			Earned: make([]models.BadgeWithStatus, 0, len(held)),
			All:    make([]models.BadgeWithStatus, 0, catalog.ActiveCount()),
		}

		for _, def := range catalog.Active() {
			entry := models.BadgeWithStatus{Badge: def.View()}
			if at, ok := earnedAt[def.BadgeID]; ok {
				at := at
				entry.Earned = true
				entry.EarnedAt = &at
				out.TotalEarned++
			}
			out.All = append(out.All, entry)
		}

		// newest first
		slices.SortFunc(held, func(a, b models.HeldBadge) int {
			return b.AwardedAt.Compare(a.AwardedAt)
		})
		for _, h := range held {
			at := h.AwardedAt
			badge := models.Badge{BadgeID: h.BadgeID}
			if def, ok := catalog.Lookup(h.BadgeID); ok {
				badge = def.View()
			} else {
				s.logger.Debug("Held badge missing from catalog",
					zap.Int64("user_id", userID),
					zap.String("badge_id", h.BadgeID),
				)
			}
			out.Earned = append(out.Earned, models.BadgeWithStatus{Badge: badge, Earned: true, EarnedAt: &at})
		}

		out.TotalAvailable = catalog.ActiveCount()
		out.ProgressPercent = progress(out.TotalEarned, out.TotalAvailable)
		return out, nil
	})
	if err != nil {
		return nil, NewInternalError("Failed to load badges", err)
	}
	return result, nil
}

// GetBadgeStats breaks the user's progress down by category and rarity
func (s *badgeService) GetBadgeStats(ctx context.Context, userID int64) (*models.BadgeStats, error) {
	if userID <= 0 {
		return nil, InvalidInputError("userId", "must be a positive integer")
	}

	catalog := s.catalog.Snapshot()
	key := cache.BadgeStatsKey(userID, catalog.Tag())

	result, err := cache.Remember(ctx, s.cache, s.logger, key, s.config.CacheTTL, func() (*models.BadgeStats, error) {
		held, err := s.achievements.GetHeldBadges(ctx, userID)
		if err != nil {
			return nil, err
		}
		recent, err := s.achievements.ListAchievements(ctx, userID, recentAchievementsLimit)
		if err != nil {
			return nil, err
		}

		heldSet := make(map[string]bool, len(held))
		for _, h := range held {
			heldSet[h.BadgeID] = true
		}

		out := &models.BadgeStats{
			ByCategory:         make(map[models.BadgeCategory]int),
			EarnedByCategory:   make(map[models.BadgeCategory]int),
			ByRarity:           make(map[models.Rarity]int),
			EarnedByRarity:     make(map[models.Rarity]int),
			RecentAchievements: recent,
		}
		if out.RecentAchievements == nil {
			out.RecentAchievements = []models.Achievement{}
		}

		for _, def := range catalog.Active() {
			out.TotalAvailable++
			out.ByCategory[def.Category]++
			out.ByRarity[def.Rarity]++
			if heldSet[def.BadgeID] {
				out.TotalEarned++
				out.EarnedByCategory[def.Category]++
				out.EarnedByRarity[def.Rarity]++
			}
		}
		out.ProgressPercent = progress(out.TotalEarned, out.TotalAvailable)
		return out, nil
	})
	if err != nil {
		return nil, NewInternalError("Failed to load badge statistics", err)
	}
	return result, nil
}

// GetActivityCalendar returns the last days of ledger records, newest
// first. Days without a record are omitted.
func (s *badgeService) GetActivityCalendar(ctx context.Context, userID int64, days int) (*models.ActivityCalendar, error) {
	if userID <= 0 {
		return nil, InvalidInputError("userId", "must be a positive integer")
	}
	if days == 0 {
		days = s.config.CalendarDefaultDays
	}
	if days < 0 || days > s.config.CalendarMaxDays {
		return nil, InvalidInputError("days", "must be between 1 and "+strconv.Itoa(s.config.CalendarMaxDays))
	}

	today := s.ledger.Today()
	key := cache.CalendarKey(userID, today.String(), days)

	result, err := cache.Remember(ctx, s.cache, s.logger, key, s.config.CacheTTL, func() (*models.ActivityCalendar, error) {
		from := today.AddDays(-(days - 1))

		out := &models.ActivityCalendar{
			Days:      []models.CalendarEntry{},
			RangeDays: days,
		}
		for rec, err := range s.ledger.Range(ctx, userID, from, today) {
			if err != nil {
				return nil, fmt.Errorf("ledger range: %w", err)
			}
			entry := models.CalendarEntry{
				Date:         rec.Day,
				Quizzes:      rec.QuizzesCompleted,
				Games:        rec.GamesPlayed,
				Posts:        rec.ForumPosts,
				MinutesSpent: rec.MinutesSpent,
				HasActivity:  rec.IsActive(),
			}
			out.Days = append(out.Days, entry)
			out.TotalActivities += rec.TotalActivities()
			if entry.HasActivity {
				out.ActiveDays++
			}
		}
		slices.Reverse(out.Days)

		current, err := s.streaks.Current(ctx, userID, today)
		if err != nil {
			return nil, fmt.Errorf("streak: %w", err)
		}
		out.CurrentStreak = current
		return out, nil
	})
	if err != nil {
		return nil, NewInternalError("Failed to load activity calendar", err)
	}
	return result, nil
}

// ListCatalog returns the badges that can still be earned
func (s *badgeService) ListCatalog(ctx context.Context) ([]models.Badge, error) {
	active := s.catalog.Snapshot().Active()
	out := make([]models.Badge, 0, len(active))
	for _, def := range active {
		out = append(out, def.View())
	}
	return out, nil
}

func progress(earned, available int) int {
	if available == 0 {
		return 0
	}
	return int(math.Round(float64(earned) * 100 / float64(available)))
}
