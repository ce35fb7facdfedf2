package models

import (
	"fmt"
	"time"
)

// BadgeCategory groups badges for display and statistics
type BadgeCategory string

const (
	CategoryQuiz        BadgeCategory = "quiz"
	CategoryForum       BadgeCategory = "forum"
	CategoryTime        BadgeCategory = "time"
	CategoryStreak      BadgeCategory = "streak"
	CategoryMastery     BadgeCategory = "mastery"
	CategoryAchievement BadgeCategory = "achievement"
	CategoryGame        BadgeCategory = "game"
)

// IsValid reports whether c is a known category
func (c BadgeCategory) IsValid() bool {
	switch c {
	case CategoryQuiz, CategoryForum, CategoryTime, CategoryStreak, CategoryMastery, CategoryAchievement, CategoryGame:
		return true
	}
	return false
}

// Rarity is an ordinal: common < uncommon < rare < epic < legendary
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

var rarityRank = map[Rarity]int{
	RarityCommon:    0,
	RarityUncommon:  1,
	RarityRare:      2,
	RarityEpic:      3,
	RarityLegendary: 4,
}

// Rank returns the ordinal position of the rarity, -1 when unknown
func (r Rarity) Rank() int {
	if rank, ok := rarityRank[r]; ok {
		return rank
	}
	return -1
}

// IsValid reports whether r is a known rarity
func (r Rarity) IsValid() bool {
	return r.Rank() >= 0
}

// BadgeDefinition is an immutable catalog entry
type BadgeDefinition struct {
	BadgeID        string        `json:"badgeId"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Icon           string        `json:"icon"`
	Category       BadgeCategory `json:"category"`
	Rarity         Rarity        `json:"rarity"`
	Criteria       []Criterion   `json:"criteria"`
	Deprecated     bool          `json:"-"`
	CatalogVersion int           `json:"-"`
}

// Validate checks the definition before it enters a catalog
func (b BadgeDefinition) Validate() error {
	if b.BadgeID == "" {
		return fmt.Errorf("badge id is required")
	}
	if b.Name == "" {
		return fmt.Errorf("badge %s: name is required", b.BadgeID)
	}
	if !b.Category.IsValid() {
		return fmt.Errorf("badge %s: unknown category %q", b.BadgeID, b.Category)
	}
	if !b.Rarity.IsValid() {
		return fmt.Errorf("badge %s: unknown rarity %q", b.BadgeID, b.Rarity)
	}
	if len(b.Criteria) == 0 {
		return fmt.Errorf("badge %s: at least one criterion is required", b.BadgeID)
	}
	for i, c := range b.Criteria {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("badge %s: criterion %d: %w", b.BadgeID, i, err)
		}
	}
	return nil
}

// Badge is the client-facing view of a badge definition
type Badge struct {
	BadgeID     string        `json:"badgeId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Category    BadgeCategory `json:"category"`
	Rarity      Rarity        `json:"rarity"`
}

// View strips the rule set from a definition
func (b BadgeDefinition) View() Badge {
	return Badge{
		BadgeID:     b.BadgeID,
		Name:        b.Name,
		Description: b.Description,
		Icon:        b.Icon,
		Category:    b.Category,
		Rarity:      b.Rarity,
	}
}

// AwardedBadge is a badge newly committed by a check cycle
type AwardedBadge struct {
	Badge
	AwardedAt time.Time `json:"awardedAt"`
}

// BadgeWithStatus is a catalog badge annotated with the user's progress on it
type BadgeWithStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earnedDate"`
}

// HeldBadge is one row of the user's held-badge set
type HeldBadge struct {
	UserID    int64     `json:"userId"`
	BadgeID   string    `json:"badgeId"`
	AwardedAt time.Time `json:"awardedAt"`
}
