package badges

import (
	"context"
	"errors"
	"testing"

	"achievehub/internal/models"
	"achievehub/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultMigrations(t *testing.T) {
	migrations, err := DefaultMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Len(t, migrations[0].Badges, 20)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Len(t, migrations[1].Badges, 2)

	var highScorer models.BadgeDefinition
	for _, b := range migrations[0].Badges {
		if b.BadgeID == "high_scorer" {
			highScorer = b
		}
	}
	require.Len(t, highScorer.Criteria, 1)
	assert.Equal(t, models.ConditionBestScore, highScorer.Criteria[0].Condition)
	n, ok := highScorer.Criteria[0].Value.Number()
	require.True(t, ok)
	assert.Equal(t, 1000.0, n)
}

func TestParseMigrations_RejectsUnknownCriterion(t *testing.T) {
	doc := []byte(`
versions:
  - version: 1
    badges:
      - badgeId: odd
        name: Odd
        category: quiz
        rarity: common
        criteria:
          - { type: karma, condition: greater_equal, value: 1 }
`)
	_, err := ParseMigrations(doc)
	assert.Error(t, err)
}

func TestParseMigrations_RejectsDuplicateVersion(t *testing.T) {
	doc := []byte(`
versions:
  - version: 1
    badges: []
  - version: 1
    badges: []
`)
	_, err := ParseMigrations(doc)
	assert.Error(t, err)
}

func TestNewCatalog(t *testing.T) {
	criteria := []models.Criterion{{Type: models.CriterionTotalQuizzes, Condition: models.ConditionGreaterEqual, Value: models.NumberValue(1)}}
	defs := []models.BadgeDefinition{
		{BadgeID: "b", Name: "B", Category: models.CategoryQuiz, Rarity: models.RarityRare, Criteria: criteria},
		{BadgeID: "a", Name: "A", Category: models.CategoryQuiz, Rarity: models.RarityCommon, Criteria: criteria},
		{BadgeID: "c", Name: "C", Category: models.CategoryForum, Rarity: models.RarityEpic, Criteria: criteria, Deprecated: true},
	}

	catalog, err := NewCatalog(3, defs)
	require.NoError(t, err)

	ids := func(list []models.BadgeDefinition) []string {
		out := make([]string, 0, len(list))
		for _, d := range list {
			out = append(out, d.BadgeID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "a", "b"}, ids(catalog.All()))
	assert.Equal(t, []string{"a", "b"}, ids(catalog.Active()))
	assert.Equal(t, 2, catalog.ActiveCount())
	assert.Equal(t, []string{"b"}, ids(catalog.Candidates(map[string]bool{"a": true})))

	deprecated, ok := catalog.Lookup("c")
	assert.True(t, ok)
	assert.True(t, deprecated.Deprecated)

	_, ok = catalog.Lookup("missing")
	assert.False(t, ok)

	_, err = NewCatalog(1, append(defs, defs[0]))
	assert.Error(t, err)
}

func TestRegistry_MigrateLoadDeprecate(t *testing.T) {
	ctx := context.Background()
	migrations, err := DefaultMigrations()
	require.NoError(t, err)

	repo := memory.NewBadgeStore()
	registry := NewRegistry(repo, migrations, zap.NewNop())
	assert.Zero(t, registry.Snapshot().ActiveCount())

	applied, err := registry.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = registry.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	before, err := registry.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, before.Version())
	assert.Equal(t, 22, before.ActiveCount())

	require.NoError(t, registry.Deprecate(ctx, "arcade_fan"))

	after := registry.Snapshot()
	assert.Equal(t, 21, after.ActiveCount())
	_, ok := after.Lookup("arcade_fan")
	assert.True(t, ok, "deprecated badges stay resolvable")

	// the earlier snapshot is untouched
	assert.Equal(t, 22, before.ActiveCount())

	err = registry.Deprecate(ctx, "nope")
	assert.True(t, errors.Is(err, ErrUnknownBadge))
}
