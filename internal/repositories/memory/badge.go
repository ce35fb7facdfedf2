package memory

import (
	"context"
	"sort"
	"sync"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
)

// BadgeStore is an in-memory BadgeRepository
type BadgeStore struct {
	mu       sync.RWMutex
	defs     map[string]models.BadgeDefinition
	versions map[int]bool
}

var _ repositories.BadgeRepository = (*BadgeStore)(nil)

// NewBadgeStore creates an empty catalog store
func NewBadgeStore() *BadgeStore {
	return &BadgeStore{
		defs:     make(map[string]models.BadgeDefinition),
		versions: make(map[int]bool),
	}
}

func (s *BadgeStore) ListDefinitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]models.BadgeDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CatalogVersion != out[j].CatalogVersion {
			return out[i].CatalogVersion < out[j].CatalogVersion
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

func (s *BadgeStore) CatalogVersion(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := 0
	for v := range s.versions {
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

func (s *BadgeStore) ApplyCatalogVersion(ctx context.Context, version int, defs []models.BadgeDefinition) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions[version] {
		return 0, nil
	}
	s.versions[version] = true

	inserted := 0
	for _, def := range defs {
		if _, exists := s.defs[def.BadgeID]; exists {
			continue
		}
		def.CatalogVersion = version
		def.Criteria = append([]models.Criterion(nil), def.Criteria...)
		s.defs[def.BadgeID] = def
		inserted++
	}
	return inserted, nil
}

func (s *BadgeStore) SetDeprecated(ctx context.Context, badgeID string, deprecated bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[badgeID]
	if !ok {
		return false, nil
	}
	def.Deprecated = deprecated
	s.defs[badgeID] = def
	return true, nil
}
