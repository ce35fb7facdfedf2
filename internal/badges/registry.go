package badges

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"achievehub/internal/repositories"

	"go.uber.org/zap"
)

// ErrUnknownBadge is returned when deprecating an id that is not stored
var ErrUnknownBadge = errors.New("unknown badge")

// Registry serves the current catalog snapshot and applies catalog migrations
type Registry struct {
	repo       repositories.BadgeRepository
	migrations []Migration
	logger     *zap.Logger
	current    atomic.Pointer[Catalog]
}

// NewRegistry creates a registry. It serves an empty catalog until Load succeeds.
func NewRegistry(repo repositories.BadgeRepository, migrations []Migration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		repo:       repo,
		migrations: migrations,
		logger:     logger,
	}
	r.current.Store(EmptyCatalog())
	return r
}

// Snapshot returns the current catalog
func (r *Registry) Snapshot() *Catalog {
	return r.current.Load()
}

// Migrate applies every migration newer than the stored catalog version.
// Stored definitions are never updated or deleted.
func (r *Registry) Migrate(ctx context.Context) (int, error) {
	stored, err := r.repo.CatalogVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog version: %w", err)
	}

	applied := 0
	for _, m := range r.migrations {
		if m.Version <= stored {
			continue
		}
		inserted, err := r.repo.ApplyCatalogVersion(ctx, m.Version, m.Badges)
		if err != nil {
			return applied, fmt.Errorf("failed to apply catalog version %d: %w", m.Version, err)
		}
		applied++
		r.logger.Info("Applied badge catalog migration",
			zap.Int("version", m.Version),
			zap.Int("badges_inserted", inserted),
		)
	}

	if applied == 0 {
		r.logger.Debug("Badge catalog up to date", zap.Int("version", stored))
	}
	return applied, nil
}

// Load rebuilds the snapshot from storage and swaps it in
func (r *Registry) Load(ctx context.Context) (*Catalog, error) {
	defs, err := r.repo.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge definitions: %w", err)
	}
	version, err := r.repo.CatalogVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog version: %w", err)
	}

	catalog, err := NewCatalog(version, defs)
	if err != nil {
		return nil, fmt.Errorf("stored badge catalog is invalid: %w", err)
	}

	r.current.Store(catalog)
	r.logger.Info("Badge catalog loaded",
		zap.Int("version", version),
		zap.Int("badges", len(defs)),
		zap.Int("active", catalog.ActiveCount()),
	)
	return catalog, nil
}

// Deprecate stops a badge from being awarded. Holders keep it.
func (r *Registry) Deprecate(ctx context.Context, badgeID string) error {
	found, err := r.repo.SetDeprecated(ctx, badgeID, true)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownBadge, badgeID)
	}
	_, err = r.Load(ctx)
	return err
}
