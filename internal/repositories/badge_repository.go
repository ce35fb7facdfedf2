package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"achievehub/internal/database"
	"achievehub/internal/models"

	"go.uber.org/zap"
)

// badgeRepository implements BadgeRepository on postgres
type badgeRepository struct {
	*BaseRepository
}

// NewBadgeRepository creates a new instance of BadgeRepository
func NewBadgeRepository(db *database.Manager, logger *zap.Logger) BadgeRepository {
	return &badgeRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ListDefinitions returns every stored definition, deprecated ones included
func (r *badgeRepository) ListDefinitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT badge_id, name, description, icon, category, rarity, criteria, deprecated, catalog_version
		FROM badges
		ORDER BY catalog_version, badge_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badge definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]models.BadgeDefinition, 0)
	for rows.Next() {
		var (
			def      models.BadgeDefinition
			criteria []byte
		)
		if err := rows.Scan(
			&def.BadgeID, &def.Name, &def.Description, &def.Icon,
			&def.Category, &def.Rarity, &criteria, &def.Deprecated, &def.CatalogVersion,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge definition: %w", err)
		}
		if err := json.Unmarshal(criteria, &def.Criteria); err != nil {
			return nil, fmt.Errorf("badge %s has malformed criteria: %w", def.BadgeID, err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badge definitions: %w", err)
	}
	return defs, nil
}

// CatalogVersion returns the latest applied catalog version
func (r *badgeRepository) CatalogVersion(ctx context.Context) (int, error) {
	var version int
	err := r.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM badge_catalog_versions`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog version: %w", err)
	}
	return version, nil
}

// ApplyCatalogVersion inserts the version's definitions without touching existing rows
func (r *badgeRepository) ApplyCatalogVersion(ctx context.Context, version int, defs []models.BadgeDefinition) (int, error) {
	inserted := 0

	err := r.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO badge_catalog_versions (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`,
			version,
		)
		if err != nil {
			return fmt.Errorf("failed to record catalog version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// another instance applied this version first
			return nil
		}

		for _, def := range defs {
			criteria, err := json.Marshal(def.Criteria)
			if err != nil {
				return fmt.Errorf("failed to encode criteria of %s: %w", def.BadgeID, err)
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO badges (
					badge_id, name, description, icon, category, rarity, criteria, deprecated, catalog_version
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (badge_id) DO NOTHING`,
				def.BadgeID, def.Name, def.Description, def.Icon,
				string(def.Category), string(def.Rarity), criteria, def.Deprecated, version,
			)
			if err != nil {
				return fmt.Errorf("failed to insert badge %s: %w", def.BadgeID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.GetLogger().Info("Badge catalog version applied",
		zap.Int("version", version),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// SetDeprecated toggles the deprecated flag of a definition
func (r *badgeRepository) SetDeprecated(ctx context.Context, badgeID string, deprecated bool) (bool, error) {
	res, err := r.ExecContext(ctx,
		`UPDATE badges SET deprecated = $2 WHERE badge_id = $1`,
		badgeID, deprecated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update badge %s: %w", badgeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}
