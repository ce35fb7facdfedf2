package badges

import (
	_ "embed"
	"fmt"
	"sort"

	"achievehub/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalog []byte

// Migration is one released version of the catalog
type Migration struct {
	Version int
	Badges  []models.BadgeDefinition
}

type seedFile struct {
	Versions []seedVersion `yaml:"versions"`
}

type seedVersion struct {
	Version int         `yaml:"version"`
	Badges  []seedBadge `yaml:"badges"`
}

type seedBadge struct {
	BadgeID     string          `yaml:"badgeId"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Icon        string          `yaml:"icon"`
	Category    string          `yaml:"category"`
	Rarity      string          `yaml:"rarity"`
	Criteria    []seedCriterion `yaml:"criteria"`
}

type seedCriterion struct {
	Type      string      `yaml:"type"`
	Condition string      `yaml:"condition"`
	Value     interface{} `yaml:"value"`
	Topic     string      `yaml:"topic"`
	QuizType  string      `yaml:"quizType"`
}

// DefaultMigrations returns the built-in catalog versions in ascending order
func DefaultMigrations() ([]Migration, error) {
	return ParseMigrations(defaultCatalog)
}

// ParseMigrations decodes a YAML catalog document. Every definition is
// validated and version numbers must be positive and unique.
func ParseMigrations(data []byte) ([]Migration, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse badge catalog: %w", err)
	}

	seen := make(map[int]bool, len(file.Versions))
	out := make([]Migration, 0, len(file.Versions))
	for _, v := range file.Versions {
		if v.Version <= 0 {
			return nil, fmt.Errorf("catalog version must be positive, got %d", v.Version)
		}
		if seen[v.Version] {
			return nil, fmt.Errorf("catalog version %d declared twice", v.Version)
		}
		seen[v.Version] = true

		m := Migration{Version: v.Version, Badges: make([]models.BadgeDefinition, 0, len(v.Badges))}
		for _, b := range v.Badges {
			def, err := b.definition(v.Version)
			if err != nil {
				return nil, fmt.Errorf("catalog version %d: %w", v.Version, err)
			}
			m.Badges = append(m.Badges, def)
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (b seedBadge) definition(version int) (models.BadgeDefinition, error) {
	def := models.BadgeDefinition{
		BadgeID:        b.BadgeID,
		Name:           b.Name,
		Description:    b.Description,
		Icon:           b.Icon,
		Category:       models.BadgeCategory(b.Category),
		Rarity:         models.Rarity(b.Rarity),
		CatalogVersion: version,
		Criteria:       make([]models.Criterion, 0, len(b.Criteria)),
	}

	for _, c := range b.Criteria {
		value, err := models.ValueFrom(c.Value)
		if err != nil {
			return models.BadgeDefinition{}, fmt.Errorf("badge %s: %w", b.BadgeID, err)
		}
		def.Criteria = append(def.Criteria, models.Criterion{
			Type:      models.CriterionType(c.Type),
			Condition: models.Condition(c.Condition),
			Value:     value,
			Topic:     c.Topic,
			QuizType:  c.QuizType,
		})
	}

	if err := def.Validate(); err != nil {
		return models.BadgeDefinition{}, err
	}
	return def, nil
}
