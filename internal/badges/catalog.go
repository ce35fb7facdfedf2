// Package badges owns the badge catalog: an immutable snapshot of badge
// definitions, swapped atomically when the stored catalog changes.
package badges

import (
	"fmt"
	"hash/fnv"
	"strings"

	"achievehub/internal/models"

	"golang.org/x/exp/slices"
)

// Catalog is an immutable set of badge definitions. A check cycle holds
// one Catalog for its whole duration.
type Catalog struct {
	version int
	defs    []models.BadgeDefinition
	byID    map[string]int
	active  int
	tag     string
}

// NewCatalog validates defs and builds a snapshot. Definitions are ordered
// by category, then rarity, then id.
func NewCatalog(version int, defs []models.BadgeDefinition) (*Catalog, error) {
	c := &Catalog{
		version: version,
		defs:    make([]models.BadgeDefinition, 0, len(defs)),
		byID:    make(map[string]int, len(defs)),
	}

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[def.BadgeID]; dup {
			return nil, fmt.Errorf("duplicate badge id %q", def.BadgeID)
		}
		def.Criteria = slices.Clone(def.Criteria)
		c.byID[def.BadgeID] = -1
		c.defs = append(c.defs, def)
	}

	slices.SortFunc(c.defs, func(a, b models.BadgeDefinition) int {
		if n := strings.Compare(string(a.Category), string(b.Category)); n != 0 {
			return n
		}
		if n := a.Rarity.Rank() - b.Rarity.Rank(); n != 0 {
			return n
		}
		return strings.Compare(a.BadgeID, b.BadgeID)
	})

	h := fnv.New64a()
	for i, def := range c.defs {
		c.byID[def.BadgeID] = i
		if !def.Deprecated {
			c.active++
			h.Write([]byte(def.BadgeID))
			h.Write([]byte{0})
		}
	}
	c.tag = fmt.Sprintf("v%d-%x", version, h.Sum64())
	return c, nil
}

// EmptyCatalog is the snapshot served before the first load
func EmptyCatalog() *Catalog {
	c, _ := NewCatalog(0, nil)
	return c
}

// Version is the catalog version the snapshot was built from
func (c *Catalog) Version() int {
	return c.version
}

// Tag identifies the version and active set of the snapshot. It changes
// when a badge is deprecated, which the version alone does not.
func (c *Catalog) Tag() string {
	return c.tag
}

// Lookup resolves a badge id, deprecated definitions included
func (c *Catalog) Lookup(badgeID string) (models.BadgeDefinition, bool) {
	i, ok := c.byID[badgeID]
	if !ok {
		return models.BadgeDefinition{}, false
	}
	return c.defs[i], true
}

// All returns every definition, deprecated ones included
func (c *Catalog) All() []models.BadgeDefinition {
	return slices.Clone(c.defs)
}

// Active returns the definitions that can still be awarded
func (c *Catalog) Active() []models.BadgeDefinition {
	out := make([]models.BadgeDefinition, 0, c.active)
	for _, def := range c.defs {
		if !def.Deprecated {
			out = append(out, def)
		}
	}
	return out
}

// ActiveCount is len(Active()) without the copy
func (c *Catalog) ActiveCount() int {
	return c.active
}

// Candidates returns the active definitions whose id is not in held
func (c *Catalog) Candidates(held map[string]bool) []models.BadgeDefinition {
	out := make([]models.BadgeDefinition, 0, c.active)
	for _, def := range c.defs {
		if def.Deprecated || held[def.BadgeID] {
			continue
		}
		out = append(out, def)
	}
	return out
}
