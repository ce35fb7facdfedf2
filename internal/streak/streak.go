// Package streak counts consecutive active days in the activity ledger.
package streak

import (
	"context"
	"iter"

	"achievehub/internal/models"
)

// Source is the slice of the ledger the calculator reads
type Source interface {
	Range(ctx context.Context, userID int64, from, to models.Day) iter.Seq2[models.ActivityDay, error]
	OldestDay(ctx context.Context, userID int64) (models.Day, bool, error)
}

// Count walks backwards from today over consecutive active days.
// An inactive today does not break the streak: counting starts from
// yesterday instead. The walk never goes past oldest.
func Count(today, oldest models.Day, isActive func(models.Day) bool) int64 {
	day := today
	if !isActive(day) {
		day = day.AddDays(-1)
	}

	var n int64
	for !day.Before(oldest) && isActive(day) {
		n++
		day = day.AddDays(-1)
	}
	return n
}

// Longest raises the stored longest streak to current; it never lowers it
func Longest(previous, current int64) int64 {
	if current > previous {
		return current
	}
	return previous
}

const defaultWindow = 60

// Calculator computes current streaks from the ledger, loading days in
// windows as the walk moves backwards.
type Calculator struct {
	source Source
	window int
}

// NewCalculator creates a calculator over source
func NewCalculator(source Source) *Calculator {
	return &Calculator{source: source, window: defaultWindow}
}

// Current returns the user's streak as of today. A user with no recorded
// activity has a streak of 0.
func (c *Calculator) Current(ctx context.Context, userID int64, today models.Day) (int64, error) {
	oldest, ok, err := c.source.OldestDay(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !ok || today.Before(oldest) {
		return 0, nil
	}

	active := make(map[models.Day]bool)
	loadedFrom := today.AddDays(1)
	var loadErr error

	load := func(to models.Day) {
		from := to.AddDays(-(c.window - 1))
		if from.Before(oldest) {
			from = oldest
		}
		for rec, err := range c.source.Range(ctx, userID, from, to) {
			if err != nil {
				loadErr = err
				return
			}
			if rec.IsActive() {
				active[rec.Day] = true
			}
		}
		loadedFrom = from
	}

	n := Count(today, oldest, func(d models.Day) bool {
		if loadErr != nil || d.Before(oldest) {
			return false
		}
		if d.Before(loadedFrom) {
			load(loadedFrom.AddDays(-1))
			if loadErr != nil {
				return false
			}
		}
		return active[d]
	})
	if loadErr != nil {
		return 0, loadErr
	}
	return n, nil
}
