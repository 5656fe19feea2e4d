// Package streak derives consecutive success-day runs from daily rollups.
//
// A day counts as a success when its rollup shows nothing due or everything
// due studied. A day without a rollup breaks a streak. Today is still in
// progress: when it is not (yet) a success it neither counts nor breaks the
// current streak.
package streak

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/pkg/models"
)

// Calculator computes streaks and maintains the best-streak record.
type Calculator struct {
	store *database.Store
	clock clock.Clock
	log   *logger.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(store *database.Store, clk clock.Clock, log *logger.Logger) *Calculator {
	return &Calculator{store: store, clock: clk, log: log.With("component", "streak")}
}

// days maps each recorded day (YYYY-MM-DD) in a range to its success state.
type days map[string]bool

func (c *Calculator) load(ctx context.Context, deckID int64, since, until models.Date) (days, error) {
	rows, err := c.store.Rollups.Range(ctx, deckID, since, until)
	if err != nil {
		return nil, err
	}
	out := make(days, len(rows))
	for _, r := range rows {
		out[r.Date.String()] = r.Successful()
	}
	return out, nil
}

// Since resolves the counting boundary: since itself when set, else the
// installation date, else the deck's first rollup, else today.
func (c *Calculator) Since(ctx context.Context, deckID int64, since models.Date) (models.Date, error) {
	if !since.IsZero() {
		return since, nil
	}
	today := clock.Today(c.clock)

	installed, err := c.store.Settings.Date(ctx, models.SettingInstallationDate)
	if err == nil {
		return minDate(installed, today), nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Date{}, err
	}

	first, err := c.store.Rollups.Earliest(ctx, deckID)
	if errors.Is(err, models.ErrNotFound) {
		return today, nil
	}
	if err != nil {
		return models.Date{}, err
	}
	return minDate(first, today), nil
}

func minDate(a, b models.Date) models.Date {
	if a.Before(b) {
		return a
	}
	return b
}

// Current returns the number of consecutive success days ending today (or
// yesterday, while today is not yet a success), not earlier than since.
func (c *Calculator) Current(ctx context.Context, deckID int64, since models.Date) (int, error) {
	since, err := c.Since(ctx, deckID, since)
	if err != nil {
		return 0, err
	}
	today := clock.Today(c.clock)
	state, err := c.load(ctx, deckID, since, today)
	if err != nil {
		return 0, err
	}
	return currentRun(state, since, today), nil
}

func currentRun(state days, since, today models.Date) int {
	n := 0
	for d := today; !d.Before(since); d = d.AddDays(-1) {
		if !state[d.String()] {
			if d.Equal(today) {
				continue
			}
			break
		}
		n++
	}
	return n
}

func longestRun(state days, since, today models.Date) int {
	best, run := 0, 0
	for d := since; !d.After(today); d = d.AddDays(1) {
		if state[d.String()] {
			run++
			best = max(best, run)
		} else {
			run = 0
		}
	}
	return best
}

// Longest returns the longest streak since the boundary. A positive stored
// record is returned as is; otherwise the history is walked and a positive
// result stored as the new record.
func (c *Calculator) Longest(ctx context.Context, deckID int64, since models.Date) (int, error) {
	best, err := c.store.Streaks.Best(ctx, deckID)
	if err == nil && best.Value > 0 {
		return best.Value, nil
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return 0, err
	}
	return c.Recompute(ctx, deckID, since)
}

// Recompute walks the whole history and raises the stored record when the
// walk finds a longer streak. The record never decreases; the larger of the
// stored and computed value is returned. Used after history was corrected by
// a backfill or import.
func (c *Calculator) Recompute(ctx context.Context, deckID int64, since models.Date) (int, error) {
	since, err := c.Since(ctx, deckID, since)
	if err != nil {
		return 0, err
	}
	today := clock.Today(c.clock)
	state, err := c.load(ctx, deckID, since, today)
	if err != nil {
		return 0, err
	}
	longest := longestRun(state, since, today)

	if _, err := c.store.Streaks.Record(ctx, deckID, longest, today); err != nil {
		return 0, fmt.Errorf("store streak record: %w", err)
	}
	best, err := c.store.Streaks.Best(ctx, deckID)
	if errors.Is(err, models.ErrNotFound) {
		return longest, nil
	}
	if err != nil {
		return 0, err
	}
	return max(best.Value, longest), nil
}

// SuccessPercent returns the share of success days among all days from the
// boundary to today, rounded to a whole percent.
func (c *Calculator) SuccessPercent(ctx context.Context, deckID int64, since models.Date) (int, error) {
	since, err := c.Since(ctx, deckID, since)
	if err != nil {
		return 0, err
	}
	today := clock.Today(c.clock)
	state, err := c.load(ctx, deckID, since, today)
	if err != nil {
		return 0, err
	}
	return successPercent(state, since, today), nil
}

func successPercent(state days, since, today models.Date) int {
	total := today.DaysSince(since) + 1
	if total <= 0 {
		return 0
	}
	ok := 0
	for _, success := range state {
		if success {
			ok++
		}
	}
	return (ok*100 + total/2) / total
}

// CheckRecord stores the current streak as the new record when it beats the
// stored one. It reports whether a new record was set and the current streak.
func (c *Calculator) CheckRecord(ctx context.Context, deckID int64) (bool, int, error) {
	current, err := c.Current(ctx, deckID, models.Date{})
	if err != nil {
		return false, 0, err
	}
	set, err := c.store.Streaks.Record(ctx, deckID, current, clock.Today(c.clock))
	if err != nil {
		return false, current, err
	}
	if set {
		c.log.Info("new streak record", "deck_id", deckID, "record", current)
	}
	return set, current, nil
}

// Summary is the statistics block of the dashboard.
type Summary struct {
	Since          models.Date
	SuccessPercent int
	Current        int
	Longest        int
}

// Stats computes the dashboard summary in one pass over the rollups.
func (c *Calculator) Stats(ctx context.Context, deckID int64, since models.Date) (Summary, error) {
	since, err := c.Since(ctx, deckID, since)
	if err != nil {
		return Summary{}, err
	}
	today := clock.Today(c.clock)
	state, err := c.load(ctx, deckID, since, today)
	if err != nil {
		return Summary{}, err
	}
	longest, err := c.Longest(ctx, deckID, since)
	if err != nil {
		return Summary{}, err
	}
	current := currentRun(state, since, today)
	return Summary{
		Since:          since,
		SuccessPercent: successPercent(state, since, today),
		Current:        current,
		Longest:        max(longest, current),
	}, nil
}
