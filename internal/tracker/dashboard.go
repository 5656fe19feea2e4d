package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/level"
	"github.com/example/studytracker/internal/statistics"
	"github.com/example/studytracker/internal/streak"
	"github.com/example/studytracker/pkg/models"
)

// Dashboard is everything the main view shows for the selected deck.
type Dashboard struct {
	DeckID   int64
	DeckName string
	Date     models.Date
	Today    statistics.DayStats
	Streak   streak.Summary
	Level    level.Outlook
	// Heatmap covers the current calendar year.
	Heatmap []streak.HeatmapDay
}

// Dashboard assembles the main view of the selected deck.
func (t *Tracker) Dashboard(ctx context.Context) (*Dashboard, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deck, err := t.selectedDeck(ctx)
	if err != nil {
		return nil, err
	}
	today := clock.Today(t.clock)
	d := &Dashboard{DeckID: deck, DeckName: t.deckName(ctx, deck), Date: today}

	if d.Today, err = t.stats.DayStats(ctx, deck, today); err != nil {
		return nil, err
	}
	if d.Streak, err = t.streaks.Stats(ctx, deck, models.Date{}); err != nil {
		return nil, err
	}
	// a deck without level state shows an empty outlook
	if d.Level, err = t.levels.Outlook(ctx, deck); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	from, to := models.NewDate(today.Year(), time.January, 1), models.NewDate(today.Year(), time.December, 31)
	if d.Heatmap, err = t.streaks.Heatmap(ctx, deck, from, to); err != nil {
		return nil, err
	}
	return d, nil
}
