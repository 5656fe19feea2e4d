package level

import (
	"context"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/pkg/models"
)

// Outlook describes the progress of the running period without changing it.
type Outlook struct {
	DeckID         int64
	Level          int
	PeriodStart    models.Date
	DaysPassed     int
	RemainingDays  int
	SuccessfulDays int
	NeededDays     int
	Reachable      bool
	// WeeklyProgress is SuccessfulDays as a percentage of GoalDays, capped at 100.
	WeeklyProgress float64
}

// Outlook returns the deck's period progress. It returns ErrNotFound when the
// deck has no level state.
func (m *Machine) Outlook(ctx context.Context, deckID int64) (Outlook, error) {
	p, err := m.store.Levels.Get(ctx, deckID)
	if err != nil {
		return Outlook{}, err
	}
	today := clock.Today(m.clock)
	successful, _, err := m.countSuccessful(ctx, deckID, p.PeriodStart, today)
	if err != nil {
		return Outlook{}, err
	}

	passed := max(today.DaysSince(p.PeriodStart), 0)
	o := Outlook{
		DeckID:         deckID,
		Level:          p.Level,
		PeriodStart:    p.PeriodStart,
		DaysPassed:     passed,
		RemainingDays:  max(PeriodDays-passed, 0),
		SuccessfulDays: successful,
		NeededDays:     max(GoalDays-successful, 0),
		WeeklyProgress: min(float64(successful)/GoalDays*100, 100),
	}
	o.Reachable = o.NeededDays <= o.RemainingDays
	return o, nil
}
