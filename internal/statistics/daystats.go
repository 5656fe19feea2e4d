package statistics

import (
	"context"
	"errors"

	"github.com/example/studytracker/pkg/models"
)

// DayStats is the summary of one day shown in the calendar tooltip.
type DayStats struct {
	Date        models.Date
	Due         int
	Studied     int
	Minutes     int
	SuccessRate float64
	Recorded    bool
}

// DayStats returns the stored rollup of a day. A day without a rollup has
// nothing due and a success rate of 100.
func (a *Aggregator) DayStats(ctx context.Context, deckID int64, d models.Date) (DayStats, error) {
	stats := DayStats{Date: d, SuccessRate: 100}
	r, err := a.store.Rollups.Get(ctx, d, deckID)
	if errors.Is(err, models.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}

	stats.Recorded = true
	stats.Due = r.CardsDue
	stats.Studied = r.CardsStudied
	stats.Minutes = r.StudyMinutes
	if r.CardsDue > 0 {
		stats.SuccessRate = min(float64(r.CardsStudied)/float64(r.CardsDue)*100, 100)
	}
	return stats, nil
}
