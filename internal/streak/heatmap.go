package streak

import (
	"context"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/pkg/models"
)

// Intensity classifies a calendar day.
type Intensity int

const (
	IntensityNone     Intensity = iota // future day
	IntensityComplete                  // nothing due, or everything due studied
	IntensityPartial                   // some but not all due cards studied
	IntensityMissed                    // cards due, none studied
)

var intensityColors = map[Intensity]string{
	IntensityNone:     "#e0e0e0",
	IntensityComplete: "#8dcf82",
	IntensityPartial:  "#FFA500",
	IntensityMissed:   "#f28b82",
}

// Color returns the calendar colour of the intensity.
func (i Intensity) Color() string {
	if c, ok := intensityColors[i]; ok {
		return c
	}
	return intensityColors[IntensityNone]
}

// IntensityOf classifies a rollup. A past day without a rollup had nothing due.
func IntensityOf(r models.DailyRollup) Intensity {
	switch {
	case r.Successful():
		return IntensityComplete
	case r.CardsStudied > 0:
		return IntensityPartial
	default:
		return IntensityMissed
	}
}

// HeatmapDay is one cell of the calendar.
type HeatmapDay struct {
	Date      models.Date
	Intensity Intensity
	Color     string
	Rollup    models.DailyRollup
}

// Heatmap returns one cell per day in [from, to].
func (c *Calculator) Heatmap(ctx context.Context, deckID int64, from, to models.Date) ([]HeatmapDay, error) {
	rows, err := c.store.Rollups.Range(ctx, deckID, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]models.DailyRollup, len(rows))
	for _, r := range rows {
		byDate[r.Date.String()] = r
	}

	today := clock.Today(c.clock)
	cells := make([]HeatmapDay, 0, to.DaysSince(from)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		r, ok := byDate[d.String()]
		if !ok {
			r = models.DailyRollup{Date: d, DeckID: deckID}
		}
		in := IntensityNone
		if !d.After(today) {
			in = IntensityOf(r)
		}
		cells = append(cells, HeatmapDay{Date: d, Intensity: in, Color: in.Color(), Rollup: r})
	}
	return cells, nil
}
