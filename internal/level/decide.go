// Package level runs the level/period state machine. A period is seven days
// long; five success days in a period raise the level, fewer lower it (never
// below 1). The outcome is committed as soon as it is certain.
package level

import "github.com/example/studytracker/pkg/models"

const (
	PeriodDays   = 7
	GoalDays     = 5
	DebounceDays = 3
	MinLevel     = 1
)

// Decision is the outcome of evaluating a period.
type Decision struct {
	Changed        bool
	OldLevel       int
	NewLevel       int
	NewPeriodStart models.Date
	Events         []models.ChangeKind
}

// Input is what Decide needs to know about a deck on a day.
type Input struct {
	Level          int
	PeriodStart    models.Date
	Today          models.Date
	SuccessfulDays int
	TodaySuccess   bool
}

// Decide applies the period rules. It has no side effects.
func Decide(in Input) Decision {
	d := Decision{OldLevel: in.Level, NewLevel: in.Level, NewPeriodStart: in.PeriodStart}
	daysPassed := in.Today.DaysSince(in.PeriodStart)
	if daysPassed < 0 {
		// the period opens in the future
		return d
	}

	if daysPassed >= PeriodDays {
		d.Changed = true
		d.NewPeriodStart = in.Today
		if in.SuccessfulDays >= GoalDays {
			d.NewLevel = in.Level + 1
			d.Events = []models.ChangeKind{models.KindLevelUp}
			return d
		}
		d.NewLevel = max(MinLevel, in.Level-1)
		if d.NewLevel != in.Level {
			d.Events = []models.ChangeKind{models.KindLevelDown}
		} else {
			d.Events = []models.ChangeKind{models.KindPeriodOpened}
		}
		return d
	}

	remaining := PeriodDays - daysPassed
	needed := GoalDays - in.SuccessfulDays
	switch {
	case needed > remaining:
		d.Changed = true
		d.NewPeriodStart = in.Today
		if in.Level > MinLevel {
			d.NewLevel = in.Level - 1
			d.Events = append(d.Events, models.KindLevelDown)
		}
		d.Events = append(d.Events, models.KindPeriodResetEarly)
	case in.SuccessfulDays >= GoalDays && in.TodaySuccess:
		d.Changed = true
		d.NewLevel = in.Level + 1
		d.NewPeriodStart = in.Today.AddDays(1)
		d.Events = []models.ChangeKind{models.KindPeriodCompletedEarly}
	}
	return d
}
