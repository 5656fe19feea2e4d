package level

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/studytracker/pkg/models"
)

func TestDecide(t *testing.T) {
	day0 := models.MustParseDate("2024-05-06")
	kinds := func(k ...models.ChangeKind) []models.ChangeKind { return k }

	tests := []struct {
		name    string
		in      Input
		changed bool
		level   int
		start   models.Date
		events  []models.ChangeKind
	}{
		{
			name:    "period complete with goal met",
			in:      Input{Level: 1, PeriodStart: day0, Today: day0.AddDays(7), SuccessfulDays: 7},
			changed: true, level: 2, start: day0.AddDays(7), events: kinds(models.KindLevelUp),
		},
		{
			name:    "period complete with goal missed",
			in:      Input{Level: 4, PeriodStart: day0, Today: day0.AddDays(9), SuccessfulDays: 4},
			changed: true, level: 3, start: day0.AddDays(9), events: kinds(models.KindLevelDown),
		},
		{
			name:    "period complete at floor",
			in:      Input{Level: 1, PeriodStart: day0, Today: day0.AddDays(7), SuccessfulDays: 2},
			changed: true, level: 1, start: day0.AddDays(7), events: kinds(models.KindPeriodOpened),
		},
		{
			name:    "goal unreachable above floor",
			in:      Input{Level: 3, PeriodStart: day0, Today: day0.AddDays(3), SuccessfulDays: 0},
			changed: true, level: 2, start: day0.AddDays(3), events: kinds(models.KindLevelDown, models.KindPeriodResetEarly),
		},
		{
			name:    "goal unreachable at floor",
			in:      Input{Level: 1, PeriodStart: day0, Today: day0.AddDays(4), SuccessfulDays: 1},
			changed: true, level: 1, start: day0.AddDays(4), events: kinds(models.KindPeriodResetEarly),
		},
		{
			name:    "goal still reachable",
			in:      Input{Level: 2, PeriodStart: day0, Today: day0.AddDays(3), SuccessfulDays: 1, TodaySuccess: true},
			changed: false, level: 2, start: day0,
		},
		{
			name:    "goal met early",
			in:      Input{Level: 2, PeriodStart: day0, Today: day0.AddDays(4), SuccessfulDays: 5, TodaySuccess: true},
			changed: true, level: 3, start: day0.AddDays(5), events: kinds(models.KindPeriodCompletedEarly),
		},
		{
			name:    "goal met early but today not yet done",
			in:      Input{Level: 2, PeriodStart: day0, Today: day0.AddDays(5), SuccessfulDays: 5, TodaySuccess: false},
			changed: false, level: 2, start: day0,
		},
		{
			name:    "period starts tomorrow",
			in:      Input{Level: 2, PeriodStart: day0.AddDays(1), Today: day0, SuccessfulDays: 0},
			changed: false, level: 2, start: day0.AddDays(1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.in)
			assert.Equal(t, tt.changed, d.Changed)
			assert.Equal(t, tt.in.Level, d.OldLevel)
			assert.Equal(t, tt.level, d.NewLevel)
			assert.Equal(t, tt.start.String(), d.NewPeriodStart.String())
			assert.Equal(t, tt.events, d.Events)
		})
	}
}

func TestDecide_LevelNeverBelowFloor(t *testing.T) {
	day0 := models.MustParseDate("2024-05-06")
	for level := 1; level <= 3; level++ {
		for passed := 0; passed <= 10; passed++ {
			for ok := 0; ok <= min(passed+1, PeriodDays); ok++ {
				d := Decide(Input{Level: level, PeriodStart: day0, Today: day0.AddDays(passed), SuccessfulDays: ok, TodaySuccess: true})
				assert.GreaterOrEqual(t, d.NewLevel, MinLevel)
				assert.LessOrEqual(t, d.NewLevel-level, 1)
				assert.GreaterOrEqual(t, d.NewLevel-level, -1)
				if d.Changed {
					assert.NotEmpty(t, d.Events)
				}
			}
		}
	}
}
