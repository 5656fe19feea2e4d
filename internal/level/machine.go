package level

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/pkg/models"
)

// Machine evaluates and persists level transitions.
type Machine struct {
	store *database.Store
	clock clock.Clock
	log   *logger.Logger
}

// NewMachine creates a Machine.
func NewMachine(store *database.Store, clk clock.Clock, log *logger.Logger) *Machine {
	return &Machine{store: store, clock: clk, log: log.With("component", "level")}
}

// SkipReason explains why an evaluation made no decision.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipDebounced   SkipReason = "recent period transition"
	SkipSameDay     SkipReason = "period transition recorded today"
	SkipUninitiated SkipReason = "no level state"
	SkipFresh       SkipReason = "period recently started"
)

// Evaluation reports what an evaluation did.
type Evaluation struct {
	DeckID   int64
	Skipped  SkipReason
	Decision Decision
	// Recorded lists the history events actually written.
	Recorded []models.ChangeKind
}

// Transitioned reports whether the level state was changed.
func (e Evaluation) Transitioned() bool {
	return e.Skipped == SkipNone && e.Decision.Changed
}

// EvaluatePeriod evaluates the deck's current period and commits any
// transition together with its history events in one transaction. Failures
// are logged and returned; the stored state is left as it was.
func (m *Machine) EvaluatePeriod(ctx context.Context, deckID int64) (Evaluation, error) {
	var ev Evaluation
	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ev, err = m.evaluate(ctx, deckID)
		return err
	})
	if err != nil {
		m.log.Error("period evaluation failed", "deck_id", deckID, "error", err)
		return Evaluation{DeckID: deckID}, err
	}
	if ev.Transitioned() {
		m.log.Info("level transition", "deck_id", deckID,
			"old_level", ev.Decision.OldLevel, "new_level", ev.Decision.NewLevel,
			"period_start", ev.Decision.NewPeriodStart, "events", ev.Recorded)
	}
	return ev, nil
}

func (m *Machine) evaluate(ctx context.Context, deckID int64) (Evaluation, error) {
	ev := Evaluation{DeckID: deckID}
	now := m.clock.Now()
	today := models.DateOf(now)

	p, err := m.store.Levels.Get(ctx, deckID)
	if errors.Is(err, models.ErrNotFound) {
		ev.Skipped = SkipUninitiated
		return ev, nil
	}
	if err != nil {
		return ev, err
	}

	recent, err := m.store.History.HasTransitionSince(ctx, deckID, models.PeriodTransitionKinds, debounceSince(today))
	if err != nil {
		return ev, err
	}
	if recent {
		ev.Skipped = SkipDebounced
		return ev, nil
	}
	sameDay, err := m.store.History.HasTransitionSince(ctx, deckID, models.PeriodTransitionKinds, today)
	if err != nil {
		return ev, err
	}
	if sameDay {
		ev.Skipped = SkipSameDay
		return ev, nil
	}

	successful, todaySuccess, err := m.countSuccessful(ctx, deckID, p.PeriodStart, today)
	if err != nil {
		return ev, err
	}
	ev.Decision = Decide(Input{
		Level:          p.Level,
		PeriodStart:    p.PeriodStart,
		Today:          today,
		SuccessfulDays: successful,
		TodaySuccess:   todaySuccess,
	})
	if !ev.Decision.Changed {
		return ev, nil
	}

	stamp := models.NewTimestamp(now)
	p.Level = ev.Decision.NewLevel
	p.PeriodStart = ev.Decision.NewPeriodStart
	p.LastUpdated = stamp
	if err := m.store.Levels.Save(ctx, p); err != nil {
		return ev, err
	}
	for _, kind := range ev.Decision.Events {
		inserted, err := m.store.History.Append(ctx, &models.LevelHistoryEvent{
			DeckID:     deckID,
			Kind:       kind,
			OldLevel:   ev.Decision.OldLevel,
			NewLevel:   ev.Decision.NewLevel,
			OccurredAt: stamp,
		})
		if err != nil {
			return ev, fmt.Errorf("record %s: %w", kind, err)
		}
		if inserted {
			ev.Recorded = append(ev.Recorded, kind)
		}
	}
	return ev, nil
}

// debounceSince is the first day whose transitions suppress an evaluation on
// today: events from the last DebounceDays-1 days and today.
func debounceSince(today models.Date) models.Date {
	return today.AddDays(-(DebounceDays - 1))
}

// countSuccessful counts success days in [start, min(start+6, today)]. A day
// without a rollup had nothing due and counts as a success.
func (m *Machine) countSuccessful(ctx context.Context, deckID int64, start, today models.Date) (int, bool, error) {
	end := start.AddDays(PeriodDays - 1)
	if today.Before(end) {
		end = today
	}
	if end.Before(start) {
		return 0, true, nil
	}

	rows, err := m.store.Rollups.Range(ctx, deckID, start, end)
	if err != nil {
		return 0, false, err
	}
	failed := make(map[string]bool, len(rows))
	for _, r := range rows {
		if !r.Successful() {
			failed[r.Date.String()] = true
		}
	}

	n := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !failed[d.String()] {
			n++
		}
	}
	todaySuccess := true
	if !today.After(end) {
		todaySuccess = !failed[today.String()]
	} else {
		todaySuccess, err = m.daySuccess(ctx, deckID, today)
		if err != nil {
			return 0, false, err
		}
	}
	return n, todaySuccess, nil
}

func (m *Machine) daySuccess(ctx context.Context, deckID int64, d models.Date) (bool, error) {
	r, err := m.store.Rollups.Get(ctx, d, deckID)
	if errors.Is(err, models.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return r.Successful(), nil
}

// InitializeForUnit creates the deck's level state at level 1 with a period
// starting today. For an existing deck whose period started more than
// DebounceDays ago and that had no recent transition, the period is
// evaluated; otherwise nothing happens.
func (m *Machine) InitializeForUnit(ctx context.Context, deckID int64) (Evaluation, error) {
	var (
		ev       Evaluation
		evaluate bool
	)
	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		ev = Evaluation{DeckID: deckID}
		now := m.clock.Now()
		today := models.DateOf(now)

		p, err := m.store.Levels.Get(ctx, deckID)
		if errors.Is(err, models.ErrNotFound) {
			stamp := models.NewTimestamp(now)
			p = &models.LevelProgress{DeckID: deckID, Level: MinLevel, PeriodStart: today, LastUpdated: stamp}
			if err := m.store.Levels.Save(ctx, p); err != nil {
				return err
			}
			if _, err := m.store.History.Append(ctx, &models.LevelHistoryEvent{
				DeckID: deckID, Kind: models.KindInitialized,
				OldLevel: MinLevel, NewLevel: MinLevel, OccurredAt: stamp,
			}); err != nil {
				return err
			}
			ev.Decision = Decision{Changed: true, OldLevel: MinLevel, NewLevel: MinLevel, NewPeriodStart: today,
				Events: []models.ChangeKind{models.KindInitialized}}
			ev.Recorded = ev.Decision.Events
			return nil
		}
		if err != nil {
			return err
		}

		if today.DaysSince(p.PeriodStart) <= DebounceDays {
			ev.Skipped = SkipFresh
			return nil
		}
		recent, err := m.store.History.HasTransitionSince(ctx, deckID, models.PeriodTransitionKinds, debounceSince(today))
		if err != nil {
			return err
		}
		if recent {
			ev.Skipped = SkipDebounced
			return nil
		}
		evaluate = true
		return nil
	})
	if err != nil {
		m.log.Error("level initialization failed", "deck_id", deckID, "error", err)
		return Evaluation{DeckID: deckID}, err
	}
	if ev.Transitioned() {
		m.log.Info("level state initialized", "deck_id", deckID)
	}
	if evaluate {
		return m.EvaluatePeriod(ctx, deckID)
	}
	return ev, nil
}
