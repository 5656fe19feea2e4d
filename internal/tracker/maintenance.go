package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/pkg/models"
)

// MaintenanceResult reports a maintenance run.
type MaintenanceResult struct {
	Skipped         bool
	DuplicatesFound int64
}

// Maintain runs the daily cleanup once per day: duplicate history events are
// removed and the store is checked. The day is only marked done when the
// check passes.
func (t *Tracker) Maintain(ctx context.Context) (*MaintenanceResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maintain(ctx)
}

func (t *Tracker) maintain(ctx context.Context) (*MaintenanceResult, error) {
	today := clock.Today(t.clock)
	last, err := t.store.Settings.Date(ctx, models.SettingLastCleanup)
	switch {
	case err == nil && !last.Before(today):
		return &MaintenanceResult{Skipped: true}, nil
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("read last cleanup: %w", err)
	}

	res := &MaintenanceResult{}
	removed, err := t.store.History.Deduplicate(ctx)
	if err != nil {
		return nil, fmt.Errorf("deduplicate history: %w", err)
	}
	res.DuplicatesFound = removed

	if err := t.store.CheckIntegrity(ctx); err != nil {
		t.log.Error("integrity check failed", "error", err)
		return res, err
	}
	if err := t.store.Settings.SetDate(ctx, models.SettingLastCleanup, today); err != nil {
		return res, err
	}
	t.log.Info("maintenance done", "duplicates_removed", removed)
	return res, nil
}
