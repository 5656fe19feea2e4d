package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// logicalChecks are consistency queries that must return zero.
var logicalChecks = []struct {
	name  string
	query string
}{
	{"negative rollup counts", `SELECT COUNT(*) FROM daily_stats WHERE cards_due < 0 OR cards_studied < 0 OR study_time < 0`},
	{"malformed rollup dates", `SELECT COUNT(*) FROM daily_stats WHERE date(date) IS NULL OR date(date) <> date`},
	{"levels below one", `SELECT COUNT(*) FROM level_progress WHERE current_level < 1`},
	{"unknown history kinds", `SELECT COUNT(*) FROM level_history WHERE change_type NOT IN
		('level_up','level_down','period_opened','period_reset_early','period_completed_early','initialized','manual')`},
	{"malformed codes", `SELECT COUNT(*) FROM validation_codes WHERE code NOT GLOB '[0-9][0-9][0-9][0-9]' AND card_id NOT LIKE 'legacy-%'`},
	{"out of range code components", `SELECT COUNT(*) FROM validation_codes WHERE correctness NOT BETWEEN 0 AND 100 OR difficulty NOT BETWEEN 0 AND 10`},
	{"non-positive streak records", `SELECT COUNT(*) FROM streak_records WHERE record <= 0`},
}

// CheckIntegrity runs SQLite's integrity check and the logical checks. A
// failure is reported as ErrIntegrity listing every failed check.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var results []string
	if err := sqlx.SelectContext(ctx, s.q(ctx), &results, "PRAGMA integrity_check"); err != nil {
		return s.wrap(ctx, "integrity check", err)
	}

	var problems []error
	if len(results) != 1 || results[0] != "ok" {
		problems = append(problems, fmt.Errorf("sqlite: %s", strings.Join(results, "; ")))
	}
	for _, c := range logicalChecks {
		var n int
		if err := sqlx.GetContext(ctx, s.q(ctx), &n, c.query); err != nil {
			return s.wrap(ctx, "integrity check "+c.name, err)
		}
		if n > 0 {
			problems = append(problems, fmt.Errorf("%s: %d rows", c.name, n))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", models.ErrIntegrity, errors.Join(problems...))
	}
	return nil
}

// Status summarises the store for diagnostics.
type Status struct {
	Path          string
	SchemaVersion int64
	Counts        map[string]int
	Levels        []models.LevelProgress
	LatestRollups []models.DailyRollup
}

// Status reports row counts, levels and the latest rollups.
func (s *Store) Status(ctx context.Context) (*Status, error) {
	st := &Status{Path: s.cfg.Path, Counts: make(map[string]int, len(backupTables))}

	provider, err := newMigrationProvider(s.db.DB)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if st.SchemaVersion, err = provider.GetDBVersion(ctx); err != nil {
		return nil, s.wrap(ctx, "schema version", err)
	}

	for _, t := range backupTables {
		var n int
		if err := sqlx.GetContext(ctx, s.q(ctx), &n, "SELECT COUNT(*) FROM "+t.name); err != nil {
			return nil, s.wrap(ctx, "count "+t.name, err)
		}
		st.Counts[t.name] = n
	}
	if st.Levels, err = s.Levels.List(ctx); err != nil {
		return nil, err
	}
	if st.LatestRollups, err = s.Rollups.Latest(ctx, 10); err != nil {
		return nil, err
	}
	return st, nil
}
