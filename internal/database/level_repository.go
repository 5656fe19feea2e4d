package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// LevelRepository handles the live level state, one row per deck.
type LevelRepository struct {
	s *Store
}

// Get returns the level state of a deck or ErrNotFound.
func (r *LevelRepository) Get(ctx context.Context, deckID int64) (*models.LevelProgress, error) {
	query := `
		SELECT id, deck_id, current_level, period_start, last_updated
		FROM level_progress
		WHERE deck_id = ?
	`
	var p models.LevelProgress
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &p, query, deckID); err != nil {
		return nil, r.s.wrap(ctx, fmt.Sprintf("get level progress deck %d", deckID), err)
	}
	return &p, nil
}

// Save writes p in place of the deck's current row and sets p.ID.
func (r *LevelRepository) Save(ctx context.Context, p *models.LevelProgress) error {
	if p.Level < 1 {
		return models.NewValidationError("current_level", fmt.Sprintf("level %d below 1", p.Level))
	}
	query := `
		INSERT INTO level_progress (deck_id, current_level, period_start, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (deck_id) DO UPDATE SET
			current_level = excluded.current_level,
			period_start = excluded.period_start,
			last_updated = excluded.last_updated
		RETURNING id
	`
	row := r.s.q(ctx).QueryRowxContext(ctx, query, p.DeckID, p.Level, p.PeriodStart, p.LastUpdated)
	if err := row.Scan(&p.ID); err != nil {
		return r.s.wrap(ctx, fmt.Sprintf("save level progress deck %d", p.DeckID), err)
	}
	return nil
}

// List returns the level state of every deck.
func (r *LevelRepository) List(ctx context.Context) ([]models.LevelProgress, error) {
	query := `
		SELECT id, deck_id, current_level, period_start, last_updated
		FROM level_progress
		ORDER BY deck_id
	`
	var rows []models.LevelProgress
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &rows, query); err != nil {
		return nil, r.s.wrap(ctx, "list level progress", err)
	}
	return rows, nil
}
