package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// StreakRepository handles the ratcheted best streak per deck.
type StreakRepository struct {
	s *Store
}

// Best returns the highest recorded streak of a deck or ErrNotFound.
func (r *StreakRepository) Best(ctx context.Context, deckID int64) (*models.StreakRecord, error) {
	query := `
		SELECT id, deck_id, record, date
		FROM streak_records
		WHERE deck_id = ?
		ORDER BY record DESC, id DESC
		LIMIT 1
	`
	var rec models.StreakRecord
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &rec, query, deckID); err != nil {
		return nil, r.s.wrap(ctx, fmt.Sprintf("best streak deck %d", deckID), err)
	}
	return &rec, nil
}

// Record stores value as the deck's new best if it is strictly greater than
// every stored record. It reports whether a row was written.
func (r *StreakRepository) Record(ctx context.Context, deckID int64, value int, on models.Date) (bool, error) {
	if value <= 0 {
		return false, nil
	}
	query := `
		INSERT INTO streak_records (deck_id, record, date)
		SELECT ?, ?, ?
		WHERE ? > (SELECT COALESCE(MAX(record), 0) FROM streak_records WHERE deck_id = ?)
	`
	res, err := r.s.q(ctx).ExecContext(ctx, query, deckID, value, on, value, deckID)
	if err != nil {
		return false, r.s.wrap(ctx, "record streak", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.s.wrap(ctx, "record streak", err)
	}
	return n > 0, nil
}
