package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// HistoryRepository handles the append-only level history.
type HistoryRepository struct {
	s *Store
}

// Append inserts e unless an event of the same kind was already recorded for
// the same deck on the same day. Manual events are always inserted. It reports
// whether a row was written and sets e.ID when it was.
func (r *HistoryRepository) Append(ctx context.Context, e *models.LevelHistoryEvent) (bool, error) {
	if !e.Kind.Valid() {
		return false, models.NewValidationError("change_type", fmt.Sprintf("unknown change kind %q", e.Kind))
	}

	var query string
	args := []any{e.DeckID, string(e.Kind), e.OldLevel, e.NewLevel, e.OccurredAt}
	if e.Kind == models.KindManual {
		query = `
			INSERT INTO level_history (deck_id, change_type, old_level, new_level, change_date)
			VALUES (?, ?, ?, ?, ?)
		`
	} else {
		query = `
			INSERT INTO level_history (deck_id, change_type, old_level, new_level, change_date)
			SELECT ?, ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM level_history
				WHERE deck_id = ? AND change_type = ? AND date(change_date) = ?
			)
		`
		args = append(args, e.DeckID, string(e.Kind), e.OccurredAt.Day())
	}

	res, err := r.s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, r.s.wrap(ctx, "append history event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.s.wrap(ctx, "append history event", err)
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return true, nil
}

// HasTransitionSince reports whether any event of the given kinds was recorded
// for the deck on or after since.
func (r *HistoryRepository) HasTransitionSince(ctx context.Context, deckID int64, kinds []models.ChangeKind, since models.Date) (bool, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	query, args, err := sq.Select("COUNT(*)").
		From("level_history").
		Where(sq.Eq{"deck_id": deckID, "change_type": names}).
		Where(sq.Expr("date(change_date) >= ?", since)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build transition query: %w", err)
	}

	var n int
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &n, query, args...); err != nil {
		return false, r.s.wrap(ctx, "check recent transitions", err)
	}
	return n > 0, nil
}

// HistoryFilter narrows List. Zero dates leave the range open.
type HistoryFilter struct {
	DeckID int64
	From   models.Date
	To     models.Date
	Kinds  []models.ChangeKind
	Limit  uint64
}

// List returns the deck's events, oldest first.
func (r *HistoryRepository) List(ctx context.Context, f HistoryFilter) ([]models.LevelHistoryEvent, error) {
	b := sq.Select("id", "deck_id", "change_type", "old_level", "new_level", "change_date").
		From("level_history").
		Where(sq.Eq{"deck_id": f.DeckID}).
		OrderBy("change_date", "id")
	if !f.From.IsZero() {
		b = b.Where(sq.Expr("date(change_date) >= ?", f.From))
	}
	if !f.To.IsZero() {
		b = b.Where(sq.Expr("date(change_date) <= ?", f.To))
	}
	if len(f.Kinds) > 0 {
		names := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			names[i] = string(k)
		}
		b = b.Where(sq.Eq{"change_type": names})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var events []models.LevelHistoryEvent
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &events, query, args...); err != nil {
		return nil, r.s.wrap(ctx, "list history", err)
	}
	return events, nil
}

// Deduplicate removes repeated events of the same kind on the same day for a
// deck, keeping the earliest. Manual events are left alone. It returns the
// number of rows removed.
func (r *HistoryRepository) Deduplicate(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM level_history
		WHERE change_type <> ?
		  AND id NOT IN (
			SELECT MIN(id) FROM level_history
			GROUP BY deck_id, change_type, date(change_date)
		)
	`
	res, err := r.s.q(ctx).ExecContext(ctx, query, string(models.KindManual))
	if err != nil {
		return 0, r.s.wrap(ctx, "deduplicate history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.s.wrap(ctx, "deduplicate history", err)
	}
	return n, nil
}
