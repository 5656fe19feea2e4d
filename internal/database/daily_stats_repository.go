package database

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// DailyStatsRepository handles database operations for daily rollups and
// per-card activity.
type DailyStatsRepository struct {
	s *Store
}

// rollupColumns selects a single deck's rows.
var rollupColumns = []string{"date", "deck_id", "cards_due", "cards_studied", "study_time"}

// aggregateColumns fold every deck into deck 0. Rows stored under deck 0 by
// older releases cover the whole collection and are merged by maximum.
var aggregateColumns = []string{
	"date",
	"0 AS deck_id",
	"max(COALESCE(SUM(CASE WHEN deck_id <> 0 THEN cards_due END), 0), COALESCE(MAX(CASE WHEN deck_id = 0 THEN cards_due END), 0)) AS cards_due",
	"max(COALESCE(SUM(CASE WHEN deck_id <> 0 THEN cards_studied END), 0), COALESCE(MAX(CASE WHEN deck_id = 0 THEN cards_studied END), 0)) AS cards_studied",
	"max(COALESCE(SUM(CASE WHEN deck_id <> 0 THEN study_time END), 0), COALESCE(MAX(CASE WHEN deck_id = 0 THEN study_time END), 0)) AS study_time",
}

func rollupQuery(deckID int64) sq.SelectBuilder {
	if deckID == models.AllDecks {
		return sq.Select(aggregateColumns...).From("daily_stats").GroupBy("date")
	}
	return sq.Select(rollupColumns...).From("daily_stats").Where(sq.Eq{"deck_id": deckID})
}

// Get returns the rollup of a single day. Deck 0 returns the sum over all decks.
func (r *DailyStatsRepository) Get(ctx context.Context, date models.Date, deckID int64) (*models.DailyRollup, error) {
	rows, err := r.Range(ctx, deckID, date, date)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("get daily rollup %s deck %d: %w", date, deckID, models.ErrNotFound)
	}
	return &rows[0], nil
}

// Range returns the rollups in [from, to] ordered by date. Days without a row
// are absent from the result.
func (r *DailyStatsRepository) Range(ctx context.Context, deckID int64, from, to models.Date) ([]models.DailyRollup, error) {
	query, args, err := rollupQuery(deckID).
		Where(sq.GtOrEq{"date": from}).
		Where(sq.LtOrEq{"date": to}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rollup query: %w", err)
	}

	var rollups []models.DailyRollup
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &rollups, query, args...); err != nil {
		return nil, r.s.wrap(ctx, "list daily rollups", err)
	}
	return rollups, nil
}

// Upsert replaces the row for (date, deck). It does not enforce monotonicity;
// use Merge for that.
func (r *DailyStatsRepository) Upsert(ctx context.Context, rollup models.DailyRollup) error {
	query := `
		INSERT OR REPLACE INTO daily_stats (date, deck_id, cards_due, cards_studied, study_time)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.s.q(ctx).ExecContext(ctx, query,
		rollup.Date, rollup.DeckID, rollup.CardsDue, rollup.CardsStudied, rollup.StudyMinutes)
	return r.s.wrap(ctx, "upsert daily rollup", err)
}

// Merge writes rollup raising each stored value to at least the new one.
func (r *DailyStatsRepository) Merge(ctx context.Context, rollup models.DailyRollup) error {
	query := `
		INSERT INTO daily_stats (date, deck_id, cards_due, cards_studied, study_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (date, deck_id) DO UPDATE SET
			cards_due = max(COALESCE(cards_due, 0), excluded.cards_due),
			cards_studied = max(COALESCE(cards_studied, 0), excluded.cards_studied),
			study_time = max(COALESCE(study_time, 0), excluded.study_time)
	`
	_, err := r.s.q(ctx).ExecContext(ctx, query,
		rollup.Date, rollup.DeckID, rollup.CardsDue, rollup.CardsStudied, rollup.StudyMinutes)
	return r.s.wrap(ctx, "merge daily rollup", err)
}

// Latest returns the most recent rows across all decks.
func (r *DailyStatsRepository) Latest(ctx context.Context, limit int) ([]models.DailyRollup, error) {
	query := `
		SELECT date, deck_id, cards_due, cards_studied, study_time
		FROM daily_stats
		ORDER BY date DESC, deck_id
		LIMIT ?
	`
	var rollups []models.DailyRollup
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &rollups, query, limit); err != nil {
		return nil, r.s.wrap(ctx, "latest daily rollups", err)
	}
	return rollups, nil
}

// Decks returns every deck id that has at least one rollup.
func (r *DailyStatsRepository) Decks(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.s.q(ctx), &ids,
		`SELECT DISTINCT deck_id FROM daily_stats WHERE deck_id <> 0 ORDER BY deck_id`)
	if err != nil {
		return nil, r.s.wrap(ctx, "list rollup decks", err)
	}
	return ids, nil
}

// UpsertItemActivity records a card's activity for a day, keeping the larger
// of the stored and new counts.
func (r *DailyStatsRepository) UpsertItemActivity(ctx context.Context, a models.ItemActivity) error {
	query := `
		INSERT INTO item_activity (card_id, deck_id, date, reviews, study_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (card_id, date) DO UPDATE SET
			deck_id = excluded.deck_id,
			reviews = max(reviews, excluded.reviews),
			study_seconds = max(study_seconds, excluded.study_seconds)
	`
	_, err := r.s.q(ctx).ExecContext(ctx, query, a.CardID, a.DeckID, a.Date, a.Reviews, a.StudySeconds)
	return r.s.wrap(ctx, "upsert item activity", err)
}

// ItemActivityRange returns per-card activity in [from, to]. Deck 0 returns
// every deck.
func (r *DailyStatsRepository) ItemActivityRange(ctx context.Context, deckID int64, from, to models.Date) ([]models.ItemActivity, error) {
	b := sq.Select("card_id", "deck_id", "date", "reviews", "study_seconds").
		From("item_activity").
		Where(sq.GtOrEq{"date": from}).
		Where(sq.LtOrEq{"date": to}).
		OrderBy("date", "card_id")
	if deckID != models.AllDecks {
		b = b.Where(sq.Eq{"deck_id": deckID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item activity query: %w", err)
	}

	var activity []models.ItemActivity
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &activity, query, args...); err != nil {
		return nil, r.s.wrap(ctx, "list item activity", err)
	}
	return activity, nil
}

// Earliest returns the first day with a rollup for the deck, or ErrNotFound.
// Deck 0 looks at every deck.
func (r *DailyStatsRepository) Earliest(ctx context.Context, deckID int64) (models.Date, error) {
	b := sq.Select("MIN(date)").From("daily_stats")
	if deckID != models.AllDecks {
		b = b.Where(sq.Eq{"deck_id": deckID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return models.Date{}, fmt.Errorf("build earliest query: %w", err)
	}
	var d sql.NullString
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &d, query, args...); err != nil {
		return models.Date{}, r.s.wrap(ctx, "earliest rollup", err)
	}
	if !d.Valid {
		return models.Date{}, fmt.Errorf("earliest rollup deck %d: %w", deckID, models.ErrNotFound)
	}
	return models.ParseDate(d.String)
}
