package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// ValidationCodeRepository handles dated code annotations of cards.
type ValidationCodeRepository struct {
	s *Store
}

// Upsert inserts e, or when (card, date, code) already exists updates only the
// auxiliary fields. A null title or link never overwrites a stored one.
func (r *ValidationCodeRepository) Upsert(ctx context.Context, e *models.ValidationCodeEntry) error {
	query := `
		INSERT INTO validation_codes
			(card_id, deck_id, date, code, correctness, difficulty, page_number, chat_link, card_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (card_id, date, code) DO UPDATE SET
			deck_id = excluded.deck_id,
			page_number = excluded.page_number,
			chat_link = COALESCE(excluded.chat_link, chat_link),
			card_title = COALESCE(excluded.card_title, card_title)
		RETURNING id
	`
	row := r.s.q(ctx).QueryRowxContext(ctx, query,
		e.CardID, e.DeckID, e.Date, e.Code, e.Correctness, e.Difficulty,
		e.PageNumber, e.Link, e.Title, e.CreatedAt)
	if err := row.Scan(&e.ID); err != nil {
		return r.s.wrap(ctx, fmt.Sprintf("upsert validation code %s/%s/%s", e.CardID, e.Date, e.Code), err)
	}
	return nil
}

// DeleteForCard removes every code of a card and returns how many were removed.
func (r *ValidationCodeRepository) DeleteForCard(ctx context.Context, cardID string) (int64, error) {
	res, err := r.s.q(ctx).ExecContext(ctx, `DELETE FROM validation_codes WHERE card_id = ?`, cardID)
	if err != nil {
		return 0, r.s.wrap(ctx, "delete validation codes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.s.wrap(ctx, "delete validation codes", err)
	}
	return n, nil
}

var codeColumns = []string{
	"v.id", "v.card_id", "v.deck_id", "v.date", "v.code", "v.correctness", "v.difficulty",
	"v.page_number", "COALESCE(v.chat_link, l.url) AS chat_link", "v.card_title", "v.created_at",
}

func codeQuery() sq.SelectBuilder {
	return sq.Select(codeColumns...).
		From("validation_codes v").
		LeftJoin("resource_links l ON l.card_id = v.card_id").
		OrderBy("v.date", "v.id")
}

// ListForCard returns a card's codes. A missing link falls back to the card's
// resource link.
func (r *ValidationCodeRepository) ListForCard(ctx context.Context, cardID string) ([]models.ValidationCodeEntry, error) {
	query, args, err := codeQuery().Where(sq.Eq{"v.card_id": cardID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build code query: %w", err)
	}
	var entries []models.ValidationCodeEntry
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &entries, query, args...); err != nil {
		return nil, r.s.wrap(ctx, "list validation codes", err)
	}
	return entries, nil
}

// ListRange returns the codes dated within [from, to]. Deck 0 returns every deck.
func (r *ValidationCodeRepository) ListRange(ctx context.Context, deckID int64, from, to models.Date) ([]models.ValidationCodeEntry, error) {
	b := codeQuery().
		Where(sq.GtOrEq{"v.date": from}).
		Where(sq.LtOrEq{"v.date": to})
	if deckID != models.AllDecks {
		b = b.Where(sq.Eq{"v.deck_id": deckID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build code query: %w", err)
	}
	var entries []models.ValidationCodeEntry
	if err := sqlx.SelectContext(ctx, r.s.q(ctx), &entries, query, args...); err != nil {
		return nil, r.s.wrap(ctx, "list validation codes", err)
	}
	return entries, nil
}

// LatestTitle returns the most recent informative cached title of a card, or
// ErrNotFound.
func (r *ValidationCodeRepository) LatestTitle(ctx context.Context, cardID string) (string, error) {
	query := `
		SELECT card_title FROM validation_codes
		WHERE card_id = ?
		  AND card_title IS NOT NULL
		  AND trim(card_title) <> ''
		  AND card_title NOT LIKE ? || '%'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var title string
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &title, query, cardID, models.ArchivedTitlePrefix); err != nil {
		return "", r.s.wrap(ctx, "latest code title", err)
	}
	return title, nil
}

// FillTitle stores title on the card's codes whose cached title is missing or
// a placeholder.
func (r *ValidationCodeRepository) FillTitle(ctx context.Context, cardID, title string) error {
	query := `
		UPDATE validation_codes SET card_title = ?
		WHERE card_id = ?
		  AND (card_title IS NULL OR trim(card_title) = '' OR card_title LIKE ? || '%')
	`
	_, err := r.s.q(ctx).ExecContext(ctx, query, title, cardID, models.ArchivedTitlePrefix)
	return r.s.wrap(ctx, "fill code title", err)
}

// Count returns the number of stored codes.
func (r *ValidationCodeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &n, `SELECT COUNT(*) FROM validation_codes`); err != nil {
		return 0, r.s.wrap(ctx, "count validation codes", err)
	}
	return n, nil
}
