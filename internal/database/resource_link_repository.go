package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// ResourceLinkRepository keeps the latest external link of each card.
type ResourceLinkRepository struct {
	s *Store
}

// Upsert stores l as the card's link. The latest write wins; a null title
// keeps the cached one.
func (r *ResourceLinkRepository) Upsert(ctx context.Context, l models.ResourceLink) error {
	query := `
		INSERT INTO resource_links (card_id, deck_id, url, title, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (card_id) DO UPDATE SET
			deck_id = excluded.deck_id,
			url = excluded.url,
			title = COALESCE(excluded.title, title),
			updated_at = excluded.updated_at
	`
	_, err := r.s.q(ctx).ExecContext(ctx, query, l.CardID, l.DeckID, l.URL, l.Title, l.UpdatedAt)
	return r.s.wrap(ctx, "upsert resource link", err)
}

// Get returns the card's link or ErrNotFound.
func (r *ResourceLinkRepository) Get(ctx context.Context, cardID string) (*models.ResourceLink, error) {
	query := `
		SELECT card_id, deck_id, url, title, updated_at
		FROM resource_links
		WHERE card_id = ?
	`
	var l models.ResourceLink
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &l, query, cardID); err != nil {
		return nil, r.s.wrap(ctx, "get resource link", err)
	}
	return &l, nil
}

// LatestTitle returns the link's cached title when it is informative, or
// ErrNotFound.
func (r *ResourceLinkRepository) LatestTitle(ctx context.Context, cardID string) (string, error) {
	query := `
		SELECT title FROM resource_links
		WHERE card_id = ?
		  AND title IS NOT NULL
		  AND trim(title) <> ''
		  AND title NOT LIKE ? || '%'
	`
	var title string
	if err := sqlx.GetContext(ctx, r.s.q(ctx), &title, query, cardID, models.ArchivedTitlePrefix); err != nil {
		return "", r.s.wrap(ctx, "latest link title", err)
	}
	return title, nil
}
