package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// cardTables are the tables whose rows follow a card between decks.
var cardTables = []string{"validation_codes", "resource_links", "item_activity"}

// CardDecks returns the distinct deck ids stored for a card across every
// card-keyed table.
func (s *Store) CardDecks(ctx context.Context, cardID string) ([]int64, error) {
	query := `
		SELECT deck_id FROM validation_codes WHERE card_id = ?
		UNION
		SELECT deck_id FROM resource_links WHERE card_id = ?
		UNION
		SELECT deck_id FROM item_activity WHERE card_id = ?
		ORDER BY deck_id
	`
	var ids []int64
	if err := sqlx.SelectContext(ctx, s.q(ctx), &ids, query, cardID, cardID, cardID); err != nil {
		return nil, s.wrap(ctx, "list card decks", err)
	}
	return ids, nil
}

// KnownCards returns every card id referenced by a card-keyed table.
func (s *Store) KnownCards(ctx context.Context) ([]string, error) {
	query := `
		SELECT card_id FROM validation_codes
		UNION
		SELECT card_id FROM resource_links
		UNION
		SELECT card_id FROM item_activity
		ORDER BY card_id
	`
	var ids []string
	if err := sqlx.SelectContext(ctx, s.q(ctx), &ids, query); err != nil {
		return nil, s.wrap(ctx, "list known cards", err)
	}
	return ids, nil
}

// ReassignCard moves every row of a card to deckID in one transaction and
// returns the number of rows changed.
func (s *Store) ReassignCard(ctx context.Context, cardID string, deckID int64) (int64, error) {
	var changed int64
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		for _, table := range cardTables {
			res, err := s.q(ctx).ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET deck_id = ? WHERE card_id = ? AND deck_id <> ?`, table),
				deckID, cardID, deckID)
			if err != nil {
				return s.wrap(ctx, "reassign card in "+table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return s.wrap(ctx, "reassign card in "+table, err)
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
