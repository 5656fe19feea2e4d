package validation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/host"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/internal/progress"
	"github.com/example/studytracker/pkg/models"
)

// Ledger stores the codes found in card annotations and keeps them attached
// to the card's current deck.
type Ledger struct {
	store *database.Store
	host  host.Collection
	clock clock.Clock
	log   *logger.Logger
}

// NewLedger creates a Ledger.
func NewLedger(store *database.Store, h host.Collection, clk clock.Clock, log *logger.Logger) *Ledger {
	return &Ledger{store: store, host: h, clock: clk, log: log.With("component", "validation")}
}

// IngestResult describes one ingested annotation.
type IngestResult struct {
	CardID   string
	DeckID   int64
	Stored   int
	Removed  int64
	Rejected []error
}

// ParseCode parses a raw code and logs when a component had to be clamped.
func (l *Ledger) ParseCode(raw string) (models.ParsedCode, error) {
	code, err := models.ParseCode(raw)
	if err != nil {
		return code, err
	}
	if code.Clamped {
		l.log.Warn("code component clamped", "code", raw,
			"correctness", code.Correctness, "difficulty", code.Difficulty)
	}
	return code, nil
}

// IngestAnnotation replaces the stored codes of a card with the ones found in
// rawText. Re-ingesting the same text leaves exactly one row per (date, code).
// A non-empty auxLink becomes the card's resource link.
func (l *Ledger) IngestAnnotation(ctx context.Context, cardID, rawText, auxLink string) (*IngestResult, error) {
	card := host.Card{ID: cardID, Annotation: rawText, Link: auxLink}
	hc, err := l.host.Card(ctx, cardID)
	switch {
	case err == nil:
		card.DeckID = hc.DeckID
		card.Question = hc.Question
	case errors.Is(err, models.ErrNotFound):
		decks, derr := l.store.CardDecks(ctx, cardID)
		if derr != nil {
			return nil, derr
		}
		if len(decks) > 0 {
			card.DeckID = decks[0]
		}
	default:
		return nil, fmt.Errorf("%w: look up card %s: %w", models.ErrTransientIngest, cardID, err)
	}
	return l.ingest(ctx, card)
}

func (l *Ledger) ingest(ctx context.Context, card host.Card) (*IngestResult, error) {
	found, rejected := ExtractAnnotations(card.Annotation)
	res := &IngestResult{CardID: card.ID, DeckID: card.DeckID, Rejected: rejected}
	for _, err := range rejected {
		l.log.Warn("annotation rejected", "card_id", card.ID, "error", err)
	}

	var title sql.NullString
	if t := shortTitle(card.Question); t != "" {
		title = sql.NullString{String: t, Valid: true}
	}
	var link sql.NullString
	if u := strings.TrimSpace(card.Link); u != "" {
		link = sql.NullString{String: u, Valid: true}
	}
	now := models.NewTimestamp(l.clock.Now())

	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		removed, err := l.store.Codes.DeleteForCard(ctx, card.ID)
		if err != nil {
			return err
		}
		res.Removed = removed

		for _, a := range found {
			if a.Code.Clamped {
				l.log.Warn("code component clamped", "card_id", card.ID, "code", a.Code.Raw)
			}
			entry := &models.ValidationCodeEntry{
				CardID:      card.ID,
				DeckID:      card.DeckID,
				Date:        a.Date,
				Code:        a.Code.Raw,
				Correctness: a.Code.Correctness,
				Difficulty:  a.Code.Difficulty,
				PageNumber:  a.Page,
				Link:        link,
				Title:       title,
				CreatedAt:   now,
			}
			if err := l.store.Codes.Upsert(ctx, entry); err != nil {
				return err
			}
			res.Stored++
		}

		if link.Valid {
			return l.store.Links.Upsert(ctx, models.ResourceLink{
				CardID:    card.ID,
				DeckID:    card.DeckID,
				URL:       link.String,
				Title:     title,
				UpdatedAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest card %s: %w", card.ID, err)
	}
	l.log.Debug("annotation ingested", "card_id", card.ID, "deck_id", card.DeckID,
		"stored", res.Stored, "removed", res.Removed)
	return res, nil
}

// IngestSummary counts the outcome of IngestAll.
type IngestSummary struct {
	Cards    int
	Stored   int
	Rejected int
	Failed   map[string]error
}

// IngestAll ingests every annotated card of the host. A failing card is
// logged and skipped; the returned error joins the failures and wraps
// ErrTransientIngest.
func (l *Ledger) IngestAll(ctx context.Context, y progress.Yielder) (*IngestSummary, error) {
	y = progress.Or(y)
	sum := &IngestSummary{Failed: make(map[string]error)}

	cards, err := l.host.AnnotatedCards(ctx)
	if err != nil {
		return sum, fmt.Errorf("%w: list annotated cards: %w", models.ErrTransientIngest, err)
	}

	var errs []error
	for i, card := range cards {
		if err := y.Yield(ctx, i, len(cards)); err != nil {
			return sum, err
		}
		res, err := l.ingest(ctx, card)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			l.log.Warn("card ingest failed", "card_id", card.ID, "error", err)
			sum.Failed[card.ID] = err
			errs = append(errs, err)
			continue
		}
		sum.Cards++
		sum.Stored += res.Stored
		sum.Rejected += len(res.Rejected)
	}
	if len(errs) > 0 {
		return sum, fmt.Errorf("%w: %w", models.ErrTransientIngest, errors.Join(errs...))
	}
	return sum, nil
}

// ReconcileUnitAssignment moves the stored rows of a card to the deck the
// host currently files it under. It reports whether anything moved. A card
// the host no longer knows keeps its rows.
func (l *Ledger) ReconcileUnitAssignment(ctx context.Context, cardID string) (bool, error) {
	card, err := l.host.Card(ctx, cardID)
	if err != nil {
		return false, err
	}
	decks, err := l.store.CardDecks(ctx, cardID)
	if err != nil {
		return false, err
	}
	if len(decks) == 0 || (len(decks) == 1 && decks[0] == card.DeckID) {
		return false, nil
	}
	n, err := l.store.ReassignCard(ctx, cardID, card.DeckID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		l.log.Info("card reassigned", "card_id", cardID, "from", decks, "to", card.DeckID, "rows", n)
	}
	return n > 0, nil
}

// ReconcileAll reconciles every card the store knows and returns how many
// moved. Cards missing from the host are left alone.
func (l *Ledger) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := l.store.KnownCards(ctx)
	if err != nil {
		return 0, err
	}
	moved := 0
	var errs []error
	for _, id := range ids {
		ok, err := l.ReconcileUnitAssignment(ctx, id)
		switch {
		case errors.Is(err, models.ErrNotFound):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return moved, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("card %s: %w", id, err))
		case ok:
			moved++
		}
	}
	return moved, errors.Join(errs...)
}

// ResolveTitle returns a display title for a card. Cached titles win, then
// the host's current question text, which is cached for later. A card that
// resolves nowhere gets an archived placeholder.
func (l *Ledger) ResolveTitle(ctx context.Context, cardID string) (string, error) {
	return l.resolveTitle(ctx, cardID, true)
}

// LookupTitle is ResolveTitle without writing the title cache.
func (l *Ledger) LookupTitle(ctx context.Context, cardID string) (string, error) {
	return l.resolveTitle(ctx, cardID, false)
}

func (l *Ledger) resolveTitle(ctx context.Context, cardID string, cache bool) (string, error) {
	title, err := l.store.Codes.LatestTitle(ctx, cardID)
	if err == nil {
		return title, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", err
	}

	title, err = l.store.Links.LatestTitle(ctx, cardID)
	if err == nil {
		return title, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", err
	}

	card, err := l.host.Card(ctx, cardID)
	if err == nil {
		if t := shortTitle(card.Question); t != "" {
			if cache {
				if err := l.store.Codes.FillTitle(ctx, cardID, t); err != nil {
					l.log.Warn("cache title failed", "card_id", cardID, "error", err)
				}
			}
			return t, nil
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		l.log.Warn("host card lookup failed", "card_id", cardID, "error", err)
	}
	return ArchivedTitle(cardID), nil
}

// ArchivedTitle is the placeholder title of a card that no longer resolves.
func ArchivedTitle(cardID string) string {
	return fmt.Sprintf("%s (...%s)", models.ArchivedTitlePrefix, shortID(cardID))
}
