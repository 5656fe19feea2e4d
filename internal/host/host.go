// Package host describes the flashcard application the tracker observes. The
// tracker never writes to the host's data.
package host

import (
	"context"
	"time"
)

// Deck is a collection unit of the host.
type Deck struct {
	ID   int64
	Name string
}

// Card is a content item as currently known to the host.
type Card struct {
	ID         string
	DeckID     int64
	Question   string
	Annotation string
	Link       string
}

// Review is a single answered card.
type Review struct {
	CardID   string
	DeckID   int64
	At       time.Time
	Duration time.Duration
}

// Collection is the read-only view of the host's cards, decks and review log.
type Collection interface {
	// Decks returns every deck.
	Decks(ctx context.Context) ([]Deck, error)
	// Card returns a card by id, or models.ErrNotFound when it no longer exists.
	Card(ctx context.Context, id string) (*Card, error)
	// DueCount returns how many cards of the deck are currently due or new.
	DueCount(ctx context.Context, deckID int64) (int, error)
	// Reviews returns the reviews in [from, to) for a deck, or for every deck
	// when deckID is 0.
	Reviews(ctx context.Context, deckID int64, from, to time.Time) ([]Review, error)
	// AnnotatedCards returns the cards whose annotation field is not empty.
	AnnotatedCards(ctx context.Context) ([]Card, error)
}

// DeckName returns the name of deckID among decks, or "" when unknown.
func DeckName(decks []Deck, deckID int64) string {
	for _, d := range decks {
		if d.ID == deckID {
			return d.Name
		}
	}
	return ""
}
