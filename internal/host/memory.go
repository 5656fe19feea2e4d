package host

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/studytracker/pkg/models"
)

// Memory is an in-process Collection used by tests and demos.
type Memory struct {
	mu      sync.RWMutex
	decks   map[int64]Deck
	cards   map[string]Card
	due     map[int64]int
	reviews []Review

	// FailDeck, when set, makes every query for the returned deck fail.
	FailDeck func(deckID int64) error
	// FailReviews, when set, is consulted before each Reviews query.
	FailReviews func(deckID int64, from, to time.Time) error
}

// NewMemory returns an empty collection.
func NewMemory() *Memory {
	return &Memory{
		decks: make(map[int64]Deck),
		cards: make(map[string]Card),
		due:   make(map[int64]int),
	}
}

// AddDeck registers a deck.
func (m *Memory) AddDeck(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks[id] = Deck{ID: id, Name: name}
}

// PutCard adds or replaces a card.
func (m *Memory) PutCard(c Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = c
}

// MoveCard changes a card's deck.
func (m *Memory) MoveCard(id string, deckID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cards[id]; ok {
		c.DeckID = deckID
		m.cards[id] = c
	}
}

// RemoveCard deletes a card.
func (m *Memory) RemoveCard(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cards, id)
}

// SetDue sets the number of due cards of a deck.
func (m *Memory) SetDue(deckID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.due[deckID] = n
}

// AddReview appends a review.
func (m *Memory) AddReview(r Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, r)
}

func (m *Memory) deckErr(deckID int64) error {
	if m.FailDeck == nil {
		return nil
	}
	return m.FailDeck(deckID)
}

func (m *Memory) Decks(_ context.Context) ([]Deck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	decks := make([]Deck, 0, len(m.decks))
	for _, d := range m.decks {
		decks = append(decks, d)
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].ID < decks[j].ID })
	return decks, nil
}

func (m *Memory) Card(_ context.Context, id string) (*Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", id, models.ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) DueCount(_ context.Context, deckID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.deckErr(deckID); err != nil {
		return 0, err
	}
	return m.due[deckID], nil
}

func (m *Memory) Reviews(_ context.Context, deckID int64, from, to time.Time) ([]Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.deckErr(deckID); err != nil {
		return nil, err
	}
	if m.FailReviews != nil {
		if err := m.FailReviews(deckID, from, to); err != nil {
			return nil, err
		}
	}
	var out []Review
	for _, r := range m.reviews {
		// like the host's own log, reviews follow the card's current deck
		if c, ok := m.cards[r.CardID]; ok {
			r.DeckID = c.DeckID
		}
		if deckID != models.AllDecks && r.DeckID != deckID {
			continue
		}
		if r.At.Before(from) || !r.At.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) AnnotatedCards(_ context.Context) ([]Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Card
	for _, c := range m.cards {
		if c.Annotation != "" {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
