// Package statistics turns the host's review log into daily rollups.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/host"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/pkg/models"
)

// Aggregator writes per-deck daily rollups and per-card activity.
type Aggregator struct {
	store *database.Store
	host  host.Collection
	clock clock.Clock
	log   *logger.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store *database.Store, h host.Collection, clk clock.Clock, log *logger.Logger) *Aggregator {
	return &Aggregator{store: store, host: h, clock: clk, log: log.With("component", "statistics")}
}

// CollectResult lists the outcome of CollectToday per deck.
type CollectResult struct {
	Date      models.Date
	Collected []int64
	Failed    map[int64]error
}

// CollectToday computes today's rollup for every deck. A failing deck is
// logged and skipped; the returned error joins every deck failure and wraps
// ErrTransientIngest.
func (a *Aggregator) CollectToday(ctx context.Context) (*CollectResult, error) {
	today := clock.Today(a.clock)
	res := &CollectResult{Date: today, Failed: make(map[int64]error)}

	decks, err := a.host.Decks(ctx)
	if err != nil {
		return res, fmt.Errorf("list decks: %w", err)
	}

	var errs []error
	for _, deck := range decks {
		if err := a.collectDeck(ctx, deck, today); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			a.log.Warn("deck collection failed", "deck_id", deck.ID, "deck", deck.Name, "error", err)
			res.Failed[deck.ID] = err
			errs = append(errs, fmt.Errorf("deck %d: %w", deck.ID, err))
			continue
		}
		res.Collected = append(res.Collected, deck.ID)
	}
	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", models.ErrTransientIngest, errors.Join(errs...))
	}
	return res, nil
}

func (a *Aggregator) collectDeck(ctx context.Context, deck host.Deck, today models.Date) error {
	due, err := a.host.DueCount(ctx, deck.ID)
	if err != nil {
		return fmt.Errorf("count due: %w", err)
	}
	loc := a.clock.Now().Location()
	from := today.Start(loc)
	reviews, err := a.host.Reviews(ctx, deck.ID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}

	summary := summarize(reviews, today)[deck.ID]
	rollup := models.DailyRollup{Date: today, DeckID: deck.ID, CardsDue: due}
	if summary != nil {
		rollup.CardsStudied = len(summary.cards)
		rollup.StudyMinutes = int(summary.total / time.Minute)
	}

	return a.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := a.store.Rollups.Merge(ctx, rollup); err != nil {
			return err
		}
		if summary == nil {
			return nil
		}
		for _, act := range summary.activity() {
			if err := a.store.Rollups.UpsertItemActivity(ctx, act); err != nil {
				return err
			}
		}
		return nil
	})
}

// deckDay accumulates one deck's reviews of one day.
type deckDay struct {
	date   models.Date
	deckID int64
	total  time.Duration
	cards  map[string]*models.ItemActivity
	order  []string
}

func (d *deckDay) activity() []models.ItemActivity {
	out := make([]models.ItemActivity, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.cards[id])
	}
	return out
}

// summarize groups reviews by deck.
func summarize(reviews []host.Review, date models.Date) map[int64]*deckDay {
	byDeck := make(map[int64]*deckDay)
	for _, r := range reviews {
		d, ok := byDeck[r.DeckID]
		if !ok {
			d = &deckDay{date: date, deckID: r.DeckID, cards: make(map[string]*models.ItemActivity)}
			byDeck[r.DeckID] = d
		}
		d.total += r.Duration
		act, ok := d.cards[r.CardID]
		if !ok {
			act = &models.ItemActivity{CardID: r.CardID, DeckID: r.DeckID, Date: date}
			d.cards[r.CardID] = act
			d.order = append(d.order, r.CardID)
		}
		act.Reviews++
		act.StudySeconds += int(r.Duration / time.Second)
	}
	return byDeck
}
