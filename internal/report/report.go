// Package report builds the study report for a deck and date range. Report
// generation only reads tracker state.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/host"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/internal/progress"
	"github.com/example/studytracker/internal/validation"
	"github.com/example/studytracker/pkg/models"
)

// AllDecksName is the display name of the aggregate deck.
const AllDecksName = "All decks"

// titleBatch is how many titles are resolved between yields.
const titleBatch = 25

// Report is the data behind one generated report.
type Report struct {
	DeckID      int64
	DeckName    string
	From        models.Date
	To          models.Date
	GeneratedAt time.Time

	Summary Summary
	Levels  []LevelPoint
	Codes   []CodeRow
	Days    []DayRow
	Cards   []CardRow
}

// Summary is the headline block of a report.
type Summary struct {
	SuccessfulDays int
	TotalDays      int
	CurrentLevel   int
	TasksCompleted int
	StudyMinutes   int
}

// LevelPoint is one step of the level chart.
type LevelPoint struct {
	At       time.Time
	Kind     models.ChangeKind
	OldLevel int
	Level    int
}

// CodeRow is a validation code with its resolved card title.
type CodeRow struct {
	Date        models.Date
	CardID      string
	Title       string
	Code        string
	Correctness int
	Difficulty  int
	Page        int
	Link        string
}

// DayRow is one recorded day.
type DayRow struct {
	Date    models.Date
	Due     int
	Studied int
	Minutes int
	Success bool
}

// CardRow totals the activity of one card over the range.
type CardRow struct {
	CardID  string
	Title   string
	Days    int
	Reviews int
	Minutes int
}

// Generator assembles reports.
type Generator struct {
	store  *database.Store
	host   host.Collection
	ledger *validation.Ledger
	clock  clock.Clock
	log    *logger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(store *database.Store, h host.Collection, ledger *validation.Ledger, clk clock.Clock, log *logger.Logger) *Generator {
	return &Generator{store: store, host: h, ledger: ledger, clock: clk, log: log.With("component", "report")}
}

const generateSteps = 5

// Generate builds the report of deckID over [from, to]. Deck 0 covers every
// deck. y is called between steps and while resolving titles; an error from
// it aborts generation.
func (g *Generator) Generate(ctx context.Context, deckID int64, from, to models.Date, y progress.Yielder) (*Report, error) {
	if from.IsZero() || to.IsZero() {
		return nil, models.NewValidationError("range", "start and end dates are required")
	}
	if from.After(to) {
		return nil, models.NewValidationError("range", fmt.Sprintf("start %s is after end %s", from, to))
	}
	y = progress.Or(y)

	r := &Report{DeckID: deckID, From: from, To: to, GeneratedAt: g.clock.Now()}
	steps := []struct {
		name string
		fn   func(context.Context, *Report, progress.Yielder) error
	}{
		{"deck", g.deck},
		{"days", g.days},
		{"levels", g.levels},
		{"codes", g.codes},
		{"cards", g.cards},
	}
	for i, step := range steps {
		if err := y.Yield(ctx, i, generateSteps); err != nil {
			return nil, err
		}
		if err := step.fn(ctx, r, y); err != nil {
			return nil, fmt.Errorf("report %s: %w", step.name, err)
		}
	}
	g.log.Info("report generated", "deck_id", deckID, "from", from, "to", to,
		"days", len(r.Days), "codes", len(r.Codes), "cards", len(r.Cards))
	return r, nil
}

func (g *Generator) deck(ctx context.Context, r *Report, _ progress.Yielder) error {
	if r.DeckID == models.AllDecks {
		r.DeckName = AllDecksName
		return nil
	}
	r.DeckName = fmt.Sprintf("Deck %d", r.DeckID)
	decks, err := g.host.Decks(ctx)
	if err != nil {
		g.log.Warn("deck names unavailable", "error", err)
		return nil
	}
	if name := host.DeckName(decks, r.DeckID); name != "" {
		r.DeckName = name
	}
	return nil
}

func (g *Generator) days(ctx context.Context, r *Report, _ progress.Yielder) error {
	rollups, err := g.store.Rollups.Range(ctx, r.DeckID, r.From, r.To)
	if err != nil {
		return err
	}
	// newest first
	for i := len(rollups) - 1; i >= 0; i-- {
		d := rollups[i]
		row := DayRow{
			Date:    d.Date,
			Due:     d.CardsDue,
			Studied: d.CardsStudied,
			Minutes: d.StudyMinutes,
			Success: d.Successful(),
		}
		r.Days = append(r.Days, row)
		r.Summary.TotalDays++
		r.Summary.StudyMinutes += row.Minutes
		if row.Success {
			r.Summary.SuccessfulDays++
		}
	}
	return nil
}

func (g *Generator) levels(ctx context.Context, r *Report, _ progress.Yielder) error {
	r.Summary.CurrentLevel = 1
	p, err := g.store.Levels.Get(ctx, r.DeckID)
	switch {
	case err == nil:
		r.Summary.CurrentLevel = p.Level
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	events, err := g.store.History.List(ctx, database.HistoryFilter{DeckID: r.DeckID, From: r.From, To: r.To})
	if err != nil {
		return err
	}
	for _, e := range events {
		r.Levels = append(r.Levels, LevelPoint{At: e.OccurredAt.Time, Kind: e.Kind, OldLevel: e.OldLevel, Level: e.NewLevel})
	}
	return nil
}

func (g *Generator) codes(ctx context.Context, r *Report, y progress.Yielder) error {
	entries, err := g.store.Codes.ListRange(ctx, r.DeckID, r.From, r.To)
	if err != nil {
		return err
	}
	titles := make(map[string]string)
	// newest first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		title, err := g.title(ctx, titles, e.CardID)
		if err != nil {
			return err
		}
		r.Codes = append(r.Codes, CodeRow{
			Date:        e.Date,
			CardID:      e.CardID,
			Title:       title,
			Code:        e.Code,
			Correctness: e.Correctness,
			Difficulty:  e.Difficulty,
			Page:        e.PageNumber,
			Link:        e.Link.String,
		})
		if len(r.Codes)%titleBatch == 0 {
			if err := y.Yield(ctx, len(r.Codes), len(entries)); err != nil {
				return err
			}
		}
	}
	r.Summary.TasksCompleted = len(r.Codes)
	return nil
}

func (g *Generator) cards(ctx context.Context, r *Report, y progress.Yielder) error {
	activity, err := g.store.Rollups.ItemActivityRange(ctx, r.DeckID, r.From, r.To)
	if err != nil {
		return err
	}
	byCard := make(map[string]*CardRow)
	seconds := make(map[string]int)
	for _, a := range activity {
		row, ok := byCard[a.CardID]
		if !ok {
			row = &CardRow{CardID: a.CardID}
			byCard[a.CardID] = row
		}
		row.Days++
		row.Reviews += a.Reviews
		seconds[a.CardID] += a.StudySeconds
	}

	titles := make(map[string]string)
	for _, row := range byCard {
		row.Minutes = seconds[row.CardID] / 60
		title, err := g.title(ctx, titles, row.CardID)
		if err != nil {
			return err
		}
		row.Title = title
		r.Cards = append(r.Cards, *row)
		if len(r.Cards)%titleBatch == 0 {
			if err := y.Yield(ctx, len(r.Cards), len(byCard)); err != nil {
				return err
			}
		}
	}
	sort.Slice(r.Cards, func(i, j int) bool {
		if r.Cards[i].Reviews != r.Cards[j].Reviews {
			return r.Cards[i].Reviews > r.Cards[j].Reviews
		}
		return r.Cards[i].CardID < r.Cards[j].CardID
	})
	return nil
}

func (g *Generator) title(ctx context.Context, cache map[string]string, cardID string) (string, error) {
	if t, ok := cache[cardID]; ok {
		return t, nil
	}
	t, err := g.ledger.LookupTitle(ctx, cardID)
	if err != nil {
		return "", err
	}
	cache[cardID] = t
	return t, nil
}
