// Package tracker is the application context: it owns every component and
// runs host events through a single serial command queue.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/excel"
	"github.com/example/studytracker/internal/host"
	"github.com/example/studytracker/internal/level"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/internal/notify"
	"github.com/example/studytracker/internal/progress"
	"github.com/example/studytracker/internal/report"
	"github.com/example/studytracker/internal/statistics"
	"github.com/example/studytracker/internal/streak"
	"github.com/example/studytracker/internal/validation"
	"github.com/example/studytracker/pkg/models"
)

// Tracker wires the components together. All work that touches the store
// runs under one lock, so the store keeps a single writer.
type Tracker struct {
	cfg    config.TrackingConfig
	store  *database.Store
	host   host.Collection
	clock  clock.Clock
	notify notify.Notifier
	log    *logger.Logger

	stats   *statistics.Aggregator
	streaks *streak.Calculator
	levels  *level.Machine
	ledger  *validation.Ledger
	reports *report.Generator

	mu    sync.Mutex
	queue *queue
}

// New creates a Tracker. A nil notifier only logs.
func New(cfg config.TrackingConfig, store *database.Store, h host.Collection, clk clock.Clock, n notify.Notifier, log *logger.Logger) *Tracker {
	if n == nil {
		n = notify.NewLog(log)
	}
	ledger := validation.NewLedger(store, h, clk, log)
	return &Tracker{
		cfg:     cfg,
		store:   store,
		host:    h,
		clock:   clk,
		notify:  n,
		log:     log.With("component", "tracker"),
		stats:   statistics.NewAggregator(store, h, clk, log),
		streaks: streak.NewCalculator(store, clk, log),
		levels:  level.NewMachine(store, clk, log),
		ledger:  ledger,
		reports: report.NewGenerator(store, h, ledger, clk, log),
		queue:   newQueue(),
	}
}

// Init prepares a clean start: on first run the installation date is stored,
// the aggregate deck gets its level state and, when configured, a backfill
// of past days is queued. Later runs only make sure the selected deck has a
// level state.
func (t *Tracker) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := clock.Today(t.clock)
	_, err := t.store.Settings.Date(ctx, models.SettingInstallationDate)
	firstRun := errors.Is(err, models.ErrNotFound)
	if err != nil && !firstRun {
		return fmt.Errorf("read installation date: %w", err)
	}
	if firstRun {
		installed := today.AddDays(-max(t.cfg.BackfillDays, 0))
		if err := t.store.Settings.SetDate(ctx, models.SettingInstallationDate, installed); err != nil {
			return fmt.Errorf("store installation date: %w", err)
		}
		t.log.Info("clean start", "installation_date", installed)
	}

	decks := []int64{models.AllDecks}
	selected, err := t.selectedDeck(ctx)
	if err != nil {
		return err
	}
	if selected != models.AllDecks {
		decks = append(decks, selected)
	}
	for _, deck := range decks {
		if _, err := t.levels.InitializeForUnit(ctx, deck); err != nil {
			t.log.Warn("level state not initialized", "deck_id", deck, "error", err)
		}
	}

	if firstRun && t.cfg.BackfillDays > 0 {
		t.Post(Command{Kind: Backfill, From: today.AddDays(-t.cfg.BackfillDays), To: today.AddDays(-1)})
	}
	return nil
}

// Post queues cmd. It returns the command id and whether the command was
// added; an equivalent pending command absorbs it.
func (t *Tracker) Post(cmd Command) (uuid.UUID, bool) {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	if cmd.Posted.IsZero() {
		cmd.Posted = t.clock.Now()
	}
	id, added := t.queue.push(cmd)
	if !added {
		t.log.Debug("command coalesced", "kind", cmd.Kind.String(), "pending", id)
	}
	return id, added
}

// Pending returns the number of queued commands.
func (t *Tracker) Pending() int {
	return t.queue.len()
}

// Run initialises the tracker and processes commands until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	t.log.Info("tracker running")
	for {
		select {
		case <-ctx.Done():
			t.log.Info("tracker stopped", "pending", t.queue.len())
			return nil
		case <-t.queue.ready:
			t.Drain(ctx)
		}
	}
}

// Drain processes queued commands until the queue is empty or ctx is done.
// Command failures are logged; they never stop the queue.
func (t *Tracker) Drain(ctx context.Context) {
	for ctx.Err() == nil {
		cmd, ok := t.queue.pop()
		if !ok {
			return
		}
		if err := t.execute(ctx, cmd); err != nil {
			t.log.Warn("command failed", "kind", cmd.Kind.String(), "id", cmd.ID, "card_id", cmd.CardID, "error", err)
		}
	}
}

func (t *Tracker) execute(ctx context.Context, cmd Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log.Debug("command", "kind", cmd.Kind.String(), "id", cmd.ID)
	switch cmd.Kind {
	case ReviewCompleted, Tick:
		return t.refresh(ctx)
	case NoteSaved:
		return t.noteSaved(ctx, cmd.CardID)
	case SyncFinished:
		return t.syncFinished(ctx)
	case Backfill:
		_, err := t.backfill(ctx, cmd.From, cmd.To, nil)
		return err
	case Maintenance:
		_, err := t.maintain(ctx)
		return err
	}
	return fmt.Errorf("unknown command kind %d", int(cmd.Kind))
}

// refresh collects today's rollups and then moves the selected deck's level
// and streak forward.
func (t *Tracker) refresh(ctx context.Context) error {
	var errs []error
	if _, err := t.stats.CollectToday(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		// partial collection still leaves usable rollups
		errs = append(errs, err)
	}
	if err := t.advance(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// advance evaluates the selected deck's period and checks for a streak
// record, notifying about either.
func (t *Tracker) advance(ctx context.Context) error {
	deck, err := t.selectedDeck(ctx)
	if err != nil {
		return err
	}

	ev, err := t.levels.InitializeForUnit(ctx, deck)
	if err != nil {
		return fmt.Errorf("initialize level: %w", err)
	}
	if ev.Skipped == level.SkipFresh {
		if ev, err = t.levels.EvaluatePeriod(ctx, deck); err != nil {
			return fmt.Errorf("evaluate period: %w", err)
		}
	}
	name := t.deckName(ctx, deck)
	if e, ok := levelEvent(ev, name); ok {
		t.send(ctx, e)
	}

	set, current, err := t.streaks.CheckRecord(ctx, deck)
	if err != nil {
		return fmt.Errorf("check streak record: %w", err)
	}
	if set {
		t.send(ctx, notify.Event{Kind: notify.StreakRecord, DeckID: deck, DeckName: name, Streak: current})
	}
	return nil
}

// levelEvent turns an evaluation into a notification, if it deserves one.
func levelEvent(ev level.Evaluation, deckName string) (notify.Event, bool) {
	if !ev.Transitioned() {
		return notify.Event{}, false
	}
	e := notify.Event{DeckID: ev.DeckID, DeckName: deckName, OldLevel: ev.Decision.OldLevel, NewLevel: ev.Decision.NewLevel}
	switch {
	case e.NewLevel > e.OldLevel:
		e.Kind = notify.LevelUp
	case e.NewLevel < e.OldLevel:
		e.Kind = notify.LevelDown
	default:
		for _, k := range ev.Recorded {
			if k == models.KindPeriodResetEarly {
				e.Kind = notify.PeriodReset
				return e, true
			}
		}
		return notify.Event{}, false
	}
	return e, true
}

func (t *Tracker) send(ctx context.Context, e notify.Event) {
	if err := t.notify.Notify(ctx, e); err != nil {
		t.log.Warn("notification failed", "kind", e.Kind.String(), "error", err)
	}
}

func (t *Tracker) noteSaved(ctx context.Context, cardID string) error {
	card, err := t.host.Card(ctx, cardID)
	if errors.Is(err, models.ErrNotFound) {
		t.log.Debug("saved card is gone", "card_id", cardID)
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := t.ledger.IngestAnnotation(ctx, card.ID, card.Annotation, card.Link); err != nil {
		return err
	}
	_, err = t.ledger.ReconcileUnitAssignment(ctx, card.ID)
	return err
}

func (t *Tracker) syncFinished(ctx context.Context) error {
	var errs []error
	if _, err := t.ledger.IngestAll(ctx, nil); err != nil {
		if ctx.Err() != nil {
			return err
		}
		errs = append(errs, err)
	}
	moved, err := t.ledger.ReconcileAll(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if moved > 0 {
		t.log.Info("cards reassigned after sync", "cards", moved)
	}
	if err := t.refresh(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Backfill rebuilds rollups for [from, to] and then lets the streak records
// catch up with the corrected history.
func (t *Tracker) Backfill(ctx context.Context, from, to models.Date, y progress.Yielder) (*statistics.BackfillResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.backfill(ctx, from, to, y)
}

func (t *Tracker) backfill(ctx context.Context, from, to models.Date, y progress.Yielder) (*statistics.BackfillResult, error) {
	res, err := t.stats.BackfillRange(ctx, from, to, t.cfg.BackfillChunkDays, y)
	if res != nil && res.Committed() > 0 {
		if rerr := t.recompute(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	return res, err
}

// recompute refreshes the streak records of the aggregate and selected deck.
func (t *Tracker) recompute(ctx context.Context) error {
	deck, err := t.selectedDeck(ctx)
	if err != nil {
		return err
	}
	decks := []int64{models.AllDecks}
	if deck != models.AllDecks {
		decks = append(decks, deck)
	}
	for _, d := range decks {
		if _, err := t.streaks.Recompute(ctx, d, models.Date{}); err != nil {
			return fmt.Errorf("recompute streak of deck %d: %w", d, err)
		}
	}
	return nil
}

// SelectedDeck returns the deck the user is following; 0 means all decks.
func (t *Tracker) SelectedDeck(ctx context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedDeck(ctx)
}

func (t *Tracker) selectedDeck(ctx context.Context) (int64, error) {
	id, err := t.store.Settings.Int64(ctx, models.SettingSelectedDeck, t.cfg.SelectedDeck)
	if err != nil {
		return 0, fmt.Errorf("read selected deck: %w", err)
	}
	return id, nil
}

// SelectDeck stores the followed deck and gives it a level state.
func (t *Tracker) SelectDeck(ctx context.Context, deckID int64) error {
	if deckID < 0 {
		return models.NewValidationError("deck", "deck id must not be negative")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Settings.Set(ctx, models.SettingSelectedDeck, strconv.FormatInt(deckID, 10)); err != nil {
		return err
	}
	_, err := t.levels.InitializeForUnit(ctx, deckID)
	return err
}

func (t *Tracker) deckName(ctx context.Context, deckID int64) string {
	if deckID == models.AllDecks {
		return report.AllDecksName
	}
	decks, err := t.host.Decks(ctx)
	if err != nil {
		t.log.Warn("deck names unavailable", "error", err)
		return ""
	}
	return host.DeckName(decks, deckID)
}

// Report generates the report of a deck over [from, to].
func (t *Tracker) Report(ctx context.Context, deckID int64, from, to models.Date, y progress.Yielder) (*report.Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reports.Generate(ctx, deckID, from, to, y)
}

// ExportBackup writes a backup of the store to path.
func (t *Tracker) ExportBackup(ctx context.Context, path, passphrase string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.ExportBackup(ctx, path, passphrase)
}

// ImportBackup replaces the store with the backup at path and recomputes the
// streak records from the restored history.
func (t *Tracker) ImportBackup(ctx context.Context, path, passphrase string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.ImportBackup(ctx, path, passphrase); err != nil {
		return err
	}
	return t.recompute(ctx)
}

// ImportRollups merges historical rollups from a spreadsheet and raises the
// streak records the imported days may have extended.
func (t *Tracker) ImportRollups(ctx context.Context, cfg excel.ImportConfig) (*excel.ImportResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, err := excel.ImportRollups(ctx, t.store, cfg)
	if res == nil || res.Merged == 0 {
		return res, err
	}
	t.log.Info("rollups imported", "merged", res.Merged, "skipped", res.Skipped)
	if rerr := t.recompute(ctx); rerr != nil {
		return res, errors.Join(err, rerr)
	}
	return res, err
}

// Status describes the store.
func (t *Tracker) Status(ctx context.Context) (*database.Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Status(ctx)
}
