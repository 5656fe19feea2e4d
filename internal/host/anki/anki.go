// Package anki reads an Anki collection file as a host.Collection.
package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/host"
	"github.com/example/studytracker/pkg/models"
)

const fieldSeparator = "\x1f"

// homeDeck is the deck a card belongs to. A card moved into a filtered deck
// keeps its home deck in odid.
const homeDeck = `(CASE WHEN c.odid <> 0 THEN c.odid ELSE c.did END)`

// Collection is a read-only view of an Anki collection.
type Collection struct {
	db    *sqlx.DB
	cfg   config.HostConfig
	clock clock.Clock
	crt   int64
}

var _ host.Collection = (*Collection)(nil)

// Open opens the collection file read-only.
func Open(ctx context.Context, cfg config.HostConfig, clk clock.Clock) (*Collection, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", "file:"+cfg.CollectionPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.CollectionPath, err)
	}
	db.SetMaxOpenConns(1)

	c := &Collection{db: db, cfg: cfg, clock: clk}
	if err := db.GetContext(ctx, &c.crt, `SELECT crt FROM col LIMIT 1`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read collection creation time: %w", err)
	}
	return c, nil
}

// Close closes the collection.
func (c *Collection) Close() error {
	return c.db.Close()
}

func (c *Collection) Decks(ctx context.Context) ([]host.Deck, error) {
	var rows []struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	err := c.db.SelectContext(ctx, &rows, `SELECT id, name FROM decks ORDER BY id`)
	if err != nil {
		if !strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("failed to list decks: %w", err)
		}
		return c.legacyDecks(ctx)
	}
	decks := make([]host.Deck, len(rows))
	for i, r := range rows {
		decks[i] = host.Deck{ID: r.ID, Name: strings.ReplaceAll(r.Name, fieldSeparator, "::")}
	}
	return decks, nil
}

// legacyDecks reads decks from the JSON column used by older collections.
func (c *Collection) legacyDecks(ctx context.Context) ([]host.Deck, error) {
	var raw string
	if err := c.db.GetContext(ctx, &raw, `SELECT decks FROM col LIMIT 1`); err != nil {
		return nil, fmt.Errorf("failed to read decks: %w", err)
	}
	var byID map[string]struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &byID); err != nil {
		return nil, fmt.Errorf("failed to decode decks: %w", err)
	}
	decks := make([]host.Deck, 0, len(byID))
	for _, d := range byID {
		decks = append(decks, host.Deck{ID: d.ID, Name: d.Name})
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].ID < decks[j].ID })
	return decks, nil
}

type cardRow struct {
	ID     int64  `db:"id"`
	DeckID int64  `db:"did"`
	Fields string `db:"flds"`
}

func (c *Collection) toCard(r cardRow) host.Card {
	fields := strings.Split(r.Fields, fieldSeparator)
	field := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}
	return host.Card{
		ID:         strconv.FormatInt(r.ID, 10),
		DeckID:     r.DeckID,
		Question:   field(0),
		Annotation: field(c.cfg.AnnotationField),
		Link:       field(c.cfg.LinkField),
	}
}

func (c *Collection) Card(ctx context.Context, id string) (*host.Card, error) {
	cid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("card %q: %w", id, models.ErrNotFound)
	}
	var r cardRow
	err = c.db.GetContext(ctx, &r, `
		SELECT c.id, `+homeDeck+` AS did, n.flds
		FROM cards c JOIN notes n ON n.id = c.nid
		WHERE c.id = ?`, cid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	card := c.toCard(r)
	return &card, nil
}

// DueCount counts new cards plus learning and review cards due by the end of
// today whose home deck is deckID. Cards in a filtered deck count for the
// deck they came from only.
func (c *Collection) DueCount(ctx context.Context, deckID int64) (int, error) {
	now := c.clock.Now()
	start := models.DateOf(now).Start(now.Location())
	end := start.AddDate(0, 0, 1)
	dayIndex := (start.Unix() - c.crt) / 86400

	var n int
	err := c.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM cards c
		WHERE `+homeDeck+` = ?
		  AND (c.queue = 0
		       OR (c.queue IN (2, 3) AND c.due <= ?)
		       OR (c.queue = 1 AND c.due < ?))`,
		deckID, dayIndex, end.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards in deck %d: %w", deckID, err)
	}
	return n, nil
}

func (c *Collection) Reviews(ctx context.Context, deckID int64, from, to time.Time) ([]host.Review, error) {
	query := `
		SELECT r.cid, ` + homeDeck + ` AS did, r.id, r.time
		FROM revlog r JOIN cards c ON c.id = r.cid
		WHERE r.id >= ? AND r.id < ?`
	args := []any{from.UnixMilli(), to.UnixMilli()}
	if deckID != models.AllDecks {
		query += ` AND ` + homeDeck + ` = ?`
		args = append(args, deckID)
	}
	query += ` ORDER BY r.id`

	var rows []struct {
		CardID int64 `db:"cid"`
		DeckID int64 `db:"did"`
		ID     int64 `db:"id"`
		Millis int64 `db:"time"`
	}
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	reviews := make([]host.Review, len(rows))
	for i, r := range rows {
		reviews[i] = host.Review{
			CardID:   strconv.FormatInt(r.CardID, 10),
			DeckID:   r.DeckID,
			At:       time.UnixMilli(r.ID).In(from.Location()),
			Duration: time.Duration(r.Millis) * time.Millisecond,
		}
	}
	return reviews, nil
}

func (c *Collection) AnnotatedCards(ctx context.Context) ([]host.Card, error) {
	var rows []cardRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT c.id, `+homeDeck+` AS did, n.flds
		FROM cards c JOIN notes n ON n.id = c.nid
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	var cards []host.Card
	for _, r := range rows {
		if card := c.toCard(r); card.Annotation != "" {
			cards = append(cards, card)
		}
	}
	return cards, nil
}
