package models

import (
	"database/sql"
	"strings"
)

// ArchivedTitlePrefix marks synthesized titles for cards that no longer resolve.
const ArchivedTitlePrefix = "Archived card"

// ValidationCodeEntry is a dated code annotation attached to a card.
type ValidationCodeEntry struct {
	ID          int64          `json:"id" db:"id"`
	CardID      string         `json:"card_id" db:"card_id"`
	DeckID      int64          `json:"deck_id" db:"deck_id"`
	Date        Date           `json:"date" db:"date"`
	Code        string         `json:"code" db:"code"`
	Correctness int            `json:"correctness" db:"correctness"`
	Difficulty  int            `json:"difficulty" db:"difficulty"`
	PageNumber  int            `json:"page_number" db:"page_number"`
	Link        sql.NullString `json:"chat_link" db:"chat_link"`
	Title       sql.NullString `json:"card_title" db:"card_title"`
	CreatedAt   Timestamp      `json:"created_at" db:"created_at"`
}

// ResourceLink is the latest external link known for a card.
type ResourceLink struct {
	CardID    string         `json:"card_id" db:"card_id"`
	DeckID    int64          `json:"deck_id" db:"deck_id"`
	URL       string         `json:"url" db:"url"`
	Title     sql.NullString `json:"title" db:"title"`
	UpdatedAt Timestamp      `json:"updated_at" db:"updated_at"`
}

// IsPlaceholderTitle reports whether a cached title carries no information.
func IsPlaceholderTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t == "" || strings.HasPrefix(t, ArchivedTitlePrefix)
}
