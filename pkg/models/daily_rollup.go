package models

// AllDecks is the sentinel deck key for the aggregate view over every deck.
const AllDecks int64 = 0

// DailyRollup holds one day of study counts for a deck.
type DailyRollup struct {
	Date         Date  `json:"date" db:"date"`
	DeckID       int64 `json:"deck_id" db:"deck_id"`
	CardsDue     int   `json:"cards_due" db:"cards_due"`
	CardsStudied int   `json:"cards_studied" db:"cards_studied"`
	StudyMinutes int   `json:"study_time" db:"study_time"`
}

// Successful reports whether the day counts towards streaks and levels:
// nothing was due, or everything due was studied.
func (r DailyRollup) Successful() bool {
	return r.CardsDue == 0 || r.CardsStudied >= r.CardsDue
}

// Merge returns r raised to at least the values in o. Recorded progress for a
// day never goes down.
func (r DailyRollup) Merge(o DailyRollup) DailyRollup {
	r.CardsDue = max(r.CardsDue, o.CardsDue)
	r.CardsStudied = max(r.CardsStudied, o.CardsStudied)
	r.StudyMinutes = max(r.StudyMinutes, o.StudyMinutes)
	return r
}

// ItemActivity records how often a single card was reviewed on a day.
type ItemActivity struct {
	CardID       string `json:"card_id" db:"card_id"`
	DeckID       int64  `json:"deck_id" db:"deck_id"`
	Date         Date   `json:"date" db:"date"`
	Reviews      int    `json:"reviews" db:"reviews"`
	StudySeconds int    `json:"study_seconds" db:"study_seconds"`
}
