package models

import "fmt"

// ChangeKind is the closed set of level history event kinds.
type ChangeKind string

const (
	KindLevelUp              ChangeKind = "level_up"
	KindLevelDown            ChangeKind = "level_down"
	KindPeriodOpened         ChangeKind = "period_opened"
	KindPeriodResetEarly     ChangeKind = "period_reset_early"
	KindPeriodCompletedEarly ChangeKind = "period_completed_early"
	KindInitialized          ChangeKind = "initialized"
	KindManual               ChangeKind = "manual"
)

// PeriodTransitionKinds are the kinds the evaluation debounce looks at.
var PeriodTransitionKinds = []ChangeKind{
	KindPeriodOpened,
	KindPeriodResetEarly,
	KindPeriodCompletedEarly,
	KindInitialized,
}

// ParseChangeKind validates a stored kind string.
func ParseChangeKind(s string) (ChangeKind, error) {
	k := ChangeKind(s)
	if !k.Valid() {
		return "", NewValidationError("change_type", fmt.Sprintf("unknown change kind %q", s))
	}
	return k, nil
}

func (k ChangeKind) Valid() bool {
	switch k {
	case KindLevelUp, KindLevelDown, KindPeriodOpened, KindPeriodResetEarly,
		KindPeriodCompletedEarly, KindInitialized, KindManual:
		return true
	}
	return false
}

// IsPeriodTransition reports whether k opens, resets or closes a period.
func (k ChangeKind) IsPeriodTransition() bool {
	switch k {
	case KindPeriodOpened, KindPeriodResetEarly, KindPeriodCompletedEarly, KindInitialized:
		return true
	}
	return false
}

// LevelProgress is the live level state of a deck. There is exactly one row per deck.
type LevelProgress struct {
	ID          int64     `json:"id" db:"id"`
	DeckID      int64     `json:"deck_id" db:"deck_id"`
	Level       int       `json:"level" db:"current_level"`
	PeriodStart Date      `json:"period_start" db:"period_start"`
	LastUpdated Timestamp `json:"last_updated" db:"last_updated"`
}

// LevelHistoryEvent is an append-only record of a level or period transition.
type LevelHistoryEvent struct {
	ID         int64      `json:"id" db:"id"`
	DeckID     int64      `json:"deck_id" db:"deck_id"`
	Kind       ChangeKind `json:"change_type" db:"change_type"`
	OldLevel   int        `json:"old_level" db:"old_level"`
	NewLevel   int        `json:"new_level" db:"new_level"`
	OccurredAt Timestamp  `json:"change_date" db:"change_date"`
}

// StreakRecord is the best current streak ever observed for a deck.
type StreakRecord struct {
	ID     int64 `json:"id" db:"id"`
	DeckID int64 `json:"deck_id" db:"deck_id"`
	Value  int   `json:"record" db:"record"`
	SetOn  Date  `json:"date" db:"date"`
}
