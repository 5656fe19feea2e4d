// Package notify tells the user about level changes and streak records.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/studytracker/internal/logger"
)

// Kind is the kind of a notification.
type Kind int

const (
	LevelUp Kind = iota + 1
	LevelDown
	PeriodReset
	StreakRecord
)

func (k Kind) String() string {
	switch k {
	case LevelUp:
		return "level_up"
	case LevelDown:
		return "level_down"
	case PeriodReset:
		return "period_reset"
	case StreakRecord:
		return "streak_record"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is something worth telling the user.
type Event struct {
	Kind     Kind
	DeckID   int64
	DeckName string
	OldLevel int
	NewLevel int
	Streak   int
}

// Message renders the text shown to the user.
func (e Event) Message() string {
	deck := e.DeckName
	if deck == "" {
		deck = "all decks"
	}
	switch e.Kind {
	case LevelUp:
		return fmt.Sprintf("🎉 Level up! %s is now at level %d.", deck, e.NewLevel)
	case LevelDown:
		return fmt.Sprintf("Level down: %s dropped from level %d to %d. A new week starts today.", deck, e.OldLevel, e.NewLevel)
	case PeriodReset:
		return fmt.Sprintf("The weekly goal for %s can no longer be reached. A new week starts today.", deck)
	case StreakRecord:
		return fmt.Sprintf("🔥 New streak record for %s: %d days in a row!", deck, e.Streak)
	}
	return fmt.Sprintf("%s: %s", e.Kind, deck)
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Log writes events to the log.
type Log struct {
	log *logger.Logger
}

// NewLog creates a Log notifier.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log.With("component", "notify")}
}

func (l *Log) Notify(_ context.Context, e Event) error {
	l.log.Info(e.Message(), "kind", e.Kind.String(), "deck_id", e.DeckID)
	return nil
}

// Multi fans an event out to several notifiers. Every notifier is tried.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
