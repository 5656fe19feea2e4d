package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/studytracker/pkg/models"
)

// Kind is the kind of a queued command.
type Kind int

const (
	// ReviewCompleted follows a card review in the host.
	ReviewCompleted Kind = iota + 1
	// NoteSaved follows an edit of a card's fields.
	NoteSaved
	// SyncFinished follows a host sync, after which any card may have changed.
	SyncFinished
	// Tick is the periodic refresh.
	Tick
	// Backfill rebuilds rollups for [From, To].
	Backfill
	// Maintenance runs the daily cleanup.
	Maintenance
)

func (k Kind) String() string {
	switch k {
	case ReviewCompleted:
		return "review_completed"
	case NoteSaved:
		return "note_saved"
	case SyncFinished:
		return "sync_finished"
	case Tick:
		return "tick"
	case Backfill:
		return "backfill"
	case Maintenance:
		return "maintenance"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Command is a unit of work for the tracker.
type Command struct {
	ID     uuid.UUID
	Kind   Kind
	CardID string
	From   models.Date
	To     models.Date
	Posted time.Time
}

// key identifies commands that do the same work. Reviews and ticks refresh
// everything, so one pending instance is enough.
func (c Command) key() string {
	switch c.Kind {
	case NoteSaved:
		return c.Kind.String() + ":" + c.CardID
	case Backfill:
		return c.Kind.String() + ":" + c.From.String() + ":" + c.To.String()
	case ReviewCompleted, Tick:
		return "refresh"
	}
	return c.Kind.String()
}

// queue is a FIFO of commands that drops a command while an equivalent one
// is still pending.
type queue struct {
	mu      sync.Mutex
	items   []Command
	pending map[string]uuid.UUID
	ready   chan struct{}
}

func newQueue() *queue {
	return &queue{pending: make(map[string]uuid.UUID), ready: make(chan struct{}, 1)}
}

// push enqueues cmd and reports whether it was added. A coalesced command
// returns the id of the pending one.
func (q *queue) push(cmd Command) (uuid.UUID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	k := cmd.key()
	if id, ok := q.pending[k]; ok {
		return id, false
	}
	q.pending[k] = cmd.ID
	q.items = append(q.items, cmd)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return cmd.ID, true
}

// pop removes the oldest command. Once popped, an equivalent command can be
// queued again.
func (q *queue) pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Command{}, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	delete(q.pending, cmd.key())
	return cmd, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
