package statistics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/studytracker/internal/progress"
	"github.com/example/studytracker/pkg/models"
)

// ChunkOutcome is the result of one backfill chunk.
type ChunkOutcome struct {
	From models.Date
	To   models.Date
	Days int
	Err  error
}

// BackfillResult reports every chunk of a backfill.
type BackfillResult struct {
	Chunks []ChunkOutcome
}

// OK reports whether every chunk committed.
func (r *BackfillResult) OK() bool {
	for _, c := range r.Chunks {
		if c.Err != nil {
			return false
		}
	}
	return true
}

// Committed returns the number of days in committed chunks.
func (r *BackfillResult) Committed() int {
	n := 0
	for _, c := range r.Chunks {
		if c.Err == nil {
			n += c.Days
		}
	}
	return n
}

// BackfillRange rebuilds rollups for [start, end] from the review log. The
// range is processed in chunks of chunkDays, each in its own transaction; a
// failed chunk is rolled back and the next one is attempted. Atomicity is
// per chunk, not per range.
//
// For past days the host cannot say how many cards were due, so the due count
// is the number of distinct cards reviewed that day. Values are merged with
// existing rollups by maximum.
//
// y is called after every day; an error from it, or a cancelled ctx, rolls
// back the chunk in flight and stops the backfill with earlier chunks kept.
func (a *Aggregator) BackfillRange(ctx context.Context, start, end models.Date, chunkDays int, y progress.Yielder) (*BackfillResult, error) {
	if end.Before(start) {
		return nil, models.NewValidationError("range", fmt.Sprintf("end %s before start %s", end, start))
	}
	if chunkDays < 1 {
		return nil, models.NewValidationError("chunk_days", "must be positive")
	}
	y = progress.Or(y)

	total := end.DaysSince(start) + 1
	res := &BackfillResult{}
	done := 0
	var errs []error

	for from := start; !from.After(end); from = from.AddDays(chunkDays) {
		to := from.AddDays(chunkDays - 1)
		if to.After(end) {
			to = end
		}
		days := to.DaysSince(from) + 1

		err := a.store.RunInTx(ctx, func(ctx context.Context) error {
			for d := from; !d.After(to); d = d.AddDays(1) {
				if err := a.backfillDay(ctx, d); err != nil {
					return fmt.Errorf("day %s: %w", d, err)
				}
				if err := y.Yield(ctx, done+d.DaysSince(from)+1, total); err != nil {
					return err
				}
			}
			return nil
		})
		done += days
		res.Chunks = append(res.Chunks, ChunkOutcome{From: from, To: to, Days: days, Err: err})

		if err != nil {
			if stop := ctx.Err(); stop != nil || isCancel(err) {
				a.log.Info("backfill cancelled", "chunk_from", from, "chunk_to", to)
				return res, err
			}
			a.log.Warn("backfill chunk rolled back", "chunk_from", from, "chunk_to", to, "error", err)
			errs = append(errs, fmt.Errorf("chunk %s..%s: %w", from, to, err))
		}
	}

	a.log.Info("backfill finished", "from", start, "to", end, "committed_days", res.Committed(), "ok", res.OK())
	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", models.ErrTransientIngest, errors.Join(errs...))
	}
	return res, nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, progress.ErrCancelled)
}

func (a *Aggregator) backfillDay(ctx context.Context, d models.Date) error {
	loc := a.clock.Now().Location()
	from := d.Start(loc)
	reviews, err := a.host.Reviews(ctx, models.AllDecks, from, from.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}

	byDeck := summarize(reviews, d)
	ids := make([]int64, 0, len(byDeck))
	for id := range byDeck {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		s := byDeck[id]
		rollup := models.DailyRollup{
			Date:         d,
			DeckID:       id,
			CardsDue:     len(s.cards),
			CardsStudied: len(s.cards),
			StudyMinutes: int(s.total / time.Minute),
		}
		if err := a.store.Rollups.Merge(ctx, rollup); err != nil {
			return err
		}
		for _, act := range s.activity() {
			if err := a.store.Rollups.UpsertItemActivity(ctx, act); err != nil {
				return err
			}
		}
	}
	return nil
}
