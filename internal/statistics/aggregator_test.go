package statistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/database/databasetest"
	"github.com/example/studytracker/internal/host"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/internal/progress"
	"github.com/example/studytracker/pkg/models"
)

type fixture struct {
	store *database.Store
	host  *host.Memory
	clock *clock.Fixed
	agg   *Aggregator
}

func newFixture(t *testing.T, today string) *fixture {
	t.Helper()
	store := databasetest.NewStore(t)
	h := host.NewMemory()
	clk := clock.AtDate(models.MustParseDate(today))
	return &fixture{store: store, host: h, clock: clk, agg: NewAggregator(store, h, clk, logger.Nop())}
}

func review(card string, deck int64, d string, hour int, dur time.Duration) host.Review {
	return host.Review{
		CardID:   card,
		DeckID:   deck,
		At:       models.MustParseDate(d).Start(time.UTC).Add(time.Duration(hour) * time.Hour),
		Duration: dur,
	}
}

func TestCollectToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-03-10")
	f.host.AddDeck(1, "Biology")
	f.host.AddDeck(2, "History")
	f.host.SetDue(1, 3)
	f.host.AddReview(review("a", 1, "2024-03-10", 8, 90*time.Second))
	f.host.AddReview(review("a", 1, "2024-03-10", 9, 60*time.Second))
	f.host.AddReview(review("b", 1, "2024-03-10", 9, 45*time.Second))
	f.host.AddReview(review("c", 1, "2024-03-09", 9, time.Hour))

	res, err := f.agg.CollectToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.Collected)

	r, err := f.store.Rollups.Get(ctx, models.MustParseDate("2024-03-10"), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, r.CardsDue)
	assert.Equal(t, 2, r.CardsStudied)
	assert.Equal(t, 3, r.StudyMinutes)

	activity, err := f.store.Rollups.ItemActivityRange(ctx, 1, models.MustParseDate("2024-03-10"), models.MustParseDate("2024-03-10"))
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "a", activity[0].CardID)
	assert.Equal(t, 2, activity[0].Reviews)
	assert.Equal(t, 150, activity[0].StudySeconds)
}

func TestCollectToday_NeverLowersRecordedValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-03-10")
	f.host.AddDeck(1, "Biology")
	f.host.SetDue(1, 20)
	f.host.AddReview(review("a", 1, "2024-03-10", 8, time.Minute))

	_, err := f.agg.CollectToday(ctx)
	require.NoError(t, err)

	f.host.SetDue(1, 4)
	f.host.AddReview(review("b", 1, "2024-03-10", 10, time.Minute))
	_, err = f.agg.CollectToday(ctx)
	require.NoError(t, err)

	r, err := f.store.Rollups.Get(ctx, models.MustParseDate("2024-03-10"), 1)
	require.NoError(t, err)
	assert.Equal(t, 20, r.CardsDue)
	assert.Equal(t, 2, r.CardsStudied)
}

func TestCollectToday_IsolatesFailingDeck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-03-10")
	f.host.AddDeck(1, "Broken")
	f.host.AddDeck(2, "Fine")
	f.host.SetDue(2, 1)
	f.host.FailDeck = func(deckID int64) error {
		if deckID == 1 {
			return errors.New("deck is locked")
		}
		return nil
	}

	res, err := f.agg.CollectToday(ctx)
	require.ErrorIs(t, err, models.ErrTransientIngest)
	assert.Equal(t, []int64{2}, res.Collected)
	assert.Contains(t, res.Failed, int64(1))

	_, err = f.store.Rollups.Get(ctx, models.MustParseDate("2024-03-10"), 2)
	require.NoError(t, err)
}

func TestBackfillRange_ChunkFailureRollsBackOnlyThatChunk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-06-30")
	day1 := models.MustParseDate("2024-01-01")
	f.host.AddDeck(1, "Biology")
	for i := 0; i < 95; i++ {
		f.host.AddReview(review("card", 1, day1.AddDays(i).String(), 10, 2*time.Minute))
	}
	broken := day1.AddDays(46) // day 47
	f.host.FailReviews = func(_ int64, from, _ time.Time) error {
		if models.DateOf(from).Equal(broken) {
			return errors.New("review log unreadable")
		}
		return nil
	}

	res, err := f.agg.BackfillRange(ctx, day1, day1.AddDays(94), 30, nil)
	require.ErrorIs(t, err, models.ErrTransientIngest)
	require.NotNil(t, res)
	assert.False(t, res.OK())
	require.Len(t, res.Chunks, 4)
	assert.NoError(t, res.Chunks[0].Err)
	assert.Error(t, res.Chunks[1].Err)
	assert.NoError(t, res.Chunks[2].Err)
	assert.NoError(t, res.Chunks[3].Err)
	assert.Equal(t, 65, res.Committed())

	rows, err := f.store.Rollups.Range(ctx, 1, day1, day1.AddDays(94))
	require.NoError(t, err)
	require.Len(t, rows, 65)
	for _, r := range rows {
		n := r.Date.DaysSince(day1) + 1
		assert.False(t, n >= 31 && n <= 60, "day %d should have been rolled back", n)
		assert.Equal(t, 1, r.CardsDue)
		assert.Equal(t, 1, r.CardsStudied)
		assert.Equal(t, 2, r.StudyMinutes)
	}
}

func TestBackfillRange_MergesWithExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-06-30")
	d := models.MustParseDate("2024-02-01")
	require.NoError(t, f.store.Rollups.Upsert(ctx, models.DailyRollup{Date: d, DeckID: 1, CardsDue: 10, CardsStudied: 1, StudyMinutes: 30}))
	f.host.AddReview(review("a", 1, "2024-02-01", 10, time.Minute))
	f.host.AddReview(review("b", 1, "2024-02-01", 11, time.Minute))

	res, err := f.agg.BackfillRange(ctx, d, d, 30, nil)
	require.NoError(t, err)
	assert.True(t, res.OK())

	r, err := f.store.Rollups.Get(ctx, d, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, r.CardsDue)
	assert.Equal(t, 2, r.CardsStudied)
	assert.Equal(t, 30, r.StudyMinutes)
}

func TestBackfillRange_CancelKeepsCommittedChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-06-30")
	start := models.MustParseDate("2024-01-01")
	for i := 0; i < 10; i++ {
		f.host.AddReview(review("card", 1, start.AddDays(i).String(), 10, time.Minute))
	}

	y := progress.Func(func(_ context.Context, done, _ int) error {
		if done == 7 {
			return progress.ErrCancelled
		}
		return nil
	})
	res, err := f.agg.BackfillRange(ctx, start, start.AddDays(9), 5, y)
	require.ErrorIs(t, err, progress.ErrCancelled)
	require.Len(t, res.Chunks, 2)

	rows, err := f.store.Rollups.Range(ctx, 1, start, start.AddDays(9))
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestBackfillRange_Validation(t *testing.T) {
	f := newFixture(t, "2024-06-30")
	d := models.MustParseDate("2024-02-01")

	_, err := f.agg.BackfillRange(context.Background(), d, d.AddDays(-1), 30, nil)
	require.ErrorIs(t, err, models.ErrValidation)
	_, err = f.agg.BackfillRange(context.Background(), d, d, 0, nil)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestDayStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-06-30")
	d := models.MustParseDate("2024-02-01")

	empty, err := f.agg.DayStats(ctx, 1, d)
	require.NoError(t, err)
	assert.False(t, empty.Recorded)
	assert.Equal(t, 100.0, empty.SuccessRate)

	require.NoError(t, f.store.Rollups.Upsert(ctx, models.DailyRollup{Date: d, DeckID: 1, CardsDue: 8, CardsStudied: 2, StudyMinutes: 4}))
	got, err := f.agg.DayStats(ctx, 1, d)
	require.NoError(t, err)
	assert.True(t, got.Recorded)
	assert.Equal(t, 25.0, got.SuccessRate)
}
