package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/pkg/models"
)

func TestDailyStats_MergeIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := day("2024-05-10")

	writes := []models.DailyRollup{
		{Date: d, DeckID: 3, CardsDue: 10, CardsStudied: 4, StudyMinutes: 12},
		{Date: d, DeckID: 3, CardsDue: 8, CardsStudied: 6, StudyMinutes: 5},
		{Date: d, DeckID: 3, CardsDue: 0, CardsStudied: 0, StudyMinutes: 0},
	}
	for _, w := range writes {
		require.NoError(t, s.Rollups.Merge(ctx, w))
	}

	got, err := s.Rollups.Get(ctx, d, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, got.CardsDue)
	assert.Equal(t, 6, got.CardsStudied)
	assert.Equal(t, 12, got.StudyMinutes)
}

func TestDailyStats_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := day("2024-05-10")

	require.NoError(t, s.Rollups.Upsert(ctx, models.DailyRollup{Date: d, DeckID: 1, CardsDue: 10, CardsStudied: 9}))
	require.NoError(t, s.Rollups.Upsert(ctx, models.DailyRollup{Date: d, DeckID: 1, CardsDue: 2, CardsStudied: 1}))

	got, err := s.Rollups.Get(ctx, d, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CardsDue)
	assert.Equal(t, 1, got.CardsStudied)
}

func TestDailyStats_AllDecksAggregates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rows := []models.DailyRollup{
		{Date: day("2024-01-01"), DeckID: 1, CardsDue: 5, CardsStudied: 5, StudyMinutes: 3},
		{Date: day("2024-01-01"), DeckID: 2, CardsDue: 4, CardsStudied: 1, StudyMinutes: 2},
		{Date: day("2024-01-02"), DeckID: 2, CardsDue: 1, CardsStudied: 1, StudyMinutes: 1},
		{Date: day("2024-01-03"), DeckID: 0, CardsDue: 7, CardsStudied: 7, StudyMinutes: 9},
	}
	for _, r := range rows {
		require.NoError(t, s.Rollups.Upsert(ctx, r))
	}

	got, err := s.Rollups.Range(ctx, models.AllDecks, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, models.DailyRollup{Date: day("2024-01-01"), DeckID: 0, CardsDue: 9, CardsStudied: 6, StudyMinutes: 5}, got[0])
	assert.Equal(t, 1, got[1].CardsDue)
	assert.Equal(t, 7, got[2].CardsStudied)

	decks, err := s.Rollups.Decks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, decks)
}

func TestLevels_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Levels.Get(ctx, 4)
	require.ErrorIs(t, err, models.ErrNotFound)

	p := &models.LevelProgress{DeckID: 4, Level: 1, PeriodStart: day("2024-02-01"), LastUpdated: at("2024-02-01 10:00:00")}
	require.NoError(t, s.Levels.Save(ctx, p))
	id := p.ID
	require.NotZero(t, id)

	p.Level = 3
	p.PeriodStart = day("2024-02-08")
	require.NoError(t, s.Levels.Save(ctx, p))
	assert.Equal(t, id, p.ID)

	got, err := s.Levels.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, "2024-02-08", got.PeriodStart.String())
	assert.Equal(t, "2024-02-01 10:00:00", got.LastUpdated.String())

	err = s.Levels.Save(ctx, &models.LevelProgress{DeckID: 4, Level: 0, PeriodStart: day("2024-02-08")})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestHistory_AppendIsIdempotentPerDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := &models.LevelHistoryEvent{DeckID: 2, Kind: models.KindPeriodOpened, OldLevel: 1, NewLevel: 1, OccurredAt: at("2024-03-03 08:00:00")}
	inserted, err := s.History.Append(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, e.ID)

	again := &models.LevelHistoryEvent{DeckID: 2, Kind: models.KindPeriodOpened, OldLevel: 1, NewLevel: 1, OccurredAt: at("2024-03-03 21:00:00")}
	inserted, err = s.History.Append(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	other := &models.LevelHistoryEvent{DeckID: 3, Kind: models.KindPeriodOpened, OldLevel: 1, NewLevel: 1, OccurredAt: at("2024-03-03 21:00:00")}
	inserted, err = s.History.Append(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)

	_, err = s.History.Append(ctx, &models.LevelHistoryEvent{DeckID: 2, Kind: "bogus", OccurredAt: at("2024-03-03 21:00:00")})
	require.ErrorIs(t, err, models.ErrValidation)

	events, err := s.History.List(ctx, HistoryFilter{DeckID: 2})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.KindPeriodOpened, events[0].Kind)
}

func TestHistory_HasTransitionSince(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.History.Append(ctx, &models.LevelHistoryEvent{DeckID: 1, Kind: models.KindLevelUp, OldLevel: 1, NewLevel: 2, OccurredAt: at("2024-03-05 10:00:00")})
	require.NoError(t, err)

	found, err := s.History.HasTransitionSince(ctx, 1, models.PeriodTransitionKinds, day("2024-03-01"))
	require.NoError(t, err)
	assert.False(t, found, "level_up is not a period transition")

	_, err = s.History.Append(ctx, &models.LevelHistoryEvent{DeckID: 1, Kind: models.KindPeriodResetEarly, OldLevel: 2, NewLevel: 2, OccurredAt: at("2024-03-05 10:00:00")})
	require.NoError(t, err)

	found, err = s.History.HasTransitionSince(ctx, 1, models.PeriodTransitionKinds, day("2024-03-05"))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.History.HasTransitionSince(ctx, 1, models.PeriodTransitionKinds, day("2024-03-06"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHistory_Deduplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, ts := range []string{"2024-04-01 09:00:00", "2024-04-01 10:00:00", "2024-04-01 11:00:00"} {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO level_history (deck_id, change_type, old_level, new_level, change_date) VALUES (1, 'level_up', 1, 2, ?)`, ts)
		require.NoError(t, err)
	}
	_, err := s.History.Append(ctx, &models.LevelHistoryEvent{DeckID: 1, Kind: models.KindManual, OldLevel: 2, NewLevel: 5, OccurredAt: at("2024-04-01 12:00:00")})
	require.NoError(t, err)
	_, err = s.History.Append(ctx, &models.LevelHistoryEvent{DeckID: 1, Kind: models.KindManual, OldLevel: 5, NewLevel: 2, OccurredAt: at("2024-04-01 12:30:00")})
	require.NoError(t, err)

	removed, err := s.History.Deduplicate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	events, err := s.History.List(ctx, HistoryFilter{DeckID: 1})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "2024-04-01 09:00:00", events[0].OccurredAt.String())
}

func TestStreaks_Ratchet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Streaks.Best(ctx, 0)
	require.ErrorIs(t, err, models.ErrNotFound)

	steps := []struct {
		value int
		want  bool
	}{
		{5, true}, {3, false}, {5, false}, {8, true}, {0, false},
	}
	for _, st := range steps {
		ok, err := s.Streaks.Record(ctx, 0, st.value, day("2024-06-01"))
		require.NoError(t, err)
		assert.Equal(t, st.want, ok, "value %d", st.value)
	}

	best, err := s.Streaks.Best(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, best.Value)

	_, err = s.Streaks.Best(ctx, 1)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestValidationCodes_UpsertUpdatesAuxiliaryFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := &models.ValidationCodeEntry{
		CardID: "42", DeckID: 5, Date: day("2024-01-15"), Code: "9505", Correctness: 95, Difficulty: 5,
		CreatedAt: at("2024-01-15 10:00:00"),
	}
	require.NoError(t, s.Codes.Upsert(ctx, e))
	firstID := e.ID

	again := *e
	again.ID = 0
	again.Title = sql.NullString{String: "Photosynthesis", Valid: true}
	again.Link = sql.NullString{String: "https://example.org/chat/1", Valid: true}
	require.NoError(t, s.Codes.Upsert(ctx, &again))
	assert.Equal(t, firstID, again.ID)

	entries, err := s.Codes.ListForCard(ctx, "42")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Photosynthesis", entries[0].Title.String)
	assert.Equal(t, "https://example.org/chat/1", entries[0].Link.String)

	title, err := s.Codes.LatestTitle(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", title)

	n, err := s.Codes.DeleteForCard(ctx, "42")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestValidationCodes_LinkFallbackAndPlaceholderTitles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Codes.Upsert(ctx, &models.ValidationCodeEntry{
		CardID: "7", DeckID: 1, Date: day("2024-01-02"), Code: "5003",
		Title:     sql.NullString{String: models.ArchivedTitlePrefix + " (...0007)", Valid: true},
		CreatedAt: at("2024-01-02 10:00:00"),
	}))
	require.NoError(t, s.Links.Upsert(ctx, models.ResourceLink{
		CardID: "7", DeckID: 1, URL: "https://example.org/r/7", UpdatedAt: at("2024-01-02 10:00:00"),
	}))

	entries, err := s.Codes.ListRange(ctx, models.AllDecks, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.org/r/7", entries[0].Link.String)

	_, err = s.Codes.LatestTitle(ctx, "7")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.Codes.FillTitle(ctx, "7", "Cell division"))
	title, err := s.Codes.LatestTitle(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Cell division", title)

	empty, err := s.Codes.ListRange(ctx, 2, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReassignCard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Codes.Upsert(ctx, &models.ValidationCodeEntry{CardID: "c1", DeckID: 5, Date: day("2024-01-02"), Code: "8002", CreatedAt: at("2024-01-02 10:00:00")}))
	require.NoError(t, s.Links.Upsert(ctx, models.ResourceLink{CardID: "c1", DeckID: 5, URL: "u", UpdatedAt: at("2024-01-02 10:00:00")}))
	require.NoError(t, s.Rollups.UpsertItemActivity(ctx, models.ItemActivity{CardID: "c1", DeckID: 5, Date: day("2024-01-02"), Reviews: 2}))

	decks, err := s.CardDecks(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, decks)

	changed, err := s.ReassignCard(ctx, "c1", 9)
	require.NoError(t, err)
	assert.EqualValues(t, 3, changed)

	decks, err = s.CardDecks(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, decks)

	changed, err = s.ReassignCard(ctx, "c1", 9)
	require.NoError(t, err)
	assert.Zero(t, changed)

	cards, err := s.KnownCards(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, cards)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Settings.Int64(ctx, models.SettingSelectedDeck, 11)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)

	require.NoError(t, s.Settings.SetDate(ctx, models.SettingInstallationDate, day("2023-12-24")))
	d, err := s.Settings.Date(ctx, models.SettingInstallationDate)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-24", d.String())

	require.NoError(t, s.Settings.Set(ctx, models.SettingSelectedDeck, "abc"))
	_, err = s.Settings.Int64(ctx, models.SettingSelectedDeck, 0)
	require.ErrorIs(t, err, models.ErrIntegrity)
}
