package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/pkg/models"
)

func testConfig(t *testing.T) config.StorageConfig {
	t.Helper()
	dir := t.TempDir()
	return config.StorageConfig{
		Path:             filepath.Join(dir, "learning_stats.db"),
		BackupDir:        filepath.Join(dir, "backups"),
		BackupCipher:     config.CipherXOR,
		SnapshotInterval: time.Minute,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), testConfig(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(s string) models.Date { return models.MustParseDate(s) }

func at(s string) models.Timestamp {
	t, err := time.Parse(models.TimestampLayout, s)
	if err != nil {
		panic(err)
	}
	return models.NewTimestamp(t)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s, err := Open(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Settings.Set(ctx, models.SettingSelectedDeck, "7"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Settings.Get(ctx, models.SettingSelectedDeck)
	require.NoError(t, err)
	require.Equal(t, "7", v)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, st.SchemaVersion)
}

func TestOpen_UnwritableMedium(t *testing.T) {
	cfg := testConfig(t)
	cfg.Path = filepath.Join(t.TempDir(), "missing", "\x00bad", "stats.db")

	_, err := Open(context.Background(), cfg, logger.Nop())
	require.ErrorIs(t, err, models.ErrStorage)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	boom := errorString("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Rollups.Upsert(ctx, models.DailyRollup{Date: day("2024-03-01"), DeckID: 1, CardsDue: 3}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Rollups.Get(ctx, day("2024-03-01"), 1)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRunInTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Settings.Set(ctx, "k", "v")
		})
	})
	require.NoError(t, err)

	v, err := s.Settings.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestRunInTx_Panic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.Panics(t, func() {
		_ = s.RunInTx(ctx, func(ctx context.Context) error {
			_ = s.Settings.Set(ctx, "k", "v")
			panic("boom")
		})
	})

	_, err := s.Settings.Get(ctx, "k")
	require.ErrorIs(t, err, models.ErrNotFound)
}

type errorString string

func (e errorString) Error() string { return string(e) }
