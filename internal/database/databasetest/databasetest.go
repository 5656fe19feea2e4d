// Package databasetest opens throwaway stores for tests of other packages.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/pkg/models"
)

// Config returns storage settings rooted in a fresh temporary directory.
func Config(t testing.TB) config.StorageConfig {
	t.Helper()
	dir := t.TempDir()
	return config.StorageConfig{
		Path:             filepath.Join(dir, "learning_stats.db"),
		BackupDir:        filepath.Join(dir, "backups"),
		BackupCipher:     config.CipherXOR,
		SnapshotInterval: time.Minute,
	}
}

// NewStore opens a migrated store that is closed when the test ends.
func NewStore(t testing.TB) *database.Store {
	t.Helper()
	s, err := database.Open(context.Background(), Config(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Rollups writes rollups as given.
func Rollups(t testing.TB, s *database.Store, rows ...models.DailyRollup) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, s.Rollups.Upsert(context.Background(), r))
	}
}

// Day is a rollup for deckID on d that is a success when ok is true.
func Day(deckID int64, d models.Date, ok bool) models.DailyRollup {
	if ok {
		return models.DailyRollup{Date: d, DeckID: deckID, CardsDue: 4, CardsStudied: 4, StudyMinutes: 10}
	}
	return models.DailyRollup{Date: d, DeckID: deckID, CardsDue: 4, CardsStudied: 1, StudyMinutes: 2}
}
