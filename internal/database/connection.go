package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/pkg/models"
)

// Store is the embedded database handle. It is owned by a single writer; the
// connection pool is limited to one connection.
type Store struct {
	db  *sqlx.DB
	cfg config.StorageConfig
	log *logger.Logger
	now func() time.Time

	snapshotMu      sync.Mutex
	lastSnapshot    time.Time
	pendingSnapshot atomic.Bool

	Rollups  *DailyStatsRepository
	Levels   *LevelRepository
	History  *HistoryRepository
	Streaks  *StreakRepository
	Codes    *ValidationCodeRepository
	Links    *ResourceLinkRepository
	Settings *SettingsRepository
}

// Open creates the storage file and schema if absent and applies pending
// migrations. When the medium cannot be opened or migrated a raw copy of the
// existing file is attempted before the error is returned.
func Open(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{cfg: cfg, log: log.With("component", "store"), now: time.Now}

	db, err := openDB(ctx, cfg.Path)
	if err != nil {
		s.copyFileSnapshot()
		return nil, fmt.Errorf("open store %s: %w: %w", cfg.Path, models.ErrStorage, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		s.copyFileSnapshot()
		return nil, fmt.Errorf("migrate store %s: %w: %w", cfg.Path, models.ErrStorage, err)
	}
	s.db = db

	s.Rollups = &DailyStatsRepository{s: s}
	s.Levels = &LevelRepository{s: s}
	s.History = &HistoryRepository{s: s}
	s.Streaks = &StreakRepository{s: s}
	s.Codes = &ValidationCodeRepository{s: s}
	s.Links = &ResourceLinkRepository{s: s}
	s.Settings = &SettingsRepository{s: s}

	s.log.Debug("store opened", "path", cfg.Path)
	return s, nil
}

func openDB(ctx context.Context, path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return s.cfg.Path
}

// copyFileSnapshot copies the raw store file into the backup directory. Used
// when the database could not be opened at all.
func (s *Store) copyFileSnapshot() {
	src, err := os.Open(s.cfg.Path)
	if err != nil {
		return
	}
	defer src.Close()

	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		s.log.Warn("snapshot directory unavailable", "dir", s.cfg.BackupDir, "error", err)
		return
	}
	target := filepath.Join(s.cfg.BackupDir, snapshotName(s.now()))
	dst, err := os.Create(target)
	if err != nil {
		s.log.Warn("snapshot failed", "target", target, "error", err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		s.log.Warn("snapshot failed", "target", target, "error", err)
		return
	}
	s.log.Info("raw snapshot written", "target", target)
}

func snapshotName(t time.Time) string {
	return fmt.Sprintf("study_tracker_backup_%d.db", t.UnixNano())
}
