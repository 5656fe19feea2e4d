package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/example/studytracker/pkg/models"
)

// wrap maps driver errors onto the error taxonomy. Failures of the medium
// trigger a best-effort snapshot; inside a transaction the snapshot is deferred
// until the transaction has finished, because the only connection is busy.
func (s *Store) wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", op, models.ErrIntegrity, err)
	}

	s.log.Error("storage failure", "op", op, "error", err)
	if inTx(ctx) {
		s.pendingSnapshot.Store(true)
	} else {
		s.snapshot(ctx)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorage, err)
}

func (s *Store) flushSnapshot(ctx context.Context) {
	if s.pendingSnapshot.CompareAndSwap(true, false) {
		s.snapshot(context.WithoutCancel(ctx))
	}
}

// snapshot writes a timestamped copy of the store into the backup directory,
// at most once per configured snapshot interval. Failures are only logged.
func (s *Store) snapshot(ctx context.Context) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	now := s.now()
	if !s.lastSnapshot.IsZero() && now.Sub(s.lastSnapshot) < s.cfg.SnapshotInterval {
		return
	}
	s.lastSnapshot = now

	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		s.log.Warn("snapshot directory unavailable", "dir", s.cfg.BackupDir, "error", err)
		return
	}
	target := filepath.Join(s.cfg.BackupDir, snapshotName(now))
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		s.log.Warn("snapshot failed", "target", target, "error", err)
		return
	}
	s.log.Info("snapshot written", "target", target)
}

// Snapshot forces an immediate snapshot regardless of the rate limit and
// returns its path.
func (s *Store) Snapshot(ctx context.Context) (string, error) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: %w: %w", models.ErrStorage, err)
	}
	now := s.now()
	target := filepath.Join(s.cfg.BackupDir, snapshotName(now))
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		return "", fmt.Errorf("snapshot: %w: %w", models.ErrStorage, err)
	}
	s.lastSnapshot = now
	return target, nil
}
