package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/studytracker/pkg/models"
)

// backupTables lists the tables replaced on import together with the columns
// copied, in dependency-free order.
var backupTables = []struct {
	name    string
	columns []string
}{
	{"daily_stats", []string{"date", "deck_id", "cards_due", "cards_studied", "study_time"}},
	{"level_progress", []string{"id", "deck_id", "current_level", "period_start", "last_updated"}},
	{"level_history", []string{"id", "deck_id", "change_type", "old_level", "new_level", "change_date"}},
	{"streak_records", []string{"id", "deck_id", "record", "date"}},
	{"validation_codes", []string{"id", "card_id", "deck_id", "date", "code", "correctness", "difficulty", "page_number", "chat_link", "card_title", "created_at"}},
	{"resource_links", []string{"card_id", "deck_id", "url", "title", "updated_at"}},
	{"item_activity", []string{"card_id", "deck_id", "date", "reviews", "study_seconds"}},
	{"settings", []string{"key", "value"}},
}

// ExportBackup writes a consistent copy of the whole store to path. With a
// passphrase the copy is protected with the configured cipher.
func (s *Store) ExportBackup(ctx context.Context, path, passphrase string) error {
	tmpDir, err := os.MkdirTemp("", "studytracker-export-*")
	if err != nil {
		return fmt.Errorf("export backup: %w: %w", models.ErrStorage, err)
	}
	defer os.RemoveAll(tmpDir)

	image := filepath.Join(tmpDir, "image.db")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", image); err != nil {
		return s.wrap(ctx, "export backup", err)
	}
	raw, err := os.ReadFile(image)
	if err != nil {
		return fmt.Errorf("export backup: %w: %w", models.ErrStorage, err)
	}
	data, err := encodeBackup(raw, passphrase, s.cfg.BackupCipher)
	if err != nil {
		return fmt.Errorf("export backup: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export backup: %w: %w", models.ErrStorage, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("export backup: %w: %w", models.ErrStorage, err)
	}
	s.log.Info("backup exported", "path", path, "protected", passphrase != "")
	return nil
}

// ImportBackup replaces the content of the store with the backup at path. The
// backup is migrated to the current schema first. The current store is
// snapshotted before anything is replaced; on failure nothing is replaced.
func (s *Store) ImportBackup(ctx context.Context, path, passphrase string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("import backup %s: %w", path, models.ErrNotFound)
		}
		return fmt.Errorf("import backup: %w: %w", models.ErrStorage, err)
	}
	raw, err := decodeBackup(data, passphrase)
	if err != nil {
		return fmt.Errorf("import backup: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "studytracker-import-*")
	if err != nil {
		return fmt.Errorf("import backup: %w: %w", models.ErrStorage, err)
	}
	defer os.RemoveAll(tmpDir)
	image := filepath.Join(tmpDir, "image.db")
	if err := os.WriteFile(image, raw, 0o600); err != nil {
		return fmt.Errorf("import backup: %w: %w", models.ErrStorage, err)
	}

	staged, err := openDB(ctx, image)
	if err != nil {
		return fmt.Errorf("import backup: %w: %w", models.ErrIntegrity, err)
	}
	if err := migrate(ctx, staged); err != nil {
		_ = staged.Close()
		return fmt.Errorf("import backup: %w: %w", models.ErrIntegrity, err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("import backup: %w: %w", models.ErrStorage, err)
	}

	if target, err := s.Snapshot(ctx); err != nil {
		s.log.Warn("pre-import snapshot failed", "error", err)
	} else {
		s.log.Info("pre-import snapshot written", "target", target)
	}

	if err := s.replaceFrom(ctx, image); err != nil {
		return s.wrap(ctx, "import backup", err)
	}
	s.log.Info("backup imported", "path", path)
	return nil
}

// replaceFrom copies every table of the attached image into the store in one
// transaction. ATTACH is not allowed inside a transaction, so the work runs on
// a dedicated connection; with a single pooled connection nothing else may
// touch s.db until it is released.
func (s *Store) replaceFrom(ctx context.Context, image string) (err error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS backup", image); err != nil {
		return err
	}
	defer func() {
		if _, detachErr := conn.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE backup"); detachErr != nil && err == nil {
			err = detachErr
		}
	}()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range backupTables {
		cols := strings.Join(t.columns, ", ")
		if _, err := tx.ExecContext(ctx, "DELETE FROM main."+t.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear %s: %w", t.name, err)
		}
		stmt := fmt.Sprintf("INSERT INTO main.%s (%s) SELECT %s FROM backup.%s", t.name, cols, cols, t.name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("copy %s: %w", t.name, err)
		}
	}
	return tx.Commit()
}
