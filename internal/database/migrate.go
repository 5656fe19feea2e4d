package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// goMigrations are the schema changes SQLite cannot express as plain ALTER
// statements. Each rebuilds a table through a temporary copy.
var goMigrations = []*goose.Migration{
	goose.NewGoMigration(2, &goose.GoFunc{RunTx: rebuildValidationCodes}, nil),
	goose.NewGoMigration(3, &goose.GoFunc{RunTx: rebuildLevelProgress}, nil),
}

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}
	return goose.NewProvider(goose.DialectSQLite3, db, sub,
		goose.WithGoMigrations(goMigrations...),
		goose.WithDisableGlobalRegistry(true),
	)
}

// migrate applies every pending migration in version order.
func migrate(ctx context.Context, db *sqlx.DB) error {
	provider, err := newMigrationProvider(db.DB)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// tableColumns returns the column names of table.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func columnOr(cols map[string]bool, name, fallback string) string {
	if cols[name] {
		return name
	}
	return fallback
}

// rebuildValidationCodes keys codes by card, relaxes chat_link to nullable and
// adds the parsed code components and cached title.
func rebuildValidationCodes(ctx context.Context, tx *sql.Tx) error {
	cols, err := tableColumns(ctx, tx, "validation_codes")
	if err != nil {
		return fmt.Errorf("inspect validation_codes: %w", err)
	}

	link := "NULLIF(" + columnOr(cols, "chat_link", "''") + ", '')"
	page := "COALESCE(" + columnOr(cols, "page_number", "0") + ", 0)"
	deck := "COALESCE(" + columnOr(cols, "deck_id", "0") + ", 0)"
	created := "COALESCE(" + columnOr(cols, "created_at", "NULL") + ", CURRENT_TIMESTAMP)"

	stmts := []string{
		`CREATE TEMPORARY TABLE validation_codes_backup AS SELECT * FROM validation_codes`,
		`DROP TABLE validation_codes`,
		`CREATE TABLE validation_codes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id TEXT NOT NULL,
			deck_id INTEGER NOT NULL DEFAULT 0,
			date TEXT NOT NULL,
			code TEXT NOT NULL,
			correctness INTEGER NOT NULL DEFAULT 0,
			difficulty INTEGER NOT NULL DEFAULT 0,
			page_number INTEGER NOT NULL DEFAULT 0,
			chat_link TEXT,
			card_title TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (card_id, date, code)
		)`,
		`INSERT OR IGNORE INTO validation_codes
			(id, card_id, deck_id, date, code, correctness, difficulty, page_number, chat_link, created_at)
		SELECT id, 'legacy-' || id, ` + deck + `,
			COALESCE(date, substr(` + created + `, 1, 10)),
			COALESCE(code, ''),
			CASE WHEN code GLOB '[0-9][0-9][0-9][0-9]' THEN CAST(substr(code, 1, 2) AS INTEGER) ELSE 0 END,
			CASE WHEN code GLOB '[0-9][0-9][0-9][0-9]' THEN MIN(CAST(substr(code, 3, 2) AS INTEGER), 10) ELSE 0 END,
			` + page + `, ` + link + `, ` + created + `
		FROM validation_codes_backup`,
		`DROP TABLE validation_codes_backup`,
		`CREATE INDEX IF NOT EXISTS idx_validation_codes_card ON validation_codes(card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_codes_deck_date ON validation_codes(deck_id, date)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild validation_codes: %w", err)
		}
	}
	return nil
}

// rebuildLevelProgress turns the single legacy progress row into one row per
// deck. The most recently updated legacy row becomes the aggregate deck 0.
func rebuildLevelProgress(ctx context.Context, tx *sql.Tx) error {
	cols, err := tableColumns(ctx, tx, "level_progress")
	if err != nil {
		return fmt.Errorf("inspect level_progress: %w", err)
	}

	updated := "COALESCE(" + columnOr(cols, "last_updated", "NULL") + ", datetime('now', 'localtime'))"
	start := "COALESCE(" + columnOr(cols, "level_start_date", "NULL") + ", substr(" + updated + ", 1, 10))"
	level := "MAX(COALESCE(" + columnOr(cols, "current_level", "1") + ", 1), 1)"

	stmts := []string{
		`CREATE TEMPORARY TABLE level_progress_backup AS SELECT * FROM level_progress`,
		`DROP TABLE level_progress`,
		`CREATE TABLE level_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			deck_id INTEGER NOT NULL UNIQUE,
			current_level INTEGER NOT NULL DEFAULT 1 CHECK (current_level >= 1),
			period_start TEXT NOT NULL,
			last_updated TEXT NOT NULL
		)`,
		`INSERT INTO level_progress (deck_id, current_level, period_start, last_updated)
		SELECT 0, ` + level + `, ` + start + `, ` + updated + `
		FROM level_progress_backup
		ORDER BY ` + updated + ` DESC
		LIMIT 1`,
		`DROP TABLE level_progress_backup`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild level_progress: %w", err)
		}
	}
	return nil
}
