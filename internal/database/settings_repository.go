package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/example/studytracker/pkg/models"
)

// SettingsRepository is the process-wide key/value store.
type SettingsRepository struct {
	s *Store
}

// Get returns the value of key or ErrNotFound.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := sqlx.GetContext(ctx, r.s.q(ctx), &value, `SELECT COALESCE(value, '') FROM settings WHERE key = ?`, key)
	if err != nil {
		return "", r.s.wrap(ctx, "get setting "+key, err)
	}
	return value, nil
}

// Set stores value under key.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.s.q(ctx).ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return r.s.wrap(ctx, "set setting "+key, err)
}

// Int64 returns the integer value of key, or def when the key is absent.
func (r *SettingsRepository) Int64(ctx context.Context, key string, def int64) (int64, error) {
	v, err := r.Get(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("setting %s: %w: %w", key, models.ErrIntegrity, err)
	}
	return n, nil
}

// Date returns the date value of key, or ErrNotFound.
func (r *SettingsRepository) Date(ctx context.Context, key string) (models.Date, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return models.Date{}, err
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return models.Date{}, fmt.Errorf("setting %s: %w: %w", key, models.ErrIntegrity, err)
	}
	return d, nil
}

// SetDate stores a date under key.
func (r *SettingsRepository) SetDate(ctx context.Context, key string, d models.Date) error {
	return r.Set(ctx, key, d.String())
}
