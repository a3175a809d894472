package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSetting returns the value stored under key and whether it exists.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	db, err := r.store.DB()
	if err != nil {
		return "", false, err
	}
	return getSetting(ctx, db, key)
}

// SetSetting stores value under key, replacing any previous value.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", ErrInvalidQuery)
	}
	db, err := r.store.DB()
	if err != nil {
		return err
	}
	return setSetting(ctx, db, key, value)
}

func getSetting(ctx context.Context, q Querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

func setSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}
