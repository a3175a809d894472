package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// SchemaVersion is the version recorded after all migrations ran.
const SchemaVersion = 3

// schemaBase creates the tables of the first release. Every statement is idempotent.
const schemaBase = `
CREATE TABLE IF NOT EXISTS games (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL UNIQUE,
    timestamp INTEGER NOT NULL,
    mission_id TEXT NOT NULL,
    mission_name TEXT NOT NULL,
    difficulty INTEGER NOT NULL,
    modifier TEXT NOT NULL DEFAULT '',
    result TEXT NOT NULL DEFAULT 'unknown',
    duration_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_games_timestamp ON games(timestamp);

CREATE TABLE IF NOT EXISTS players (
    id TEXT PRIMARY KEY,
    is_bot INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS roster (
    game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    player_id TEXT NOT NULL REFERENCES players(id),
    slot INTEGER NOT NULL DEFAULT -1,
    name TEXT NOT NULL,
    quitter INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (game_id, player_id)
);

CREATE TABLE IF NOT EXISTS properties (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    group_id TEXT NOT NULL,
    group_name TEXT NOT NULL,
    sort_direction TEXT NOT NULL DEFAULT 'DESC',
    is_summary INTEGER NOT NULL DEFAULT 0,
    parent_id TEXT,
    child_ids TEXT,
    row_order INTEGER NOT NULL DEFAULT 0,
    visible INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS scores (
    game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    player_id TEXT NOT NULL,
    property_id TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (game_id, player_id, property_id)
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT
);
`

// migration is a forward-only, additive schema change.
type migration struct {
	version    int
	statements []string
}

// migrations run in order on databases older than their version. A statement that
// fails (for example a column that already exists) is skipped.
var migrations = []migration{
	{
		// v2: player customization
		version: 2,
		statements: []string{
			`ALTER TABLE players ADD COLUMN custom_name TEXT`,
			`ALTER TABLE players ADD COLUMN color TEXT`,
			`ALTER TABLE players ADD COLUMN is_main INTEGER NOT NULL DEFAULT 0`,
		},
	},
	{
		// v3: plugin ownership and read-path indexes
		version: 3,
		statements: []string{
			`ALTER TABLE properties ADD COLUMN plugin_id TEXT`,
			`CREATE INDEX IF NOT EXISTS idx_scores_property ON scores(property_id)`,
			`CREATE INDEX IF NOT EXISTS idx_roster_player ON roster(player_id)`,
		},
	},
}

// ensureSchema creates missing tables and applies pending migrations.
func ensureSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, schemaBase); err != nil {
		return fmt.Errorf("applying base schema: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				logger.Debug("migration_statement_skipped", "version", m.version, "err", err)
			}
		}
	}

	if current < SchemaVersion {
		_, err = db.ExecContext(ctx,
			`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		if err != nil {
			return fmt.Errorf("saving schema version: %w", err)
		}
	}
	return nil
}

// schemaVersion returns the recorded schema version, 0 when none was recorded.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx,
		`SELECT CAST(value AS INTEGER) FROM metadata WHERE key = 'schema_version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
