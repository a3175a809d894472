package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ccollicutt/matchlog/pkg/parser"
)

// Defaults applied by EnsureMainPlayer.
const (
	MainPlayerLabel = "Me"
	MainPlayerColor = "#4e79a7"
)

// settingCustomized is set once any player was customized, manually or on first run.
const settingCustomized = "players.customized"

// Player is a participant with customization and activity summary.
type Player struct {
	ID         string `json:"id"`
	IsBot      bool   `json:"is_bot"`
	Name       string `json:"name"`
	CustomName string `json:"custom_name,omitempty"`
	Color      string `json:"color,omitempty"`
	IsMain     bool   `json:"is_main"`
	Games      int    `json:"games"`
}

// GetPlayers lists every known participant, main player first, then by games played.
func (r *Repository) GetPlayers(ctx context.Context) ([]Player, error) {
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT p.id, p.is_bot, COALESCE(p.custom_name, ''), COALESCE(p.color, ''), p.is_main,
		       (SELECT COUNT(*) FROM roster r WHERE r.player_id = p.id) AS games,
		       COALESCE((SELECT r.name FROM roster r JOIN games g ON g.id = r.game_id
		                 WHERE r.player_id = p.id AND r.name <> ?
		                 ORDER BY g.timestamp DESC, g.id DESC LIMIT 1), ?) AS name
		FROM players p
		ORDER BY p.is_main DESC, games DESC, p.id`, parser.UnknownName, parser.UnknownName)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	players := []Player{}
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.IsBot, &p.CustomName, &p.Color, &p.IsMain, &p.Games, &p.Name); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// SetPlayerCustomization sets the display label and color of a player.
func (r *Repository) SetPlayerCustomization(ctx context.Context, id, name, color string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE players SET custom_name = ?, color = ? WHERE id = ?`, nullString(name), nullString(color), id)
		if err != nil {
			return fmt.Errorf("customizing player: %w", err)
		}
		if err := requireRow(res, id); err != nil {
			return err
		}
		return setSetting(ctx, tx, settingCustomized, "true")
	})
}

// ClearPlayerCustomization removes the label and color of a player.
func (r *Repository) ClearPlayerCustomization(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE players SET custom_name = NULL, color = NULL WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("clearing player: %w", err)
		}
		return requireRow(res, id)
	})
}

// SetMainPlayer designates id as the main player. The previous holder is cleared
// in the same transaction so at most one player is main.
func (r *Repository) SetMainPlayer(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := setMain(ctx, tx, id); err != nil {
			return err
		}
		return setSetting(ctx, tx, settingCustomized, "true")
	})
}

// EnsureMainPlayer designates the non-bot player with the most matches as main,
// labelled "Me", on first run. It does nothing once any player was customized and
// returns the chosen id and whether a player was designated.
func (r *Repository) EnsureMainPlayer(ctx context.Context) (string, bool, error) {
	var (
		chosen string
		done   bool
	)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, customized, err := getSetting(ctx, tx, settingCustomized); err != nil || customized {
			return err
		}

		var touched int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM players WHERE is_main = 1 OR custom_name IS NOT NULL OR color IS NOT NULL`,
		).Scan(&touched); err != nil {
			return fmt.Errorf("checking customization: %w", err)
		}
		if touched > 0 {
			return nil
		}

		err := tx.QueryRowContext(ctx, `
			SELECT r.player_id FROM roster r JOIN players p ON p.id = r.player_id
			WHERE p.is_bot = 0
			GROUP BY r.player_id
			ORDER BY COUNT(*) DESC, r.player_id
			LIMIT 1`).Scan(&chosen)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("choosing main player: %w", err)
		}

		if err := setMain(ctx, tx, chosen); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE players SET custom_name = ?, color = ? WHERE id = ?`,
			MainPlayerLabel, MainPlayerColor, chosen); err != nil {
			return fmt.Errorf("labelling main player: %w", err)
		}
		done = true
		return setSetting(ctx, tx, settingCustomized, "true")
	})
	if err != nil || !done {
		return "", false, err
	}
	return chosen, true, nil
}

func setMain(ctx context.Context, tx *sql.Tx, id string) error {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM players WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("looking up player: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET is_main = 0 WHERE is_main = 1`); err != nil {
		return fmt.Errorf("clearing main player: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET is_main = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("setting main player: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
