package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ccollicutt/matchlog/pkg/parser"
)

// Rows per multi-row statement for the narrow tables.
const (
	playerChunkSize   = 200
	propertyChunkSize = 100
)

// InsertGame stores m in its own transaction.
func (r *Repository) InsertGame(ctx context.Context, m *parser.Match) (int64, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	id, err := r.insertMatch(ctx, tx, m)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing %s: %w", m.Filename, err)
	}
	return id, nil
}

// InsertGameTx stores m inside the caller's transaction. The insert runs under a
// savepoint; on failure only this match is rolled back and tx stays usable.
func (r *Repository) InsertGameTx(ctx context.Context, tx *sql.Tx, m *parser.Match) (id int64, err error) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT insert_game`); err != nil {
		return 0, fmt.Errorf("opening savepoint: %w", err)
	}
	defer func() {
		if err != nil {
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO insert_game`); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rolling back savepoint: %w", rbErr))
			}
		}
		if _, relErr := tx.ExecContext(ctx, `RELEASE insert_game`); relErr != nil && err == nil {
			err = fmt.Errorf("releasing savepoint: %w", relErr)
		}
	}()
	return r.insertMatch(ctx, tx, m)
}

func (r *Repository) insertMatch(ctx context.Context, q Querier, m *parser.Match) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO games (filename, timestamp, mission_id, mission_name, difficulty, modifier, result, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Filename, m.Timestamp, m.MissionID, m.MissionName, m.Difficulty, m.Modifier,
		string(m.Result), m.DurationSeconds)
	if err != nil {
		if isConstraint(err) {
			return 0, fmt.Errorf("%w: %s", ErrInsertConflict, m.Filename)
		}
		return 0, fmt.Errorf("inserting game %s: %w", m.Filename, err)
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading game id: %w", err)
	}

	players := make([][]any, 0, len(m.Roster))
	roster := make([][]any, 0, len(m.Roster))
	for _, e := range m.Roster {
		players = append(players, []any{e.PlayerID, boolInt(e.IsBot)})
		roster = append(roster, []any{gameID, e.PlayerID, e.Slot, e.Name, boolInt(e.Quitter)})
	}
	if err := insertRows(ctx, q, `INSERT OR IGNORE INTO players (id, is_bot)`, "",
		2, playerChunkSize, players); err != nil {
		return 0, fmt.Errorf("inserting players: %w", err)
	}
	if err := insertRows(ctx, q, `INSERT OR IGNORE INTO roster (game_id, player_id, slot, name, quitter)`, "",
		5, playerChunkSize, roster); err != nil {
		return 0, fmt.Errorf("inserting roster: %w", err)
	}

	parents, err := acyclicParents(ctx, q, m.Properties)
	if err != nil {
		return 0, err
	}
	props := make([][]any, 0, len(m.Properties))
	for _, p := range m.Properties {
		var children sql.NullString
		if len(p.ChildIDs) > 0 {
			children = sql.NullString{String: strings.Join(p.ChildIDs, ":"), Valid: true}
		}
		props = append(props, []any{
			p.ID, p.DisplayName, p.GroupID, p.GroupName, string(p.SortDirection), boolInt(p.IsSummary),
			nullString(parents[p.ID]), children, p.RowOrder, boolInt(p.Visible), nullString(p.PluginID),
		})
	}
	err = insertRows(ctx, q,
		`INSERT INTO properties (id, display_name, group_id, group_name, sort_direction, is_summary, parent_id, child_ids, row_order, visible, plugin_id)`,
		` ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			group_id = excluded.group_id,
			group_name = excluded.group_name,
			sort_direction = excluded.sort_direction,
			is_summary = excluded.is_summary,
			parent_id = excluded.parent_id,
			child_ids = excluded.child_ids,
			row_order = excluded.row_order,
			visible = excluded.visible,
			plugin_id = excluded.plugin_id`,
		11, propertyChunkSize, props)
	if err != nil {
		return 0, fmt.Errorf("upserting properties: %w", err)
	}

	scores := make([][]any, 0, len(m.Scores))
	for _, s := range m.Scores {
		scores = append(scores, []any{gameID, s.PlayerID, s.PropertyID, s.Value})
	}
	if err := insertRows(ctx, q, `INSERT OR IGNORE INTO scores (game_id, player_id, property_id, value)`, "",
		4, r.scoreChunkSize, scores); err != nil {
		return 0, fmt.Errorf("inserting scores: %w", err)
	}
	return gameID, nil
}

// acyclicParents returns the parent each incoming property is stored with. The
// stored parent links are merged with the incoming ones in declaration order; a
// parent that would lead back to its child through links stored by earlier
// matches is dropped.
func acyclicParents(ctx context.Context, q Querier, props []*parser.Property) (map[string]string, error) {
	links := make(map[string]string)
	rows, err := q.QueryContext(ctx, `SELECT id, parent_id FROM properties WHERE parent_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("loading property parents: %w", err)
	}
	for rows.Next() {
		var id, parent string
		if err := rows.Scan(&id, &parent); err != nil {
			rows.Close()
			return nil, err
		}
		links[id] = parent
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// the upsert replaces the stored parent of every incoming property
	for _, p := range props {
		delete(links, p.ID)
	}

	parents := make(map[string]string, len(props))
	for _, p := range props {
		if p.ParentID == "" || reaches(links, p.ParentID, p.ID) {
			continue
		}
		links[p.ID] = p.ParentID
		parents[p.ID] = p.ParentID
	}
	return parents, nil
}

// reaches reports whether following links from start arrives at target.
func reaches(links map[string]string, start, target string) bool {
	seen := make(map[string]bool)
	for cur := start; cur != ""; cur = links[cur] {
		if cur == target {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

// KnownFilenames returns the filenames of every stored match.
func (r *Repository) KnownFilenames(ctx context.Context) (map[string]bool, error) {
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT filename FROM games`)
	if err != nil {
		return nil, fmt.Errorf("listing filenames: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		known[name] = true
	}
	return known, rows.Err()
}
