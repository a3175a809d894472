package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ResultFilter narrows games by outcome.
type ResultFilter string

const (
	ResultAll  ResultFilter = "all"
	ResultWon  ResultFilter = "won"
	ResultLost ResultFilter = "lost"

	// ResultWonLongLost keeps wins and losses that lasted longer than the long-loss threshold.
	ResultWonLongLost ResultFilter = "won_long_lost"
)

// gameChunkSize bounds the number of game ids per IN clause.
const gameChunkSize = 500

// GameQuery selects games and the properties to return scores for.
type GameQuery struct {
	// Properties limits the returned scores. An empty set yields no games.
	Properties []string

	Result       ResultFilter
	Difficulties []int
	Missions     []string
	Modifiers    []string

	// Since and Until bound the match time (inclusive). Ignored when Last is set.
	Since time.Time
	Until time.Time

	// Last selects the N most recent matching games.
	Last int
}

// Game is a stored match with its roster and the requested scores.
type Game struct {
	ID              int64     `json:"id"`
	Filename        string    `json:"filename"`
	Time            time.Time `json:"time"`
	MissionID       string    `json:"mission_id"`
	MissionName     string    `json:"mission_name"`
	Difficulty      int       `json:"difficulty"`
	Modifier        string    `json:"modifier,omitempty"`
	Result          string    `json:"result"`
	DurationSeconds int       `json:"duration_seconds"`

	// Roster maps player id to the name used in this match.
	Roster   map[string]string `json:"roster"`
	Quitters map[string]bool   `json:"quitters,omitempty"`

	// Scores maps player id to property id to value.
	Scores map[string]map[string]float64 `json:"scores"`
}

// GetGames returns the games matching q in ascending time order.
func (r *Repository) GetGames(ctx context.Context, q GameQuery) ([]Game, error) {
	if len(q.Properties) == 0 {
		return []Game{}, nil
	}
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}

	where, args, err := r.gameConditions(q)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, filename, timestamp, mission_id, mission_name, difficulty, modifier, result, duration_seconds
		FROM games` + where
	if q.Last > 0 {
		query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
		args = append(args, q.Last)
	} else {
		query += ` ORDER BY timestamp, id`
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	var games []Game
	for rows.Next() {
		var (
			g  Game
			ts int64
		)
		if err := rows.Scan(&g.ID, &g.Filename, &ts, &g.MissionID, &g.MissionName, &g.Difficulty,
			&g.Modifier, &g.Result, &g.DurationSeconds); err != nil {
			rows.Close()
			return nil, err
		}
		g.Time = time.Unix(ts, 0).UTC()
		g.Roster = make(map[string]string)
		g.Quitters = make(map[string]bool)
		g.Scores = make(map[string]map[string]float64)
		games = append(games, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Last > 0 {
		slices.Reverse(games)
	}
	if len(games) == 0 {
		return []Game{}, nil
	}

	byID := make(map[int64]*Game, len(games))
	ids := make([]int64, 0, len(games))
	for i := range games {
		byID[games[i].ID] = &games[i]
		ids = append(ids, games[i].ID)
	}
	if err := r.loadRosters(ctx, db, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadScores(ctx, db, ids, dedupe(q.Properties), byID); err != nil {
		return nil, err
	}
	return games, nil
}

func (r *Repository) gameConditions(q GameQuery) (string, []any, error) {
	var (
		conds []string
		args  []any
	)

	switch q.Result {
	case "", ResultAll:
	case ResultWon, ResultLost:
		conds = append(conds, `result = ?`)
		args = append(args, string(q.Result))
	case ResultWonLongLost:
		conds = append(conds, `(result = 'won' OR (result = 'lost' AND duration_seconds > ?))`)
		args = append(args, int(r.longLossThreshold/time.Second))
	default:
		return "", nil, fmt.Errorf("%w: unknown result filter %q", ErrInvalidQuery, q.Result)
	}
	if q.Last < 0 {
		return "", nil, fmt.Errorf("%w: last must not be negative", ErrInvalidQuery)
	}

	if len(q.Difficulties) > 0 {
		conds = append(conds, `difficulty IN (`+placeholders(len(q.Difficulties))+`)`)
		for _, d := range q.Difficulties {
			args = append(args, d)
		}
	}
	if len(q.Missions) > 0 {
		conds = append(conds, `mission_id IN (`+placeholders(len(q.Missions))+`)`)
		for _, m := range q.Missions {
			args = append(args, m)
		}
	}
	if len(q.Modifiers) > 0 {
		conds = append(conds, `modifier IN (`+placeholders(len(q.Modifiers))+`)`)
		for _, m := range q.Modifiers {
			args = append(args, m)
		}
	}
	if q.Last == 0 {
		if !q.Since.IsZero() {
			conds = append(conds, `timestamp >= ?`)
			args = append(args, q.Since.Unix())
		}
		if !q.Until.IsZero() {
			conds = append(conds, `timestamp <= ?`)
			args = append(args, q.Until.Unix())
		}
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (r *Repository) loadRosters(ctx context.Context, q Querier, ids []int64, byID map[int64]*Game) error {
	for _, chunk := range chunkInts(ids, gameChunkSize) {
		args := make([]any, 0, len(chunk))
		for _, id := range chunk {
			args = append(args, id)
		}
		rows, err := q.QueryContext(ctx,
			`SELECT game_id, player_id, name, quitter FROM roster WHERE game_id IN (`+placeholders(len(chunk))+`)`,
			args...)
		if err != nil {
			return fmt.Errorf("querying rosters: %w", err)
		}
		for rows.Next() {
			var (
				gameID       int64
				player, name string
				quitter      bool
			)
			if err := rows.Scan(&gameID, &player, &name, &quitter); err != nil {
				rows.Close()
				return err
			}
			g := byID[gameID]
			g.Roster[player] = name
			if quitter {
				g.Quitters[player] = true
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) loadScores(ctx context.Context, q Querier, ids []int64, props []string, byID map[int64]*Game) error {
	for _, chunk := range chunkInts(ids, gameChunkSize) {
		args := make([]any, 0, len(chunk)+len(props))
		for _, id := range chunk {
			args = append(args, id)
		}
		for _, p := range props {
			args = append(args, p)
		}
		rows, err := q.QueryContext(ctx,
			`SELECT game_id, player_id, property_id, value FROM scores
			 WHERE game_id IN (`+placeholders(len(chunk))+`)
			   AND property_id IN (`+placeholders(len(props))+`)`,
			args...)
		if err != nil {
			return fmt.Errorf("querying scores: %w", err)
		}
		for rows.Next() {
			var (
				gameID       int64
				player, prop string
				value        float64
			)
			if err := rows.Scan(&gameID, &player, &prop, &value); err != nil {
				rows.Close()
				return err
			}
			g := byID[gameID]
			if g.Scores[player] == nil {
				g.Scores[player] = make(map[string]float64)
			}
			g.Scores[player][prop] = value
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
