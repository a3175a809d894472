package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Mission is a mission seen in at least one stored match.
type Mission struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Difficulty is a difficulty level seen in at least one stored match.
type Difficulty struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
}

// TimeSpan is the range of match timestamps.
type TimeSpan struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Filters lists the values a game query can be narrowed by.
type Filters struct {
	Missions     []Mission    `json:"missions"`
	Difficulties []Difficulty `json:"difficulties"`
	Modifiers    []string     `json:"modifiers"`

	// Span is nil when no match is stored.
	Span *TimeSpan `json:"span,omitempty"`
}

// GetFilters returns the distinct missions, difficulties and modifiers of stored
// matches together with their time span.
func (r *Repository) GetFilters(ctx context.Context) (*Filters, error) {
	db, err := r.store.DB()
	if err != nil {
		return nil, err
	}
	f := &Filters{
		Missions:     []Mission{},
		Difficulties: []Difficulty{},
		Modifiers:    []string{},
	}

	rows, err := db.QueryContext(ctx, `
		SELECT mission_id, MAX(mission_name) FROM games
		GROUP BY mission_id
		ORDER BY MAX(mission_name), mission_id`)
	if err != nil {
		return nil, fmt.Errorf("querying missions: %w", err)
	}
	for rows.Next() {
		var m Mission
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			rows.Close()
			return nil, err
		}
		f.Missions = append(f.Missions, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT DISTINCT difficulty FROM games ORDER BY difficulty`)
	if err != nil {
		return nil, fmt.Errorf("querying difficulties: %w", err)
	}
	for rows.Next() {
		var level int
		if err := rows.Scan(&level); err != nil {
			rows.Close()
			return nil, err
		}
		f.Difficulties = append(f.Difficulties, Difficulty{Value: level, Name: r.DifficultyName(level)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT DISTINCT modifier FROM games WHERE modifier <> '' ORDER BY modifier`)
	if err != nil {
		return nil, fmt.Errorf("querying modifiers: %w", err)
	}
	for rows.Next() {
		var mod string
		if err := rows.Scan(&mod); err != nil {
			rows.Close()
			return nil, err
		}
		f.Modifiers = append(f.Modifiers, mod)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var from, to sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM games`).Scan(&from, &to); err != nil {
		return nil, fmt.Errorf("querying time span: %w", err)
	}
	if from.Valid && to.Valid {
		f.Span = &TimeSpan{From: time.Unix(from.Int64, 0).UTC(), To: time.Unix(to.Int64, 0).UTC()}
	}
	return f, nil
}
