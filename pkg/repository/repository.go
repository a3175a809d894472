// Package repository implements inserts and dashboard queries over the match store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ccollicutt/matchlog/pkg/store"
)

var (
	// ErrInsertConflict is returned when a match with the same filename is already stored.
	ErrInsertConflict = errors.New("match already recorded")

	// ErrPlayerNotFound is returned by player operations on unknown ids.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrInvalidQuery is returned for query parameters that cannot be satisfied.
	ErrInvalidQuery = errors.New("invalid query")
)

// Defaults for repository options.
const (
	DefaultScoreChunkSize    = 200
	DefaultLongLossThreshold = 15 * time.Minute
)

// Querier is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository runs inserts and queries against a Store.
type Repository struct {
	store *store.Store

	scoreChunkSize    int
	longLossThreshold time.Duration
	difficultyNames   map[int]string
}

// Option configures a Repository.
type Option func(*Repository)

// WithScoreChunkSize bounds the number of score rows written per statement.
func WithScoreChunkSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.scoreChunkSize = n
		}
	}
}

// WithLongLossThreshold sets the duration after which a lost match counts as a long loss.
func WithLongLossThreshold(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.longLossThreshold = d
		}
	}
}

// WithDifficultyNames sets display names for difficulty levels.
func WithDifficultyNames(names map[int]string) Option {
	return func(r *Repository) {
		for level, name := range names {
			r.difficultyNames[level] = name
		}
	}
}

// New creates a Repository over st.
func New(st *store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:             st,
		scoreChunkSize:    DefaultScoreChunkSize,
		longLossThreshold: DefaultLongLossThreshold,
		difficultyNames:   make(map[int]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DifficultyName returns the display name of a difficulty level.
func (r *Repository) DifficultyName(level int) string {
	if name, ok := r.difficultyNames[level]; ok {
		return name
	}
	return fmt.Sprintf("Difficulty %d", level)
}

// ClearDatabase drops every record and persists the empty store.
func (r *Repository) ClearDatabase(ctx context.Context) error {
	return r.store.Reset(ctx)
}

// isConstraint reports whether err is an SQLite constraint violation.
func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// insertRows writes rows with multi-row VALUES statements of at most chunk rows each.
func insertRows(ctx context.Context, q Querier, prefix, suffix string, cols, chunk int, rows [][]any) error {
	tuple := "(" + placeholders(cols) + ")"
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		var sb strings.Builder
		args := make([]any, 0, (end-start)*cols)
		sb.WriteString(prefix)
		sb.WriteString(" VALUES ")
		for i, row := range rows[start:end] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(tuple)
			args = append(args, row...)
		}
		sb.WriteString(suffix)

		if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// chunkInts splits ids into slices of at most n elements.
func chunkInts(ids []int64, n int) [][]int64 {
	var out [][]int64
	for start := 0; start < len(ids); start += n {
		out = append(out, ids[start:min(start+n, len(ids))])
	}
	return out
}
