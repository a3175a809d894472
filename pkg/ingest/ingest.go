// Package ingest drives batched, resumable ingestion of match logs into the store.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/ccollicutt/matchlog/pkg/parser"
	"github.com/ccollicutt/matchlog/pkg/repository"
	"github.com/ccollicutt/matchlog/pkg/source"
	"github.com/ccollicutt/matchlog/pkg/store"
)

// DefaultBatchSize is the number of files committed and checkpointed together.
const DefaultBatchSize = 20

// Stage names the step at which a file failed.
type Stage string

const (
	StageRead   Stage = "read"
	StageParse  Stage = "parse"
	StageInsert Stage = "insert"
)

// Progress is reported after every committed batch.
type Progress struct {
	// Processed counts new files handled so far, failed ones included.
	Processed int

	// Total is the number of log files in the source, already recorded ones included.
	Total int

	Message string
}

// FileError records a file that could not be ingested.
type FileError struct {
	Name  string
	Stage Stage
	Err   error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Stage, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Summary describes a completed ingestion run.
type Summary struct {
	// Ingested is the number of matches stored by this run.
	Ingested int

	// Errors is the number of new files that could not be stored.
	Errors int

	// Total is the number of log files in the source.
	Total int

	// Skipped is the number of files already recorded before this run.
	Skipped int

	// Warnings counts recoverable parse anomalies across ingested files.
	Warnings int

	// PersistFailures counts checkpoints that could not be written.
	PersistFailures int

	// NamesBackfilled is the number of roster names repaired after ingestion.
	NamesBackfilled int64

	// MainPlayer is set when this run designated the main player.
	MainPlayer string

	Failures []FileError

	StartTime time.Time
	EndTime   time.Time
}

// HasErrors reports whether any file failed.
func (s *Summary) HasErrors() bool {
	return s.Errors > 0
}

// Coordinator ingests new log files from a source.
type Coordinator struct {
	store  *store.Store
	repo   *repository.Repository
	parser *parser.Parser
	logger *slog.Logger

	batchSize int
	progress  func(Progress)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBatchSize sets how many files are committed per batch.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithProgress sets a callback invoked after every batch and at the end of a run.
func WithProgress(fn func(Progress)) Option {
	return func(c *Coordinator) {
		c.progress = fn
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithParser sets the log parser.
func WithParser(p *parser.Parser) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.parser = p
		}
	}
}

// New creates a Coordinator writing through repo into st.
func New(st *store.Store, repo *repository.Repository, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     st,
		repo:      repo,
		parser:    parser.New(),
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run ingests every file of src that is not recorded yet, in name order.
//
// Files are processed in batches; each batch is committed and checkpointed before
// the next begins. A failing file is rolled back alone and counted in the summary.
// Cancellation of ctx is observed between batches only: the batch in flight is
// committed first, and the summary so far is returned with ctx.Err(). The
// summary is never nil, even when listing the source fails.
func (c *Coordinator) Run(ctx context.Context, src source.Source) (*Summary, error) {
	sum := &Summary{StartTime: time.Now()}

	names, err := src.List(ctx)
	if err != nil {
		sum.EndTime = time.Now()
		return sum, fmt.Errorf("listing match logs: %w", err)
	}
	sort.Strings(names)
	sum.Total = len(names)

	known, err := c.repo.KnownFilenames(ctx)
	if err != nil {
		sum.EndTime = time.Now()
		return sum, fmt.Errorf("loading recorded matches: %w", err)
	}
	pending := make([]string, 0, len(names))
	for _, name := range names {
		if !known[name] {
			pending = append(pending, name)
		}
	}
	sum.Skipped = sum.Total - len(pending)

	if len(pending) == 0 {
		c.logger.Info("ingest_nothing_new", "total", sum.Total)
		c.report(Progress{Total: sum.Total, Message: "no new match logs"})
		sum.EndTime = time.Now()
		return sum, nil
	}
	c.logger.Info("ingest_started", "new", len(pending), "total", sum.Total, "batch_size", c.batchSize)

	// batch work runs to completion even when ctx is canceled
	work := context.WithoutCancel(ctx)

	tx, err := c.store.Begin(work)
	if err != nil {
		return sum, fmt.Errorf("starting batch: %w", err)
	}
	inBatch := 0
	for i, name := range pending {
		c.ingestFile(work, tx, src, name, sum)
		inBatch++

		processed := i + 1
		if inBatch < c.batchSize || processed == len(pending) {
			continue
		}

		if err := tx.Commit(); err != nil {
			return sum, fmt.Errorf("committing batch: %w", err)
		}
		c.checkpoint(work, sum)
		c.logger.Debug("ingest_batch_committed", "processed", processed, "new", len(pending))

		runtime.Gosched()
		c.report(Progress{
			Processed: processed,
			Total:     sum.Total,
			Message:   fmt.Sprintf("ingested %d of %d new match logs", processed, len(pending)),
		})
		if err := ctx.Err(); err != nil {
			c.logger.Warn("ingest_canceled", "processed", processed, "new", len(pending))
			sum.EndTime = time.Now()
			return sum, err
		}

		if tx, err = c.store.Begin(work); err != nil {
			return sum, fmt.Errorf("starting batch: %w", err)
		}
		inBatch = 0
	}

	if err := c.finish(work, tx, sum); err != nil {
		return sum, err
	}
	c.report(Progress{
		Processed: len(pending),
		Total:     sum.Total,
		Message:   fmt.Sprintf("ingested %d, errors %d, total %d", sum.Ingested, sum.Errors, sum.Total),
	})
	sum.EndTime = time.Now()
	c.logger.Info("ingest_finished",
		"ingested", sum.Ingested,
		"errors", sum.Errors,
		"total", sum.Total,
		"duration", sum.EndTime.Sub(sum.StartTime))
	return sum, nil
}

// ingestFile reads, parses and inserts one file inside the batch transaction.
func (c *Coordinator) ingestFile(ctx context.Context, tx *sql.Tx, src source.Source, name string, sum *Summary) {
	content, err := src.Read(ctx, name)
	if err != nil {
		c.fail(sum, name, StageRead, err)
		return
	}
	m, err := c.parser.Parse(name, content)
	if err != nil {
		c.fail(sum, name, StageParse, err)
		return
	}
	if n := len(m.Warnings); n > 0 {
		sum.Warnings += n
		c.logger.Debug("parse_warnings", "file", name, "count", n, "first", m.Warnings[0].Reason)
	}
	if _, err := c.repo.InsertGameTx(ctx, tx, m); err != nil {
		c.fail(sum, name, StageInsert, err)
		return
	}
	sum.Ingested++
}

func (c *Coordinator) fail(sum *Summary, name string, stage Stage, err error) {
	sum.Errors++
	sum.Failures = append(sum.Failures, FileError{Name: name, Stage: stage, Err: err})
	c.logger.Warn("ingest_file_failed", "file", name, "stage", stage, "err", err)
}

// finish backfills names in the last batch, commits it and persists the result.
func (c *Coordinator) finish(ctx context.Context, tx *sql.Tx, sum *Summary) error {
	n, err := c.repo.BackfillNames(ctx, tx)
	if err != nil {
		c.logger.Warn("backfill_failed", "err", err)
	}
	sum.NamesBackfilled = n

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	id, ok, err := c.repo.EnsureMainPlayer(ctx)
	switch {
	case err != nil:
		c.logger.Warn("main_player_failed", "err", err)
	case ok:
		sum.MainPlayer = id
		c.logger.Info("main_player_designated", "player", id)
	}

	c.checkpoint(ctx, sum)
	return nil
}

func (c *Coordinator) checkpoint(ctx context.Context, sum *Summary) {
	if err := c.store.Checkpoint(ctx); err != nil {
		sum.PersistFailures++
		level := slog.LevelError
		if errors.Is(err, store.ErrPersistence) {
			level = slog.LevelWarn
		}
		c.logger.Log(ctx, level, "checkpoint_failed", "err", err)
	}
}

func (c *Coordinator) report(p Progress) {
	if c.progress != nil {
		c.progress(p)
	}
}
