package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/config"
	"github.com/ccollicutt/matchlog/pkg/logging"
	"github.com/ccollicutt/matchlog/pkg/output"
	"github.com/ccollicutt/matchlog/pkg/parser"
	"github.com/ccollicutt/matchlog/pkg/repository"
	"github.com/ccollicutt/matchlog/pkg/store"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK     = 0
	ExitIssues = 1
	ExitError  = 2
)

// snapshotRetryInitial is the first delay between snapshot write attempts.
const snapshotRetryInitial = 200 * time.Millisecond

// GlobalOptions holds flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Output     string
	Verbose    bool
	Quiet      bool

	// Stderr receives log output; os.Stderr when nil.
	Stderr io.Writer
}

// app bundles the collaborators a command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	repo   *repository.Repository

	logCloser io.Closer
}

// loadConfig loads the configuration and builds the logger.
func loadConfig(ctx context.Context, opts *GlobalOptions) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logger, closer, err := logging.NewLogger(cfg.Logging, stderr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, closer, nil
}

// openApp loads configuration and opens the store in the configured data directory.
func openApp(ctx context.Context, opts *GlobalOptions) (*app, error) {
	cfg, logger, closer, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	blobs, err := store.NewFileBlobs(cfg.DataDir)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("opening data dir: %w", err)
	}
	st, err := store.Open(ctx, blobs,
		store.WithLogger(logger),
		store.WithRetry(cfg.Ingest.SnapshotRetries, snapshotRetryInitial))
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	repo := repository.New(st,
		repository.WithScoreChunkSize(cfg.Ingest.ScoreChunkSize),
		repository.WithLongLossThreshold(cfg.Query.LongLossThreshold),
		repository.WithDifficultyNames(cfg.Difficulties))

	return &app{cfg: cfg, logger: logger, store: st, repo: repo, logCloser: closer}, nil
}

// newParser returns a parser configured with the mission names of the config.
func (a *app) newParser() *parser.Parser {
	return parser.New(parser.WithMissionNames(a.cfg.Missions))
}

// Close releases the store and the log file.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.logCloser.Close())
}

// render writes report to the command's output in the selected format.
func render(cmd *cobra.Command, opts *GlobalOptions, report *output.Report) error {
	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}
	if err := formatter.Format(commandContext(cmd), report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
