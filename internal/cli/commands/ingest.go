package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/ingest"
	"github.com/ccollicutt/matchlog/pkg/output"
	"github.com/ccollicutt/matchlog/pkg/source"
)

// errNoSource is returned when no log directory was given, configured or remembered.
var errNoSource = errors.New("no log directory: pass one as an argument, set log_dir, or use --files")

// IngestOptions holds command-line options for the ingest command.
type IngestOptions struct {
	Files     []string
	BatchSize int
	Progress  bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(global *GlobalOptions) *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [log-dir]",
		Short: "Ingest new match logs into the store",
		Long: `Ingest match logs that are not yet recorded.

The log directory is taken from the argument, the log_dir setting, or the
directory used by the previous ingestion, in that order. Files already
recorded are skipped. Work is committed and snapshotted in batches, so an
interrupted run keeps every completed batch.

Exit codes:
  0 - All new logs ingested
  1 - Some logs could not be ingested
  2 - Configuration or runtime error`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, global, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Files, "files", nil, "Ingest files matching glob pattern(s) instead of a directory")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "Files per committed batch (default from config)")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Report progress on stderr after every batch")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, global *GlobalOptions, opts *IngestOptions) error {
	ctx := commandContext(cmd)

	a, err := openApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.Close()

	src, handle, remember, err := resolveSource(ctx, a, args, opts)
	if err != nil {
		return err
	}

	batchSize := a.cfg.Ingest.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}

	coordOpts := []ingest.Option{
		ingest.WithBatchSize(batchSize),
		ingest.WithLogger(a.logger),
		ingest.WithParser(a.newParser()),
	}
	if opts.Progress {
		stderr := cmd.ErrOrStderr()
		coordOpts = append(coordOpts, ingest.WithProgress(func(p ingest.Progress) {
			fmt.Fprintf(stderr, "[%d/%d] %s\n", p.Processed, p.Total, p.Message)
		}))
	}

	sum, err := ingest.New(a.store, a.repo, coordOpts...).Run(ctx, src)
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !interrupted {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if interrupted {
		// committed batches are kept and reported
		a.logger.Warn("ingest_interrupted", "err", err, "ingested", sum.Ingested)
	}

	if remember {
		if rerr := a.store.RememberSource(ctx, handle); rerr != nil {
			a.logger.Warn("remember_source_failed", "source", handle, "err", rerr)
		}
	}

	report := output.NewIngestReport(sum, handle)
	if ferr := render(cmd, global, report); ferr != nil {
		return ferr
	}

	if interrupted {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}
	if report.HasIssues() {
		ExitCode = ExitIssues
	}
	return nil
}

// resolveSource picks the log source for a run. remember reports whether the
// handle names a directory that later runs may fall back to.
func resolveSource(ctx context.Context, a *app, args []string, opts *IngestOptions) (src source.Source, handle string, remember bool, err error) {
	if len(opts.Files) > 0 {
		if len(args) > 0 {
			return nil, "", false, fmt.Errorf("a log directory and --files cannot be combined")
		}
		files, err := source.NewFiles(opts.Files, a.cfg.Extension)
		if err != nil {
			return nil, "", false, fmt.Errorf("expanding --files: %w", err)
		}
		return files, strings.Join(opts.Files, ","), false, nil
	}

	dir := a.cfg.LogDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		dir, err = a.store.RememberedSource(ctx)
		if err != nil {
			return nil, "", false, fmt.Errorf("reading remembered log directory: %w", err)
		}
	}
	if dir == "" {
		return nil, "", false, errNoSource
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, "", false, fmt.Errorf("log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, "", false, fmt.Errorf("log directory %s is not a directory", dir)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return source.NewDir(dir, a.cfg.Extension), dir, true, nil
}
