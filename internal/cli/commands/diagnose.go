package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/config"
	"github.com/ccollicutt/matchlog/pkg/parser"
	"github.com/ccollicutt/matchlog/pkg/source"
	"github.com/ccollicutt/matchlog/pkg/store"
)

// Diagnostic statuses.
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// maxListed bounds the file names listed in a diagnostic's details.
const maxListed = 5

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Diagnose common setup issues",
		Long: `Diagnose common setup issues.

This command checks:
- Config file syntax and values
- Data directory accessibility
- Stored snapshot integrity
- Log directory contents and file naming
- Parsing of the most recent match log

Example:
  matchlog diagnose
  matchlog --config matchlog.yaml diagnose -v  # verbose output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(commandContext(cmd), cmd.OutOrStdout(), global)
		},
	}
}

func runDiagnose(ctx context.Context, w io.Writer, global *GlobalOptions) error {
	results := []DiagnosticResult{}

	// 1. Check config file
	if global.ConfigPath != "" {
		result := checkConfigExists(global.ConfigPath)
		results = append(results, result)
		if result.Status == statusError {
			printDiagnostics(w, results, global.Verbose)
			return nil
		}
	}

	cfg, result := checkConfigParseable(ctx, global.ConfigPath)
	results = append(results, result)
	if result.Status == statusError {
		printDiagnostics(w, results, global.Verbose)
		return nil
	}

	// 2. Check data directory and snapshot
	remembered := ""
	blobs, result := checkDataDir(cfg.DataDir)
	results = append(results, result)
	if blobs != nil {
		results = append(results, checkSnapshot(ctx, blobs))
		if data, err := blobs.Get(ctx, store.KeySource); err == nil {
			remembered = string(data)
		}
	}

	// 3. Check log directory and the newest log
	results = append(results, checkLogDir(ctx, cfg, remembered)...)

	printDiagnostics(w, results, global.Verbose)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = statusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Omit --config to run with built-in defaults",
		}
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = statusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = statusError
		result.Message = "Config file is empty"
		result.Suggests = []string{"Omit --config to run with built-in defaults"}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		result.Suggests = []string{
			"Check YAML syntax (indentation, colons, quotes)",
			"Durations use Go syntax, e.g. 15m or 1h30m",
		}
		return nil, result
	}

	result.Status = statusOK
	if path == "" {
		result.Message = "Using built-in defaults"
	} else {
		result.Message = "Config parsed successfully"
	}
	result.Details = []string{
		fmt.Sprintf("Extension: %s", cfg.Extension),
		fmt.Sprintf("Batch size: %d", cfg.Ingest.BatchSize),
		fmt.Sprintf("Long loss threshold: %s", cfg.Query.LongLossThreshold),
		fmt.Sprintf("Mission names: %d", len(cfg.Missions)),
	}
	return cfg, result
}

func checkDataDir(dir string) (*store.FileBlobs, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Data Directory",
	}

	blobs, err := store.NewFileBlobs(dir)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot create %s: %v", dir, err)
		result.Suggests = []string{
			"Set data_dir in the config or " + config.EnvDataDir + " to a writable directory",
		}
		return nil, result
	}

	probe, err := os.CreateTemp(dir, ".matchlog-probe-*")
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		result.Suggests = []string{"Check directory permissions"}
		return nil, result
	}
	probe.Close()
	os.Remove(probe.Name())

	result.Status = statusOK
	result.Message = fmt.Sprintf("Writable: %s", dir)
	return blobs, result
}

func checkSnapshot(ctx context.Context, blobs store.BlobStore) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Snapshot",
	}

	data, err := blobs.Get(ctx, store.KeySnapshot)
	if errors.Is(err, store.ErrBlobNotFound) {
		result.Status = statusOK
		result.Message = "No snapshot yet; the store starts empty"
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot read snapshot: %v", err)
		return result
	}

	if err := store.VerifySnapshot(ctx, data); err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Snapshot cannot be restored: %v", err)
		result.Suggests = []string{
			"The store starts empty while the snapshot is unreadable",
			"Restore an export with 'matchlog snapshot import <file>'",
			"Or run 'matchlog reset --yes' and ingest again",
		}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Snapshot restores cleanly (%d bytes)", len(data))
	return result
}

func checkLogDir(ctx context.Context, cfg *config.Config, remembered string) []DiagnosticResult {
	results := []DiagnosticResult{}

	result := DiagnosticResult{
		Check: "Log Directory",
	}

	dir := cfg.LogDir
	if dir == "" {
		dir = remembered
	}
	if dir == "" {
		result.Status = statusWarning
		result.Message = "No log directory configured or remembered"
		result.Suggests = []string{
			"Run 'matchlog ingest <log-dir>' once, or set log_dir / " + config.EnvLogDir,
		}
		return append(results, result)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		result.Status = statusError
		result.Message = fmt.Sprintf("Not a readable directory: %s", dir)
		result.Suggests = []string{"Check the log_dir path"}
		return append(results, result)
	}

	src := source.NewDir(dir, cfg.Extension)
	names, err := src.List(ctx)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot list %s: %v", dir, err)
		return append(results, result)
	}
	if len(names) == 0 {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("No %s files in %s", cfg.Extension, dir)
		result.Suggests = []string{"Check the extension setting"}
		return append(results, result)
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("%d match log(s) in %s", len(names), dir)
	results = append(results, result)

	results = append(results, checkFilenames(names, cfg.Extension))
	if newest, ok := newestLog(names); ok {
		results = append(results, checkNewestLog(ctx, src, newest, cfg))
	}
	return results
}

// newestLog returns the name with the latest match timestamp.
func newestLog(names []string) (string, bool) {
	var (
		newest string
		latest int64
		found  bool
	)
	for _, name := range names {
		ts, err := parser.ParseTimestamp(name)
		if err != nil {
			continue
		}
		if !found || ts > latest {
			newest, latest, found = name, ts, true
		}
	}
	return newest, found
}

func checkFilenames(names []string, ext string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "File Names",
	}

	var bad []string
	for _, name := range names {
		if _, err := parser.ParseTimestamp(name); err != nil {
			bad = append(bad, name)
		}
	}
	if len(bad) == 0 {
		result.Status = statusOK
		result.Message = "All file names are match timestamps"
		return result
	}

	result.Status = statusWarning
	result.Message = fmt.Sprintf("%d file(s) will be rejected: name is not a decimal timestamp", len(bad))
	for i, name := range bad {
		if i == maxListed {
			result.Details = append(result.Details, fmt.Sprintf("... and %d more", len(bad)-maxListed))
			break
		}
		result.Details = append(result.Details, name)
	}
	result.Suggests = []string{fmt.Sprintf("Match logs are named <unix-seconds>%s", ext)}
	return result
}

func checkNewestLog(ctx context.Context, src source.Source, newest string, cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Parse Test: %s", filepath.Base(newest)),
	}

	content, err := src.Read(ctx, newest)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot read file: %v", err)
		return result
	}

	m, err := parser.New(parser.WithMissionNames(cfg.Missions)).Parse(newest, content)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot parse: %v", err)
		return result
	}

	result.Details = []string{
		fmt.Sprintf("Mission: %s (%s)", m.MissionName, m.MissionID),
		fmt.Sprintf("Players: %d", len(m.Roster)),
		fmt.Sprintf("Properties: %d", len(m.Properties)),
		fmt.Sprintf("Scores: %d", len(m.Scores)),
	}
	if len(m.Warnings) > 0 {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Parsed with %d warning(s)", len(m.Warnings))
		for i, warn := range m.Warnings {
			if i == maxListed {
				break
			}
			result.Details = append(result.Details, fmt.Sprintf("line %d: %s", warn.LineNum, warn.Reason))
		}
		return result
	}

	result.Status = statusOK
	result.Message = "Parsed without warnings"
	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, verbose bool) {
	fmt.Fprintln(w, "=== matchlog Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		// Status icon
		var icon string
		switch r.Status {
		case statusOK:
			icon = "PASS"
			okCount++
		case statusWarning:
			icon = "WARN"
			warnCount++
		case statusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if verbose || r.Status != statusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before ingesting.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nSetup is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nSetup looks good!")
	}
}
