// Package cli provides the command-line interface for matchlog.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/internal/cli/commands"
)

// defaultEnvFile is loaded from the working directory when present.
const defaultEnvFile = ".env"

// Execute runs the root command and returns the exit code. An interrupt cancels
// the command context; ingestion stops after the batch in flight.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	global := &commands.GlobalOptions{}
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "matchlog",
		Short: "Record and query match logs",
		Long: `matchlog ingests the per-match log files a game writes after every mission
and keeps them in a local database for statistics and filtering.

Run "matchlog ingest <log-dir>" once; later runs remember the directory and
only read logs that are not yet recorded.

Configuration is read from --config (YAML), then MATCHLOG_* environment
variables, which may be set in a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			if global.Output != "text" && global.Output != "json" {
				return fmt.Errorf("unknown output format %q (use text or json)", global.Output)
			}
			if global.Verbose && global.Quiet {
				return fmt.Errorf("--verbose and --quiet cannot be combined")
			}
			global.Stderr = cmd.ErrOrStderr()
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&global.ConfigPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", defaultEnvFile, "Environment file loaded before the configuration")
	flags.StringVarP(&global.Output, "output", "o", "text", "Output format (text|json)")
	flags.BoolVarP(&global.Verbose, "verbose", "v", false, "Show details")
	flags.BoolVarP(&global.Quiet, "quiet", "q", false, "Summary only, no details")

	// Add subcommands
	rootCmd.AddCommand(commands.NewIngestCommand(global))
	rootCmd.AddCommand(commands.NewGamesCommand(global))
	rootCmd.AddCommand(commands.NewPropertiesCommand(global))
	rootCmd.AddCommand(commands.NewFiltersCommand(global))
	rootCmd.AddCommand(commands.NewPlayersCommand(global))
	rootCmd.AddCommand(commands.NewPlayerCommand(global))
	rootCmd.AddCommand(commands.NewSettingsCommand(global))
	rootCmd.AddCommand(commands.NewResetCommand(global))
	rootCmd.AddCommand(commands.NewSnapshotCommand(global))
	rootCmd.AddCommand(commands.NewDiagnoseCommand(global))
	rootCmd.AddCommand(commands.NewValidateCommand(global))
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}

// loadEnvFile sets variables from path that are not already set. A missing
// default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
