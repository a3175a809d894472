package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/source"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a matchlog configuration file without touching the store.

The file is taken from the argument or --config. Checks:
  - YAML syntax
  - Value ranges (batch size, chunk size, thresholds, log level)
  - Log directory contents (warning only)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, global)
		},
	}
}

func runValidate(cmd *cobra.Command, args []string, global *GlobalOptions) error {
	configPath := global.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	if configPath == "" {
		fmt.Fprintln(w, "Validating built-in defaults...")
	} else {
		fmt.Fprintf(w, "Validating %s...\n", configPath)
	}

	// Load and validate config
	opts := *global
	opts.ConfigPath = configPath
	cfg, _, closer, err := loadConfig(ctx, &opts)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	defer closer.Close()

	// Report what we found
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Data dir:     %s\n", cfg.DataDir)
	fmt.Fprintf(w, "  Extension:    %s\n", cfg.Extension)
	fmt.Fprintf(w, "  Batch size:   %d\n", cfg.Ingest.BatchSize)
	fmt.Fprintf(w, "  Long loss:    %s\n", cfg.Query.LongLossThreshold)
	fmt.Fprintf(w, "  Log level:    %s\n", cfg.Logging.Level)

	if len(cfg.Missions) > 0 {
		ids := make([]string, 0, len(cfg.Missions))
		for id := range cfg.Missions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "\nMission names:\n")
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %s\n", id, cfg.Missions[id])
		}
	}

	// Check the log directory (warnings only)
	if cfg.LogDir == "" {
		fmt.Fprintf(w, "\nLog directory: not set (the last ingested directory is used)\n")
		return nil
	}
	names, err := source.NewDir(cfg.LogDir, cfg.Extension).List(ctx)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Cannot list log directory: %v\n", err)
	} else if len(names) == 0 {
		fmt.Fprintf(w, "\nWarning: No %s files in %s\n", cfg.Extension, cfg.LogDir)
	} else {
		fmt.Fprintf(w, "\nMatch logs in %s: %d\n", cfg.LogDir, len(names))
	}

	return nil
}
