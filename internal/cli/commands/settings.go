package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/output"
)

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write stored key/value settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			value, found, err := a.repo.GetSetting(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, global, &output.Report{Setting: &output.Setting{Key: args[0], Value: value, Found: found}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.SetSetting(ctx, args[0], args[1]); err != nil {
				return err
			}
			if err := a.store.Checkpoint(ctx); err != nil {
				return err
			}
			return render(cmd, global, &output.Report{Setting: &output.Setting{Key: args[0], Value: args[1], Found: true}})
		},
	})

	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(global *GlobalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all recorded games, players and settings",
		Long: `Delete all recorded data and persist the empty store.

The remembered log directory is kept, so the next ingest re-reads every log.
Use "snapshot export" first to keep a copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes all recorded data; pass --yes to confirm")
			}

			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.ClearDatabase(ctx); err != nil {
				return fmt.Errorf("resetting store: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Store reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")

	return cmd
}
