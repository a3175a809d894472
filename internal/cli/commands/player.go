package commands

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// PlayerOptions holds command-line options for player customize.
type PlayerOptions struct {
	Name  string
	Color string
}

// NewPlayerCommand creates the player command group.
func NewPlayerCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Customize how a player is displayed",
	}
	cmd.AddCommand(newPlayerCustomizeCommand(global))
	cmd.AddCommand(newPlayerClearCommand(global))
	cmd.AddCommand(newPlayerMainCommand(global))
	return cmd
}

func newPlayerCustomizeCommand(global *GlobalOptions) *cobra.Command {
	opts := &PlayerOptions{}

	cmd := &cobra.Command{
		Use:   "customize <player-id>",
		Short: "Set a display label and color for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Name == "" && opts.Color == "" {
				return fmt.Errorf("nothing to set: pass --name and/or --color")
			}
			if opts.Color != "" && !colorPattern.MatchString(opts.Color) {
				return fmt.Errorf("invalid color %q (use #rrggbb)", opts.Color)
			}

			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.SetPlayerCustomization(ctx, args[0], opts.Name, opts.Color); err != nil {
				return fmt.Errorf("customizing player: %w", err)
			}
			if err := a.store.Checkpoint(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Player %s customized\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "Display label")
	cmd.Flags().StringVar(&opts.Color, "color", "", "Display color (#rrggbb)")

	return cmd
}

func newPlayerClearCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <player-id>",
		Short: "Remove a player's display label and color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.ClearPlayerCustomization(ctx, args[0]); err != nil {
				return fmt.Errorf("clearing player: %w", err)
			}
			if err := a.store.Checkpoint(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Player %s cleared\n", args[0])
			return nil
		},
	}
}

func newPlayerMainCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "main <player-id>",
		Short: "Mark a player as the main player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.SetMainPlayer(ctx, args[0]); err != nil {
				return fmt.Errorf("setting main player: %w", err)
			}
			if err := a.store.Checkpoint(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Player %s is now the main player\n", args[0])
			return nil
		},
	}
}
