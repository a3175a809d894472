package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version of matchlog and the store schema version it writes.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "matchlog %s (schema %d)\n", Version, store.SchemaVersion)
		},
	}
}
