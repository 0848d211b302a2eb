package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the wonder release, overridden at build time with -ldflags.
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/wonder"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wonder version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "wonder v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
