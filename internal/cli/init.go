package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/paths"
	"github.com/mesh-intelligence/wonder/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the wonder library",
		Long:  "Create the configuration file and data directory, then create or migrate the library database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.libraryConfig()
			if err != nil {
				return sysError(err)
			}
			wrote, err := writeConfigIfMissing(a.configDir, cfg)
			if err != nil {
				return sysError(err)
			}
			if wrote {
				a.log.WithField("path", paths.ConfigFile(a.configDir)).Info("wrote config")
			}

			lib, err := a.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer lib.Close()

			db := lib.DB()
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"path":    db.Path(),
					"version": db.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wonder library ready at %s (schema v%d)\n", db.Path(), store.SchemaVersion)
			return nil
		},
	}
}
