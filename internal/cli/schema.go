package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/wonder/internal/kv"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema stored in the library",
		Long:  "Print the persisted schema of an existing library without migrating it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.libraryConfig()
			if err != nil {
				return sysError(err)
			}
			db, err := kv.Connect(cmd.Context(), cfg.DataDir, cfg.Name(), kv.WithLogger(a.log))
			if err != nil {
				return classify(err)
			}
			defer db.Close()

			schema := db.Schema()
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), schema)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(schema); err != nil {
				return sysError(err)
			}
			return sysError(enc.Close())
		},
	}
}
