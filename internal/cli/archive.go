package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/store"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <project> <file>",
		Short: "Write a project and everything in it to a JSONL archive",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			p, err := resolveProject(cmd.Context(), lib, args[0])
			if err != nil {
				return err
			}
			n, err := lib.ExportProject(cmd.Context(), p.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", n, args[1])
			return nil
		}),
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a project from a JSONL archive",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			p, err := lib.ImportProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
			return nil
		}),
	}
}
