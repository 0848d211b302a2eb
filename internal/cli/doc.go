package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func newDocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Read and write leaf documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <node>",
			Short: "Print the document of a leaf",
			Args:  cobra.ExactArgs(1),
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				_, doc, err := documentOf(cmd.Context(), lib, args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), doc)
				}
				fmt.Fprintln(cmd.OutOrStdout(), doc.Text())
				return nil
			}),
		},
		newDocWriteCmd(a),
	)
	return cmd
}

func newDocWriteCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "write <node>",
		Short: "Replace a leaf's content from a file or stdin",
		Long: "Replace a leaf's content. Manuscripts accept a JSON delta and store it\n" +
			"as given; any other input is stored as text.",
		Args: cobra.ExactArgs(1),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			ctx := cmd.Context()
			node, doc, err := documentOf(ctx, lib, args[0])
			if err != nil {
				return err
			}

			var data []byte
			if file != "" {
				data, err = os.ReadFile(file)
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading content: %w", err)
			}
			if node.Type == types.TypeManuscript && json.Valid(data) {
				doc.Content = json.RawMessage(data)
			} else {
				doc.SetText(string(data))
			}

			docs, err := lib.Documents(node.Type)
			if err != nil {
				return err
			}
			doc, err = docs.UpdateContent(ctx, doc)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", doc.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from file instead of stdin")
	return cmd
}
