package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func newTreeCmd(a *app) *cobra.Command {
	var showIDs bool
	cmd := &cobra.Command{
		Use:   "tree <project>",
		Short: "Print a project's tree",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			p, err := resolveProject(cmd.Context(), lib, args[0])
			if err != nil {
				return err
			}
			roots, err := lib.Hierarchy.GetTree(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), roots)
			}
			renderTree(cmd.OutOrStdout(), roots, showIDs)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "show node ids")
	return cmd
}

// renderTree draws each root and its descendants with box-drawing
// connectors. Directory names end in a slash.
func renderTree(w io.Writer, roots []*types.TreeNode, showIDs bool) {
	for _, r := range roots {
		fmt.Fprintln(w, treeLabel(r, showIDs))
		renderChildren(w, r.Children, "", showIDs)
	}
}

func renderChildren(w io.Writer, nodes []*types.TreeNode, prefix string, showIDs bool) {
	for i, n := range nodes {
		branch, indent := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintln(w, prefix+branch+treeLabel(n, showIDs))
		renderChildren(w, n.Children, prefix+indent, showIDs)
	}
}

func treeLabel(n *types.TreeNode, showIDs bool) string {
	label := n.Name
	if n.IsDirectory() {
		label += "/"
	}
	if showIDs {
		label += "  [" + n.ID + "]"
	}
	return label
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <type> <project>",
		Short: "List every document of a type in a project, sorted by name",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			kind, err := types.ParseHierarchyType(args[0])
			if err != nil {
				return err
			}
			p, err := resolveProject(cmd.Context(), lib, args[1])
			if err != nil {
				return err
			}
			docs, err := lib.Join.AllDocumentsByProject(cmd.Context(), p.ID, kind)
			if err != nil {
				return err
			}
			if a.jsonMode {
				if docs == nil {
					docs = []*types.Document{}
				}
				return printJSON(cmd.OutOrStdout(), docs)
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.HierarchyID, d.Name)
			}
			return nil
		}),
	}
}
