package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <parent> <name>",
		Short: "Create a directory as the last child of parent",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			parent, err := lib.Hierarchy.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			node, err := lib.Hierarchy.CreateDirectory(cmd.Context(), args[1], parent)
			if err != nil {
				return err
			}
			return a.printNode(cmd.OutOrStdout(), node)
		}),
	}
}

func newNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new <type> <parent> <name>",
		Short: "Create a manuscript, character, place or episode",
		Args:  cobra.ExactArgs(3),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			kind, err := types.ParseHierarchyType(args[0])
			if err != nil {
				return err
			}
			parent, err := lib.Hierarchy.GetNode(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			node, err := lib.Hierarchy.CreateLeaf(cmd.Context(), args[2], kind, parent)
			if err != nil {
				return err
			}
			return a.printNode(cmd.OutOrStdout(), node)
		}),
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <node> <name>",
		Short: "Rename a node and its document",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			node, err := lib.Hierarchy.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			node, err = lib.Hierarchy.Rename(cmd.Context(), node, args[1])
			if err != nil {
				return err
			}
			return a.printNode(cmd.OutOrStdout(), node)
		}),
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <node>",
		Short: "Delete a node, its subtree, documents and relations",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			node, err := lib.Hierarchy.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if node.IsDirectory() {
				err = lib.Hierarchy.DeleteDirectory(cmd.Context(), node)
			} else {
				err = lib.Hierarchy.DeleteLeaf(cmd.Context(), node)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", node.ID)
			return nil
		}),
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <directory>",
		Short: "Delete everything below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			node, err := lib.Hierarchy.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := lib.Hierarchy.ClearDirectory(cmd.Context(), node); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", node.ID)
			return nil
		}),
	}
}

func newMvCmd(a *app) *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "mv <node> <parent>",
		Short: "Move a node under parent, last or before a sibling",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			node, err := lib.Hierarchy.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			node, err = lib.Hierarchy.Reposition(cmd.Context(), node, args[1], before)
			if err != nil {
				return err
			}
			return a.printNode(cmd.OutOrStdout(), node)
		}),
	}
	cmd.Flags().StringVar(&before, "before", "", "id of the sibling to place the node before")
	return cmd
}
