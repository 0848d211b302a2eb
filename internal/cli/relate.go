package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func newRelateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relate",
		Short: "Manage relations between characters, places and episodes",
		Long: "Relation kinds are character-character, character-place, episode-character\n" +
			"and episode-place. Endpoints are given as leaf node ids, in the order the\n" +
			"kind names them.",
	}
	cmd.AddCommand(
		newRelateAddCmd(a),
		newRelateUpdateCmd(a),
		&cobra.Command{
			Use:   "rm <kind> <relation>",
			Short: "Delete a relation",
			Args:  cobra.ExactArgs(2),
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				kind, err := types.ParseRelationKind(args[0])
				if err != nil {
					return err
				}
				spec, err := store.LookupRelation(kind)
				if err != nil {
					return err
				}
				rel := &types.Relation{ID: args[1], Kind: kind}
				if err := lib.Join.DeleteRelation(cmd.Context(), spec.FromKind, spec.ToKind, rel); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", rel.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ls <kind> <node>",
			Short: "List the relations of a kind touching a leaf",
			Args:  cobra.ExactArgs(2),
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				kind, err := types.ParseRelationKind(args[0])
				if err != nil {
					return err
				}
				_, doc, err := documentOf(cmd.Context(), lib, args[1])
				if err != nil {
					return err
				}
				rels, err := lib.Join.RelationsOf(cmd.Context(), kind, doc.ID)
				if err != nil {
					return err
				}
				if a.jsonMode {
					if rels == nil {
						rels = []*types.HydratedRelation{}
					}
					return printJSON(cmd.OutOrStdout(), rels)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tFROM\tTO\tRELATION\tMEMO")
				for _, r := range rels {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.From.Name, r.To.Name, r.Relation.Relation, r.Memo)
				}
				return tw.Flush()
			}),
		},
	)
	return cmd
}

type relationFlags struct {
	label string
	memo  string
}

func (f *relationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "what the relation is")
	cmd.Flags().StringVarP(&f.memo, "memo", "m", "", "free-form note")
}

// relationEndpoints resolves the two leaf node ids of a relate command into
// documents.
func relationEndpoints(cmd *cobra.Command, lib *store.Library, fromNode, toNode string) (*types.Document, *types.Document, error) {
	_, from, err := documentOf(cmd.Context(), lib, fromNode)
	if err != nil {
		return nil, nil, err
	}
	_, to, err := documentOf(cmd.Context(), lib, toNode)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (a *app) printRelation(cmd *cobra.Command, h *types.HydratedRelation) error {
	if a.jsonMode {
		return printJSON(cmd.OutOrStdout(), h)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s -> %s\t%s\n", h.ID, h.From.Name, h.To.Name, h.Relation.Relation)
	return nil
}

func newRelateAddCmd(a *app) *cobra.Command {
	var f relationFlags
	cmd := &cobra.Command{
		Use:   "add <kind> <from> <to>",
		Short: "Relate two leaves",
		Args:  cobra.ExactArgs(3),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			kind, err := types.ParseRelationKind(args[0])
			if err != nil {
				return err
			}
			from, to, err := relationEndpoints(cmd, lib, args[1], args[2])
			if err != nil {
				return err
			}
			h, err := lib.Join.AddRelation(cmd.Context(), kind, from, to, f.label, f.memo)
			if err != nil {
				return err
			}
			return a.printRelation(cmd, h)
		}),
	}
	f.register(cmd)
	return cmd
}

func newRelateUpdateCmd(a *app) *cobra.Command {
	var f relationFlags
	cmd := &cobra.Command{
		Use:   "update <kind> <relation> <from> <to>",
		Short: "Replace the endpoints, label and memo of a relation",
		Args:  cobra.ExactArgs(4),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			kind, err := types.ParseRelationKind(args[0])
			if err != nil {
				return err
			}
			existing, err := lib.Join.GetRelation(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			from, to, err := relationEndpoints(cmd, lib, args[2], args[3])
			if err != nil {
				return err
			}
			h, err := lib.Join.UpdateRelation(cmd.Context(), kind, &existing.Relation, from, to, f.label, f.memo)
			if err != nil {
				return err
			}
			return a.printRelation(cmd, h)
		}),
	}
	f.register(cmd)
	return cmd
}
