package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a project with its root directories",
			Args:  cobra.ExactArgs(1),
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				p, err := lib.Projects.Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List projects, most recently modified first",
			Args:  cobra.NoArgs,
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				projects, err := lib.Projects.List(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonMode {
					if projects == nil {
						projects = []*types.Project{}
					}
					return printJSON(cmd.OutOrStdout(), projects)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tMODIFIED")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, humanize.Time(p.LastModified))
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "rename <project> <name>",
			Short: "Rename a project",
			Args:  cobra.ExactArgs(2),
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				p, err := resolveProject(cmd.Context(), lib, args[0])
				if err != nil {
					return err
				}
				p, err = lib.Projects.Rename(cmd.Context(), p, args[1])
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <project>",
			Short: "Delete a project and everything in it",
			Args:  cobra.ExactArgs(1),
			RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
				p, err := resolveProject(cmd.Context(), lib, args[0])
				if err != nil {
					return err
				}
				if err := lib.Projects.Delete(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", p.ID)
				return nil
			}),
		},
		newSettingsCmd(a),
	)
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	var (
		font  string
		width int
		theme string
	)
	cmd := &cobra.Command{
		Use:   "settings <project>",
		Short: "Show or change a project's editor settings",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			ctx := cmd.Context()
			p, err := resolveProject(ctx, lib, args[0])
			if err != nil {
				return err
			}
			s, err := lib.Settings.GetByProject(ctx, p.ID)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("font") || flags.Changed("width") || flags.Changed("theme") {
				if flags.Changed("font") {
					s.ContentFont = font
				}
				if flags.Changed("width") {
					s.ContentWidth = width
				}
				if flags.Changed("theme") {
					s.Theme = theme
				}
				if s, err = lib.Settings.Update(ctx, s); err != nil {
					return err
				}
			}

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "font:  %s\nwidth: %d\ntheme: %s\n", s.ContentFont, s.ContentWidth, s.Theme)
			return nil
		}),
	}
	cmd.Flags().StringVar(&font, "font", "", "content font (NotoSans, NotoSerif, NanumGothic, NanumMyeongjo)")
	cmd.Flags().IntVar(&width, "width", types.DefaultContentWidth, fmt.Sprintf("content width in pixels (%d-%d)", types.MinContentWidth, types.MaxContentWidth))
	cmd.Flags().StringVar(&theme, "theme", "", "editor theme (dark, white)")
	return cmd
}
