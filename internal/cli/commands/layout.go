package commands

import (
	"path/filepath"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/layout"
	"github.com/spf13/cobra"
)

// NewLayoutCommand creates the layout command group.
func NewLayoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Check or scaffold the recommended collection layout",
		Long: `The recommended layout of a utility collection is:

  mac_utilities/          standalone utilities for the operator's machine
  projects/               larger, self-contained projects
  scripts/automation/     automation snippets and scheduled jobs
  scripts/utilities/      small general-purpose helpers
  notebooks/experiments/  notebook experiments
  docs/references/        reference notes and documentation`,
	}
	cmd.AddCommand(newLayoutCheckCommand())
	cmd.AddCommand(newLayoutInitCommand())
	return cmd
}

func layoutRoot(args []string) string {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

func newLayoutCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Report which recommended directories exist",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextReadOnly(cmd)
			r := cmdCtx.Renderer

			statuses, err := layout.Check(layoutRoot(args))
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(statuses)
			}

			r.Header(2, "Layout of "+layoutRoot(args))
			for _, s := range statuses {
				r.StatusLine(s.Path+"/", s.State, s.Note)
			}
			if missing := len(layout.Missing(statuses)); missing > 0 {
				r.Println("")
				r.Info("Run 'dave layout init' to preview creating the missing directories.")
			}
			return nil
		},
	}
}

func newLayoutInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create the missing recommended directories",
		Long: `Plan creating every missing recommended directory, each with a .gitkeep
placeholder. Nothing is created without --apply. Existing files or
directories are never touched.`,
		Example: `  dave layout init ~/utilities
  dave layout init ~/utilities --apply --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := layout.InitPlan(layoutRoot(args))
			if err != nil {
				return err
			}
			_, err = cmdCtx.RunPlan(cmd.Context(), plan)
			return err
		},
	}
}
