package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dangerousdave/dave/internal/brew"
	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/spf13/cobra"
)

// BrewOptions holds options for the brew command.
type BrewOptions struct {
	Greedy    bool
	NoGreedy  bool
	CheckOnly bool
	Refresh   bool
}

// NewBrewCommand creates the brew command.
func NewBrewCommand() *cobra.Command {
	opts := &BrewOptions{}
	cmd := &cobra.Command{
		Use:   "brew",
		Short: "Find and upgrade outdated Homebrew packages",
		Long: `List outdated Homebrew formulae and casks and plan their upgrade.

Without --apply the upgrade (brew upgrade, brew upgrade --cask, brew cleanup)
is only shown. --refresh runs 'brew update' first so the outdated list is
current; it only refreshes Homebrew's package metadata.`,
		Example: `  # What would be upgraded?
  dave brew --refresh

  # Only list, never plan
  dave brew --check-only

  # Upgrade everything without prompting
  dave brew --apply --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrew(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Greedy, "greedy", false, "Include casks that update themselves (default from brew.greedy)")
	cmd.Flags().BoolVar(&opts.NoGreedy, "no-greedy", false, "Exclude self-updating casks")
	cmd.Flags().BoolVar(&opts.CheckOnly, "check-only", false, "List outdated packages and stop")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "Run 'brew update' before checking")
	cmd.MarkFlagsMutuallyExclusive("greedy", "no-greedy")

	return cmd
}

// BrewOutput is the JSON output of a check-only run.
type BrewOutput struct {
	Greedy   bool           `json:"greedy"`
	Formulae []brew.Package `json:"formulae"`
	Casks    []brew.Package `json:"casks"`
}

func runBrew(cmd *cobra.Command, opts *BrewOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	ctx := cmd.Context()

	greedy := cmdCtx.Cfg.Brew.Greedy
	switch {
	case opts.Greedy:
		greedy = true
	case opts.NoGreedy:
		greedy = false
	}

	client := brew.NewClient(cmdCtx.Runner, cmdCtx.Logger)
	if _, err := client.CheckInstalled(); err != nil {
		return err
	}

	if opts.Refresh {
		r.Info("Refreshing Homebrew metadata (brew update)")
		if err := client.Update(ctx); err != nil {
			return fmt.Errorf("brew update failed: %w", err)
		}
	}

	var formulae, casks []brew.Package
	err = r.Spin(ctx, "Checking for outdated packages", func(ctx context.Context) error {
		var err error
		formulae, casks, err = client.Outdated(ctx, greedy)
		return err
	})
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON && opts.CheckOnly {
		return r.JSON(BrewOutput{Greedy: greedy, Formulae: nonNil(formulae), Casks: nonNil(casks)})
	}

	if len(formulae) == 0 && len(casks) == 0 {
		r.Success("Everything is up to date.")
		return nil
	}

	r.Header(2, fmt.Sprintf("Outdated: %d formulae, %d casks", len(formulae), len(casks)))
	r.Table([]string{"Name", "Type", "Installed", "Latest"}, brewRows(formulae, casks))
	r.Println("")

	if opts.CheckOnly {
		return nil
	}

	_, err = cmdCtx.RunPlan(ctx, client.UpgradePlan(formulae, casks, greedy))
	return err
}

func brewRows(formulae, casks []brew.Package) [][]string {
	rows := make([][]string, 0, len(formulae)+len(casks))
	for _, p := range append(append([]brew.Package{}, formulae...), casks...) {
		kind := "formula"
		if p.Cask {
			kind = "cask"
		}
		if p.Pinned {
			kind += " (pinned)"
		}
		rows = append(rows, []string{p.Name, kind, dashIfEmpty(strings.Join(p.Installed, ", ")), dashIfEmpty(p.Latest)})
	}
	return rows
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// nonNil keeps JSON arrays as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
