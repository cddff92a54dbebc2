package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/pip"
	"github.com/spf13/cobra"
)

// DefaultRequirementsFile is used when no file argument is given.
const DefaultRequirementsFile = "requirements.txt"

// NewPipCommand creates the pip command group.
func NewPipCommand() *cobra.Command {
	var python string
	cmd := &cobra.Command{
		Use:   "pip",
		Short: "Python package helpers",
		Long: `Helpers around pip for one Python interpreter (pip.python, default python3).

  outdated      list outdated packages and plan one batch upgrade
  freeze        write installed packages to a requirements file
  install-each  install a requirements file one package at a time`,
	}
	cmd.PersistentFlags().StringVar(&python, "python", "", "Interpreter to run pip with (default from pip.python)")

	cmd.AddCommand(newPipOutdatedCommand(&python))
	cmd.AddCommand(newPipFreezeCommand(&python))
	cmd.AddCommand(newPipInstallEachCommand(&python))
	return cmd
}

func pipClient(cmdCtx *CommandContext, python string) *pip.Client {
	if python == "" {
		python = cmdCtx.Cfg.Pip.Python
	}
	return pip.NewClient(cmdCtx.Runner, python, cmdCtx.Logger)
}

// PipOutdatedOptions holds options for pip outdated.
type PipOutdatedOptions struct {
	Exclude   []string
	CheckOnly bool
}

func newPipOutdatedCommand(python *string) *cobra.Command {
	opts := &PipOutdatedOptions{}
	cmd := &cobra.Command{
		Use:   "outdated",
		Short: "List and upgrade outdated Python packages",
		Example: `  dave pip outdated
  dave pip outdated --exclude numpy,pandas --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipOutdated(cmd, *python, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Packages to leave alone (added to pip.exclude)")
	cmd.Flags().BoolVar(&opts.CheckOnly, "check-only", false, "List outdated packages and stop")
	return cmd
}

// PipOutdatedOutput is the JSON output of a check-only run.
type PipOutdatedOutput struct {
	Python     string        `json:"python"`
	VirtualEnv bool          `json:"virtual_env"`
	Excluded   int           `json:"excluded"`
	Packages   []pip.Package `json:"packages"`
}

func runPipOutdated(cmd *cobra.Command, python string, opts *PipOutdatedOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	ctx := cmd.Context()
	client := pipClient(cmdCtx, python)
	if _, err := client.CheckInstalled(); err != nil {
		return err
	}

	inVenv, exe, err := client.InVirtualEnv(ctx)
	probed := err == nil
	if !probed {
		cmdCtx.Logger.Warn("virtual environment probe failed", slog.Any("error", err))
		exe = client.Python()
	} else if !inVenv {
		r.Warning(fmt.Sprintf("Not running in a virtual environment; packages of %s would change.", exe))
	}

	var pkgs []pip.Package
	err = r.Spin(ctx, "Checking for outdated packages", func(ctx context.Context) error {
		var err error
		pkgs, err = client.Outdated(ctx)
		return err
	})
	if err != nil {
		return err
	}

	exclude := append(append([]string{}, cmdCtx.Cfg.Pip.Exclude...), opts.Exclude...)
	pkgs, excluded := pip.FilterExcluded(pkgs, exclude)

	if r.EffectiveMode() == output.ModeJSON && opts.CheckOnly {
		return r.JSON(PipOutdatedOutput{Python: exe, VirtualEnv: inVenv, Excluded: excluded, Packages: nonNil(pkgs)})
	}
	if excluded > 0 {
		r.Muted(fmt.Sprintf("%d excluded package(s) skipped", excluded))
	}
	if len(pkgs) == 0 {
		r.Success("All packages are up to date.")
		return nil
	}

	r.Header(2, fmt.Sprintf("Outdated packages (%d)", len(pkgs)))
	rows := make([][]string, 0, len(pkgs))
	for _, p := range pkgs {
		rows = append(rows, []string{p.Name, p.Version, p.LatestVersion})
	}
	r.Table([]string{"Package", "Installed", "Latest"}, rows)
	r.Println("")

	if opts.CheckOnly {
		return nil
	}

	plan := client.UpgradePlan(pkgs)
	if probed && !inVenv {
		plan.Note("not in a virtual environment: %s's site-packages will be modified", exe)
	}
	_, err = cmdCtx.RunPlan(ctx, plan)
	return err
}

func newPipFreezeCommand(python *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "freeze [file]",
		Short: "Write installed packages to a requirements file",
		Long: `Run 'pip freeze' and plan writing its output to a requirements file
(default requirements.txt). An existing file is refused unless --force is
given, in which case it is backed up before being replaced.`,
		Example: `  dave pip freeze
  dave pip freeze backups/requirements.txt --apply`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultRequirementsFile
			if len(args) == 1 {
				path = args[0]
			}
			return runPipFreeze(cmd, *python, path, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file (a backup is kept)")
	return cmd
}

func runPipFreeze(cmd *cobra.Command, python, path string, force bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	client := pipClient(cmdCtx, python)
	if _, err := client.CheckInstalled(); err != nil {
		return err
	}
	content, err := client.Freeze(cmd.Context())
	if err != nil {
		return err
	}
	plan, err := pip.FreezePlan(content, path, force, time.Now())
	if err != nil {
		return err
	}
	_, err = cmdCtx.RunPlan(cmd.Context(), plan)
	return err
}

func newPipInstallEachCommand(python *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install-each [requirements]",
		Short: "Install a requirements file one package at a time",
		Long: `Read a requirements file (default requirements.txt), drop version
specifiers, and plan one 'pip install' per package. A failing package does
not stop the others. pip output is mirrored to a timestamped log in log_dir.`,
		Example: `  dave pip install-each
  dave pip install-each old-machine.txt --apply --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultRequirementsFile
			if len(args) == 1 {
				path = args[0]
			}
			return runPipInstallEach(cmd, *python, path)
		},
	}
	return cmd
}

func runPipInstallEach(cmd *cobra.Command, python, path string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	names, err := pip.ReadRequirements(path)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		cmdCtx.Renderer.Info(fmt.Sprintf("%s lists no packages; nothing to install.", path))
		return nil
	}

	client := pipClient(cmdCtx, python)
	if _, err := client.CheckInstalled(); err != nil {
		return err
	}

	plan := client.InstallEachPlan(names, cmdCtx.Cfg.LogDir, time.Now())
	_, err = cmdCtx.RunPlan(cmd.Context(), plan)
	return err
}
