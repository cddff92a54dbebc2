package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/pythons"
	"github.com/spf13/cobra"
)

// NewPythonCommand creates the python command group.
func NewPythonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "python",
		Short: "Find, switch and remove Python interpreters",
		Long: `Find every Python interpreter on PATH and in the usual install locations,
make one of them the default, or remove one.

Interpreters are numbered in 'dave python list'; 'use' and 'remove' take that
number or a path. System interpreters are protected and never removed.`,
	}
	cmd.AddCommand(newPythonListCommand())
	cmd.AddCommand(newPythonUseCommand())
	cmd.AddCommand(newPythonRemoveCommand())
	return cmd
}

func scanPythons(ctx context.Context, cmdCtx *CommandContext) (*pythons.Manager, *pythons.Inventory, error) {
	m := pythons.NewManager(cmdCtx.Runner, cmdCtx.Logger)
	var inv *pythons.Inventory
	err := cmdCtx.Renderer.Spin(ctx, "Looking for Python interpreters", func(ctx context.Context) error {
		var err error
		inv, err = m.Scan(ctx, pythons.Options{
			PathEnv:      os.Getenv("PATH"),
			LocalAppData: os.Getenv("LOCALAPPDATA"),
			ProbePython:  cmdCtx.Cfg.Pip.Python,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if len(inv.Installs) == 0 {
		return nil, nil, fmt.Errorf("no Python interpreters found on PATH or in the usual install locations")
	}
	return m, inv, nil
}

func newPythonListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List Python interpreters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextReadOnly(cmd)
			r := cmdCtx.Renderer

			_, inv, err := scanPythons(cmd.Context(), cmdCtx)
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(inv)
			}

			r.Header(2, fmt.Sprintf("Python interpreters (%d)", len(inv.Installs)))
			rows := make([][]string, 0, len(inv.Installs))
			for i, inst := range inv.Installs {
				rows = append(rows, pythonRow(inv, i, inst))
			}
			r.Table([]string{"#", "Version", "Vendor", "Arch", "pip", "Commands", "Path"}, rows)
			r.Println("")
			r.Muted("* active default, (p) protected")
			return nil
		},
	}
}

func pythonRow(inv *pythons.Inventory, i int, inst pythons.Install) []string {
	num := fmt.Sprintf("%d", i+1)
	if inv.IsDefault(inst) {
		num += "*"
	}
	vendor := inst.Vendor
	if inst.Protected {
		vendor += " (p)"
	}
	pip := "no"
	if inst.Pip {
		pip = "yes"
	}
	return []string{num, inst.Version, vendor, inst.Arch, pip, strings.Join(inst.Commands(), ", "), inst.Path}
}

func newPythonUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use <#|path>",
		Short: "Make an interpreter the default python and python3",
		Long: `Plan appending python/python3 aliases for the chosen interpreter to your
shell startup file (~/.zshrc for zsh, ~/.bash_profile otherwise; the
PowerShell profile on Windows). The file is backed up first.`,
		Example: `  dave python use 2
  dave python use /opt/homebrew/bin/python3.12 --apply`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			m, inv, err := scanPythons(ctx, cmdCtx)
			if err != nil {
				return err
			}
			inst, err := inv.Select(args[0])
			if err != nil {
				return err
			}

			var profile string
			if runtime.GOOS == "windows" {
				profile, err = m.PowerShellProfile(ctx)
			} else {
				var home string
				home, err = cmdCtx.Home()
				profile = pythons.RCFile(home, os.Getenv("SHELL"))
			}
			if err != nil {
				return err
			}

			_, err = cmdCtx.RunPlan(ctx, m.SwitchPlan(inst, profile, time.Now()))
			return err
		},
	}
}

func newPythonRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <#|path>",
		Short: "Remove an interpreter",
		Long: `Plan removing an interpreter. Protected system interpreters, the active
default, and the interpreter dave uses for pip are refused. Homebrew
interpreters are uninstalled with brew; framework installs and locations
you cannot write to get manual instructions instead. Removing needs --apply
and typing "delete".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			m, inv, err := scanPythons(ctx, cmdCtx)
			if err != nil {
				return err
			}
			inst, err := inv.Select(args[0])
			if err != nil {
				return err
			}
			plan, err := m.RemovePlan(inv, inst)
			if err != nil {
				return err
			}
			_, err = cmdCtx.RunPlan(ctx, plan)
			return err
		},
	}
}
