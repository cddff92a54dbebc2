package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dangerousdave/dave/internal/aliases"
	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewAliasesCommand creates the aliases command.
func NewAliasesCommand() *cobra.Command {
	var shells []string
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "List shell aliases and where they are defined",
		Long: `Ask each shell for its aliases (running it interactively so the usual
startup files load) and locate the file and line defining each one. Startup
files, files they source, and oh-my-zsh custom files and plugins are
searched. This command never changes anything.`,
		Example: `  dave aliases
  dave aliases --shell bash -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAliases(cmd, shells)
		},
	}
	cmd.Flags().StringSliceVar(&shells, "shell", nil, "Shells to query (default from aliases.shells)")
	_ = cmd.RegisterFlagCompletionFunc("shell", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return aliases.Shells, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runAliases(cmd *cobra.Command, shells []string) error {
	cmdCtx := NewCommandContextReadOnly(cmd)
	r := cmdCtx.Renderer

	if len(shells) == 0 {
		shells = cmdCtx.Cfg.Aliases.Shells
	}
	for _, s := range shells {
		if !slices.Contains(aliases.Shells, s) {
			return fmt.Errorf("unsupported shell %q (want %s)", s, strings.Join(aliases.Shells, " or "))
		}
	}
	home, err := cmdCtx.Home()
	if err != nil {
		return err
	}

	collector := aliases.NewCollector(cmdCtx.Runner, cmdCtx.Logger)
	var entries []aliases.Entry
	var collected []string
	var errs []error
	for _, shell := range shells {
		list, err := collector.Collect(cmd.Context(), shell)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		index := aliases.IndexDefinitions(aliases.DefinitionFiles(shell, home, cmdCtx.Cfg.Aliases.MaxDepth))
		entries = append(entries, aliases.Resolve(shell, list, index)...)
		collected = append(collected, shell)
	}
	if len(collected) == 0 {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		r.Warning(err.Error())
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(nonNil(entries))
	}

	for _, shell := range collected {
		var rows [][]string
		for _, e := range entries {
			if e.Shell != shell {
				continue
			}
			rows = append(rows, []string{e.Alias.Name, e.Alias.Value, aliasSource(e, home)})
		}
		r.Header(2, fmt.Sprintf("%s aliases (%d)", shell, len(rows)))
		r.Table([]string{"Alias", "Definition", "Source"}, rows)
		r.Println("")
	}
	return nil
}

func aliasSource(e aliases.Entry, home string) string {
	if !e.Found() {
		return "not found"
	}
	parts := make([]string, 0, len(e.Sources))
	for _, loc := range e.Sources {
		parts = append(parts, fmt.Sprintf("%s:%d", tildePath(loc.File, home), loc.Line))
	}
	return strings.Join(parts, ", ")
}

// tildePath shortens paths under home to ~/...
func tildePath(p, home string) string {
	if home == "" {
		return p
	}
	if rel, err := filepath.Rel(home, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join("~", rel)
	}
	return p
}
