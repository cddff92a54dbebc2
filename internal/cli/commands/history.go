package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View or clear shell history",
		Long: `View the tail of a shell history file, or clear it.

The shell defaults to history.shell (zsh). $HISTFILE is honoured when $SHELL
is the same shell. Clearing needs --apply and typing "yes".`,
	}
	cmd.AddCommand(newHistoryViewCommand())
	cmd.AddCommand(newHistoryClearCommand())
	return cmd
}

var shellArgs = []string{string(history.Zsh), string(history.Bash)}

func newHistoryViewCommand() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:       "view [zsh|bash]",
		Short:     "Show the last lines of a shell history file",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: shellArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryView(cmd, args, lines)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show (default from history.tail)")
	return cmd
}

func historyFile(cmdCtx *CommandContext, args []string) (history.Shell, string, error) {
	name := cmdCtx.Cfg.History.Shell
	if len(args) == 1 {
		name = args[0]
	}
	shell, err := history.ParseShell(name)
	if err != nil {
		return "", "", err
	}
	home, err := cmdCtx.Home()
	if err != nil {
		return "", "", err
	}
	return shell, history.FilePath(home, shell, os.Getenv("HISTFILE"), os.Getenv("SHELL")), nil
}

func runHistoryView(cmd *cobra.Command, args []string, lines int) error {
	cmdCtx := NewCommandContextReadOnly(cmd)
	r := cmdCtx.Renderer

	shell, path, err := historyFile(cmdCtx, args)
	if err != nil {
		return err
	}
	if lines <= 0 {
		lines = cmdCtx.Cfg.History.Tail
	}
	view, err := history.Tail(path, lines)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(view)
	}
	if view.Empty() {
		r.Info(fmt.Sprintf("%s history (%s) is empty.", shell, path))
		return nil
	}

	r.Header(2, fmt.Sprintf("Last %d of %d %s history lines", len(view.Lines), view.Total, shell))
	r.Muted(path)
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println("```")
		defer r.Println("```")
	}
	for _, l := range view.Lines {
		r.Println(l)
	}
	return nil
}

func newHistoryClearCommand() *cobra.Command {
	var noBackup bool
	cmd := &cobra.Command{
		Use:   "clear [zsh|bash]",
		Short: "Clear a shell history file",
		Long: `Plan truncating a shell history file. A timestamped backup copy is made
first unless --no-backup is given. With --apply the operator must also type
"yes", even when --yes is given.`,
		Example: `  dave history clear
  dave history clear bash --apply`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: shellArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(cmd, args, noBackup)
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not keep a copy of the history file")
	return cmd
}

func runHistoryClear(cmd *cobra.Command, args []string, noBackup bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	_, path, err := historyFile(cmdCtx, args)
	if err != nil {
		return err
	}
	backup := ""
	if !noBackup {
		backup = path + ".backup-" + time.Now().Format("20060102-150405")
	}
	plan, err := history.ClearPlan(path, backup)
	if err != nil {
		return err
	}
	_, err = cmdCtx.RunPlan(cmd.Context(), plan)
	return err
}
