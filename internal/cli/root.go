// Package cli provides the command-line interface for dave.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dangerousdave/dave/internal/cli/commands"
	"github.com/dangerousdave/dave/internal/cli/config"
	"github.com/dangerousdave/dave/internal/logging"
	"github.com/dangerousdave/dave/internal/safety"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// closeLog releases the log file opened for the current invocation.
var closeLog = func() error { return nil }

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "dave",
		Short: "dave - safety-first utilities for your machine",
		Long: `dave is a collection of small utilities for keeping a workstation tidy:
Homebrew and pip upgrades, shell history, disk usage, PATH and alias
inspection, Python interpreter management, and a recommended layout for
your own scripts.

Every command that could change something only shows its plan by default.
Pass --apply to carry it out; you will be asked to confirm unless you also
pass --yes.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger, closer, err := logging.New(logging.Options{
				Verbose: cfg.Verbose,
				Stderr:  cmd.ErrOrStderr(),
				File:    cfg.LogFile,
			})
			if err != nil {
				return &safety.InputError{What: "log file", Path: cfg.LogFile, Err: err}
			}
			closeLog = closer

			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			logger.Debug("command starting", slog.String("command", cmd.CommandPath()), slog.Bool("apply", cfg.Apply))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Previews by default, --apply to change anything
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./dave.yaml, then ~/.dave/dave.yaml)")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	pf.BoolP("verbose", "v", false, "Verbose output (debug log on stderr)")
	pf.Bool("apply", false, "Carry out the plan instead of only showing it")
	pf.BoolP("yes", "y", false, "Answer yes to plan prompts (with --apply); typed words are still asked")
	pf.String("journal", "", "Journal database (default ~/.dave/journal.db)")
	pf.Bool("no-journal", false, "Do not record applied runs")
	pf.String("log-file", "", "Also write the debug log to this file")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewBrewCommand())
	rootCmd.AddCommand(commands.NewPipCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewDiskUsageCommand())
	rootCmd.AddCommand(commands.NewPathCommand())
	rootCmd.AddCommand(commands.NewAliasesCommand())
	rootCmd.AddCommand(commands.NewPythonCommand())
	rootCmd.AddCommand(commands.NewLayoutCommand())
	rootCmd.AddCommand(commands.NewJournalCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// ExecuteContext runs the root command with explicit arguments and streams.
// Errors are printed as "Error: ..." followed by a "Hint: ..." line when the
// error carries one.
func ExecuteContext(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	config.ResetConfig()
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.ExecuteContext(ctx)
	_ = closeLog()
	closeLog = func() error { return nil }
	if err != nil {
		PrintError(errOut, err)
		return err
	}
	return nil
}

// PrintError writes err and its hint, if any.
func PrintError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	if hint := safety.Hint(err); hint != "" {
		_, _ = fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for dave.

To load completions:

Bash:
  $ source <(dave completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ dave completion bash > /etc/bash_completion.d/dave
  # macOS:
  $ dave completion bash > $(brew --prefix)/etc/bash_completion.d/dave

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ dave completion zsh > "${fpath[1]}/_dave"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ dave completion fish | source

  # To load completions for each session, execute once:
  $ dave completion fish > ~/.config/fish/completions/dave.fish

PowerShell:
  PS> dave completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> dave completion powershell > dave.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
