package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/dangerousdave/dave/internal/cli/config"
	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/journal"
	"github.com/dangerousdave/dave/internal/prompt"
	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/safety"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runnerKey is used to store a runner in context.
type runnerKey struct{}

// WithRunner returns a context whose commands run external programs
// through r instead of the host executor.
func WithRunner(ctx context.Context, r runner.Runner) context.Context {
	return context.WithValue(ctx, runnerKey{}, r)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Runner   runner.Runner
	Prompter prompt.Prompter

	// Journal is nil in preview mode, with --no-journal, or when the
	// journal could not be opened.
	Journal *journal.Store

	tool string
}

// NewCommandContext creates a CommandContext for cmd.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
		Runner:   runnerFor(cmd, r, logger),
		tool:     toolName(cmd),
	}

	var closers []func() error
	p, closePrompt := newPrompter(cmd, r)
	cc.Prompter = p
	closers = append(closers, closePrompt)

	if cfg.Apply && !cfg.NoJournal {
		store := journal.NewStore(logger)
		if err := openJournal(store, cfg.JournalPath); err != nil {
			logger.Warn("journal unavailable", slog.String("path", cfg.JournalPath), slog.Any("error", err))
			r.Warning("Journal unavailable, this run will not be recorded: " + err.Error())
		} else {
			cc.Journal = store
			closers = append(closers, store.Close)
		}
	}

	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextReadOnly creates a CommandContext for commands that
// never change anything. It has no prompter and no journal.
func NewCommandContextReadOnly(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
		Runner:   runnerFor(cmd, r, logger),
		tool:     toolName(cmd),
	}
}

// Mode returns the gate mode selected by --apply.
func (c *CommandContext) Mode() safety.Mode {
	if c.Cfg.Apply {
		return safety.ModeApply
	}
	return safety.ModePreview
}

// Gate builds the safety gate for this command.
func (c *CommandContext) Gate() *safety.Gate {
	g := &safety.Gate{
		Mode:      c.Mode(),
		AssumeYes: c.Cfg.AssumeYes,
		Prompter:  c.Prompter,
		Discloser: c.Renderer,
		Logger:    c.Logger.With(slog.String("tool", c.tool)),
	}
	if c.Journal != nil {
		g.Recorder = c.Journal.NewRecorder(c.tool)
	}
	return g
}

// RunPlan passes plan through the gate and reports the outcome.
func (c *CommandContext) RunPlan(ctx context.Context, plan *safety.Plan) (*safety.Report, error) {
	rep, err := c.Gate().Run(ctx, plan)
	if rerr := c.Renderer.Report(plan, rep); rerr != nil && err == nil {
		err = rerr
	}
	return rep, err
}

// Home returns the operator's home directory.
func (c *CommandContext) Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", &safety.InputError{What: "home directory", Err: err, Hint: "set HOME"}
	}
	return home, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration, or the defaults when the
// root command did not load one.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func openJournal(store *journal.Store, path string) error {
	if err := store.Open(path); err != nil {
		return err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return err
	}
	return nil
}

func runnerFor(cmd *cobra.Command, r *output.Renderer, logger *slog.Logger) runner.Runner {
	if rn, ok := cmd.Context().Value(runnerKey{}).(runner.Runner); ok && rn != nil {
		return rn
	}
	// Streamed tool output must not corrupt a JSON document on stdout.
	stdout := cmd.OutOrStdout()
	if r.EffectiveMode() == output.ModeJSON {
		stdout = cmd.ErrOrStderr()
	}
	return runner.NewExec(stdout, cmd.ErrOrStderr(), logger)
}

// newPrompter uses readline on an interactive terminal and a line reader
// for anything else (pipes, tests).
func newPrompter(cmd *cobra.Command, r *output.Renderer) (prompt.Prompter, func() error) {
	out := r.Writer()
	if r.EffectiveMode() == output.ModeJSON {
		out = r.ErrWriter()
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rl, err := prompt.NewReadline(f, out)
		if err == nil {
			return rl, rl.Close
		}
	}
	return prompt.NewLine(in, out), func() error { return nil }
}

// interactive reports whether stdin is a terminal a human can answer on.
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// toolName is the command path without the binary name, e.g. "pip freeze".
func toolName(cmd *cobra.Command) string {
	name := strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name())
	if name = strings.TrimSpace(name); name == "" {
		return cmd.Name()
	}
	return name
}
