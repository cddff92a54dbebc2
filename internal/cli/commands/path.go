package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/pathenv"
	"github.com/dangerousdave/dave/internal/prompt"
	"github.com/spf13/cobra"
)

// NewPathCommand creates the path command.
func NewPathCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Inspect the PATH environment variable",
		Long: `Report every PATH entry grouped by category (system, Homebrew, language
toolchains, user directories), flagging entries that are broken (missing or
not a directory), duplicated, or shadowed by an earlier parent directory.

Use 'dave path fix' to build a corrected PATH.`,
		Example: `  dave path
  dave path --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPathReport(cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Shorthand for -o json")
	cmd.AddCommand(newPathFixCommand())
	return cmd
}

func analyzePath(cmdCtx *CommandContext) (*pathenv.Analysis, error) {
	home, err := cmdCtx.Home()
	if err != nil {
		return nil, err
	}
	return pathenv.Analyze(os.Getenv("PATH"), home), nil
}

func runPathReport(cmd *cobra.Command, asJSON bool) error {
	cmdCtx := NewCommandContextReadOnly(cmd)
	r := cmdCtx.Renderer
	if asJSON {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeJSON)
	}

	a, err := analyzePath(cmdCtx)
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(a)
	}

	s := a.Summary
	r.Header(1, fmt.Sprintf("PATH: %d entries", s.Total))
	for _, g := range a.Groups() {
		r.Header(2, fmt.Sprintf("%s (%d)", g.Category, len(g.Entries)))
		rows := make([][]string, 0, len(g.Entries))
		for _, e := range g.Entries {
			rows = append(rows, []string{
				fmt.Sprintf("%02d", e.Index),
				e.Raw,
				strings.Join(e.Flags, " "),
				e.Reason,
			})
		}
		r.Table([]string{"#", "Entry", "Flags", "Why"}, rows)
		r.Println("")
	}

	r.KeyValue("Broken", formatIndices(s.Broken))
	r.KeyValue("Duplicates", formatIndices(s.Duplicates))
	r.KeyValue("Shadowed", formatIndices(s.Shadowed))
	if s.EmptySegments > 0 {
		r.KeyValue("Empty segments", strconv.Itoa(s.EmptySegments))
	}
	if len(s.Broken)+len(s.Duplicates) > 0 {
		r.Println("")
		r.Info("Run 'dave path fix' to preview a corrected PATH.")
	}
	return nil
}

func formatIndices(idx []int) string {
	if len(idx) == 0 {
		return "none"
	}
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = fmt.Sprintf("#%02d", n)
	}
	return strings.Join(parts, ", ")
}

// PathFixOptions holds options for path fix.
type PathFixOptions struct {
	RemoveBroken bool
	Dedupe       bool
	Interactive  bool
}

func newPathFixCommand() *cobra.Command {
	opts := &PathFixOptions{}
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Propose a corrected PATH",
		Long: `Build a corrected PATH. Duplicates can be dropped (--dedupe) and broken
entries removed (--remove-broken). On a terminal, every remaining broken
entry is offered a choice: keep it, remove it, create the missing directory,
or replace it with a nearby directory that does exist.

The result is printed as an export line. dave never writes your PATH or
your shell profile; the only change it can make is creating directories you
asked for, and only with --apply.`,
		Example: `  dave path fix --dedupe --remove-broken
  dave path fix --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPathFix(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.RemoveBroken, "remove-broken", false, "Remove every broken entry")
	cmd.Flags().BoolVar(&opts.Dedupe, "dedupe", false, "Remove repeated entries")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Ask about broken entries even when stdin is not a terminal")
	return cmd
}

func runPathFix(cmd *cobra.Command, opts *PathFixOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	a, err := analyzePath(cmdCtx)
	if err != nil {
		return err
	}
	p := pathenv.NewProposal(a, cmdCtx.Logger)

	if opts.Dedupe {
		if n := p.Dedupe(); n > 0 {
			r.Muted(fmt.Sprintf("%d duplicate entries dropped", n))
		}
	}
	if opts.RemoveBroken {
		if n := p.RemoveBroken(); n > 0 {
			r.Muted(fmt.Sprintf("%d broken entries dropped", n))
		}
	}

	if pending := p.Pending(); len(pending) > 0 {
		if opts.Interactive || interactive(cmd) {
			limit := cmdCtx.Cfg.Path.SuggestionLimit
			if err := decideBroken(r, cmdCtx.Prompter, p, limit); err != nil {
				r.Warning("Stopped asking: " + err.Error())
			}
		} else {
			r.Info(fmt.Sprintf("%d broken entries left as they are; pass --remove-broken or run on a terminal to decide each.", len(pending)))
		}
	}

	_, err = cmdCtx.RunPlan(cmd.Context(), p.Plan())
	return err
}

// decideBroken walks the operator through each undecided broken entry.
// Indices shift after removals, so the first pending entry is always
// re-read from the proposal.
func decideBroken(r *output.Renderer, ask prompt.Prompter, p *pathenv.Proposal, limit int) error {
	for {
		pending := p.Pending()
		if len(pending) == 0 {
			return nil
		}
		e := pending[0]
		suggestions := pathenv.Suggest(e.Normalized, limit)

		r.Println("")
		r.Warning(fmt.Sprintf("#%02d %s is broken (%s)", e.Index, e.Raw, brokenReason(e)))
		for i, s := range suggestions {
			r.Printf("    %d) %s\n", i+1, s)
		}
		r.Println("    k) keep   r) remove   c) create directory   q) stop asking")
		r.Println("    or type a directory to use instead")

		for {
			answer, err := ask.Ask("Choice: ")
			if err != nil {
				return err
			}
			done, err := applyChoice(p, e, suggestions, answer)
			if err != nil {
				r.Warning(err.Error())
				continue
			}
			if done {
				return nil
			}
			break
		}
	}
}

// applyChoice applies one answer. It reports done when the operator asked
// to stop.
func applyChoice(p *pathenv.Proposal, e pathenv.Entry, suggestions []string, answer string) (bool, error) {
	answer = strings.TrimSpace(answer)
	switch strings.ToLower(answer) {
	case "":
		return false, errors.New("pick one of the options")
	case "q", "quit":
		return true, nil
	case "k", "keep":
		return false, p.Keep(e.Index)
	case "r", "remove":
		return false, p.Remove(e.Index)
	case "c", "create":
		return false, p.Create(e.Index)
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(suggestions) {
			return false, fmt.Errorf("no suggestion %d", n)
		}
		return false, p.Replace(e.Index, suggestions[n-1], false)
	}
	return false, p.Replace(e.Index, answer, false)
}

func brokenReason(e pathenv.Entry) string {
	if e.Exists {
		return "not a directory"
	}
	return "does not exist"
}
