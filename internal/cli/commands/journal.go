package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dangerousdave/dave/internal/cli/output"
	"github.com/dangerousdave/dave/internal/journal"
	"github.com/dangerousdave/dave/internal/safety"
	"github.com/spf13/cobra"
)

// NewJournalCommand creates the journal command group.
func NewJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the journal of applied changes",
		Long: `Every plan run with --apply is recorded in a SQLite journal
(journal_path, default ~/.dave/journal.db): what was planned, which actions
ran, and how each ended. Previews are not recorded.`,
	}
	cmd.AddCommand(newJournalListCommand())
	cmd.AddCommand(newJournalShowCommand())
	return cmd
}

// openJournalReadOnly opens the configured journal for reading. A journal
// that does not exist yet yields a nil store and no error.
func openJournalReadOnly(cmdCtx *CommandContext) (*journal.Store, error) {
	if cmdCtx.Cfg.NoJournal {
		return nil, &safety.InputError{What: "journal", Err: errors.New("disabled"),
			Hint: "unset no_journal (or drop --no-journal) to record and inspect runs"}
	}
	path := cmdCtx.Cfg.JournalPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	store := journal.NewStore(cmdCtx.Logger)
	if err := openJournal(store, path); err != nil {
		return nil, &safety.InputError{What: "journal", Path: path, Err: err}
	}
	return store, nil
}

func newJournalListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextReadOnly(cmd)
			r := cmdCtx.Renderer

			store, err := openJournalReadOnly(cmdCtx)
			if err != nil {
				return err
			}
			if store == nil {
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON([]*journal.Run{})
				}
				r.Info("No runs recorded yet.")
				return nil
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(nonNil(runs))
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.StartedAt.Local().Format(time.DateTime),
					run.Tool,
					run.Title,
					run.Status,
				})
			}
			r.Header(2, "Journal")
			r.Table([]string{"Run", "Started", "Tool", "Title", "Status"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

// JournalShowOutput is the JSON output of journal show.
type JournalShowOutput struct {
	Run     *journal.Run            `json:"run"`
	Actions []*journal.ActionRecord `json:"actions"`
}

func newJournalShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its actions",
		Long:  `Show one run and its actions. A unique prefix of the run id is enough.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextReadOnly(cmd)
			r := cmdCtx.Renderer

			store, err := openJournalReadOnly(cmdCtx)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("%w: %s (the journal is empty)", journal.ErrNotFound, args[0])
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			actions, err := store.ListActions(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(JournalShowOutput{Run: run, Actions: nonNil(actions)})
			}

			r.Header(2, run.Title)
			r.KeyValue("Run", run.ID)
			r.KeyValue("Tool", run.Tool)
			r.KeyValue("Mode", run.Mode)
			r.KeyValue("Status", run.Status)
			r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
			if run.FinishedAt != nil {
				r.KeyValue("Finished", run.FinishedAt.Local().Format(time.DateTime))
			}
			if run.Error != "" {
				r.KeyValue("Error", run.Error)
			}
			r.Println("")
			for _, a := range actions {
				detail := a.Error
				if detail == "" && a.DurationMS > 0 {
					detail = fmt.Sprintf("%dms", a.DurationMS)
				}
				r.StatusLine(fmt.Sprintf("%d. [%s] %s", a.Seq, a.Kind, a.Summary), a.Status, detail)
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
