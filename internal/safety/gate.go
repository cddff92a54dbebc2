package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrConfirmationRequired is returned when apply mode needs a confirmation
// but no way of asking the operator is available.
var ErrConfirmationRequired = errors.New("confirmation required: re-run from a terminal or pass --yes")

// Status is the final state of a single action.
type Status string

// Outcome statuses.
const (
	StatusPreviewed Status = "previewed"
	StatusApplied   Status = "applied"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusDeclined  Status = "declined"
)

// Outcome records what happened to one action.
type Outcome struct {
	Seq      int
	Action   Action
	Status   Status
	Err      error
	Duration time.Duration
}

// Report summarises a gated plan run.
type Report struct {
	Title    string
	Mode     Mode
	Outcomes []Outcome
	Canceled bool
}

// Count returns the number of outcomes with the given status.
func (r *Report) Count(s Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Err joins the errors of failed actions.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Action.Summary, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Prompter asks the operator questions.
type Prompter interface {
	Confirm(question string) (bool, error)
	Ask(question string) (string, error)
}

// Discloser shows a plan to the operator before anything runs.
type Discloser interface {
	Disclose(p *Plan, mode Mode)
}

// Recorder persists outcomes.
type Recorder interface {
	Begin(ctx context.Context, title string, mode Mode) error
	Record(ctx context.Context, o Outcome) error
	Finish(ctx context.Context, r *Report) error
}

// Gate enforces disclosure and opt-in around a plan.
type Gate struct {
	Mode      Mode
	AssumeYes bool
	Prompter  Prompter
	Discloser Discloser
	Recorder  Recorder
	Logger    *slog.Logger
}

// Run discloses the plan and, in apply mode and after confirmation,
// executes it.
func (g *Gate) Run(ctx context.Context, p *Plan) (*Report, error) {
	if p == nil {
		p = &Plan{}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %q: %w", p.Title, err)
	}

	logger := g.logger()
	report := &Report{Title: p.Title, Mode: g.Mode}

	if g.Discloser != nil {
		g.Discloser.Disclose(p, g.Mode)
	}
	logger.Info("plan disclosed", slog.String("title", p.Title),
		slog.Int("actions", len(p.Actions)), slog.String("mode", g.Mode.String()))

	if p.Empty() {
		return report, nil
	}

	g.begin(ctx, p.Title)

	if g.Mode != ModeApply {
		for i, a := range p.Actions {
			g.record(ctx, report, Outcome{Seq: i + 1, Action: a, Status: StatusPreviewed})
		}
		g.finish(ctx, report)
		return report, nil
	}

	if !g.AssumeYes {
		if g.Prompter == nil {
			report.Canceled = true
			g.finish(ctx, report)
			return report, ErrConfirmationRequired
		}
		ok, err := g.Prompter.Confirm(fmt.Sprintf("Apply %d change(s)?", len(p.Actions)))
		if err != nil {
			report.Canceled = true
			g.finish(ctx, report)
			return report, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			logger.Info("plan declined by operator", slog.String("title", p.Title))
			report.Canceled = true
			g.finish(ctx, report)
			return report, nil
		}
	}

	stopped := false
	var interrupted error
	for i, a := range p.Actions {
		seq := i + 1
		if stopped {
			g.record(ctx, report, Outcome{Seq: seq, Action: a, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			g.record(ctx, report, Outcome{Seq: seq, Action: a, Status: StatusSkipped, Err: err})
			interrupted = err
			stopped = true
			continue
		}

		// AssumeYes answers the plan question only; typed words are always asked.
		if a.ConfirmWord != "" {
			if !g.confirmWord(a) {
				logger.Info("action declined", slog.String("summary", a.Summary))
				g.record(ctx, report, Outcome{Seq: seq, Action: a, Status: StatusDeclined})
				continue
			}
		}

		start := time.Now()
		err := a.Do(ctx)
		o := Outcome{Seq: seq, Action: a, Duration: time.Since(start)}
		if err != nil {
			o.Status = StatusFailed
			o.Err = err
			logger.Warn("action failed", slog.String("summary", a.Summary), slog.Any("error", err))
			if !p.ContinueOnError {
				stopped = true
			}
		} else {
			o.Status = StatusApplied
			logger.Info("action applied", slog.String("summary", a.Summary), slog.Duration("took", o.Duration))
		}
		g.record(ctx, report, o)
	}

	g.finish(ctx, report)

	if failed := report.Count(StatusFailed); failed > 0 {
		return report, fmt.Errorf("%d of %d actions failed: %w", failed, len(p.Actions), report.Err())
	}
	if interrupted != nil {
		return report, fmt.Errorf("interrupted, %d of %d actions skipped: %w",
			report.Count(StatusSkipped), len(p.Actions), interrupted)
	}
	return report, nil
}

func (g *Gate) confirmWord(a Action) bool {
	if g.Prompter == nil {
		return false
	}
	answer, err := g.Prompter.Ask(fmt.Sprintf("Type '%s' to confirm: %s: ", a.ConfirmWord, a.Summary))
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), a.ConfirmWord)
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (g *Gate) begin(ctx context.Context, title string) {
	if g.Recorder == nil {
		return
	}
	if err := g.Recorder.Begin(ctx, title, g.Mode); err != nil {
		g.logger().Warn("journal begin failed", slog.Any("error", err))
	}
}

func (g *Gate) record(ctx context.Context, r *Report, o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if g.Recorder == nil {
		return
	}
	if err := g.Recorder.Record(ctx, o); err != nil {
		g.logger().Warn("journal record failed", slog.Any("error", err))
	}
}

func (g *Gate) finish(ctx context.Context, r *Report) {
	if g.Recorder == nil {
		return
	}
	if err := g.Recorder.Finish(ctx, r); err != nil {
		g.logger().Warn("journal finish failed", slog.Any("error", err))
	}
}
