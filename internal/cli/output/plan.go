package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dangerousdave/dave/internal/safety"
)

// Disclose implements safety.Discloser. The plan always goes to a human:
// stdout in text and markdown modes, stderr in JSON mode.
func (r *Renderer) Disclose(p *safety.Plan, mode safety.Mode) {
	switch r.EffectiveMode() {
	case ModeMarkdown:
		r.discloseMarkdown(r.out, p, mode)
	case ModeJSON:
		r.disclosePlain(r.errOut, p, mode)
	default:
		r.discloseText(p, mode)
	}
}

func (r *Renderer) discloseText(p *safety.Plan, mode safety.Mode) {
	st := r.styles
	r.Println(st.Header2.Render(fmt.Sprintf("Plan: %s", p.Title)) + " " + st.Muted.Render("("+mode.String()+")"))
	if p.Empty() {
		r.Println(st.Muted.Render("  Nothing to do."))
	}
	for i, a := range p.Actions {
		line := fmt.Sprintf("  %2d. %s %s", i+1, st.Muted.Render("["+string(a.Kind)+"]"), a.Summary)
		if a.ConfirmWord != "" {
			line += " " + st.Warning.Render(fmt.Sprintf("(requires typing %q)", a.ConfirmWord))
		}
		r.Println(line)
		for _, d := range a.Details {
			r.Println(st.Muted.Render("        " + d))
		}
	}
	for _, n := range p.Notes {
		r.Println(st.Info.Render("  Note: ") + n)
	}
	r.Println("")
}

func (r *Renderer) discloseMarkdown(w io.Writer, p *safety.Plan, mode safety.Mode) {
	_, _ = fmt.Fprintf(w, "%s\n\n", FormatHeader(2, fmt.Sprintf("Plan: %s (%s)", p.Title, mode)))
	if p.Empty() {
		_, _ = fmt.Fprintln(w, "Nothing to do.")
	}
	for i, a := range p.Actions {
		line := fmt.Sprintf("%d. `%s` %s", i+1, a.Kind, a.Summary)
		if a.ConfirmWord != "" {
			line += fmt.Sprintf(" (requires typing `%s`)", a.ConfirmWord)
		}
		_, _ = fmt.Fprintln(w, line)
		for _, d := range a.Details {
			_, _ = fmt.Fprintf(w, "   - %s\n", d)
		}
	}
	if len(p.Notes) > 0 {
		_, _ = fmt.Fprintln(w, "")
		for _, n := range p.Notes {
			_, _ = fmt.Fprintf(w, "> **Note:** %s\n", n)
		}
	}
	_, _ = fmt.Fprintln(w, "")
}

func (r *Renderer) disclosePlain(w io.Writer, p *safety.Plan, mode safety.Mode) {
	_, _ = fmt.Fprintf(w, "Plan: %s (%s)\n", p.Title, mode)
	if p.Empty() {
		_, _ = fmt.Fprintln(w, "  Nothing to do.")
	}
	for i, a := range p.Actions {
		_, _ = fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, a.Kind, a.Summary)
	}
	for _, n := range p.Notes {
		_, _ = fmt.Fprintf(w, "  Note: %s\n", n)
	}
}

// Report writes the result of a gated run. In JSON mode it writes a
// PlanDocument; otherwise a short human summary.
func (r *Renderer) Report(p *safety.Plan, rep *safety.Report) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(NewPlanDocument(p, rep))
	}
	if rep == nil || p.Empty() {
		return nil
	}

	switch {
	case rep.Canceled:
		r.Warning("Canceled. Nothing was changed.")
	case rep.Mode == safety.ModePreview:
		r.Info(fmt.Sprintf("Preview only, nothing was changed. Re-run with --apply to make %d change(s).", len(p.Actions)))
	default:
		for _, o := range rep.Outcomes {
			detail := ""
			if o.Err != nil {
				detail = o.Err.Error()
			}
			r.StatusLine(o.Action.Summary, string(o.Status), detail)
		}
		r.Println("")
		summary := SummaryLine(rep)
		if rep.Count(safety.StatusFailed) > 0 {
			r.Error(summary)
		} else {
			r.Success(summary)
		}
	}
	return nil
}

// SummaryLine renders "2 applied, 1 failed" style counts.
func SummaryLine(rep *safety.Report) string {
	var parts []string
	for _, s := range []safety.Status{
		safety.StatusApplied, safety.StatusFailed, safety.StatusDeclined,
		safety.StatusSkipped, safety.StatusPreviewed,
	} {
		if n := rep.Count(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "no actions"
	}
	return strings.Join(parts, ", ")
}

// PlanDocument is the JSON form of a disclosed plan and its outcome.
type PlanDocument struct {
	Title    string           `json:"title"`
	Mode     string           `json:"mode"`
	Canceled bool             `json:"canceled,omitempty"`
	Actions  []ActionDocument `json:"actions"`
	Notes    []string         `json:"notes,omitempty"`
}

// ActionDocument is one action in a PlanDocument.
type ActionDocument struct {
	Seq         int      `json:"seq"`
	Kind        string   `json:"kind"`
	Summary     string   `json:"summary"`
	Target      string   `json:"target,omitempty"`
	Details     []string `json:"details,omitempty"`
	ConfirmWord string   `json:"confirm_word,omitempty"`
	Status      string   `json:"status,omitempty"`
	Error       string   `json:"error,omitempty"`
	DurationMS  int64    `json:"duration_ms,omitempty"`
}

// NewPlanDocument merges a plan with its report, if any.
func NewPlanDocument(p *safety.Plan, rep *safety.Report) *PlanDocument {
	if p == nil {
		return nil
	}
	doc := &PlanDocument{
		Title:   p.Title,
		Mode:    safety.ModePreview.String(),
		Actions: make([]ActionDocument, 0, len(p.Actions)),
		Notes:   p.Notes,
	}
	for i, a := range p.Actions {
		doc.Actions = append(doc.Actions, ActionDocument{
			Seq:         i + 1,
			Kind:        string(a.Kind),
			Summary:     a.Summary,
			Target:      a.Target,
			Details:     a.Details,
			ConfirmWord: a.ConfirmWord,
		})
	}
	if rep == nil {
		return doc
	}
	doc.Mode = rep.Mode.String()
	doc.Canceled = rep.Canceled
	for _, o := range rep.Outcomes {
		if o.Seq < 1 || o.Seq > len(doc.Actions) {
			continue
		}
		ad := &doc.Actions[o.Seq-1]
		ad.Status = string(o.Status)
		ad.DurationMS = o.Duration.Milliseconds()
		if o.Err != nil {
			ad.Error = o.Err.Error()
		}
	}
	return doc
}

var _ safety.Discloser = (*Renderer)(nil)
