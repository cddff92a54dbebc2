// Package safety implements the contract every dave utility honours: state
// changes are described as a Plan, disclosed before anything happens, and
// executed only when the operator explicitly opts in.
package safety

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies what an action does to the machine.
type Kind string

// Action kinds.
const (
	KindRun      Kind = "run"
	KindWrite    Kind = "write"
	KindAppend   Kind = "append"
	KindTruncate Kind = "truncate"
	KindRemove   Kind = "remove"
	KindMkdir    Kind = "mkdir"
	KindCopy     Kind = "copy"
)

// Action is a single state-changing step.
type Action struct {
	Kind    Kind
	Summary string
	Target  string
	Details []string

	// ConfirmWord, when set, must be typed by the operator before this
	// action runs, on top of the plan-level confirmation.
	ConfirmWord string

	Do func(ctx context.Context) error
}

// Plan is the ordered list of actions a utility intends to perform.
type Plan struct {
	Title   string
	Actions []Action

	// Notes are disclosed with the plan but never executed: manual steps,
	// warnings, things the tool refuses to do on its own.
	Notes []string

	// ContinueOnError keeps executing the remaining actions after a failure.
	ContinueOnError bool
}

// NewPlan creates an empty plan.
func NewPlan(title string) *Plan {
	return &Plan{Title: title}
}

// Add appends an action and returns the plan for chaining.
func (p *Plan) Add(a Action) *Plan {
	p.Actions = append(p.Actions, a)
	return p
}

// Note appends a disclosed, non-executed note.
func (p *Plan) Note(format string, args ...any) *Plan {
	p.Notes = append(p.Notes, fmt.Sprintf(format, args...))
	return p
}

// Empty reports whether the plan has no actions.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Actions) == 0
}

// Validate checks that every action can be disclosed and executed.
func (p *Plan) Validate() error {
	if p == nil {
		return nil
	}
	var errs []error
	for i, a := range p.Actions {
		if a.Summary == "" {
			errs = append(errs, fmt.Errorf("action %d has no summary", i+1))
		}
		if a.Do == nil {
			errs = append(errs, fmt.Errorf("action %d (%s) has nothing to do", i+1, a.Summary))
		}
	}
	return errors.Join(errs...)
}

// Mode selects whether a plan is only previewed or actually applied.
type Mode int

// Modes. Preview is the zero value so an unset mode never changes anything.
const (
	ModePreview Mode = iota
	ModeApply
)

func (m Mode) String() string {
	if m == ModeApply {
		return "apply"
	}
	return "preview"
}
