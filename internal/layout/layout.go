// Package layout knows the recommended directory convention of a utility
// collection and can check or scaffold it.
package layout

import (
	"os"
	"path/filepath"

	"github.com/dangerousdave/dave/internal/safety"
)

// Dir is one recommended directory, relative to the collection root.
type Dir struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// Recommended is the directory convention, in display order.
var Recommended = []Dir{
	{"mac_utilities", "standalone utilities for the operator's machine"},
	{"projects", "larger, self-contained projects"},
	{"scripts/automation", "automation snippets and scheduled jobs"},
	{"scripts/utilities", "small general-purpose helpers"},
	{"notebooks/experiments", "notebook experiments"},
	{"docs/references", "reference notes and documentation"},
}

// Placeholder is written into new directories so version control keeps them.
const Placeholder = ".gitkeep"

// State of a recommended directory.
const (
	StatePresent = "present"
	StateMissing = "missing"
	StateBlocked = "blocked"
)

// Status is the check result for one directory.
type Status struct {
	Dir
	Abs   string `json:"abs"`
	State string `json:"state"`
	Note  string `json:"note,omitempty"`
}

// Check reports which recommended directories exist under root.
func Check(root string) ([]Status, error) {
	if err := safety.CheckDir("collection root", root); err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(Recommended))
	for _, d := range Recommended {
		abs := filepath.Join(root, filepath.FromSlash(d.Path))
		s := Status{Dir: d, Abs: abs, State: StateMissing}
		info, err := os.Stat(abs)
		switch {
		case err == nil && info.IsDir():
			s.State = StatePresent
		case err == nil:
			s.State = StateBlocked
			s.Note = "exists but is not a directory"
		case !os.IsNotExist(err):
			s.State = StateBlocked
			s.Note = err.Error()
		}
		out = append(out, s)
	}
	return out, nil
}

// Missing filters statuses down to directories that can be created.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.State == StateMissing {
			out = append(out, s)
		}
	}
	return out
}

// InitPlan plans creating every missing recommended directory under root,
// each with a placeholder file. Blocked paths are disclosed as notes.
func InitPlan(root string) (*safety.Plan, error) {
	statuses, err := Check(root)
	if err != nil {
		return nil, err
	}

	plan := safety.NewPlan("Create recommended layout in " + root)
	for _, s := range statuses {
		switch s.State {
		case StateMissing:
			mk := safety.MkdirAction(s.Abs)
			mk.Details = []string{s.Purpose}
			plan.Add(mk)
			plan.Add(safety.WriteFileAction(filepath.Join(s.Abs, Placeholder), nil))
		case StateBlocked:
			plan.Note("%s: %s; left alone", s.Path, s.Note)
		}
	}
	if plan.Empty() && len(plan.Notes) == 0 {
		plan.Note("all %d recommended directories already exist", len(Recommended))
	}
	return plan, nil
}
