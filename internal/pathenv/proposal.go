package pathenv

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dangerousdave/dave/internal/safety"
)

// Change is one edit made to a proposal.
type Change struct {
	Op    string `json:"op"`
	Index int    `json:"index"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

func (c Change) String() string {
	s := fmt.Sprintf("#%02d %s", c.Index, c.Op)
	if c.From != "" {
		s += " " + c.From
	}
	if c.To != "" {
		s += " -> " + c.To
	}
	return s
}

// Change operations.
const (
	OpKeep    = "keep"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpCreate  = "create"
)

// Proposal is an editable copy of a PATH value. Indices are 1-based and
// always refer to the current state, so they shift after a removal.
// Nothing here touches the environment or the filesystem; directories to
// create are only realised through Plan.
type Proposal struct {
	home    string
	parts   []string
	kept    map[string]bool
	create  []string
	changes []Change
	logger  *slog.Logger
}

// NewProposal starts a proposal from an analysed PATH.
func NewProposal(a *Analysis, logger *slog.Logger) *Proposal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parts := make([]string, 0, len(a.Entries))
	for _, e := range a.Entries {
		parts = append(parts, e.Raw)
	}
	return &Proposal{
		home:   a.Home,
		parts:  parts,
		kept:   make(map[string]bool),
		logger: logger,
	}
}

// Value renders the proposed PATH.
func (p *Proposal) Value() string {
	return JoinList(p.parts)
}

// Parts returns a copy of the proposed elements.
func (p *Proposal) Parts() []string {
	return slices.Clone(p.parts)
}

// Export renders a shell line that applies the proposal to the current
// session.
func (p *Proposal) Export() string {
	return `export PATH="` + strings.ReplaceAll(p.Value(), `"`, `\"`) + `"`
}

// Analysis re-inspects the proposed PATH.
func (p *Proposal) Analysis() *Analysis {
	return Analyze(p.Value(), p.home)
}

// Changes returns the edits made so far.
func (p *Proposal) Changes() []Change {
	return slices.Clone(p.changes)
}

// Changed reports whether the proposal differs from where it started.
func (p *Proposal) Changed() bool {
	for _, c := range p.changes {
		if c.Op != OpKeep {
			return true
		}
	}
	return false
}

// Pending returns broken entries that have not been decided yet.
func (p *Proposal) Pending() []Entry {
	var out []Entry
	for _, e := range p.Analysis().Broken() {
		if p.kept[e.Normalized] || slices.Contains(p.create, e.Normalized) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (p *Proposal) entry(index int) (Entry, error) {
	e, ok := p.Analysis().Entry(index)
	if !ok {
		return Entry{}, fmt.Errorf("entry #%02d not found", index)
	}
	return e, nil
}

func (p *Proposal) record(c Change) {
	p.changes = append(p.changes, c)
	p.logger.Info("path proposal changed", slog.String("op", c.Op), slog.Int("index", c.Index),
		slog.String("from", c.From), slog.String("to", c.To))
}

// Keep leaves a broken entry as it is.
func (p *Proposal) Keep(index int) error {
	e, err := p.entry(index)
	if err != nil {
		return err
	}
	p.kept[e.Normalized] = true
	p.record(Change{Op: OpKeep, Index: index, From: e.Normalized})
	return nil
}

// Remove drops an entry.
func (p *Proposal) Remove(index int) error {
	e, err := p.entry(index)
	if err != nil {
		return err
	}
	p.parts = slices.Delete(p.parts, index-1, index)
	p.record(Change{Op: OpRemove, Index: index, From: e.Normalized})
	return nil
}

// Replace points an entry at dir. dir must already be a directory unless
// create is set, in which case it is queued for creation.
func (p *Proposal) Replace(index int, dir string, create bool) error {
	e, err := p.entry(index)
	if err != nil {
		return err
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("replacement for entry #%02d cannot be empty", index)
	}
	target := Normalize(dir, p.home)
	if !IsDir(target) {
		if !create {
			return &safety.InputError{
				What: "replacement directory",
				Path: target,
				Err:  errors.New("is not an existing directory"),
				Hint: "pick an existing directory, or ask for it to be created",
			}
		}
		p.queueCreate(target)
	}
	p.parts[index-1] = dir
	p.record(Change{Op: OpReplace, Index: index, From: e.Normalized, To: target})
	return nil
}

// Create keeps a broken entry and queues its directory for creation.
func (p *Proposal) Create(index int) error {
	e, err := p.entry(index)
	if err != nil {
		return err
	}
	if !e.Broken() {
		return fmt.Errorf("entry #%02d is not broken", index)
	}
	if e.Exists && !e.IsDir {
		return fmt.Errorf("entry #%02d is a file, not a missing directory", index)
	}
	p.queueCreate(e.Normalized)
	p.record(Change{Op: OpCreate, Index: index, To: e.Normalized})
	return nil
}

func (p *Proposal) queueCreate(dir string) {
	if !slices.Contains(p.create, dir) {
		p.create = append(p.create, dir)
	}
}

// Dedupe removes every entry that repeats an earlier one and returns how
// many were removed.
func (p *Proposal) Dedupe() int {
	a := p.Analysis()
	n := 0
	for i := len(a.Entries) - 1; i >= 0; i-- {
		e := a.Entries[i]
		if e.DuplicateOf == 0 {
			continue
		}
		p.parts = slices.Delete(p.parts, i, i+1)
		p.record(Change{Op: OpRemove, Index: e.Index, From: e.Normalized})
		n++
	}
	return n
}

// RemoveBroken removes every pending broken entry and returns how many
// were removed.
func (p *Proposal) RemoveBroken() int {
	pending := p.Pending()
	for i := len(pending) - 1; i >= 0; i-- {
		e := pending[i]
		p.parts = slices.Delete(p.parts, e.Index-1, e.Index)
		p.record(Change{Op: OpRemove, Index: e.Index, From: e.Normalized})
	}
	return len(pending)
}

// Plan discloses the proposal. Its only actions create queued
// directories; the PATH itself is never persisted.
func (p *Proposal) Plan() *safety.Plan {
	plan := safety.NewPlan("Fix PATH")
	for _, dir := range p.create {
		plan.Add(safety.MkdirAction(dir))
	}
	for _, c := range p.changes {
		if c.Op != OpKeep {
			plan.Note("%s", c.String())
		}
	}
	if !p.Changed() {
		plan.Note("No PATH changes proposed.")
		return plan
	}
	plan.Note("Proposed PATH (not applied): %s", p.Export())
	plan.Note("To make it permanent, put that export line in your shell profile (for example ~/.zshrc).")
	return plan
}
