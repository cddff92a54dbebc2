package journal

import (
	"context"
	"fmt"
	"sync"

	"github.com/dangerousdave/dave/internal/safety"
)

// Recorder adapts a Store to safety.Recorder for one tool.
type Recorder struct {
	store *Store
	tool  string

	mu    sync.Mutex
	runID string
}

// NewRecorder returns a recorder that files runs under tool.
func (s *Store) NewRecorder(tool string) *Recorder {
	return &Recorder{store: s, tool: tool}
}

// RunID returns the id of the current run, if one was started.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Begin implements safety.Recorder.
func (r *Recorder) Begin(ctx context.Context, title string, mode safety.Mode) error {
	run, err := r.store.StartRun(context.WithoutCancel(ctx), r.tool, title, mode.String())
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.runID = run.ID
	r.mu.Unlock()
	return nil
}

// Record implements safety.Recorder.
func (r *Recorder) Record(ctx context.Context, o safety.Outcome) error {
	runID := r.RunID()
	if runID == "" {
		return fmt.Errorf("record before begin")
	}
	rec := &ActionRecord{
		RunID:      runID,
		Seq:        o.Seq,
		Kind:       string(o.Action.Kind),
		Summary:    o.Action.Summary,
		Target:     o.Action.Target,
		Status:     string(o.Status),
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return r.store.RecordAction(context.WithoutCancel(ctx), rec)
}

// Finish implements safety.Recorder.
func (r *Recorder) Finish(ctx context.Context, rep *safety.Report) error {
	runID := r.RunID()
	if runID == "" {
		return fmt.Errorf("finish before begin")
	}
	status := RunStatusForReport(rep)
	var msg string
	if err := rep.Err(); err != nil {
		msg = err.Error()
	}
	return r.store.FinishRun(context.WithoutCancel(ctx), runID, status, msg)
}

// RunStatusForReport maps a gate report to a run status.
func RunStatusForReport(rep *safety.Report) string {
	switch {
	case rep == nil:
		return RunStatusOpen
	case rep.Canceled:
		return RunStatusCanceled
	case rep.Count(safety.StatusFailed) > 0:
		return RunStatusFailed
	case rep.Mode == safety.ModeApply:
		return RunStatusApplied
	default:
		return RunStatusPreviewed
	}
}

var _ safety.Recorder = (*Recorder)(nil)
