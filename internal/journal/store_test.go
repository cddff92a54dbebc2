package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dangerousdave/dave/internal/safety"
	"github.com/dangerousdave/dave/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testutil.NewTestLogger(t))
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_NotOpened(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	_, err := s.StartRun(ctx, "brew", "x", "preview")
	assert.Error(t, err)
	_, err = s.ListRuns(ctx, 5)
	assert.Error(t, err)
	assert.Error(t, s.Migrate())
	assert.NoError(t, s.Close())
}

func TestStore_Migrate(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// Running again is a no-op.
	require.NoError(t, s.Migrate())
}

func TestStore_RunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "history", "Clear shell history", "apply")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusOpen, run.Status)

	require.NoError(t, s.RecordAction(ctx, &ActionRecord{
		RunID: run.ID, Seq: 2, Kind: "truncate", Summary: "permanently empty ~/.zsh_history",
		Status: "failed", Error: "permission denied", DurationMS: 3,
	}))
	require.NoError(t, s.RecordAction(ctx, &ActionRecord{
		RunID: run.ID, Seq: 1, Kind: "copy", Summary: "back up history", Target: "/tmp/h.bak",
		Status: "applied",
	}))
	require.NoError(t, s.FinishRun(ctx, run.ID, RunStatusFailed, "1 of 2 actions failed"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "1 of 2 actions failed", got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.WithinDuration(t, time.Now(), got.StartedAt, time.Minute)

	actions, err := s.ListActions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, 1, actions[0].Seq)
	assert.Equal(t, "/tmp/h.bak", actions[0].Target)
	assert.Empty(t, actions[0].Error)
	assert.Equal(t, "permission denied", actions[1].Error)
	assert.Equal(t, int64(3), actions[1].DurationMS)
}

func TestStore_FinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "nope", RunStatusApplied, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		run, err := s.StartRun(ctx, "du", title, "preview")
		require.NoError(t, err)
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "three", runs[0].Title)
	assert.Equal(t, "two", runs[1].Title)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_GetRunByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "pip", "Upgrade packages", "preview")
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	_, err = s.GetRun(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRun(ctx, "  ")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"abc-1", "abc-2"} {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, tool, title, mode, status, started_at) VALUES (?, 'pip', 't', 'preview', 'open', ?)`,
			id, formatTime(time.Now()))
		require.NoError(t, err)
	}
	_, err = s.GetRun(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	got, err = s.GetRun(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", got.ID)

	for _, pattern := range []string{"%", "_", "abc_", `abc\`} {
		_, err = s.GetRun(ctx, pattern)
		assert.ErrorIs(t, err, ErrNotFound, "%q must match literally", pattern)
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "abc", escapeLike("abc"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")

	s := NewStore(nil)
	require.NoError(t, s.Open(path))
	require.NoError(t, s.Migrate())
	assert.Equal(t, path, s.Path())

	run, err := s.StartRun(context.Background(), "layout", "Create layout", "apply")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := NewStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.Migrate())

	got, err := reopened.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Create layout", got.Title)
}

func TestRecorder_WithGate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := s.NewRecorder("layout")

	ran := 0
	plan := safety.NewPlan("Create project layout").
		Add(safety.Action{Kind: safety.KindMkdir, Summary: "create docs/", Target: "docs",
			Do: func(context.Context) error { ran++; return nil }}).
		Add(safety.Action{Kind: safety.KindWrite, Summary: "write docs/.gitkeep", Target: "docs/.gitkeep",
			Do: func(context.Context) error { return errors.New("disk full") }})

	gate := &safety.Gate{Mode: safety.ModeApply, AssumeYes: true, Recorder: rec}
	_, err := gate.Run(ctx, plan)
	require.Error(t, err)
	assert.Equal(t, 1, ran)

	run, err := s.GetRun(ctx, rec.RunID())
	require.NoError(t, err)
	assert.Equal(t, "layout", run.Tool)
	assert.Equal(t, "apply", run.Mode)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "disk full")

	actions, err := s.ListActions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "applied", actions[0].Status)
	assert.Equal(t, "mkdir", actions[0].Kind)
	assert.Equal(t, "failed", actions[1].Status)
}

func TestRecorder_RecordBeforeBegin(t *testing.T) {
	s := openTestStore(t)
	rec := s.NewRecorder("brew")
	assert.Error(t, rec.Record(context.Background(), safety.Outcome{Seq: 1}))
	assert.Error(t, rec.Finish(context.Background(), &safety.Report{}))
}

func TestRunStatusForReport(t *testing.T) {
	tests := []struct {
		name string
		rep  *safety.Report
		want string
	}{
		{"nil", nil, RunStatusOpen},
		{"canceled", &safety.Report{Mode: safety.ModeApply, Canceled: true}, RunStatusCanceled},
		{"failed", &safety.Report{Mode: safety.ModeApply, Outcomes: []safety.Outcome{{Status: safety.StatusFailed}}}, RunStatusFailed},
		{"applied", &safety.Report{Mode: safety.ModeApply, Outcomes: []safety.Outcome{{Status: safety.StatusApplied}}}, RunStatusApplied},
		{"preview", &safety.Report{Mode: safety.ModePreview}, RunStatusPreviewed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunStatusForReport(tt.rep))
		})
	}
}
