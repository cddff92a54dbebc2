package layout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dangerousdave/dave/internal/safety"
	"github.com/dangerousdave/dave/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0o755))
	testutil.WriteFile(t, root, "docs/references", "not a dir")

	statuses, err := Check(root)
	require.NoError(t, err)
	require.Len(t, statuses, len(Recommended))

	states := make(map[string]string)
	for _, s := range statuses {
		states[s.Path] = s.State
	}
	assert.Equal(t, map[string]string{
		"mac_utilities":         StateMissing,
		"projects":              StatePresent,
		"scripts/automation":    StateMissing,
		"scripts/utilities":     StateMissing,
		"notebooks/experiments": StateMissing,
		"docs/references":       StateBlocked,
	}, states)
	assert.Len(t, Missing(statuses), 4)
}

func TestCheckBadRoot(t *testing.T) {
	_, err := Check(filepath.Join(t.TempDir(), "nope"))
	var ie *safety.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "collection root", ie.What)
}

func TestInitPlan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0o755))
	testutil.WriteFile(t, root, "docs/references", "not a dir")
	before := testutil.Snapshot(t, root)

	plan, err := InitPlan(root)
	require.NoError(t, err)
	assert.Len(t, plan.Actions, 8, "mkdir and placeholder for each of the four missing directories")
	require.Len(t, plan.Notes, 1)
	assert.Contains(t, plan.Notes[0], "docs/references")

	ctx := context.Background()
	_, err = (&safety.Gate{Mode: safety.ModePreview}).Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, before, testutil.Snapshot(t, root), "preview changes nothing")

	rep, err := (&safety.Gate{Mode: safety.ModeApply, AssumeYes: true}).Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 8, rep.Count(safety.StatusApplied))
	assert.DirExists(t, filepath.Join(root, "scripts", "automation"))
	assert.FileExists(t, filepath.Join(root, "notebooks", "experiments", Placeholder))

	again, err := InitPlan(root)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestInitPlanComplete(t *testing.T) {
	root := t.TempDir()
	for _, d := range Recommended {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d.Path), 0o755))
	}
	plan, err := InitPlan(root)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, []string{"all 6 recommended directories already exist"}, plan.Notes)
}
