package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dangerousdave/dave/internal/cli/commands"
	"github.com/dangerousdave/dave/internal/journal"
	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes dave with args. A nil script runs external programs on the
// host, which the tests below avoid.
func run(t *testing.T, script *runner.Script, stdin string, args ...string) result {
	t.Helper()
	ctx := context.Background()
	if script != nil {
		ctx = commands.WithRunner(ctx, script)
	}
	var out, errOut bytes.Buffer
	err := ExecuteContext(ctx, args, strings.NewReader(stdin), &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// isolate points HOME and the working directory at fresh temp dirs and
// clears the environment dave reads.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	work, err = filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	t.Setenv("HOME", home)
	t.Setenv("SHELL", "/bin/zsh")
	t.Setenv("HISTFILE", "")
	t.Setenv("PATH", "")
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "DAVE_") {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
	t.Chdir(work)
	return home, work
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	res := run(t, nil, "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "dave v"+Version)
}

func TestCompletionCommand(t *testing.T) {
	isolate(t)

	res := run(t, nil, "", "completion", "bash")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "dave")

	res = run(t, nil, "", "completion", "tcsh")
	require.Error(t, res.err)
}

func TestConfigCommand(t *testing.T) {
	isolate(t)
	t.Setenv("DAVE_PIP__PYTHON", "python3.12")

	res := run(t, nil, "", "config")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# no config file found")
	assert.Contains(t, res.stdout, "python: python3.12")

	res = run(t, nil, "", "config", "-o", "json")
	require.NoError(t, res.err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	pip, ok := doc["pip"].(map[string]any)
	require.True(t, ok, "pip section missing: %s", res.stdout)
	assert.Equal(t, "python3.12", pip["python"])
}

func TestConfigFileIsLoaded(t *testing.T) {
	_, work := isolate(t)
	testutil.WriteFile(t, work, "dave.yaml", "history:\n  tail: 3\n")

	res := run(t, nil, "", "config")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# config file: ")
	assert.Contains(t, res.stdout, "tail: 3")
}

func TestInvalidOutputFormat(t *testing.T) {
	isolate(t)

	res := run(t, nil, "", "layout", "check", "-o", "xml")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Error:")
}

func TestMissingInputsReportErrorAndHint(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
		hint     bool
	}{
		{
			name:     "requirements file",
			args:     []string{"pip", "install-each", "missing.txt"},
			contains: "requirements file",
			hint:     true,
		},
		{
			name:     "history file",
			args:     []string{"history", "view"},
			contains: "history file",
			hint:     true,
		},
		{
			name:     "scan root",
			args:     []string{"du", "does-not-exist"},
			contains: "does-not-exist",
		},
		{
			name:     "layout root",
			args:     []string{"layout", "check", "does-not-exist"},
			contains: "does-not-exist",
		},
		{
			name:     "brew not installed",
			args:     []string{"brew"},
			contains: "brew",
			hint:     true,
		},
		{
			name:     "no interpreters",
			args:     []string{"python", "list"},
			contains: "no Python interpreters found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			script := runner.NewScript()
			script.Path("python3", "/usr/bin/python3")

			res := run(t, script, "", tt.args...)
			require.Error(t, res.err)
			assert.Contains(t, res.stderr, "Error:")
			assert.Contains(t, res.stderr, tt.contains)
			if tt.hint {
				assert.Contains(t, res.stderr, "Hint:")
			}
		})
	}
}

// brewScript answers brew's outdated queries with one outdated formula.
func brewScript() *runner.Script {
	return runner.NewScript().
		Path("brew", "/opt/homebrew/bin/brew").
		On("brew outdated --formula --verbose", runner.Reply{Stdout: "wget (1.21.3) < 1.21.4\n", ExitCode: 1}).
		On("brew outdated --cask --verbose --greedy", runner.Reply{}).
		On("brew upgrade wget", runner.Reply{}).
		On("brew cleanup", runner.Reply{})
}

func TestBrewPreviewRunsNoUpgrade(t *testing.T) {
	isolate(t)
	script := brewScript()

	res := run(t, script, "", "brew")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "wget")
	assert.Contains(t, res.stdout, "brew upgrade wget")
	for _, line := range script.Lines() {
		assert.NotContains(t, line, "upgrade")
		assert.NotContains(t, line, "cleanup")
	}
}

func TestBrewApplyUpgrades(t *testing.T) {
	home, _ := isolate(t)
	script := brewScript()

	res := run(t, script, "", "brew", "--apply", "--yes")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, script.Lines(), "brew upgrade wget")
	assert.Contains(t, script.Lines(), "brew cleanup")
	assert.FileExists(t, filepath.Join(home, ".dave", "journal.db"))
}

func TestBrewCheckOnlyJSON(t *testing.T) {
	isolate(t)

	res := run(t, brewScript(), "", "brew", "--check-only", "-o", "json")
	require.NoError(t, res.err)
	var doc struct {
		Greedy   bool             `json:"greedy"`
		Formulae []map[string]any `json:"formulae"`
		Casks    []map[string]any `json:"casks"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc), res.stdout)
	assert.True(t, doc.Greedy)
	assert.Len(t, doc.Formulae, 1)
	assert.Empty(t, doc.Casks)
}

func TestPreviewsChangeNothing(t *testing.T) {
	home, work := isolate(t)
	testutil.WriteFile(t, home, ".zsh_history", "ls\ncd /tmp\n")
	testutil.WriteFile(t, work, "requirements.txt", "requests==2.31.0\n")
	bin := filepath.Join(work, "bin")
	require.NoError(t, os.Mkdir(bin, 0o750))
	t.Setenv("PATH", strings.Join([]string{bin, filepath.Join(work, "missing"), bin}, string(os.PathListSeparator)))

	script := brewScript()
	script.Path("python3", "/usr/bin/python3")
	script.Fallback = func(cmd runner.Command) runner.Reply {
		if cmd.Name != "python3" {
			return runner.Reply{ExitCode: 127, Stderr: "unexpected command"}
		}
		switch strings.Join(cmd.Args, " ") {
		case "-m pip freeze":
			return runner.Reply{Stdout: "requests==2.31.0\nurllib3==2.0.7\n"}
		case "-m pip list --outdated --format=json":
			return runner.Reply{Stdout: `[{"name":"requests","version":"2.31.0","latest_version":"2.32.0"}]`}
		}
		if len(cmd.Args) == 2 && cmd.Args[0] == "-c" {
			return runner.Reply{Stdout: "True\n/tmp/venv/bin/python3\n"}
		}
		return runner.Reply{ExitCode: 1, Stderr: "unexpected arguments"}
	}

	before := testutil.Snapshot(t, home)
	beforeWork := testutil.Snapshot(t, work)

	invocations := [][]string{
		{"history", "clear"},
		{"layout", "init"},
		{"pip", "freeze", "frozen.txt"},
		{"pip", "outdated"},
		{"pip", "install-each"},
		{"path", "fix", "--dedupe", "--remove-broken"},
		{"brew"},
	}
	for _, args := range invocations {
		res := run(t, script, "", args...)
		require.NoError(t, res.err, "%v: %s", args, res.stderr)
		assert.Contains(t, res.stdout, "(preview)", "%v", args)
	}

	assert.Equal(t, before, testutil.Snapshot(t, home))
	assert.Equal(t, beforeWork, testutil.Snapshot(t, work))
	assert.NoFileExists(t, filepath.Join(home, ".dave", "journal.db"))
	for _, line := range script.Lines() {
		assert.NotContains(t, line, "install", "preview ran %q", line)
	}
}

func TestHistoryView(t *testing.T) {
	home, _ := isolate(t)
	testutil.WriteFile(t, home, ".zsh_history", "one\ntwo\nthree\n")

	res := run(t, nil, "", "history", "view", "-n", "2")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "two")
	assert.Contains(t, res.stdout, "three")
	assert.NotContains(t, res.stdout, "one\n")
}

func TestHistoryViewUsesConfiguredTail(t *testing.T) {
	home, _ := isolate(t)
	testutil.WriteFile(t, home, ".zsh_history", "one\ntwo\nthree\nfour\n")
	t.Setenv("DAVE_HISTORY__TAIL", "2")

	res := run(t, nil, "", "history", "view")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "three")
	assert.Contains(t, res.stdout, "four")
	assert.NotContains(t, res.stdout, "two\n")
}

func TestHistoryClearYesStillAsksForWord(t *testing.T) {
	home, _ := isolate(t)
	path := testutil.WriteFile(t, home, ".zsh_history", "secret\n")

	res := run(t, nil, "", "history", "clear", "--apply", "--yes", "--no-backup")
	require.NoError(t, res.err, res.stderr)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret\n", string(data), "--yes alone must not truncate")

	res = run(t, nil, "yes\n", "history", "clear", "--apply", "--yes", "--no-backup")
	require.NoError(t, res.err, res.stderr)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestHistoryClearApplyAndJournal(t *testing.T) {
	home, _ := isolate(t)
	path := testutil.WriteFile(t, home, ".zsh_history", "secret\n")

	res := run(t, nil, "y\nyes\n", "history", "clear", "--apply")
	require.NoError(t, res.err, res.stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
	backups, err := filepath.Glob(path + ".backup-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	saved, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "secret\n", string(saved))

	res = run(t, nil, "", "journal", "list", "-o", "json")
	require.NoError(t, res.err)
	var runs []journal.Run
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &runs), res.stdout)
	require.Len(t, runs, 1)
	assert.Equal(t, "history clear", runs[0].Tool)
	assert.Equal(t, "applied", runs[0].Status)

	res = run(t, nil, "", "journal", "show", runs[0].ID[:8])
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, runs[0].ID)
	assert.Contains(t, res.stdout, "truncate")
}

func TestHistoryClearWrongWordKeepsFile(t *testing.T) {
	home, _ := isolate(t)
	path := testutil.WriteFile(t, home, ".zsh_history", "secret\n")

	res := run(t, nil, "y\nno\n", "history", "clear", "--apply", "--no-backup")
	require.NoError(t, res.err, res.stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret\n", string(data))
}

func TestLayoutInit(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		_, work := isolate(t)
		before := testutil.Snapshot(t, work)

		res := run(t, nil, "n\n", "layout", "init", "--apply")
		require.NoError(t, res.err)
		assert.Equal(t, before, testutil.Snapshot(t, work))
	})

	t.Run("no answer", func(t *testing.T) {
		_, work := isolate(t)
		before := testutil.Snapshot(t, work)

		res := run(t, nil, "", "layout", "init", "--apply")
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "confirmation failed")
		assert.Equal(t, before, testutil.Snapshot(t, work))
	})

	t.Run("applied", func(t *testing.T) {
		_, work := isolate(t)

		res := run(t, nil, "", "layout", "init", "--apply", "--yes", "--no-journal")
		require.NoError(t, res.err, res.stderr)
		assert.DirExists(t, filepath.Join(work, "scripts", "automation"))
		assert.FileExists(t, filepath.Join(work, "docs", "references", ".gitkeep"))

		res = run(t, nil, "", "layout", "check", "-o", "json")
		require.NoError(t, res.err)
		assert.NotContains(t, res.stdout, `"missing"`)
	})
}

func TestJournalEmpty(t *testing.T) {
	isolate(t)

	res := run(t, nil, "", "journal", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No runs recorded yet.")

	res = run(t, nil, "", "journal", "show", "abc")
	require.Error(t, res.err)

	res = run(t, nil, "", "journal", "list", "--no-journal")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Hint:")
}

func TestDiskUsageJSON(t *testing.T) {
	_, work := isolate(t)
	testutil.WriteFile(t, work, "big/a.bin", strings.Repeat("x", 4096))
	testutil.WriteFile(t, work, "small/b.txt", "hi")

	res := run(t, nil, "", "du", work, "-o", "json")
	require.NoError(t, res.err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc), res.stdout)
	assert.NotEmpty(t, doc["total"])
	assert.NotEmpty(t, doc["top"])
}

func TestPathReport(t *testing.T) {
	_, work := isolate(t)
	bin := filepath.Join(work, "bin")
	require.NoError(t, os.Mkdir(bin, 0o750))
	t.Setenv("PATH", strings.Join([]string{bin, filepath.Join(work, "gone"), bin}, string(os.PathListSeparator)))

	res := run(t, nil, "", "path", "--json")
	require.NoError(t, res.err)
	var doc struct {
		Entries []map[string]any `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc), res.stdout)
	assert.Len(t, doc.Entries, 3)

	res = run(t, nil, "", "path")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "#02")
	assert.Contains(t, res.stdout, "dave path fix")
}

func TestPathFixInteractiveCreate(t *testing.T) {
	_, work := isolate(t)
	bin := filepath.Join(work, "bin")
	require.NoError(t, os.Mkdir(bin, 0o750))
	gone := filepath.Join(work, "gone")
	t.Setenv("PATH", strings.Join([]string{bin, gone}, string(os.PathListSeparator)))

	res := run(t, nil, "c\n", "path", "fix", "-i")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, gone)
	assert.NoDirExists(t, gone)

	res = run(t, nil, "c\ny\n", "path", "fix", "-i", "--apply", "--no-journal")
	require.NoError(t, res.err, res.stderr)
	assert.DirExists(t, gone)
}

func TestPathFixStopsOnEOF(t *testing.T) {
	_, work := isolate(t)
	gone := filepath.Join(work, "gone")
	t.Setenv("PATH", gone)

	res := run(t, nil, "", "path", "fix", "-i")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout+res.stderr, "Stopped asking")
}

func TestAliases(t *testing.T) {
	home, _ := isolate(t)
	testutil.WriteFile(t, home, ".zshrc", "alias ll='ls -la'\n")
	script := runner.NewScript().
		Path("zsh", "/bin/zsh").
		On("/bin/zsh -i -c alias", runner.Reply{Stdout: "ll='ls -la'\ngs='git status'\n"})

	res := run(t, script, "", "aliases")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "ll")
	assert.Contains(t, res.stdout, filepath.Join("~", ".zshrc")+":1")
	assert.Contains(t, res.stdout, "not found")
	assert.Contains(t, res.stdout+res.stderr, "bash")

	res = run(t, script, "", "aliases", "--shell", "fish")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "unsupported shell")
}

func TestPipFreezeRefusesExistingFile(t *testing.T) {
	_, work := isolate(t)
	testutil.WriteFile(t, work, "requirements.txt", "old\n")
	script := runner.NewScript().
		Path("python3", "/usr/bin/python3").
		On("python3 -m pip freeze", runner.Reply{Stdout: "requests==2.31.0\n"})

	res := run(t, script, "", "pip", "freeze")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "--force")

	res = run(t, script, "", "pip", "freeze", "--force", "--apply", "--yes", "--no-journal")
	require.NoError(t, res.err, res.stderr)
	data, err := os.ReadFile(filepath.Join(work, "requirements.txt"))
	require.NoError(t, err)
	assert.Equal(t, "requests==2.31.0\n", string(data))
	backups, err := filepath.Glob(filepath.Join(work, "requirements.txt.*.bak"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
