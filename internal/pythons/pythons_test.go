package pythons

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dangerousdave/dave/internal/prompt"
	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/safety"
	"github.com/dangerousdave/dave/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMatchBinaryName(t *testing.T) {
	tests := []struct {
		name string
		goos string
		want bool
	}{
		{"python", "darwin", true},
		{"python3", "linux", true},
		{"python3.12", "darwin", true},
		{"python3-config", "darwin", false},
		{"python3.12-intel64", "darwin", false},
		{"pythonw", "linux", false},
		{"ipython", "linux", false},
		{"python.exe", "windows", true},
		{"Python311.exe", "windows", true},
		{"python3-config.exe", "windows", false},
		{"python3", "windows", false},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchBinaryName(tt.name, tt.goos))
		})
	}
}

func TestClassifyVendor(t *testing.T) {
	tests := []struct {
		path          string
		goos          string
		wantVendor    string
		wantProtected bool
	}{
		{"/usr/bin/python3", "darwin", VendorMacSystem, true},
		{"/System/Library/Frameworks/Python.framework/Versions/2.7/bin/python", "darwin", VendorMacSystem, true},
		{"/opt/homebrew/Cellar/python@3.12/3.12.1/bin/python3.12", "darwin", VendorHomebrew, false},
		{"/Library/Frameworks/Python.framework/Versions/3.11/bin/python3", "darwin", VendorOfficial, false},
		{"/Users/d/miniconda3/bin/python", "darwin", VendorConda, false},
		{"/Users/d/.pyenv/versions/3.9.0/bin/python3.9", "darwin", VendorPyenv, false},
		{`C:\Users\d\AppData\Local\Microsoft\WindowsApps\python.exe`, "windows", VendorStore, true},
		{`C:\Program Files\Python312\python.exe`, "windows", VendorSystem, false},
		{`C:\Users\d\anaconda3\python.exe`, "windows", VendorConda, false},
		{"/usr/bin/python3", "linux", VendorSystem, true},
		{"/usr/bin/python3.11", "linux", VendorSystem, true},
		{"/bin/python3", "freebsd", VendorSystem, true},
		{"/usr/local/bin/python3.12", "linux", VendorUserOther, false},
		{"/home/d/.local/bin/python3", "linux", VendorUserOther, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			vendor, protected := ClassifyVendor(tt.path, tt.goos)
			assert.Equal(t, tt.wantVendor, vendor)
			assert.Equal(t, tt.wantProtected, protected)
		})
	}
}

func TestParsers(t *testing.T) {
	assert.Equal(t, "3.12.1", ParseVersion("Python 3.12.1\n"))
	assert.Equal(t, "3.13.0", ParseVersion("Python 3.13.0rc1"))
	assert.Empty(t, ParseVersion("bash: python: command not found"))

	assert.Equal(t, "3.12", MajorMinor("3.12.1"))
	assert.Equal(t, "3", MajorMinor("3"))

	assert.Equal(t, "Universal", ArchFromLipo("x86_64 arm64\n"))
	assert.Equal(t, "Apple Silicon", ArchFromLipo("arm64"))
	assert.Equal(t, "Intel 64", ArchFromLipo("x86_64"))
	assert.Equal(t, "i386", ArchFromLipo("i386"))
	assert.Equal(t, "Unknown", ArchFromLipo(""))

	assert.Equal(t, "64-bit", ArchFromMachine("AMD64\r\n", "windows"))
	assert.Equal(t, "32-bit", ArchFromMachine("x86", "windows"))
	assert.Equal(t, "aarch64", ArchFromMachine("aarch64\n", "linux"))

	assert.Equal(t, 1, compareVersions("3.12.1", "3.9.6"))
	assert.Equal(t, -1, compareVersions("2.7.18", "3.0.0"))
	assert.Equal(t, 0, compareVersions("3.11", "3.11.0"))
}

func TestRCFile(t *testing.T) {
	assert.Equal(t, filepath.Join("/h", ".zshrc"), RCFile("/h", "/bin/zsh"))
	assert.Equal(t, filepath.Join("/h", ".zshrc"), RCFile("/h", ""))
	assert.Equal(t, filepath.Join("/h", ".bash_profile"), RCFile("/h", "/usr/local/bin/bash"))
}

type fixture struct {
	root   string
	a, b   string // dirs on PATH
	pyenv  string
	script *runner.Script
	opts   Options
}

// newFixture lays out three interpreters and one broken binary:
//
//	a/python3 (3.12.1, pip) with a/python3.12 linking to it
//	b/python  (2.7.18 on stderr, no pip) and b/python2 (no version)
//	.pyenv/versions/3.9.6/bin/python3.9 (3.9.6, pip)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		root:  root,
		a:     filepath.Join(root, "a"),
		b:     filepath.Join(root, "b"),
		pyenv: filepath.Join(root, ".pyenv", "versions", "3.9.6", "bin"),
	}
	testutil.WriteFile(t, root, "a/python3", "#!")
	testutil.WriteFile(t, root, "a/python3-config", "#!")
	require.NoError(t, os.Symlink(filepath.Join(f.a, "python3"), filepath.Join(f.a, "python3.12")))
	testutil.WriteFile(t, root, "b/python", "#!")
	testutil.WriteFile(t, root, "b/python2", "#!")
	testutil.WriteFile(t, root, ".pyenv/versions/3.9.6/bin/python3.9", "#!")

	type probe struct {
		version, stderrVersion, arch string
		pip                          bool
	}
	probes := map[string]probe{
		filepath.Join(f.a, "python3"):       {version: "Python 3.12.1", arch: "x86_64", pip: true},
		filepath.Join(f.b, "python"):        {stderrVersion: "Python 2.7.18", arch: "x86_64"},
		filepath.Join(f.pyenv, "python3.9"): {version: "Python 3.9.6", arch: "arm64", pip: true},
	}

	f.script = runner.NewScript().
		Path("python3", filepath.Join(f.a, "python3.12")).
		Path("python", filepath.Join(f.b, "python"))
	f.script.Fallback = func(cmd runner.Command) runner.Reply {
		p, ok := probes[cmd.Name]
		if !ok {
			return runner.Reply{ExitCode: 126, Stderr: "bad interpreter"}
		}
		switch strings.Join(cmd.Args, " ") {
		case "--version":
			return runner.Reply{Stdout: p.version, Stderr: p.stderrVersion}
		case "-m pip --version":
			if p.pip {
				return runner.Reply{Stdout: "pip 24.0"}
			}
			return runner.Reply{ExitCode: 1, Stderr: "No module named pip"}
		default:
			return runner.Reply{Stdout: p.arch + "\n"}
		}
	}

	f.opts = Options{
		PathEnv:     strings.Join([]string{f.a, f.b, f.a, f.pyenv}, string(os.PathListSeparator)),
		Dirs:        []string{},
		ProbePython: "python",
		Workers:     2,
	}
	return f
}

func TestScan(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	m := NewManagerFor(f.script, testutil.NewTestLogger(t), "linux")

	inv, err := m.Scan(context.Background(), f.opts)
	require.NoError(t, err)
	require.Len(t, inv.Installs, 3, "the binary without a version is dropped")

	first := inv.Installs[0]
	assert.Equal(t, "3.12.1", first.Version)
	assert.Equal(t, filepath.Join(f.a, "python3"), first.Path)
	assert.Equal(t, []string{filepath.Join(f.a, "python3"), filepath.Join(f.a, "python3.12")}, first.Aliases)
	assert.Equal(t, []string{"python3", "python3.12"}, first.Commands())
	assert.True(t, first.Pip)
	assert.Equal(t, "x86_64", first.Arch)
	assert.Equal(t, VendorUserOther, first.Vendor)

	second := inv.Installs[1]
	assert.Equal(t, "3.9.6", second.Version, "versions sort numerically")
	assert.Equal(t, VendorPyenv, second.Vendor)
	assert.Equal(t, "arm64", second.Arch)

	third := inv.Installs[2]
	assert.Equal(t, "2.7.18", third.Version)
	assert.False(t, third.Pip)

	assert.Equal(t, first.Path, inv.Default)
	assert.True(t, inv.IsDefault(first))
	assert.Equal(t, third.Path, inv.Self)
}

func TestScanCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewManagerFor(f.script, nil, "linux").Scan(ctx, f.opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelect(t *testing.T) {
	f := newFixture(t)
	inv, err := NewManagerFor(f.script, nil, "linux").Scan(context.Background(), f.opts)
	require.NoError(t, err)

	for _, arg := range []string{"1", "#1", "[1]", filepath.Join(f.a, "python3.12"), filepath.Join(f.a, "python3")} {
		got, err := inv.Select(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, "3.12.1", got.Version, arg)
	}

	got, err := inv.Select("3")
	require.NoError(t, err)
	assert.Equal(t, "2.7.18", got.Version)

	for _, arg := range []string{"", "0", "4", filepath.Join(f.root, "nope")} {
		_, err := inv.Select(arg)
		assert.Error(t, err, arg)
	}
}

func TestSwitchPlan(t *testing.T) {
	home := t.TempDir()
	rc := testutil.WriteFile(t, home, ".zshrc", "export EDITOR=vim\n")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	inst := Install{Path: "/opt/homebrew/bin/python3.12", Version: "3.12.1"}
	m := NewManagerFor(runner.NewScript(), nil, "darwin")

	plan := m.SwitchPlan(inst, rc, now)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, safety.KindCopy, plan.Actions[0].Kind)
	assert.Equal(t, rc+".backup-20260304-050607", plan.Actions[0].Target)
	assert.Equal(t, safety.KindAppend, plan.Actions[1].Kind)

	ctx := context.Background()
	_, err := (&safety.Gate{Mode: safety.ModePreview}).Run(ctx, plan)
	require.NoError(t, err)
	assert.NoFileExists(t, rc+".backup-20260304-050607")

	_, err = (&safety.Gate{Mode: safety.ModeApply, AssumeYes: true}).Run(ctx, plan)
	require.NoError(t, err)

	data, err := os.ReadFile(rc)
	require.NoError(t, err)
	assert.Equal(t, "export EDITOR=vim\n"+
		"\n# --- Python Selection (Updated 20260304-050607) ---\n"+
		"alias python=\"/opt/homebrew/bin/python3.12\"\n"+
		"alias python3=\"/opt/homebrew/bin/python3.12\"\n", string(data))

	backup, err := os.ReadFile(rc + ".backup-20260304-050607")
	require.NoError(t, err)
	assert.Equal(t, "export EDITOR=vim\n", string(backup))
}

func TestSwitchPlanWithoutProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "Microsoft.PowerShell_profile.ps1")
	m := NewManagerFor(runner.NewScript(), nil, "windows")

	plan := m.SwitchPlan(Install{Path: `C:\Python312\python.exe`, Version: "3.12.1"}, profile, time.Now())
	require.Len(t, plan.Actions, 1, "nothing to back up")
	assert.Contains(t, strings.Join(plan.Actions[0].Details, "\n"), `function python { & 'C:\Python312\python.exe' @args }`)
}

func TestPowerShellProfile(t *testing.T) {
	ctx := context.Background()
	s := runner.NewScript().On("powershell -NoProfile -Command 'echo $PROFILE'", runner.Reply{Stdout: `C:\Users\d\profile.ps1` + "\r\n"})
	p, err := NewManagerFor(s, nil, "windows").PowerShellProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, `C:\Users\d\profile.ps1`, p)

	_, err = NewManagerFor(runner.NewScript(), nil, "windows").PowerShellProfile(ctx)
	var ie *safety.InputError
	assert.ErrorAs(t, err, &ie)
}

func distroInstall(path string) Install {
	vendor, protected := ClassifyVendor(path, "linux")
	return Install{Path: path, Version: "3.11.2", Vendor: vendor, Protected: protected}
}

func TestRemovePlanBlocks(t *testing.T) {
	f := newFixture(t)
	m := NewManagerFor(f.script, nil, "linux")
	inv, err := m.Scan(context.Background(), f.opts)
	require.NoError(t, err)

	tests := []struct {
		name string
		inst Install
		want string
	}{
		{"protected", Install{Path: "/usr/bin/python3", Vendor: VendorMacSystem, Protected: true}, "protected"},
		{"distribution interpreter", distroInstall("/usr/bin/python3.11"), "System Install interpreters are protected"},
		{"active default", inv.Installs[0], "active default"},
		{"used by dave", inv.Installs[2], "pip.python"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := m.RemovePlan(inv, tt.inst)
			assert.Nil(t, plan)
			var be *safety.BlockedError
			require.ErrorAs(t, err, &be)
			assert.Contains(t, be.Reason, tt.want)
		})
	}
}

func TestRemovePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("plain binary needs the confirm word", func(t *testing.T) {
		f := newFixture(t)
		m := NewManagerFor(f.script, nil, "linux")
		inv, err := m.Scan(ctx, f.opts)
		require.NoError(t, err)

		plan, err := m.RemovePlan(inv, inv.Installs[1])
		require.NoError(t, err)
		require.Len(t, plan.Actions, 1)
		a := plan.Actions[0]
		assert.Equal(t, safety.KindRemove, a.Kind)
		assert.Equal(t, RemoveConfirmWord, a.ConfirmWord)

		target := filepath.Join(f.pyenv, "python3.9")
		gate := &safety.Gate{Mode: safety.ModeApply, Prompter: prompt.NewLine(strings.NewReader("y\nnope\n"), io.Discard)}
		rep, err := gate.Run(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Count(safety.StatusDeclined))
		assert.FileExists(t, target)

		gate.Prompter = prompt.NewLine(strings.NewReader("y\ndelete\n"), io.Discard)
		rep, err = gate.Run(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Count(safety.StatusApplied))
		assert.NoFileExists(t, target)
	})

	t.Run("homebrew uses brew uninstall", func(t *testing.T) {
		s := runner.NewScript().On("brew uninstall python@3.11", runner.Reply{})
		m := NewManagerFor(s, nil, "darwin")
		inst := Install{Path: "/opt/homebrew/Cellar/python@3.11/3.11.4/bin/python3.11", Version: "3.11.4", Vendor: VendorHomebrew}

		plan, err := m.RemovePlan(&Inventory{}, inst)
		require.NoError(t, err)
		require.Len(t, plan.Actions, 1)
		assert.Equal(t, "brew uninstall python@3.11", plan.Actions[0].Summary)

		_, err = (&safety.Gate{Mode: safety.ModePreview}).Run(ctx, plan)
		require.NoError(t, err)
		assert.Empty(t, s.Lines(), "preview runs nothing")

		gate := &safety.Gate{Mode: safety.ModeApply, AssumeYes: true}
		rep, err := gate.Run(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Count(safety.StatusDeclined), "--yes does not type the word")
		assert.Empty(t, s.Lines())

		gate.Prompter = prompt.NewLine(strings.NewReader("delete\n"), io.Discard)
		_, err = gate.Run(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, []string{"brew uninstall python@3.11"}, s.Lines())
	})

	t.Run("framework install is manual", func(t *testing.T) {
		m := NewManagerFor(runner.NewScript(), nil, "darwin")
		inst := Install{Path: "/Library/Frameworks/Python.framework/Versions/3.12/bin/python3", Version: "3.12.1", Vendor: VendorOfficial}
		plan, err := m.RemovePlan(&Inventory{}, inst)
		require.NoError(t, err)
		assert.True(t, plan.Empty())
		assert.Contains(t, plan.Notes[0], "sudo rm -rf")
	})

	t.Run("windows is manual", func(t *testing.T) {
		m := NewManagerFor(runner.NewScript(), nil, "windows")
		plan, err := m.RemovePlan(&Inventory{}, Install{Path: `C:\Python312\python.exe`, Version: "3.12.1", Vendor: VendorUserOther})
		require.NoError(t, err)
		assert.True(t, plan.Empty())
		assert.Len(t, plan.Notes, 2)
	})

	t.Run("unwritable directory is manual", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root can write anywhere")
		}
		dir := t.TempDir()
		bin := testutil.WriteFile(t, dir, "ro/python3", "#!")
		require.NoError(t, os.Chmod(filepath.Dir(bin), 0o555))
		t.Cleanup(func() { _ = os.Chmod(filepath.Dir(bin), 0o755) })

		m := NewManagerFor(runner.NewScript(), nil, "linux")
		plan, err := m.RemovePlan(&Inventory{}, Install{Path: bin, Version: "3.10.0", Vendor: VendorUserOther})
		require.NoError(t, err)
		assert.True(t, plan.Empty())
		assert.Contains(t, plan.Notes[0], "sudo rm")
	})
}
