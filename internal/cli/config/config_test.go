package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	ResetConfig()
	return home
}

func newGlobalFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("dave", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.Bool("apply", false, "")
	fs.BoolP("yes", "y", false, "")
	fs.String("journal", "", "")
	fs.Bool("no-journal", false, "")
	fs.String("log-file", "", "")
	return fs
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "dave.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, filepath.Join(home, ".dave", "journal.db"), cfg.JournalPath)
	assert.Equal(t, filepath.Join(home, ".dave", "logs"), cfg.LogDir)
	assert.True(t, cfg.Brew.Greedy)
	assert.Equal(t, "python3", cfg.Pip.Python)
	assert.Empty(t, cfg.Pip.Exclude)
	assert.Equal(t, []string{"zsh", "bash"}, cfg.Aliases.Shells)
	assert.Equal(t, DefaultDiskWorkers, cfg.Disk.Workers)
	assert.False(t, cfg.Apply)
	assert.False(t, cfg.AssumeYes)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), `
output: json
brew:
  greedy: false
pip:
  python: /usr/local/bin/python3.12
  exclude: [pip, setuptools]
du:
  limit: 5
`)

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.OutputFormat)
		assert.False(t, cfg.Brew.Greedy)
		assert.Equal(t, "/usr/local/bin/python3.12", cfg.Pip.Python)
		assert.Equal(t, []string{"pip", "setuptools"}, cfg.Pip.Exclude)
		assert.Equal(t, 5, cfg.Disk.Limit)
		assert.Equal(t, path, GetConfigFileUsed())
		assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("DAVE_OUTPUT", "markdown")
		t.Setenv("DAVE_PIP__PYTHON", "python3.11")
		t.Setenv("DAVE_PIP__EXCLUDE", "wheel, pip")
		t.Setenv("DAVE_DU__LIMIT", "7")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "markdown", cfg.OutputFormat)
		assert.Equal(t, "python3.11", cfg.Pip.Python)
		assert.Equal(t, []string{"wheel", "pip"}, cfg.Pip.Exclude)
		assert.Equal(t, 7, cfg.Disk.Limit)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("DAVE_OUTPUT", "markdown")
		fs := newGlobalFlags()
		require.NoError(t, fs.Parse([]string{"-o", "text", "--journal", "/tmp/j.db", "--no-journal"}))

		cfg, err := LoadConfig(path, fs)
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.OutputFormat)
		assert.Equal(t, "/tmp/j.db", cfg.JournalPath)
		assert.True(t, cfg.NoJournal)
	})
}

func TestLoadConfig_ApplyIsFlagOnly(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), "apply: true\nyes: true\n")
	t.Setenv("DAVE_APPLY", "true")
	t.Setenv("DAVE_YES", "true")

	cfg, err := LoadConfig(path, newGlobalFlags())
	require.NoError(t, err)
	assert.False(t, cfg.Apply, "config files and env never enable apply")
	assert.False(t, cfg.AssumeYes)

	fs := newGlobalFlags()
	require.NoError(t, fs.Parse([]string{"--apply", "-y"}))
	cfg, err = LoadConfig(path, fs)
	require.NoError(t, err)
	assert.True(t, cfg.Apply)
	assert.True(t, cfg.AssumeYes)
}

func TestLoadConfig_SearchOrder(t *testing.T) {
	home := isolate(t)

	homeCfg := filepath.Join(home, ".dave", "dave.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(homeCfg), 0o750))
	require.NoError(t, os.WriteFile(homeCfg, []byte("history:\n  tail: 99\n"), 0o600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.History.Tail)
	assert.Equal(t, homeCfg, GetConfigFileUsed())

	// A file in the working directory wins over the home one.
	require.NoError(t, os.WriteFile("dave.yml", []byte("history:\n  tail: 3\n"), 0o600))
	cfg, err = LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.History.Tail)
	assert.Equal(t, "dave.yml", GetConfigFileUsed())
}

func TestLoadConfig_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"bad yaml", "output: [unclosed", "error reading config file"},
		{"bad output", "output: html", "output must be one of"},
		{"bad shell", "history:\n  shell: fish", "history.shell"},
		{"bad workers", "du:\n  workers: 0", "du.workers"},
		{"bad alias shell", "aliases:\n  shells: [zsh, tcsh]", "unsupported shell"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope.yaml")
	})
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandHome("~/x/y"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "pip.python", envKey("DAVE_PIP__PYTHON"))
	assert.Equal(t, "journal_path", envKey("DAVE_JOURNAL_PATH"))
	assert.Equal(t, "path.suggestion_limit", envKey("DAVE_PATH__SUGGESTION_LIMIT"))
}

func TestLoadConfigFrom(t *testing.T) {
	isolate(t)
	cfg, err := LoadConfigFrom(map[string]interface{}{"du.workers": 2, "no_journal": true})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Disk.Workers)
	assert.True(t, cfg.NoJournal)
	assert.Equal(t, "python3", cfg.Pip.Python)

	assert.NotNil(t, Default())
}
