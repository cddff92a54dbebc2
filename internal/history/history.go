// Package history views and clears shell history files.
package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dangerousdave/dave/internal/safety"
)

// Shell identifies a supported shell.
type Shell string

// Supported shells.
const (
	Zsh  Shell = "zsh"
	Bash Shell = "bash"
)

// DefaultTail is the number of lines shown by default.
const DefaultTail = 20

// ParseShell validates a shell name.
func ParseShell(s string) (Shell, error) {
	switch Shell(strings.ToLower(strings.TrimSpace(s))) {
	case Zsh:
		return Zsh, nil
	case Bash:
		return Bash, nil
	}
	return "", fmt.Errorf("unsupported shell %q (want zsh or bash)", s)
}

// FileName returns the default history file name for shell.
func FileName(shell Shell) string {
	if shell == Bash {
		return ".bash_history"
	}
	return ".zsh_history"
}

// FilePath returns the history file for shell. histfile ($HISTFILE) only
// applies when loginShell ($SHELL) is the same shell.
func FilePath(home string, shell Shell, histfile, loginShell string) string {
	if histfile != "" && filepath.Base(loginShell) == string(shell) {
		if strings.HasPrefix(histfile, "~/") {
			return filepath.Join(home, histfile[2:])
		}
		return histfile
	}
	return filepath.Join(home, FileName(shell))
}

// View is the tail of a history file.
type View struct {
	Path  string   `json:"path"`
	Lines []string `json:"lines"`
	Total int      `json:"total"`
	Bytes int64    `json:"bytes"`
}

// Empty reports whether the file had no lines.
func (v *View) Empty() bool { return v.Total == 0 }

// Truncated reports whether only part of the file is shown.
func (v *View) Truncated() bool { return len(v.Lines) < v.Total }

// Tail reads the last n lines of a history file. Invalid UTF-8 (zsh
// metafied bytes, binary junk) is replaced rather than rejected.
func Tail(path string, n int) (*View, error) {
	if n <= 0 {
		n = DefaultTail
	}
	if err := safety.CheckFile("history file", path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &safety.InputError{What: "history file", Path: path, Err: err}
	}

	v := &View{Path: path, Bytes: int64(len(data))}
	text := strings.ToValidUTF8(string(bytes.TrimRight(data, "\n")), "�")
	if text == "" {
		return v, nil
	}
	lines := strings.Split(text, "\n")
	v.Total = len(lines)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	v.Lines = lines
	return v, nil
}

// ClearPlan plans truncating the history file. The truncate requires the
// operator to type "yes". A non-empty backupPath copies the file first.
func ClearPlan(path, backupPath string) (*safety.Plan, error) {
	if err := safety.CheckFile("history file", path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &safety.InputError{What: "history file", Path: path, Err: err}
	}

	plan := safety.NewPlan("Clear shell history " + path)
	if info.Size() == 0 {
		plan.Note("%s is already empty", path)
		return plan, nil
	}

	if backupPath != "" {
		plan.Add(safety.CopyFileAction(path, backupPath))
	}
	tr := safety.TruncateAction(path, "yes")
	tr.Details = append(tr.Details, fmt.Sprintf("%d bytes will be discarded", info.Size()))
	plan.Add(tr)
	plan.Note("open shells keep their in-memory history and may write it back on exit")
	return plan, nil
}
