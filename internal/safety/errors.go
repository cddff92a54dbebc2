package safety

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// InputError is a diagnostic for a missing or unusable input.
type InputError struct {
	What string
	Path string
	Err  error
	Hint string
}

func (e *InputError) Error() string {
	reason := "unusable"
	switch {
	case errors.Is(e.Err, fs.ErrNotExist):
		reason = "not found"
	case errors.Is(e.Err, fs.ErrPermission):
		reason = "permission denied"
	case e.Err != nil:
		reason = e.Err.Error()
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.What, reason)
	}
	return fmt.Sprintf("%s %s: %s", e.What, e.Path, reason)
}

func (e *InputError) Unwrap() error { return e.Err }

// BlockedError reports a target the tool refuses to touch.
type BlockedError struct {
	Target string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("refusing to modify %s: %s", e.Target, e.Reason)
}

// Hint returns the operator hint carried by err, if any.
func Hint(err error) string {
	var ie *InputError
	if errors.As(err, &ie) && ie.Hint != "" {
		return ie.Hint
	}
	var be *BlockedError
	if errors.As(err, &be) {
		return "this is a safety block; nothing was changed"
	}
	return ""
}

// CheckFile verifies path exists, is a regular file and can be opened.
func CheckFile(what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &InputError{What: what, Path: path, Err: err, Hint: hintFor(err)}
	}
	if info.IsDir() {
		return &InputError{What: what, Path: path, Err: errors.New("is a directory, expected a file")}
	}
	f, err := os.Open(path)
	if err != nil {
		return &InputError{What: what, Path: path, Err: err, Hint: hintFor(err)}
	}
	return f.Close()
}

// CheckDir verifies path exists and is a directory.
func CheckDir(what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &InputError{What: what, Path: path, Err: err, Hint: hintFor(err)}
	}
	if !info.IsDir() {
		return &InputError{What: what, Path: path, Err: errors.New("is not a directory")}
	}
	return nil
}

// MissingExecutable builds the diagnostic for a tool that is not on PATH.
func MissingExecutable(name, hint string) error {
	return &InputError{
		What: "executable",
		Path: name,
		Err:  fs.ErrNotExist,
		Hint: hint,
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "check the path for typos, or create the file first"
	case errors.Is(err, fs.ErrPermission):
		return "check the file permissions, or re-run as a user that can read it"
	}
	return ""
}
