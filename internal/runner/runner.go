// Package runner executes external programs (brew, pip, shells, python
// interpreters) on behalf of the utilities.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	// Stream mirrors output to the operator while it is captured.
	Stream bool

	// Timeout overrides the runner default. Zero means use the default.
	Timeout time.Duration
}

// String renders the command line the way it would be typed.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n'\"$`\\|&;<>()*?[]#~") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// Result is the captured outcome of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	LookPath(name string) (string, error)
}

// ExitError is returned when a command ran but exited non-zero. The
// Result is returned alongside it.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
	if s := firstLine(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// NotFoundError is returned when the executable cannot be located.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("executable not found: %s", e.Name)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
