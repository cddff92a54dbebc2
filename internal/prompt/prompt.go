// Package prompt asks the operator questions, either through a readline
// terminal or through a plain line reader for pipes and tests.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

var (
	// ErrNoInput is returned when the input stream ends before an answer.
	ErrNoInput = errors.New("no input available")
	// ErrAborted is returned when the operator interrupts a prompt.
	ErrAborted = errors.New("prompt aborted")
)

// Prompter asks questions and returns trimmed answers.
type Prompter interface {
	Confirm(question string) (bool, error)
	Ask(question string) (string, error)
}

// IsYes reports whether answer is an affirmative reply.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// Line reads answers line by line from any reader.
type Line struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewLine creates a prompter reading from in and writing questions to out.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{in: bufio.NewScanner(in), out: out}
}

// Ask writes question and reads one line.
func (l *Line) Ask(question string) (string, error) {
	_, _ = fmt.Fprint(l.out, question)
	if !l.in.Scan() {
		_, _ = fmt.Fprintln(l.out)
		if err := l.in.Err(); err != nil {
			return "", err
		}
		return "", ErrNoInput
	}
	return strings.TrimSpace(l.in.Text()), nil
}

// Confirm asks a yes/no question; anything but yes is no.
func (l *Line) Confirm(question string) (bool, error) {
	answer, err := l.Ask(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// Readline prompts on an interactive terminal.
type Readline struct {
	rl *readline.Instance
}

// NewReadline creates a terminal prompter. History is kept in memory only.
func NewReadline(stdin io.ReadCloser, stdout io.Writer) (*Readline, error) {
	rl, err := readline.NewEx(&readline.Config{
		Stdin:                  stdin,
		Stdout:                 stdout,
		InterruptPrompt:        "^C",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt: %w", err)
	}
	return &Readline{rl: rl}, nil
}

// Ask shows question as the prompt and reads one line.
func (r *Readline) Ask(question string) (string, error) {
	r.rl.SetPrompt(question)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question; anything but yes is no.
func (r *Readline) Confirm(question string) (bool, error) {
	answer, err := r.Ask(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// Close releases the terminal.
func (r *Readline) Close() error {
	return r.rl.Close()
}
