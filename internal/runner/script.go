package runner

import (
	"context"
	"sync"
)

// Reply is a canned response for Script.
type Reply struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Script is a Runner that answers from canned replies keyed by the
// rendered command line. It is safe for concurrent use.
type Script struct {
	mu      sync.Mutex
	replies map[string]Reply
	paths   map[string]string
	calls   []Command

	// Fallback answers commands without a reply. Nil makes them fail
	// with NotFoundError.
	Fallback func(cmd Command) Reply
}

// NewScript creates an empty script.
func NewScript() *Script {
	return &Script{
		replies: make(map[string]Reply),
		paths:   make(map[string]string),
	}
}

// On registers a reply for the exact command line.
func (s *Script) On(line string, r Reply) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[line] = r
	return s
}

// Path makes LookPath(name) return path.
func (s *Script) Path(name, path string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[name] = path
	return s
}

// Calls returns the commands run so far.
func (s *Script) Calls() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.calls))
	copy(out, s.calls)
	return out
}

// Lines returns the rendered command lines run so far.
func (s *Script) Lines() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// LookPath implements Runner.
func (s *Script) LookPath(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.paths[name]; ok {
		return p, nil
	}
	return "", &NotFoundError{Name: name}
}

// Run implements Runner.
func (s *Script) Run(ctx context.Context, cmd Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line := cmd.String()
	s.mu.Lock()
	s.calls = append(s.calls, cmd)
	reply, ok := s.replies[line]
	fallback := s.Fallback
	s.mu.Unlock()

	if !ok {
		if fallback == nil {
			return nil, &NotFoundError{Name: cmd.Name}
		}
		reply = fallback(cmd)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	res := &Result{Stdout: reply.Stdout, Stderr: reply.Stderr, ExitCode: reply.ExitCode}
	if reply.ExitCode != 0 {
		return res, &ExitError{Command: line, Code: reply.ExitCode, Stderr: reply.Stderr}
	}
	return res, nil
}
