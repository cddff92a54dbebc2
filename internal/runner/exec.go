package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// Default limits for Exec.
const (
	DefaultTimeout        = 30 * time.Minute
	DefaultMaxOutputBytes = 4 << 20
)

// Exec runs commands directly on the host with os/exec.
type Exec struct {
	// Stdout and Stderr receive streamed output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	Logger         *slog.Logger
	Timeout        time.Duration
	MaxOutputBytes int64
}

// NewExec creates an executor streaming to the given writers.
func NewExec(stdout, stderr io.Writer, logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exec{
		Stdout:         stdout,
		Stderr:         stderr,
		Logger:         logger,
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// LookPath locates an executable on PATH.
func (e *Exec) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", &NotFoundError{Name: name}
	}
	return p, nil
}

// Run executes cmd, capturing stdout and stderr.
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, errors.New("command name is required")
	}

	timeout := e.Timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOut := e.MaxOutputBytes
	if maxOut <= 0 {
		maxOut = DefaultMaxOutputBytes
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(execCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = time.Second
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var stdout io.Writer = &limitedWriter{w: &stdoutBuf, max: maxOut}
	var stderr io.Writer = &limitedWriter{w: &stderrBuf, max: maxOut}
	if cmd.Stream {
		if e.Stdout != nil {
			stdout = io.MultiWriter(stdout, e.Stdout)
		}
		if e.Stderr != nil {
			stderr = io.MultiWriter(stderr, e.Stderr)
		}
	}
	c.Stdout = stdout
	c.Stderr = stderr

	line := cmd.String()
	e.Logger.Debug("running command", slog.String("cmd", line), slog.String("dir", cmd.Dir))

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}

	if err == nil {
		e.Logger.Debug("command finished", slog.String("cmd", line), slog.Duration("took", res.Duration))
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return nil, &NotFoundError{Name: cmd.Name}
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		e.Logger.Warn("command timed out", slog.String("cmd", line), slog.Duration("timeout", timeout))
		return res, fmt.Errorf("%s: timed out after %s", line, timeout)
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", line, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		e.Logger.Debug("command exited non-zero", slog.String("cmd", line), slog.Int("code", res.ExitCode))
		return res, &ExitError{Command: line, Code: res.ExitCode, Stderr: res.Stderr}
	default:
		e.Logger.Error("command failed to start", slog.String("cmd", line), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", line, err)
	}
}

// limitedWriter keeps at most max bytes and silently drops the rest.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		p = p[:remaining]
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
