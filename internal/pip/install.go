package pip

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dangerousdave/dave/internal/safety"
)

// requirementOperators are cut from requirement lines, longest first.
var requirementOperators = []string{"===", "==", ">=", "<=", "~=", "!=", "<", ">"}

// ParseRequirements extracts base package names from a requirements file.
// Blank lines, comments and option lines (-r, --index-url) are skipped;
// version specifiers, extras and environment markers are removed; names
// are de-duplicated (PEP 503) preserving first occurrence.
func ParseRequirements(r io.Reader) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, "@"); i >= 0 {
			line = line[:i]
		}
		for _, op := range requirementOperators {
			if i := strings.Index(line, op); i >= 0 {
				line = line[:i]
			}
		}
		if i := strings.Index(line, "["); i >= 0 {
			line = line[:i]
		}
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		key := NormalizeName(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}
	return names, nil
}

// ReadRequirements checks and parses a requirements file.
func ReadRequirements(path string) ([]string, error) {
	if err := safety.CheckFile("requirements file", path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &safety.InputError{What: "requirements file", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()
	return ParseRequirements(f)
}

// LogFileName returns the timestamped install log name.
func LogFileName(now time.Time) string {
	return "pip_install_" + now.Format("20060102-150405") + ".log"
}

// installLog appends timestamped lines to the install log.
type installLog struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *slog.Logger
	failed bool
}

// record writes lines during installs. Installs go on without a log; the
// first failure is reported through the logger.
func (l *installLog) record(lines ...string) {
	err := l.write(lines...)
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.failed {
		l.failed = true
		l.logger.Warn("install log unavailable", slog.String("path", l.path), slog.Any("error", err))
	}
}

func (l *installLog) write(lines ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	stamp := l.now().Format("[2006-01-02 15:04:05]")
	for _, line := range lines {
		if _, err := fmt.Fprintf(f, "%s %s\n", stamp, line); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}

// InstallEachPlan plans installing each package on its own so that one
// failure does not stop the rest. Every pip output line is mirrored to a
// timestamped log file in logDir.
func (c *Client) InstallEachPlan(names []string, logDir string, now time.Time) *safety.Plan {
	plan := safety.NewPlan("Install packages one by one")
	plan.ContinueOnError = true
	if len(names) == 0 {
		return plan
	}

	log := &installLog{path: filepath.Join(logDir, LogFileName(now)), now: time.Now, logger: c.logger}

	plan.Add(safety.Action{
		Kind:    safety.KindWrite,
		Summary: "create install log " + log.path,
		Target:  log.path,
		Do: func(context.Context) error {
			if err := os.MkdirAll(logDir, 0o750); err != nil {
				return err
			}
			return log.write(
				"--- Starting package installation ---",
				fmt.Sprintf("Interpreter: %s", c.python),
				fmt.Sprintf("Total packages to install: %d", len(names)),
			)
		},
	})

	for _, name := range names {
		cmd := c.pip("install", name)
		cmd.Stream = true
		plan.Add(safety.Action{
			Kind:    safety.KindRun,
			Summary: cmd.String(),
			Target:  name,
			Do: func(ctx context.Context) error {
				log.record("--- Installing "+name+" ---", "Executing: "+cmd.String())
				res, err := c.run(ctx, cmd)
				if res != nil {
					var lines []string
					for _, l := range strings.Split(strings.TrimSpace(res.Stdout+"\n"+res.Stderr), "\n") {
						if l = strings.TrimSpace(l); l != "" {
							lines = append(lines, "PIP OUTPUT: "+l)
						}
					}
					log.record(lines...)
				}
				if err != nil {
					log.record(fmt.Sprintf("Failed to install %s: %v", name, err))
					return err
				}
				log.record("Successfully installed " + name)
				return nil
			},
		})
	}
	plan.Note("failures do not stop the remaining installs; see the log for pip output")
	return plan
}
