// Package aliases lists the aliases an interactive shell defines and finds
// the startup files they are defined in.
package aliases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/safety"
)

// Shells supported by Collect.
var Shells = []string{"zsh", "bash"}

// bash prints "alias ll='ls -la'", zsh prints "ll='ls -la'".
var outputRE = regexp.MustCompile(`^(?:alias\s+)?([A-Za-z0-9_:+-]+)=(.*)$`)

// Alias is one alias reported by a shell.
type Alias struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Line  string `json:"line"`
}

// ParseAliasOutput parses the output of the alias builtin. Later
// definitions of the same name win. The result is sorted by name.
func ParseAliasOutput(out string) []Alias {
	byName := make(map[string]Alias)
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := outputRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !strings.HasPrefix(line, "alias ") {
			line = "alias " + line
		}
		byName[m[1]] = Alias{Name: m[1], Value: unquote(m[2]), Line: line}
	}

	result := make([]Alias, 0, len(byName))
	for _, a := range byName {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = v[1 : len(v)-1]
		// '\'' is how both shells embed a single quote.
		return strings.ReplaceAll(v, `'\''`, "'")
	}
	return v
}

// Collector asks shells for their aliases.
type Collector struct {
	runner runner.Runner
	logger *slog.Logger
}

// NewCollector creates a collector.
func NewCollector(r runner.Runner, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{runner: r, logger: logger}
}

// Collect runs "<shell> -i -c alias" so the shell loads its startup files
// the way an interactive session would.
func (c *Collector) Collect(ctx context.Context, shell string) ([]Alias, error) {
	path, err := c.runner.LookPath(shell)
	if err != nil {
		return nil, safety.MissingExecutable(shell, fmt.Sprintf("install %s, or drop it from aliases.shells", shell))
	}

	cmd := runner.Command{Name: path, Args: []string{"-i", "-c", "alias"}, Timeout: 30 * time.Second}
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		// Interactive shells often exit non-zero because of noisy rc files;
		// the alias listing is still usable.
		var ee *runner.ExitError
		if !errors.As(err, &ee) || res == nil || strings.TrimSpace(res.Stdout) == "" {
			return nil, fmt.Errorf("failed to list %s aliases: %w", shell, err)
		}
		c.logger.Debug("shell exited non-zero while listing aliases",
			slog.String("shell", shell), slog.Int("code", ee.Code))
	}

	aliases := ParseAliasOutput(res.Stdout)
	c.logger.Debug("collected aliases", slog.String("shell", shell), slog.Int("count", len(aliases)))
	return aliases, nil
}
