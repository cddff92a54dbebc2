// Package pip wraps the pip module of a chosen Python interpreter: listing
// and upgrading outdated packages, freezing requirements and installing a
// requirements list one package at a time.
package pip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/safety"
)

// Package is one entry of `pip list --outdated --format=json`.
type Package struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	LatestVersion  string `json:"latest_version"`
	LatestFiletype string `json:"latest_filetype,omitempty"`
}

// Client runs pip through a specific interpreter.
type Client struct {
	runner runner.Runner
	python string
	logger *slog.Logger
}

// NewClient creates a client for the given interpreter (name or path).
func NewClient(r runner.Runner, python string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if python == "" {
		python = "python3"
	}
	return &Client{runner: r, python: python, logger: logger}
}

// Python returns the interpreter the client uses.
func (c *Client) Python() string { return c.python }

// CheckInstalled verifies the interpreter can be found.
func (c *Client) CheckInstalled() (string, error) {
	p, err := c.runner.LookPath(c.python)
	if err != nil {
		return "", safety.MissingExecutable(c.python,
			"install Python 3, or point pip.python (DAVE_PIP__PYTHON) at an interpreter")
	}
	return p, nil
}

func (c *Client) pip(args ...string) runner.Command {
	return runner.Command{Name: c.python, Args: append([]string{"-m", "pip"}, args...)}
}

func (c *Client) run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	res, err := c.runner.Run(ctx, cmd)
	var nf *runner.NotFoundError
	if errors.As(err, &nf) {
		return nil, safety.MissingExecutable(c.python, "check that the interpreter exists and is on PATH")
	}
	return res, err
}

// Outdated lists outdated packages.
func (c *Client) Outdated(ctx context.Context) ([]Package, error) {
	res, err := c.run(ctx, c.pip("list", "--outdated", "--format=json"))
	if err != nil {
		return nil, fmt.Errorf("checking outdated packages: %w", err)
	}
	return ParseOutdated(res.Stdout)
}

// ParseOutdated decodes pip's JSON listing. Pip may print notices after
// the JSON document; only the first line holding the array is decoded.
func ParseOutdated(out string) ([]Package, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var pkgs []Package
	dec := json.NewDecoder(strings.NewReader(out))
	if err := dec.Decode(&pkgs); err != nil {
		return nil, fmt.Errorf("could not parse pip output: %w", err)
	}
	return pkgs, nil
}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies PEP 503 name normalisation.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// FilterExcluded drops packages whose normalised name is in names.
func FilterExcluded(pkgs []Package, names []string) (kept []Package, excluded int) {
	if len(names) == 0 {
		return pkgs, 0
	}
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[NormalizeName(n)] = true
	}
	for _, p := range pkgs {
		if skip[NormalizeName(p.Name)] {
			excluded++
			continue
		}
		kept = append(kept, p)
	}
	return kept, excluded
}

const venvProbe = "import sys; print(sys.prefix != sys.base_prefix); print(sys.executable)"

// InVirtualEnv reports whether the interpreter runs inside a virtual
// environment, along with its resolved executable.
func (c *Client) InVirtualEnv(ctx context.Context) (bool, string, error) {
	res, err := c.run(ctx, runner.Command{Name: c.python, Args: []string{"-c", venvProbe}})
	if err != nil {
		return false, "", fmt.Errorf("probing interpreter: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	inVenv := strings.TrimSpace(lines[0]) == "True"
	exe := c.python
	if len(lines) > 1 {
		exe = strings.TrimSpace(lines[1])
	}
	return inVenv, exe, nil
}

// UpgradePlan plans one batch `pip install --upgrade` for pkgs.
func (c *Client) UpgradePlan(pkgs []Package) *safety.Plan {
	plan := safety.NewPlan("Upgrade outdated Python packages")
	if len(pkgs) == 0 {
		return plan
	}
	names := make([]string, len(pkgs))
	details := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
		details[i] = fmt.Sprintf("%s %s -> %s", p.Name, p.Version, p.LatestVersion)
	}
	cmd := c.pip(append([]string{"install", "--upgrade"}, names...)...)
	cmd.Stream = true
	plan.Add(safety.Action{
		Kind:    safety.KindRun,
		Summary: cmd.String(),
		Details: details,
		Do: func(ctx context.Context) error {
			_, err := c.run(ctx, cmd)
			return err
		},
	})
	return plan
}
