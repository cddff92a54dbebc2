// Package brew checks Homebrew for outdated formulae and casks and plans
// their upgrade.
package brew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/safety"
)

// InstallHint is shown when brew is missing.
const InstallHint = "install Homebrew first: https://brew.sh/"

// Package is one outdated formula or cask.
type Package struct {
	Name      string   `json:"name"`
	Installed []string `json:"installed,omitempty"`
	Latest    string   `json:"latest,omitempty"`
	Cask      bool     `json:"cask"`
	Pinned    bool     `json:"pinned,omitempty"`
}

// String renders the package the way `brew outdated --verbose` does.
func (p Package) String() string {
	if len(p.Installed) == 0 && p.Latest == "" {
		return p.Name
	}
	sep := "<"
	if p.Cask {
		sep = "!="
	}
	out := fmt.Sprintf("%s (%s) %s %s", p.Name, strings.Join(p.Installed, ", "), sep, p.Latest)
	if p.Pinned {
		out += " [pinned]"
	}
	return out
}

// ParseOutdated parses `brew outdated [--verbose]` output. Lines look like
// "wget (1.21.3) < 1.21.4", "firefox (119.0) != 120.0" or just "wget".
// A trailing "[pinned at 1.21.3]" marks a pinned formula.
func ParseOutdated(out string, cask bool) []Package {
	var pkgs []Package
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "==>") || strings.HasPrefix(line, "Warning:") {
			continue
		}
		p := Package{Cask: cask}
		open := strings.Index(line, " (")
		closeIdx := -1
		if open >= 0 {
			if i := strings.Index(line[open:], ")"); i >= 0 {
				closeIdx = open + i
			}
		}
		if open < 0 || closeIdx < 0 {
			p.Name = strings.Fields(line)[0]
			pkgs = append(pkgs, p)
			continue
		}
		p.Name = line[:open]
		for _, v := range strings.Split(line[open+2:closeIdx], ",") {
			if v = strings.TrimSpace(v); v != "" {
				p.Installed = append(p.Installed, v)
			}
		}
		rest := strings.TrimSpace(line[closeIdx+1:])
		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(rest, "!="), "<"))
		if i := strings.Index(rest, "["); i >= 0 {
			p.Pinned = strings.Contains(rest[i:], "pinned")
			rest = strings.TrimSpace(rest[:i])
		}
		p.Latest = rest
		pkgs = append(pkgs, p)
	}
	return pkgs
}

// Names returns the package names.
func Names(pkgs []Package) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}

// Client talks to the brew executable.
type Client struct {
	runner runner.Runner
	logger *slog.Logger
}

// NewClient creates a client.
func NewClient(r runner.Runner, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{runner: r, logger: logger}
}

// CheckInstalled verifies brew is on PATH.
func (c *Client) CheckInstalled() (string, error) {
	p, err := c.runner.LookPath("brew")
	if err != nil {
		return "", safety.MissingExecutable("brew", InstallHint)
	}
	return p, nil
}

// Update refreshes Homebrew's package metadata, streaming its output.
func (c *Client) Update(ctx context.Context) error {
	_, err := c.run(ctx, runner.Command{Name: "brew", Args: []string{"update"}, Stream: true})
	return err
}

// Outdated lists outdated formulae and casks. With greedy, casks that
// update themselves are included.
func (c *Client) Outdated(ctx context.Context, greedy bool) (formulae, casks []Package, err error) {
	res, err := c.run(ctx, runner.Command{Name: "brew", Args: []string{"outdated", "--formula", "--verbose"}})
	if err != nil {
		return nil, nil, fmt.Errorf("checking outdated formulae: %w", err)
	}
	formulae = ParseOutdated(res.Stdout, false)

	args := []string{"outdated", "--cask", "--verbose"}
	if greedy {
		args = append(args, "--greedy")
	}
	res, err = c.run(ctx, runner.Command{Name: "brew", Args: args})
	if err != nil {
		return nil, nil, fmt.Errorf("checking outdated casks: %w", err)
	}
	casks = ParseOutdated(res.Stdout, true)

	c.logger.Debug("outdated packages", slog.Int("formulae", len(formulae)), slog.Int("casks", len(casks)))
	return formulae, casks, nil
}

// run executes a brew command. A non-zero exit with output on stdout is
// not an error: `brew outdated` exits 1 when something is outdated.
func (c *Client) run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	res, err := c.runner.Run(ctx, cmd)
	var nf *runner.NotFoundError
	var ee *runner.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &nf):
		return nil, safety.MissingExecutable("brew", InstallHint)
	case errors.As(err, &ee) && res != nil && strings.TrimSpace(res.Stdout) != "":
		c.logger.Debug("brew exited non-zero with output", slog.String("cmd", cmd.String()), slog.Int("code", ee.Code))
		return res, nil
	default:
		return nil, err
	}
}

// UpgradePlan plans upgrading the given packages followed by a cleanup.
// Pinned formulae are left out and disclosed as notes.
func (c *Client) UpgradePlan(formulae, casks []Package, greedy bool) *safety.Plan {
	plan := safety.NewPlan("Upgrade Homebrew packages")
	var upgradable []Package
	for _, p := range formulae {
		if p.Pinned {
			plan.Note("%s is pinned and will not be upgraded (brew unpin %s to allow it)", p.Name, p.Name)
			continue
		}
		upgradable = append(upgradable, p)
	}
	formulae = upgradable
	if len(formulae) == 0 && len(casks) == 0 {
		return plan
	}

	if len(formulae) > 0 {
		plan.Add(c.runAction(append([]string{"upgrade"}, Names(formulae)...), formulae))
	}
	if len(casks) > 0 {
		args := []string{"upgrade", "--cask"}
		if greedy {
			args = append(args, "--greedy")
		}
		plan.Add(c.runAction(append(args, Names(casks)...), casks))
	}
	plan.Add(c.runAction([]string{"cleanup"}, nil))
	return plan
}

func (c *Client) runAction(args []string, pkgs []Package) safety.Action {
	cmd := runner.Command{Name: "brew", Args: args, Stream: true}
	details := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		details = append(details, p.String())
	}
	return safety.Action{
		Kind:    safety.KindRun,
		Summary: cmd.String(),
		Details: details,
		Do: func(ctx context.Context) error {
			_, err := c.runner.Run(ctx, cmd)
			return err
		},
	}
}
