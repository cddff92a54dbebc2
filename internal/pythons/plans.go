package pythons

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dangerousdave/dave/internal/runner"
	"github.com/dangerousdave/dave/internal/safety"
)

// RemoveConfirmWord must be typed before an interpreter is removed.
const RemoveConfirmWord = "delete"

// RCFile picks the shell startup file aliases are written to: ~/.zshrc
// for zsh, ~/.bash_profile otherwise.
func RCFile(home, shellEnv string) string {
	if shellEnv == "" || strings.Contains(filepath.Base(shellEnv), "zsh") {
		return filepath.Join(home, ".zshrc")
	}
	return filepath.Join(home, ".bash_profile")
}

// PowerShellProfile asks PowerShell where the current user's profile is.
func (m *Manager) PowerShellProfile(ctx context.Context) (string, error) {
	res, err := m.runner.Run(ctx, runner.Command{
		Name:    "powershell",
		Args:    []string{"-NoProfile", "-Command", "echo $PROFILE"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		var nf *runner.NotFoundError
		if errors.As(err, &nf) {
			return "", safety.MissingExecutable("powershell", "switching the default interpreter on Windows edits the PowerShell profile")
		}
		return "", fmt.Errorf("failed to locate the PowerShell profile: %w", err)
	}
	p := strings.TrimSpace(res.Stdout)
	if p == "" {
		return "", errors.New("PowerShell reported an empty profile path")
	}
	return p, nil
}

// SwitchPlan makes inst the default python and python3 by appending an
// alias block to profile, after backing the file up.
func (m *Manager) SwitchPlan(inst Install, profile string, now time.Time) *safety.Plan {
	stamp := now.Format("20060102-150405")
	plan := safety.NewPlan(fmt.Sprintf("Make Python %s the default", inst.Version))

	if _, err := os.Stat(profile); err == nil {
		plan.Add(safety.CopyFileAction(profile, profile+".backup-"+stamp))
	}

	var block string
	if m.goos == "windows" {
		block = fmt.Sprintf("\n# --- Python Selection (Updated %s) ---\n"+
			"function python { & '%s' @args }\n"+
			"function python3 { & '%s' @args }\n"+
			"# ----------------------------------------------\n", stamp, inst.Path, inst.Path)
	} else {
		block = fmt.Sprintf("\n# --- Python Selection (Updated %s) ---\n"+
			"alias python=\"%s\"\n"+
			"alias python3=\"%s\"\n", stamp, inst.Path, inst.Path)
	}

	a := safety.AppendFileAction(profile, []byte(block))
	a.Summary = fmt.Sprintf("append python/python3 aliases for %s to %s", inst.Path, profile)
	a.Details = strings.Split(strings.TrimSpace(block), "\n")
	plan.Add(a)

	if m.goos == "windows" {
		plan.Note("Restart PowerShell to pick up the change.")
	} else {
		plan.Note("Run 'source %s' or open a new shell to pick up the change.", profile)
	}
	return plan
}

// RemovePlan plans removing inst. Protected interpreters, the active
// default and the interpreter dave probes with are refused outright.
func (m *Manager) RemovePlan(inv *Inventory, inst Install) (*safety.Plan, error) {
	switch {
	case inst.Protected:
		return nil, &safety.BlockedError{Target: inst.Path, Reason: fmt.Sprintf("%s interpreters are protected", inst.Vendor)}
	case inv.IsDefault(inst):
		return nil, &safety.BlockedError{Target: inst.Path, Reason: "it is the active default python; switch to another one first"}
	case inv.Self != "" && samePath(inst.Path, inv.Self):
		return nil, &safety.BlockedError{Target: inst.Path, Reason: "dave uses it for pip (pip.python); point pip.python elsewhere first"}
	}

	plan := safety.NewPlan(fmt.Sprintf("Remove Python %s (%s)", inst.Version, inst.Vendor))
	details := []string{"version " + inst.Version, "vendor " + inst.Vendor, "path " + inst.Path}

	switch {
	case m.goos == "windows":
		plan.Note("Python on Windows is registered with the system; dave does not delete its files.")
		plan.Note("Uninstall it from Settings > Apps > Installed apps: Python %s.", inst.Version)

	case inst.Vendor == VendorHomebrew:
		formula := "python@" + MajorMinor(inst.Version)
		cmd := runner.Command{Name: "brew", Args: []string{"uninstall", formula}, Stream: true}
		plan.Add(safety.Action{
			Kind:        safety.KindRun,
			Summary:     cmd.String(),
			Target:      formula,
			Details:     details,
			ConfirmWord: RemoveConfirmWord,
			Do: func(ctx context.Context) error {
				_, err := m.runner.Run(ctx, cmd)
				return err
			},
		})

	case inst.Vendor == VendorOfficial && strings.Contains(inst.Path, frameworkMarker):
		plan.Note("Framework installs need root. Run manually: sudo rm -rf %q", filepath.Dir(inst.Path))

	case !writable(filepath.Dir(inst.Path)):
		plan.Note("%s is not writable. Run manually: sudo rm %q", filepath.Dir(inst.Path), inst.Path)

	default:
		a := safety.RemoveFileAction(inst.Path, RemoveConfirmWord)
		a.Details = details
		plan.Add(a)
		for _, alias := range inst.Aliases {
			if !samePath(alias, inst.Path) {
				plan.Note("%s will be left pointing at a removed interpreter.", alias)
			}
		}
	}
	return plan, nil
}
