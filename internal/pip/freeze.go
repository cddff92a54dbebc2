package pip

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dangerousdave/dave/internal/safety"
)

// Freeze returns `pip freeze` output.
func (c *Client) Freeze(ctx context.Context) (string, error) {
	res, err := c.run(ctx, c.pip("freeze"))
	if err != nil {
		return "", fmt.Errorf("pip freeze: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// FreezePlan plans writing frozen requirements to path. An existing file is
// refused unless force is set, in which case it is backed up first.
func FreezePlan(content, path string, force bool, now time.Time) (*safety.Plan, error) {
	plan := safety.NewPlan("Write requirements file " + path)
	if strings.TrimSpace(content) == "" {
		plan.Note("no installed packages found; nothing to write")
		return plan, nil
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil, &safety.InputError{What: "requirements file", Path: path,
			Err: fmt.Errorf("is a directory, expected a file")}
	case err == nil && !force:
		return nil, &safety.BlockedError{Target: path, Reason: "file already exists (pass --force to overwrite)"}
	case err == nil:
		plan.Add(safety.CopyFileAction(path, path+"."+now.Format("20060102-150405")+".bak"))
	case !os.IsNotExist(err):
		return nil, &safety.InputError{What: "requirements file", Path: path, Err: err}
	}

	lines := strings.Count(content, "\n") + 1
	w := safety.WriteFileAction(path, []byte(content+"\n"))
	w.Details = append(w.Details, fmt.Sprintf("%d packages", lines))
	plan.Add(w)
	plan.Note("reinstall later with: pip install -r %s", path)
	return plan, nil
}
