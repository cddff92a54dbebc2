package pythons

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dangerousdave/dave/internal/pathenv"
	"github.com/dangerousdave/dave/internal/runner"
)

// Probe timeouts.
const (
	versionTimeout = 2 * time.Second
	archTimeout    = 2 * time.Second
	pipTimeout     = 10 * time.Second
)

// Install is one interpreter, identified by its resolved path.
type Install struct {
	Path      string   `json:"path"`
	Version   string   `json:"version"`
	Vendor    string   `json:"vendor"`
	Protected bool     `json:"protected"`
	Arch      string   `json:"arch"`
	Pip       bool     `json:"pip"`
	Aliases   []string `json:"aliases"`
}

// Commands returns up to three distinct command names that reach the
// interpreter, shortest first.
func (i Install) Commands() []string {
	var names []string
	for _, a := range i.Aliases {
		n := filepath.Base(a)
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(a), len(b)), cmp.Compare(a, b))
	})
	if len(names) > 3 {
		names = names[:3]
	}
	return names
}

// Inventory is the result of a scan.
type Inventory struct {
	Installs []Install `json:"installs"`

	// Default is the resolved interpreter python3 runs.
	Default string `json:"default,omitempty"`

	// Self is the resolved interpreter dave itself probes with.
	Self string `json:"self,omitempty"`
}

// IsDefault reports whether inst is the active default interpreter.
func (inv *Inventory) IsDefault(inst Install) bool {
	return inv.Default != "" && samePath(inst.Path, inv.Default)
}

// Select finds an install by 1-based number ("2", "#2", "[2]") or by path.
func (inv *Inventory) Select(arg string) (Install, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Install{}, fmt.Errorf("no interpreter selected")
	}

	num := strings.Trim(arg, "#[]")
	if n, err := strconv.Atoi(num); err == nil {
		if n < 1 || n > len(inv.Installs) {
			return Install{}, fmt.Errorf("no interpreter #%d (have %d)", n, len(inv.Installs))
		}
		return inv.Installs[n-1], nil
	}

	resolved := arg
	if r, err := filepath.EvalSymlinks(arg); err == nil {
		resolved = r
	}
	for _, inst := range inv.Installs {
		if samePath(inst.Path, resolved) || slices.ContainsFunc(inst.Aliases, func(a string) bool { return samePath(a, arg) }) {
			return inst, nil
		}
	}
	return Install{}, fmt.Errorf("%s is not a known interpreter; run `dave python list`", arg)
}

// Options tunes a scan.
type Options struct {
	// PathEnv is the PATH value to search.
	PathEnv string

	// Dirs replaces the well-known install locations when non-nil.
	Dirs []string

	// LocalAppData is used for Windows install locations.
	LocalAppData string

	// ProbePython is the interpreter dave's own pip probes use.
	ProbePython string

	// Workers bounds concurrent interpreter probes.
	Workers int
}

// Manager scans interpreters and builds switch and remove plans.
type Manager struct {
	runner runner.Runner
	logger *slog.Logger
	goos   string
}

// NewManager creates a manager for the running OS.
func NewManager(r runner.Runner, logger *slog.Logger) *Manager {
	return NewManagerFor(r, logger, runtime.GOOS)
}

// NewManagerFor creates a manager that behaves as on goos.
func NewManagerFor(r runner.Runner, logger *slog.Logger, goos string) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{runner: r, logger: logger, goos: goos}
}

// Scan finds interpreters on PATH and in well-known locations, then
// probes each distinct binary in parallel. Binaries that do not report a
// version are dropped.
func (m *Manager) Scan(ctx context.Context, opts Options) (*Inventory, error) {
	dirs := opts.Dirs
	if dirs == nil {
		dirs = WellKnownDirs(m.goos, opts.LocalAppData)
	}
	dirs = append(pathenv.SplitList(opts.PathEnv), dirs...)

	byPath, order := m.discover(dirs)
	m.logger.Debug("interpreter candidates", slog.Int("dirs", len(dirs)), slog.Int("binaries", len(order)))

	installs := make([]Install, len(order))
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range order {
		g.Go(func() error {
			installs[i] = m.probe(gctx, path, byPath[path])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inv := &Inventory{}
	for _, inst := range installs {
		if inst.Version != "" {
			inv.Installs = append(inv.Installs, inst)
		}
	}
	slices.SortStableFunc(inv.Installs, func(a, b Install) int {
		return cmp.Or(compareVersions(b.Version, a.Version), cmp.Compare(a.Path, b.Path))
	})

	inv.Default = m.resolveCommand(m.defaultCommand())
	if opts.ProbePython != "" {
		inv.Self = m.resolveCommand(opts.ProbePython)
	}
	return inv, nil
}

// discover lists matching binaries, grouped by resolved path in the order
// first seen.
func (m *Manager) discover(dirs []string) (map[string][]string, []string) {
	byPath := make(map[string][]string)
	var order []string
	seenDir := make(map[string]bool)

	for _, dir := range dirs {
		if dir == "" || seenDir[dir] {
			continue
		}
		seenDir[dir] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !MatchBinaryName(e.Name(), m.goos) {
				continue
			}
			full := filepath.Join(dir, e.Name())
			info, err := os.Stat(full)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			resolved, err := filepath.EvalSymlinks(full)
			if err != nil {
				continue
			}
			if abs, err := filepath.Abs(resolved); err == nil {
				resolved = abs
			}
			if m.goos == "windows" && info.Size() == 0 {
				// Store execution aliases are empty placeholders.
				continue
			}
			if _, ok := byPath[resolved]; !ok {
				order = append(order, resolved)
			}
			if !slices.Contains(byPath[resolved], full) {
				byPath[resolved] = append(byPath[resolved], full)
			}
		}
	}
	return byPath, order
}

func (m *Manager) probe(ctx context.Context, path string, aliases []string) Install {
	vendor, protected := ClassifyVendor(path, m.goos)
	inst := Install{Path: path, Vendor: vendor, Protected: protected, Aliases: aliases, Arch: "Unknown"}

	res, _ := m.runner.Run(ctx, runner.Command{Name: path, Args: []string{"--version"}, Timeout: versionTimeout})
	if res == nil {
		return inst
	}
	inst.Version = ParseVersion(res.Stdout + "\n" + res.Stderr)
	if inst.Version == "" {
		m.logger.Debug("interpreter did not report a version", slog.String("path", path))
		return inst
	}

	inst.Arch = m.arch(ctx, path)
	_, err := m.runner.Run(ctx, runner.Command{Name: path, Args: []string{"-m", "pip", "--version"}, Timeout: pipTimeout})
	inst.Pip = err == nil
	return inst
}

func (m *Manager) arch(ctx context.Context, path string) string {
	if m.goos == "darwin" {
		res, err := m.runner.Run(ctx, runner.Command{Name: "lipo", Args: []string{"-archs", path}, Timeout: archTimeout})
		if err != nil {
			return "Unknown"
		}
		return ArchFromLipo(res.Stdout)
	}
	res, err := m.runner.Run(ctx, runner.Command{
		Name:    path,
		Args:    []string{"-c", "import platform; print(platform.machine())"},
		Timeout: archTimeout,
	})
	if err != nil {
		return "Unknown"
	}
	return ArchFromMachine(res.Stdout, m.goos)
}

func (m *Manager) defaultCommand() string {
	if m.goos == "windows" {
		return "python.exe"
	}
	return "python3"
}

func (m *Manager) resolveCommand(name string) string {
	p, err := m.runner.LookPath(name)
	if err != nil && m.goos == "windows" && name == "python.exe" {
		p, err = m.runner.LookPath("python")
	}
	if err != nil {
		return ""
	}
	if r, err := filepath.EvalSymlinks(p); err == nil {
		p = r
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
