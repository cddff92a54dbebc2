package aliases

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/dangerousdave/dave/internal/pathenv"
)

var (
	sourceRE = regexp.MustCompile(`^\s*(?:source|\.)\s+(.+?)\s*(?:#.*)?$`)
	defRE    = regexp.MustCompile(`^\s*alias\s+([A-Za-z0-9_:+-]+)\s*=`)
)

// DefaultMaxDepth bounds how far source includes are followed.
const DefaultMaxDepth = 3

// StartFiles returns the user and system startup files of shell.
func StartFiles(shell, home string) []string {
	switch shell {
	case "zsh":
		return []string{
			filepath.Join(home, ".zshrc"),
			filepath.Join(home, ".zprofile"),
			filepath.Join(home, ".zshenv"),
			filepath.Join(home, ".zlogin"),
			"/etc/zshrc",
			"/etc/zprofile",
			"/etc/zshenv",
			"/etc/zlogin",
		}
	case "bash":
		return []string{
			filepath.Join(home, ".bashrc"),
			filepath.Join(home, ".bash_profile"),
			filepath.Join(home, ".bash_login"),
			filepath.Join(home, ".profile"),
			"/etc/bashrc",
			"/etc/profile",
		}
	}
	return nil
}

// OhMyZshFiles returns custom and plugin scripts of an Oh My Zsh install.
func OhMyZshFiles(home string) []string {
	base := filepath.Join(home, ".oh-my-zsh")
	var out []string
	collect := func(dir string, match func(name string) bool) {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && match(d.Name()) {
				out = append(out, path)
			}
			return nil
		})
	}
	collect(filepath.Join(base, "custom"), func(n string) bool { return strings.HasSuffix(n, ".zsh") })
	collect(filepath.Join(base, "plugins"), func(n string) bool { return strings.HasSuffix(n, ".plugin.zsh") })
	return out
}

// DefinitionFiles returns every file worth scanning for alias
// definitions of shell.
func DefinitionFiles(shell, home string, maxDepth int) []string {
	files := DiscoverSourced(StartFiles(shell, home), home, maxDepth)
	if shell == "zsh" {
		files = uniqueSorted(append(files, resolveAll(OhMyZshFiles(home))...))
	}
	return files
}

// DiscoverSourced follows simple "source file" and ". file" includes from
// the start files, breadth first, up to maxDepth levels. Missing files are
// ignored. The result is sorted and free of duplicates.
func DiscoverSourced(start []string, home string, maxDepth int) []string {
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}

	type item struct {
		path  string
		depth int
	}
	var queue []item
	for _, f := range start {
		if isFile(f) {
			queue = append(queue, item{resolve(f), 0})
		}
	}

	seen := make(map[string]bool)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.path] {
			continue
		}
		seen[cur.path] = true
		if cur.depth >= maxDepth {
			continue
		}

		content, err := os.ReadFile(cur.path)
		if err != nil {
			continue
		}
		base := filepath.Dir(cur.path)
		for _, line := range strings.Split(string(content), "\n") {
			m := sourceRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			target := expandInclude(m[1], base, home)
			if target != "" && isFile(target) {
				queue = append(queue, item{resolve(target), cur.depth + 1})
			}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func expandInclude(raw, base, home string) string {
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	if raw == "" {
		return ""
	}
	p := pathenv.Expand(raw, home)
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return p
}

// Location is one alias definition in a file. Line is 1-based.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// IndexDefinitions maps alias names to the lines defining them.
func IndexDefinitions(files []string) map[string][]Location {
	found := make(map[string][]Location)
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(content), "\n") {
			m := defRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			found[m[1]] = append(found[m[1]], Location{File: f, Line: i + 1, Text: strings.TrimSpace(line)})
		}
	}
	return found
}

// Entry is an alias with the places it is defined.
type Entry struct {
	Shell   string     `json:"shell"`
	Alias   Alias      `json:"alias"`
	Sources []Location `json:"sources"`
}

// Found reports whether a definition was located.
func (e Entry) Found() bool {
	return len(e.Sources) > 0
}

// Resolve attaches definition locations to aliases.
func Resolve(shell string, aliases []Alias, index map[string][]Location) []Entry {
	out := make([]Entry, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, Entry{Shell: shell, Alias: a, Sources: index[a.Name]})
	}
	return out
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func resolve(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		p = r
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func resolveAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolve(p)
	}
	return out
}

func uniqueSorted(paths []string) []string {
	slices.Sort(paths)
	return slices.Compact(paths)
}
