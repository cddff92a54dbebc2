package pathenv

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultSuggestionLimit caps Suggest when no limit is given.
const DefaultSuggestionLimit = 8

// Suggest proposes existing directories that a broken PATH entry probably
// meant. It looks at the children of the closest existing ancestor that
// resemble the missing last element, and for a missing bin or sbin, at
// bin/sbin directories of nearby parents.
func Suggest(normalized string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	p := filepath.Clean(strings.TrimSpace(normalized))
	if p == "" || p == "." {
		return nil
	}

	target := filepath.Base(p)
	var out []string
	add := func(dir string) bool {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
		if !slices.Contains(out, dir) {
			out = append(out, dir)
		}
		return len(out) >= limit
	}

	if ancestor := existingAncestor(p); ancestor != "" {
		children, err := os.ReadDir(ancestor)
		if err == nil {
			for _, c := range children {
				name := c.Name()
				if !IsDir(filepath.Join(ancestor, name)) {
					continue
				}
				if name == target || strings.HasPrefix(name, target) || strings.HasPrefix(target, name) {
					if add(filepath.Join(ancestor, name)) {
						return out
					}
				}
			}
		}
	}

	if target == "bin" || target == "sbin" {
		cur := filepath.Dir(p)
		for range 4 {
			if IsDir(cur) {
				for _, name := range []string{"bin", "sbin"} {
					candidate := filepath.Join(cur, name)
					if IsDir(candidate) && add(candidate) {
						return out
					}
				}
			}
			parent := filepath.Dir(cur)
			if parent == cur {
				break
			}
			cur = parent
		}
	}
	return out
}

func existingAncestor(p string) string {
	cur := p
	for {
		if IsDir(cur) {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
