// Package pathenv inspects the PATH search list: it classifies every entry,
// flags broken, duplicate and shadowed directories, and builds proposals
// for a corrected PATH.
package pathenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one analysed PATH element. Index is 1-based.
type Entry struct {
	Index       int      `json:"index"`
	Raw         string   `json:"raw"`
	Expanded    string   `json:"expanded"`
	Normalized  string   `json:"normalized"`
	Exists      bool     `json:"exists"`
	IsDir       bool     `json:"is_dir"`
	Category    string   `json:"category"`
	Reason      string   `json:"reason"`
	DuplicateOf int      `json:"duplicate_of,omitempty"`
	ShadowedBy  int      `json:"shadowed_by,omitempty"`
	Flags       []string `json:"flags"`
}

// Broken reports whether the entry does not name an existing directory.
func (e Entry) Broken() bool {
	return !e.Exists || !e.IsDir
}

func (e Entry) flags() []string {
	flags := []string{}
	if e.Broken() {
		flags = append(flags, "BROKEN")
	}
	if e.DuplicateOf > 0 {
		flags = append(flags, fmt.Sprintf("DUP(%02d)", e.DuplicateOf))
	}
	if e.ShadowedBy > 0 {
		flags = append(flags, fmt.Sprintf("SHADOW(%02d)", e.ShadowedBy))
	}
	return flags
}

// Group is the entries of one category.
type Group struct {
	Category string  `json:"category"`
	Entries  []Entry `json:"entries"`
}

// Summary counts the problems found, by entry index.
type Summary struct {
	Total         int   `json:"total_entries"`
	Broken        []int `json:"broken"`
	Duplicates    []int `json:"duplicates"`
	Shadowed      []int `json:"shadowed"`
	EmptySegments int   `json:"empty_segments"`
}

// Analysis is the result of inspecting one PATH value.
type Analysis struct {
	Raw     string  `json:"raw_path"`
	Home    string  `json:"-"`
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Analyze splits raw on the platform list separator and inspects every
// non-empty element. home is used for "~" expansion and classification.
func Analyze(raw, home string) *Analysis {
	a := &Analysis{Raw: raw, Home: home, Entries: []Entry{}}
	seen := make(map[string]int)

	for _, part := range SplitList(raw) {
		if part == "" {
			a.Summary.EmptySegments++
			continue
		}
		e := Entry{Index: len(a.Entries) + 1, Raw: part}
		e.Expanded = Expand(part, home)
		e.Normalized = Normalize(part, home)

		if info, err := os.Stat(e.Expanded); err == nil {
			e.Exists = true
			e.IsDir = info.IsDir()
		}
		e.Category, e.Reason = Classify(e.Normalized, home)

		if first, ok := seen[e.Normalized]; ok {
			e.DuplicateOf = first
		} else {
			seen[e.Normalized] = e.Index
		}
		a.Entries = append(a.Entries, e)
	}

	markShadowed(a.Entries)

	a.Summary.Total = len(a.Entries)
	a.Summary.Broken = []int{}
	a.Summary.Duplicates = []int{}
	a.Summary.Shadowed = []int{}
	for i := range a.Entries {
		e := &a.Entries[i]
		e.Flags = e.flags()
		if e.Broken() {
			a.Summary.Broken = append(a.Summary.Broken, e.Index)
		}
		if e.DuplicateOf > 0 {
			a.Summary.Duplicates = append(a.Summary.Duplicates, e.Index)
		}
		if e.ShadowedBy > 0 {
			a.Summary.Shadowed = append(a.Summary.Shadowed, e.Index)
		}
	}
	return a
}

// markShadowed flags entries nested inside an earlier entry's directory.
func markShadowed(entries []Entry) {
	sep := string(filepath.Separator)
	for i := range entries {
		b := entries[i].Normalized
		for j := 0; j < i; j++ {
			a := entries[j].Normalized
			if b != a && strings.HasPrefix(b, strings.TrimRight(a, sep)+sep) {
				entries[i].ShadowedBy = entries[j].Index
				break
			}
		}
	}
}

// Broken returns the entries that are not existing directories.
func (a *Analysis) Broken() []Entry {
	var out []Entry
	for _, e := range a.Entries {
		if e.Broken() {
			out = append(out, e)
		}
	}
	return out
}

// Entry returns the entry with the given 1-based index.
func (a *Analysis) Entry(index int) (Entry, bool) {
	if index < 1 || index > len(a.Entries) {
		return Entry{}, false
	}
	return a.Entries[index-1], true
}

// Groups returns the non-empty categories in CategoryPriority order.
func (a *Analysis) Groups() []Group {
	byCat := make(map[string][]Entry)
	for _, e := range a.Entries {
		byCat[e.Category] = append(byCat[e.Category], e)
	}
	var out []Group
	for _, c := range CategoryPriority {
		if es := byCat[c]; len(es) > 0 {
			out = append(out, Group{Category: c, Entries: es})
		}
	}
	return out
}

// SplitList splits a PATH value, keeping empty elements.
func SplitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, string(os.PathListSeparator))
}

// JoinList joins elements into a PATH value, dropping empty ones.
func JoinList(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, string(os.PathListSeparator))
}

// Expand substitutes environment variables and a leading "~". Unset
// variables are left as written.
func Expand(p, home string) string {
	p = os.Expand(p, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "$" + name
	})
	switch {
	case p == "~":
		return home
	case strings.HasPrefix(p, "~/"), strings.HasPrefix(p, "~"+string(filepath.Separator)):
		return filepath.Join(home, p[2:])
	}
	return p
}

// Normalize expands p and resolves symlinks when the target exists,
// otherwise it only cleans the path.
func Normalize(p, home string) string {
	expanded := Expand(p, home)
	if resolved, err := filepath.EvalSymlinks(expanded); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			return abs
		}
		return resolved
	}
	return filepath.Clean(expanded)
}

// IsDir reports whether p names an existing directory.
func IsDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
