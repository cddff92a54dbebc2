// Package diskusage measures how much space each directory under a root
// takes, in a single read-only walk.
package diskusage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/dangerousdave/dave/internal/safety"
)

// maxSkippedPaths bounds how many unreadable paths are remembered.
const maxSkippedPaths = 20

// Options tunes a scan.
type Options struct {
	// Workers bounds how many top-level subtrees are walked at once.
	Workers int
}

// Entry is one directory and its cumulative size.
type Entry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Report is the result of a scan.
type Report struct {
	Root         string           `json:"root"`
	Sizes        map[string]int64 `json:"-"`
	Files        int64            `json:"files"`
	Dirs         int64            `json:"dirs"`
	Skipped      int              `json:"skipped"`
	SkippedPaths []string         `json:"skipped_paths,omitempty"`
}

// Total returns the size of the root.
func (r *Report) Total() int64 { return r.Sizes[r.Root] }

// Top returns the n largest directories, largest first, ties by path.
// n <= 0 returns all of them.
func (r *Report) Top(n int) []Entry {
	entries := make([]Entry, 0, len(r.Sizes))
	for p, s := range r.Sizes {
		entries = append(entries, Entry{Path: p, Size: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Size != entries[j].Size {
			return entries[i].Size > entries[j].Size
		}
		return entries[i].Path < entries[j].Path
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// FormatSize renders bytes with IEC units (KiB, MiB, GiB).
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// partial is what one walker collects: bytes directly inside each dir.
type partial struct {
	own     map[string]int64
	files   int64
	skipped []string
}

func newPartial() *partial {
	return &partial{own: make(map[string]int64)}
}

// Scan walks root. Symlinks are never followed. Unreadable entries are
// counted as skipped and do not fail the scan.
func Scan(ctx context.Context, root string, opts Options) (*Report, error) {
	if err := safety.CheckDir("scan root", root); err != nil {
		return nil, err
	}
	root = filepath.Clean(root)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &safety.InputError{What: "scan root", Path: root, Err: err}
	}

	top := newPartial()
	top.own[root] = 0
	var subdirs []string
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		switch {
		case e.Type()&fs.ModeSymlink != 0:
			continue
		case e.IsDir():
			subdirs = append(subdirs, p)
		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				top.skipped = append(top.skipped, p)
				continue
			}
			top.own[root] += info.Size()
			top.files++
		}
	}

	var mu sync.Mutex
	parts := []*partial{top}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, dir := range subdirs {
		g.Go(func() error {
			p, err := walk(gctx, dir)
			if err != nil {
				return err
			}
			mu.Lock()
			parts = append(parts, p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(root, parts), nil
}

func walk(ctx context.Context, dir string) (*partial, error) {
	p := newPartial()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			p.skipped = append(p.skipped, path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		switch {
		case d.IsDir():
			if _, ok := p.own[path]; !ok {
				p.own[path] = 0
			}
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				p.skipped = append(p.skipped, path)
				return nil
			}
			p.own[filepath.Dir(path)] += info.Size()
			p.files++
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipDir) {
		return nil, err
	}
	return p, nil
}

// merge combines partials and rolls each directory's size up into every
// ancestor, stopping at root.
func merge(root string, parts []*partial) *Report {
	rep := &Report{Root: root, Sizes: make(map[string]int64)}
	for _, p := range parts {
		for dir, size := range p.own {
			rep.Sizes[dir] += size
		}
		rep.Files += p.files
		rep.Skipped += len(p.skipped)
		for _, s := range p.skipped {
			if len(rep.SkippedPaths) < maxSkippedPaths {
				rep.SkippedPaths = append(rep.SkippedPaths, s)
			}
		}
	}
	rep.Dirs = int64(len(rep.Sizes))

	dirs := make([]string, 0, len(rep.Sizes))
	for d := range rep.Sizes {
		dirs = append(dirs, d)
	}
	// Deepest first so children are complete before they are added to parents.
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})
	for _, d := range dirs {
		if d == root {
			continue
		}
		parent := filepath.Dir(d)
		if _, ok := rep.Sizes[parent]; !ok {
			continue
		}
		rep.Sizes[parent] += rep.Sizes[d]
	}
	sort.Strings(rep.SkippedPaths)
	return rep
}

func depth(p string) int {
	return strings.Count(filepath.ToSlash(p), "/")
}
