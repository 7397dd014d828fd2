// Package walker enumerates project source files, applying ignore rules and
// extension-based language classification. Pure traversal; no analysis.
package walker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/quarrylabs/quarry/internal/lang"
)

// Entry is one discovered source file.
type Entry struct {
	AbsPath  string
	RelPath  string // forward-slash normalized, relative to the walk root
	Language string
}

// Result carries the discovered entries plus non-fatal traversal warnings.
type Result struct {
	Entries  []Entry
	Warnings []string
}

var defaultIgnoreDirs = map[string]struct{}{
	"node_modules":  {},
	"__pycache__":   {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	"out":           {},
	"target":        {},
	"vendor":        {},
	"coverage":      {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

var defaultIgnoreFiles = map[string]struct{}{
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"poetry.lock":       {},
	"Pipfile.lock":      {},
	"Cargo.lock":        {},
	"go.sum":            {},
	".DS_Store":         {},
	"Thumbs.db":         {},
}

// Options tunes a walk. Zero value uses the built-in ignore sets and no size
// limit.
type Options struct {
	// ExtraIgnoreDirs and ExtraIgnoreFiles extend the built-in ignore sets.
	ExtraIgnoreDirs  []string
	ExtraIgnoreFiles []string

	// MaxFileSize skips files larger than this many bytes when positive.
	MaxFileSize int64
}

// Walk enumerates files under root whose extension maps to a supported
// language. Directories in the ignore set or starting with "." are skipped,
// as are symlinks and files in the file ignore set. A directory that cannot
// be read is recorded as a warning and the walk continues. Entries come back
// in file-system enumeration order, depth-first; no sort order is guaranteed.
func Walk(root string, opts Options) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walk root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	ignoreDirs := cloneSet(defaultIgnoreDirs, opts.ExtraIgnoreDirs)
	ignoreFiles := cloneSet(defaultIgnoreFiles, opts.ExtraIgnoreFiles)
	gi := loadGitignore(root)

	res := &Result{}

	// Explicit work stack instead of recursion: deep trees and cyclic
	// symlinks must not blow the call stack.
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", dir, err))
			continue
		}

		// Push subdirectories in reverse so they pop in enumeration order.
		var files []os.DirEntry
		var dirs []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				if _, skip := ignoreDirs[name]; skip || strings.HasPrefix(name, ".") {
					continue
				}
				dirs = append(dirs, filepath.Join(dir, name))
				continue
			}
			files = append(files, e)
		}
		for i := len(dirs) - 1; i >= 0; i-- {
			stack = append(stack, dirs[i])
		}

		for _, e := range files {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if _, skip := ignoreFiles[name]; skip {
				continue
			}
			// Symlinks are skipped outright; following them risks cycles.
			if e.Type()&os.ModeSymlink != 0 {
				continue
			}

			langName := lang.ForExtension(filepath.Ext(name))
			if langName == "" {
				continue
			}

			abs := filepath.Join(dir, name)
			rel, err := filepath.Rel(root, abs)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", abs, err))
				continue
			}
			rel = filepath.ToSlash(rel)

			if gi != nil && gi.MatchesPath(rel) {
				continue
			}

			if opts.MaxFileSize > 0 {
				if fi, err := e.Info(); err == nil && fi.Size() > opts.MaxFileSize {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("%s: skipped (>%d bytes)", rel, opts.MaxFileSize))
					continue
				}
			}

			res.Entries = append(res.Entries, Entry{
				AbsPath:  abs,
				RelPath:  rel,
				Language: langName,
			})
		}
	}

	return res, nil
}

func cloneSet(base map[string]struct{}, extra []string) map[string]struct{} {
	if len(extra) == 0 {
		return base
	}
	set := make(map[string]struct{}, len(base)+len(extra))
	for k := range base {
		set[k] = struct{}{}
	}
	for _, k := range extra {
		set[k] = struct{}{}
	}
	return set
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
