package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// DefaultIgnoreDirs names the dependency-cache and VCS directories skipped at
// any nesting depth, tuned for web-application source trees.
var DefaultIgnoreDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "bower_components", "vendor",
	"dist", "build", ".next", ".nuxt", ".cache", "coverage",
}

// FileVisit carries per-entry metadata to user callbacks.
type FileVisit struct {
	// Repo-relative path using forward slashes (e.g., "src/App.jsx").
	Path string
	// Absolute filesystem path.
	AbsPath string
	// Extension including the leading dot, case preserved; empty when none.
	Ext string
}

// VisitFunc is invoked for every regular file that survives directory
// filtering.
type VisitFunc func(f FileVisit) error

// Options controls a walk.
type Options struct {
	// IgnoreDirs are directory base names skipped at any depth.
	// Nil means DefaultIgnoreDirs; an empty non-nil slice disables skipping.
	IgnoreDirs []string
}

func (o Options) ignored() map[string]bool {
	names := o.IgnoreDirs
	if names == nil {
		names = DefaultIgnoreDirs
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Walk traverses root depth-first, calling cb for each regular file outside
// the ignored directories. Symlinked directories are not descended into;
// symlinked files are visited like regular entries.
func Walk(root string, opts Options, cb VisitFunc) error {
	ignored := opts.ignored()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && ignored[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		return cb(FileVisit{
			Path:    rel,
			AbsPath: path,
			Ext:     filepath.Ext(rel),
		})
	})
	if err != nil {
		return fmt.Errorf("scan: walk %s: %w", root, err)
	}
	return nil
}

// FilesWithExtensions walks root and returns the repo-relative forward-slash
// paths of files whose extension is in exts. The match is case-sensitive and
// includes the leading dot. Results are sorted, so repeated runs over an
// unmodified tree yield the same ordered set. An empty result is valid.
func FilesWithExtensions(root string, exts []string, opts Options) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[e] = true
	}
	var out []string
	err := Walk(root, opts, func(f FileVisit) error {
		if allowed[f.Ext] {
			out = append(out, f.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
