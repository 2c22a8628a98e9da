package classify

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// FilteredNames are never collected nor descended into.
var FilteredNames = []string{".idea", ".vscode", ".gitignore", "node_modules"}

// Walker collects the files of one or more directory trees.
type Walker struct {
	excludes []glob.Glob
}

// NewWalker compiles excludes, globs matched against the slash separated path
// relative to the walked root and against the base name.
func NewWalker(excludes ...string) (*Walker, error) {
	w := &Walker{}
	for _, e := range excludes {
		g, err := glob.Compile(e, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", e, err)
		}
		w.excludes = append(w.excludes, g)
	}
	return w, nil
}

func (w *Walker) ShouldHandle(rel string) bool {
	base := path.Base(rel)
	for _, name := range FilteredNames {
		if base == name {
			return false
		}
	}
	for _, g := range w.excludes {
		if g.Match(rel) || g.Match(base) {
			return false
		}
	}
	return true
}

// Assets walks roots and returns their regular files, named after their path
// relative to the root they were found in. Paths are absolute and slash
// separated, files reachable from several roots are returned once.
func (w *Walker) Assets(roots ...string) ([]Asset, error) {
	var out []Asset
	seen := make(map[string]struct{})

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}

		err = filepath.Walk(abs, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(abs, p)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if !w.ShouldHandle(rel) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			p = filepath.ToSlash(p)
			if _, ok := seen[p]; ok {
				return nil
			}
			seen[p] = struct{}{}
			out = append(out, Asset{Name: rel, Path: p})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
