// Package discover finds C and C++ sources in a source tree.
//
// Ignore rules come from git when the root is a work tree. Otherwise every
// .gitignore met during the walk applies to the files below it.
package discover

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/cppmodule/internal/lang"
)

// FileEntry is one discovered source.
type FileEntry struct {
	Path     string // relative to the walked root
	Language string
	Header   bool
}

// buildDirs hold generated, vendored or version-control files.
var buildDirs = map[string]struct{}{
	"node_modules": {},
	"build":        {},
	"out":          {},
	"CMakeFiles":   {},
	"_deps":        {},
}

var buildDirPrefixes = []string{"cmake-build-", "bazel-"}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if _, ok := buildDirs[name]; ok {
		return true
	}
	for _, p := range buildDirPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// ignorer excludes files by slash-separated path relative to the root.
type ignorer interface {
	ignored(rel string) bool
}

// gitIndex is the set of files git lists as tracked, or untracked and not
// ignored.
type gitIndex map[string]struct{}

func (ix gitIndex) ignored(rel string) bool {
	_, ok := ix[rel]
	return !ok
}

// gitignores holds the compiled .gitignore of each walked directory, keyed
// by its slash path relative to the root ("." for the root itself).
type gitignores map[string]*ignore.GitIgnore

func (gs gitignores) load(root, dir string) {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, filepath.FromSlash(dir), ".gitignore"))
	if err == nil {
		gs[dir] = gi
	}
}

// ignored matches rel against the .gitignore of every enclosing directory,
// each relative to the directory that holds it.
func (gs gitignores) ignored(rel string) bool {
	dir := path.Dir(rel)
	for {
		if gi := gs[dir]; gi != nil {
			sub := rel
			if dir != "." {
				sub = strings.TrimPrefix(rel, dir+"/")
			}
			if gi.MatchesPath(sub) {
				return true
			}
		}
		if dir == "." {
			return false
		}
		dir = path.Dir(dir)
	}
}

// Files discovers C and C++ sources under root, sorted by path. If
// languages is non-empty, only those languages are returned.
func Files(root string, languages []string) ([]FileEntry, error) {
	var (
		ign    ignorer
		nested gitignores
	)
	if ix := gitLsFiles(root); ix != nil {
		ign = ix
	} else {
		nested = gitignores{}
		ign = nested
	}

	var results []FileEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if nested != nil {
				nested.load(root, rel)
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		l := lang.ForFile(filepath.Ext(p))
		if l == nil || (len(languages) > 0 && !slices.Contains(languages, l.Name)) {
			return nil
		}
		if ign.ignored(rel) {
			return nil
		}
		results = append(results, FileEntry{
			Path:     filepath.FromSlash(rel),
			Language: l.Name,
			Header:   lang.IsHeader(p),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b FileEntry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return results, nil
}

// gitLsFiles returns nil when root is not a git work tree or git fails.
func gitLsFiles(root string) gitIndex {
	if _, err := exec.LookPath("git"); err != nil {
		return nil
	}
	if fi, err := fs.Stat(os.DirFS(root), ".git"); err != nil || !fi.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	ix := gitIndex{}
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			ix[line] = struct{}{}
		}
	}
	return ix
}
