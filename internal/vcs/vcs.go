// Package vcs reads working tree state from git repositories.
package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned when no repository encloses the path.
var ErrNotRepository = errors.New("not a git repository")

// Worktree is an opened repository and the absolute path of its working tree.
type Worktree struct {
	repo *git.Repository
	wt   *git.Worktree
	Root string
}

// Open opens the repository containing path, searching parent directories.
func Open(path string) (*Worktree, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotRepository)
		}
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	return &Worktree{repo: repo, wt: wt, Root: wt.Filesystem.Root()}, nil
}

// ChangedFiles returns the absolute paths of files that differ from HEAD:
// staged, modified in the worktree, or untracked and not ignored. Deleted
// files are left out. The result is sorted.
func (w *Worktree) ChangedFiles() ([]string, error) {
	status, err := w.wt.Status()
	if err != nil {
		return nil, err
	}

	var files []string
	for name, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		if s.Staging == git.Deleted || s.Worktree == git.Deleted {
			continue
		}
		path := filepath.Join(w.Root, filepath.FromSlash(name))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// ChangedFiles opens the repository containing path and returns its changed
// files that lie below path.
func ChangedFiles(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	// The worktree root is found by walking up from abs, so both share a prefix.
	w, err := Open(abs)
	if err != nil {
		return nil, err
	}
	all, err := w.ChangedFiles()
	if err != nil {
		return nil, err
	}

	files := all[:0]
	for _, f := range all {
		rel, err := filepath.Rel(abs, f)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}
