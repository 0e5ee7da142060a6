// Package scanner discovers Python source files below a directory.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/pycc/pkg/config"
)

// Scanner finds source files in a directory.
type Scanner struct {
	config *config.Config
}

// NewScanner creates a new file scanner. A nil config means the defaults.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// excluder matches paths against the configured patterns and, optionally,
// the .gitignore files of the enclosing repository.
type excluder struct {
	root     string
	patterns gitignore.Matcher

	gitRoot   string
	gitignore gitignore.Matcher
}

func (s *Scanner) newExcluder(absRoot string) *excluder {
	e := &excluder{root: absRoot}

	// Config patterns use gitignore syntax and are relative to the scan root.
	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	if len(patterns) > 0 {
		e.patterns = gitignore.NewMatcher(patterns)
	}

	if s.config.Exclude.Gitignore {
		gitRoot := findGitRoot(absRoot)
		if gitRoot == "" {
			gitRoot = absRoot
		}
		// ReadPatterns collects every .gitignore below gitRoot with its directory as domain.
		if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil && len(gitPatterns) > 0 {
			e.gitRoot = gitRoot
			e.gitignore = gitignore.NewMatcher(gitPatterns)
		}
	}
	return e
}

// match reports whether the logical path (absolute, below root) is excluded.
func (e *excluder) match(path string, isDir bool) bool {
	if e.patterns != nil {
		if rel, ok := relParts(e.root, path); ok && e.patterns.Match(rel, isDir) {
			return true
		}
	}
	if e.gitignore != nil {
		if rel, ok := relParts(e.gitRoot, path); ok && e.gitignore.Match(rel, isDir) {
			return true
		}
	}
	return false
}

func relParts(base, path string) ([]string, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, false
	}
	return strings.Split(rel, string(filepath.Separator)), true
}

// walker carries the state of one ScanDir call.
type walker struct {
	scanner *Scanner
	exclude *excluder
	absRoot string
	// visited holds the resolved path of every directory entered, so symlink
	// cycles terminate.
	visited map[string]bool
	files   []string
}

// ScanDir recursively scans a directory for source files.
//
// Symbolic links are followed when analysis.follow_symlinks is set; a directory
// reached twice through links is only entered once. Broken links and unreadable
// subdirectories are skipped. The result is sorted and every path is root joined
// with the relative path of the file, so keys are stable across runs.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if !info.IsDir() {
		ok, err := s.ScanFile(root)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{root}, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	w := &walker{
		scanner: s,
		exclude: s.newExcluder(absRoot),
		absRoot: absRoot,
		visited: map[string]bool{realRoot: true},
		files:   make([]string, 0, 256),
	}
	if err := w.walk(root, absRoot); err != nil {
		return nil, err
	}

	files, _ := FilterBySize(w.files, s.config.Analysis.MaxFileSize)
	sort.Strings(files)
	return files, nil
}

// walk lists dir (as the caller spelled it) whose logical absolute path is absDir.
func (w *walker) walk(dir, absDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if absDir == w.absRoot {
			return fmt.Errorf("failed to read %s: %w", dir, err)
		}
		return nil
	}

	cfg := w.scanner.config
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		absPath := filepath.Join(absDir, name)

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			if !cfg.Analysis.FollowSymlinks {
				continue
			}
			target, err := os.Stat(path)
			if err != nil {
				// Broken link
				continue
			}
			mode = target.Mode().Type()
		}

		if mode.IsDir() {
			if isExcludedDir(cfg, name) || w.exclude.match(absPath, true) {
				continue
			}
			real, err := filepath.EvalSymlinks(path)
			if err != nil || w.visited[real] {
				continue
			}
			w.visited[real] = true
			if err := w.walk(path, absPath); err != nil {
				return err
			}
			continue
		}

		if !mode.IsRegular() {
			continue
		}
		if w.exclude.match(absPath, false) {
			continue
		}
		if cfg.HasExtension(name) {
			w.files = append(w.files, path)
		}
	}
	return nil
}

func isExcludedDir(cfg *config.Config, name string) bool {
	for _, dir := range cfg.Exclude.Dirs {
		if name == dir {
			return true
		}
	}
	return false
}

// ScanFile checks if a single file should be analyzed.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	if info.IsDir() {
		return false, nil
	}

	if s.config.ShouldExclude(path) {
		return false, nil
	}
	if limit := s.config.Analysis.MaxFileSize; limit > 0 && info.Size() > limit {
		return false, nil
	}

	return s.config.HasExtension(path), nil
}

// FilterBySize filters files that exceed the configured maximum size.
// Returns the filtered list and the count of files that were skipped.
// If maxSize is 0, returns the original list unchanged.
func FilterBySize(files []string, maxSize int64) ([]string, int) {
	if maxSize <= 0 {
		return files, 0
	}

	filtered := make([]string, 0, len(files))
	skipped := 0

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			skipped++
			continue
		}
		if info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}

	return filtered, skipped
}
