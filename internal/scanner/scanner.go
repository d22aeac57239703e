// Package scanner finds the source files of one submission directory.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Options control which files a Scanner reports.
type Options struct {
	// Include patterns use gitignore syntax. When empty, Accept decides.
	Include []string
	// Exclude patterns use gitignore syntax and always apply.
	Exclude []string
	// Gitignore also honours .gitignore files found under the scanned root.
	Gitignore bool
	// Accept is consulted for files when Include is empty.
	Accept func(path string) bool
}

// Scanner finds source files in a directory. It is safe to reuse across directories.
type Scanner struct {
	include []gitignore.Pattern
	exclude []gitignore.Pattern
	opts    Options
}

// NewScanner creates a new file scanner.
func NewScanner(opts Options) *Scanner {
	s := &Scanner{opts: opts}
	for _, p := range opts.Include {
		s.include = append(s.include, gitignore.ParsePattern(p, nil))
	}
	for _, p := range opts.Exclude {
		s.exclude = append(s.exclude, gitignore.ParsePattern(p, nil))
	}
	return s
}

// loadExcludePatterns combines config excludes with every .gitignore under root.
func (s *Scanner) loadExcludePatterns(root string) []gitignore.Matcher {
	patterns := append([]gitignore.Pattern{}, s.exclude...)

	if s.opts.Gitignore {
		// ReadPatterns recursively reads all .gitignore files in the directory tree
		if gitPatterns, err := gitignore.ReadPatterns(osfs.New(root), nil); err == nil {
			patterns = append(patterns, gitPatterns...)
		}
	}

	if len(patterns) == 0 {
		return nil
	}
	return []gitignore.Matcher{gitignore.NewMatcher(patterns)}
}

// isExcluded checks if a slash-separated path relative to the root matches any exclusion
// pattern.
func isExcluded(matchers []gitignore.Matcher, rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	for _, m := range matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// Included reports whether a slash-separated relative file path is selected by the
// include patterns, or by Accept when there are none.
func (s *Scanner) Included(rel string) bool {
	if len(s.include) == 0 {
		return s.opts.Accept == nil || s.opts.Accept(rel)
	}
	parts := strings.Split(rel, "/")
	for _, p := range s.include {
		if p.Match(parts, false) == gitignore.Exclude {
			return true
		}
	}
	return false
}

// Selects reports whether a slash-separated relative file path passes the include and
// exclude patterns. .gitignore files are not consulted.
func (s *Scanner) Selects(rel string) bool {
	if len(s.exclude) > 0 && isExcluded([]gitignore.Matcher{gitignore.NewMatcher(s.exclude)}, rel, false) {
		return false
	}
	return s.Included(rel)
}

// ScanDir recursively scans root and returns the selected files as sorted,
// slash-separated paths relative to root. .git directories are never entered and
// symlinks escaping root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	matchers := s.loadExcludePatterns(root)

	files := make([]string, 0, 64)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if d.Name() == ".git" || isExcluded(matchers, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if isExcluded(matchers, rel, false) || !s.Included(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})

	sort.Strings(files)
	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// SplitBySize partitions files (relative to root) into those within maxSize bytes and
// those above it. maxSize <= 0 disables the limit.
func SplitBySize(root string, files []string, maxSize int64) (kept, oversized []string) {
	if maxSize <= 0 {
		return files, nil
	}

	kept = make([]string, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(f)))
		if err == nil && info.Size() > maxSize {
			oversized = append(oversized, f)
			continue
		}
		// Unreadable files stay in the list so the read reports the error.
		kept = append(kept, f)
	}
	return kept, oversized
}
