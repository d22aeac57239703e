package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		WriteFile(t, path, content)
	}
}

// ListFiles returns all files in a directory recursively.
func ListFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir(%s) error: %v", root, err)
	}
	return files
}

// InitGitRepo creates a git repository at dir holding files and commits them all.
// Returns the commit hash as a hex string.
func InitGitRepo(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	CreateFileTree(t, dir, files)

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit(%s) error: %v", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree error: %v", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := wt.Add(filepath.ToSlash(name)); err != nil {
			t.Fatalf("Add(%s) error: %v", name, err)
		}
	}

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
	})
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	return hash.String()
}
