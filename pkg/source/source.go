// Package source reads file content from a submission, either from disk or from a git
// tree.
package source

import (
	"os"
	"path/filepath"

	"github.com/panbanda/winnow/internal/vcs"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem. Relative, slash-separated
// paths are resolved against Root when it is set.
type FilesystemSource struct {
	Root string
}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// NewFilesystemAt creates a source that reads paths relative to root.
func NewFilesystemAt(root string) *FilesystemSource {
	return &FilesystemSource{Root: root}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, filepath.FromSlash(path))
	}
	return os.ReadFile(path)
}

// TreeSource reads files from a git tree.
// It is safe for concurrent use by multiple goroutines.
type TreeSource struct {
	tree vcs.Tree
}

// NewTree creates a source that reads from a git tree.
func NewTree(tree vcs.Tree) *TreeSource {
	return &TreeSource{tree: tree}
}

// Read implements ContentSource.
func (t *TreeSource) Read(path string) ([]byte, error) {
	return t.tree.File(path)
}
