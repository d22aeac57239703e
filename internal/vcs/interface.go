// Package vcs provides version control system abstractions.
package vcs

import "github.com/go-git/go-git/v5/plumbing"

// Repository provides access to git repository operations.
type Repository interface {
	// Head returns the hash of the HEAD commit.
	Head() (plumbing.Hash, error)
	// HeadTree returns the tree of the HEAD commit.
	HeadTree() (Tree, error)
	// RepoPath returns the root path of the repository.
	RepoPath() string
	// Ref returns the current branch, or the commit SHA for a detached HEAD.
	Ref() (string, error)
	// Dirty reports uncommitted changes to tracked files.
	Dirty() (bool, error)
}

// TreeEntry represents a file in a git tree.
type TreeEntry struct {
	Path string
	Size int64
}

// Tree represents a git tree object.
type Tree interface {
	// Entries returns all regular files in the tree (recursively), sorted by path.
	Entries() ([]TreeEntry, error)
	// File returns the contents of the file at path.
	File(path string) ([]byte, error)
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens an existing git repository.
	PlainOpen(path string) (Repository, error)
}
