package vcs

import (
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when a path holds no git repository.
var ErrNotRepository = errors.New("not a git repository")

// GitOpener opens git repositories using go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpen opens an existing git repository.
func (o *GitOpener) PlainOpen(path string) (Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, err
	}
	return &gitRepository{repo: repo, path: path}, nil
}

// gitRepository wraps go-git Repository.
type gitRepository struct {
	repo *git.Repository
	path string
}

func (r *gitRepository) Head() (plumbing.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

func (r *gitRepository) HeadTree() (Tree, error) {
	hash, err := r.Head()
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	return &gitTree{tree: tree}, nil
}

func (r *gitRepository) RepoPath() string {
	return r.path
}

// gitTree wraps a go-git tree. go-git object access is not safe for concurrent use, so
// reads are serialized.
type gitTree struct {
	mu   sync.Mutex
	tree *object.Tree
}

func (t *gitTree) Entries() ([]TreeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var entries []TreeEntry
	err := t.tree.Files().ForEach(func(f *object.File) error {
		if f.Mode != filemode.Regular && f.Mode != filemode.Executable {
			return nil
		}
		entries = append(entries, TreeEntry{Path: f.Name, Size: f.Size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (t *gitTree) File(path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := t.tree.File(path)
	if err != nil {
		return nil, err
	}
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var (
	defaultOpener   Opener = NewGitOpener()
	defaultOpenerMu sync.RWMutex
)

// DefaultOpener returns the opener used when none is configured.
func DefaultOpener() Opener {
	defaultOpenerMu.RLock()
	defer defaultOpenerMu.RUnlock()
	return defaultOpener
}

// SetDefaultOpener replaces the default opener, mainly for tests.
func SetDefaultOpener(opener Opener) {
	defaultOpenerMu.Lock()
	defer defaultOpenerMu.Unlock()
	defaultOpener = opener
}
