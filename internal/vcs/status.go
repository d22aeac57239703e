package vcs

import (
	"github.com/go-git/go-git/v5"
)

// Ref returns the checked-out branch name, or the HEAD commit SHA when HEAD is detached.
func (r *gitRepository) Ref() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", err
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}

// Dirty reports whether tracked files have staged or unstaged changes. Untracked files
// are not considered dirty.
func (r *gitRepository) Dirty() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}

	for _, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}
