package corpus

import (
	"context"
	"fmt"

	"github.com/panbanda/winnow/internal/vcs"
	"github.com/panbanda/winnow/pkg/source"
)

// GitSource reads each submission from the HEAD commit of its git repository, so
// uncommitted and ignored files are never compared.
type GitSource struct {
	opts   Options
	opener vcs.Opener
}

// NewGitSource creates a source reading committed files of the repositories under
// opts.Roots.
func NewGitSource(opts Options) *GitSource {
	return &GitSource{opts: opts, opener: vcs.DefaultOpener()}
}

// Documents implements Source.
func (s *GitSource) Documents(ctx context.Context) ([]Document, []FileError, error) {
	subs, err := Discover(s.opts.Roots, s.opts.SubmissionPerRoot, s.opts.IDMode, s.opts.RepoFilter)
	if err != nil {
		return nil, nil, err
	}

	sc := s.opts.scanner()
	var (
		files   []pending
		skipped []FileError
	)
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		root := FileID{SubmissionID: sub.ID, Path: "."}
		repo, err := s.opener.PlainOpen(sub.Path)
		if err != nil {
			skipped = append(skipped, FileError{ID: root, Err: fmt.Errorf("open repository: %w", err)})
			continue
		}
		tree, err := repo.HeadTree()
		if err != nil {
			skipped = append(skipped, FileError{ID: root, Err: fmt.Errorf("read HEAD: %w", err)})
			continue
		}
		entries, err := tree.Entries()
		if err != nil {
			skipped = append(skipped, FileError{ID: root, Err: fmt.Errorf("list HEAD: %w", err)})
			continue
		}

		src := source.NewTree(tree)
		selected := 0
		for _, e := range entries {
			if !sc.Selects(e.Path) {
				continue
			}
			id := FileID{SubmissionID: sub.ID, Path: e.Path}
			if s.opts.MaxFileSize > 0 && e.Size > s.opts.MaxFileSize {
				skipped = append(skipped, FileError{ID: id, Err: ErrFileTooLarge})
				continue
			}
			files = append(files, pending{id: id, src: src})
			selected++
		}

		if dirty, err := repo.Dirty(); err == nil && dirty {
			s.opts.Logger.Warn().
				Str("submission", sub.ID).
				Str("repository", repo.RepoPath()).
				Msg("uncommitted changes are not compared")
		}
		ref, _ := repo.Ref()
		s.opts.Logger.Debug().
			Str("submission", sub.ID).
			Str("repository", repo.RepoPath()).
			Str("ref", ref).
			Int("files", selected).
			Msg("read repository HEAD")
	}

	docs, failed := s.opts.readAll(ctx, files)
	return docs, append(skipped, failed...), nil
}

// Mode names a corpus source kind.
type Mode string

const (
	ModeDirs Mode = "dirs"
	ModeGit  Mode = "git"
)

// New returns the source for mode.
func New(mode Mode, opts Options) (Source, error) {
	switch mode {
	case ModeDirs, "":
		return NewDirSource(opts), nil
	case ModeGit:
		return NewGitSource(opts), nil
	default:
		return nil, fmt.Errorf("unknown corpus mode %q (want %q or %q)", mode, ModeDirs, ModeGit)
	}
}
