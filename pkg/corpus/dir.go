package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/panbanda/winnow/internal/fileproc"
	"github.com/panbanda/winnow/internal/scanner"
	"github.com/panbanda/winnow/pkg/normalize"
	"github.com/panbanda/winnow/pkg/source"
)

var (
	// ErrFileTooLarge marks files above the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrBinaryFile marks files that do not look like text.
	ErrBinaryFile = errors.New("binary file")
)

// Options configure how a Source finds submissions and selects their files.
type Options struct {
	Roots []string
	// SubmissionPerRoot treats every root as one submission instead of a directory of
	// submissions.
	SubmissionPerRoot bool
	IDMode            IDMode
	// Language forces one language for every file. When empty the language is detected
	// from the file extension and files of unknown languages are ignored.
	Language    normalize.Language
	Include     []string
	Exclude     []string
	Gitignore   bool
	RepoFilter  []string
	MaxFileSize int64
	Workers     int
	Logger      zerolog.Logger
}

// DefaultIncludes returns the file patterns scanned for lang.
func DefaultIncludes(lang normalize.Language) []string {
	switch normalize.ParseLanguage(string(lang)) {
	case normalize.LangC:
		return []string{"*.c", "*.h"}
	case normalize.LangCPP:
		return []string{"*.cpp", "*.cc", "*.cxx", "*.hpp", "*.hh", "*.h"}
	case normalize.LangPython:
		return []string{"*.py"}
	default:
		return nil
	}
}

func (o Options) scanner() *scanner.Scanner {
	include := o.Include
	if len(include) == 0 && o.Language != "" {
		include = DefaultIncludes(o.Language)
	}
	return scanner.NewScanner(scanner.Options{
		Include:   include,
		Exclude:   o.Exclude,
		Gitignore: o.Gitignore,
		Accept: func(path string) bool {
			return normalize.DetectLanguage(path) != normalize.LangUnknown
		},
	})
}

func (o Options) languageOf(path string) normalize.Language {
	if o.Language != "" {
		return normalize.ParseLanguage(string(o.Language))
	}
	return normalize.DetectLanguage(path)
}

// pending is a selected file waiting to be read.
type pending struct {
	id  FileID
	src source.ContentSource
}

// readAll reads every pending file on a worker pool.
func (o Options) readAll(ctx context.Context, files []pending) ([]Document, []FileError) {
	byName := make(map[string]FileID, len(files))
	for _, f := range files {
		byName[f.id.String()] = f.id
	}

	docs, errs := fileproc.Map(ctx, files, func(p pending) string { return p.id.String() },
		func(_ context.Context, p pending) (Document, error) {
			data, err := p.src.Read(p.id.Path)
			if err != nil {
				return Document{}, err
			}
			if bytes.IndexByte(data, 0) >= 0 {
				return Document{}, ErrBinaryFile
			}
			return Document{ID: p.id, Language: o.languageOf(p.id.Path), Text: string(data)}, nil
		},
		fileproc.Options{Workers: o.Workers})

	var failed []FileError
	if errs != nil {
		for _, e := range errs.Errors {
			failed = append(failed, FileError{ID: byName[e.Path], Err: e.Err})
		}
	}
	return docs, failed
}

// DirSource reads submissions from plain directories.
type DirSource struct {
	opts Options
}

// NewDirSource creates a source reading the working trees under opts.Roots.
func NewDirSource(opts Options) *DirSource {
	return &DirSource{opts: opts}
}

// Documents implements Source.
func (s *DirSource) Documents(ctx context.Context) ([]Document, []FileError, error) {
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

		found, err := sc.ScanDir(sub.Path)
		if err != nil {
			skipped = append(skipped, FileError{ID: FileID{SubmissionID: sub.ID, Path: "."}, Err: fmt.Errorf("scan: %w", err)})
			continue
		}

		kept, oversized := scanner.SplitBySize(sub.Path, found, s.opts.MaxFileSize)
		for _, rel := range oversized {
			skipped = append(skipped, FileError{ID: FileID{SubmissionID: sub.ID, Path: rel}, Err: ErrFileTooLarge})
		}

		src := source.NewFilesystemAt(sub.Path)
		for _, rel := range kept {
			files = append(files, pending{id: FileID{SubmissionID: sub.ID, Path: rel}, src: src})
		}

		s.opts.Logger.Debug().
			Str("submission", sub.ID).
			Str("path", filepath.Clean(sub.Path)).
			Int("files", len(kept)).
			Msg("scanned submission")
	}

	docs, failed := s.opts.readAll(ctx, files)
	return docs, append(skipped, failed...), nil
}
