// Package corpus enumerates submissions and hands their files to the fingerprinting
// engine as (submission, path, text) documents.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/winnow/pkg/normalize"
)

// FileID fully qualifies a file within the corpus.
type FileID struct {
	SubmissionID string `json:"submission_id"`
	Path         string `json:"path"`
}

// String renders the id as submission/path, the form used in reports.
func (f FileID) String() string {
	return f.SubmissionID + "/" + f.Path
}

// Less orders ids by submission, then path.
func (f FileID) Less(other FileID) bool {
	if f.SubmissionID != other.SubmissionID {
		return f.SubmissionID < other.SubmissionID
	}
	return f.Path < other.Path
}

// MarshalText implements encoding.TextMarshaler so ids can key JSON maps.
func (f FileID) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseFileID splits a submission/path string.
func ParseFileID(s string) (FileID, error) {
	sub, path, ok := strings.Cut(s, "/")
	if !ok || sub == "" || path == "" {
		return FileID{}, fmt.Errorf("invalid file id %q: want submission/path", s)
	}
	return FileID{SubmissionID: sub, Path: path}, nil
}

// SortIDs sorts ids in place.
func SortIDs(ids []FileID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// Document is one file handed to the engine. The engine never modifies Text.
type Document struct {
	ID       FileID
	Language normalize.Language
	Text     string
}

// FileError records a file that could not be read.
type FileError struct {
	ID  FileID
	Err error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Source enumerates the documents of a corpus. Unreadable files are reported in the
// returned FileError slice and do not fail the enumeration.
type Source interface {
	Documents(ctx context.Context) ([]Document, []FileError, error)
}
