package corpus

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IDMode selects how a submission directory becomes a SubmissionID.
type IDMode string

const (
	// IDByName uses the directory name.
	IDByName IDMode = "name"
	// IDByHash uses the hex md5 of the directory path, which keeps student names out of
	// reports.
	IDByHash IDMode = "hash"
)

// ErrNoSubmissions is returned when the roots hold no submission directories.
var ErrNoSubmissions = errors.New("no submissions found")

// Submission is one student's directory.
type Submission struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// SubmissionID derives the id of the submission at path.
func SubmissionID(path string, mode IDMode) string {
	if mode == IDByHash {
		sum := md5.Sum([]byte(path))
		return hex.EncodeToString(sum[:])
	}
	return filepath.Base(filepath.Clean(path))
}

// Discover lists submissions under roots. With perRoot set every root is itself a
// submission; otherwise each non-hidden immediate subdirectory of a root is one.
// When filter is non-empty only submissions whose id or name it lists are kept.
func Discover(roots []string, perRoot bool, mode IDMode, filter []string) ([]Submission, error) {
	allowed := make(map[string]bool, len(filter))
	for _, f := range filter {
		allowed[f] = true
	}

	var subs []Submission
	seen := make(map[string]string)
	add := func(path string) error {
		sub := Submission{ID: SubmissionID(path, mode), Name: filepath.Base(filepath.Clean(path)), Path: path}
		if len(allowed) > 0 && !allowed[sub.ID] && !allowed[sub.Name] {
			return nil
		}
		if prev, ok := seen[sub.ID]; ok {
			return fmt.Errorf("submission id %q used by both %s and %s", sub.ID, prev, path)
		}
		seen[sub.ID] = path
		subs = append(subs, sub)
		return nil
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("read root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %s is not a directory", root)
		}

		if perRoot {
			if err := add(root); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read root: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err := add(filepath.Join(root, e.Name())); err != nil {
				return nil, err
			}
		}
	}

	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}
