// Package similarity scores every pair of fingerprinted files by Jaccard similarity and
// reports the pairs at or above a threshold.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/panbanda/winnow/internal/fileproc"
	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/winnow"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1].
var ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

// DefaultRoundDigits is the number of decimals similarities are rounded to.
const DefaultRoundDigits = 4

// Record is one flagged pair. FileA orders before FileB.
type Record struct {
	FileA      corpus.FileID `json:"file_a" yaml:"file_a" toon:"file_a"`
	FileB      corpus.FileID `json:"file_b" yaml:"file_b" toon:"file_b"`
	Similarity float64       `json:"similarity" yaml:"similarity" toon:"similarity"`
	Shared     int           `json:"shared_fingerprints" yaml:"shared_fingerprints" toon:"shared_fingerprints"`
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b *winnow.FingerprintSet) float64 {
	union := a.UnionLen(b)
	if union == 0 {
		return 0
	}
	return float64(a.IntersectionLen(b)) / float64(union)
}

// Option configures Compare.
type Option func(*comparer)

type comparer struct {
	workers        int
	sameSubmission bool
	roundDigits    int
}

// WithWorkers bounds the number of goroutines scoring pairs (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(c *comparer) {
		c.workers = n
	}
}

// WithSameSubmission includes pairs whose files belong to the same submission. They are
// skipped by default.
func WithSameSubmission(include bool) Option {
	return func(c *comparer) {
		c.sameSubmission = include
	}
}

// WithRoundDigits sets the decimals similarities are rounded to; negative disables
// rounding.
func WithRoundDigits(digits int) Option {
	return func(c *comparer) {
		c.roundDigits = digits
	}
}

// Compare scores every unordered pair of distinct files with non-empty fingerprint sets
// and returns those with similarity >= threshold, sorted by similarity descending, then
// by FileA and FileB.
//
// Candidates come from an inverted index over fingerprints, so pairs sharing nothing are
// never scored unless threshold is 0, where every pair qualifies.
func Compare(ctx context.Context, sets map[corpus.FileID]*winnow.FingerprintSet, threshold float64, opts ...Option) ([]Record, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	c := &comparer{roundDigits: DefaultRoundDigits}
	for _, opt := range opts {
		opt(c)
	}

	ids := make([]corpus.FileID, 0, len(sets))
	for id, set := range sets {
		if !set.IsEmpty() {
			ids = append(ids, id)
		}
	}
	corpus.SortIDs(ids)
	if len(ids) < 2 {
		return []Record{}, nil
	}

	var index map[uint32][]int
	if threshold > 0 {
		index = buildIndex(ids, sets)
	}

	// One task per row i scores the pairs (i, j) with j > i.
	rows := make([]int, len(ids)-1)
	for i := range rows {
		rows[i] = i
	}
	found, errs := fileproc.Map(ctx, rows, func(i int) string { return ids[i].String() },
		func(_ context.Context, i int) ([]Record, error) {
			return c.scoreRow(i, ids, sets, index, threshold), nil
		},
		fileproc.Options{Workers: c.workers})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		return nil, errs
	}

	records := make([]Record, 0)
	for _, row := range found {
		records = append(records, row...)
	}
	Sort(records)
	return records, nil
}

func buildIndex(ids []corpus.FileID, sets map[corpus.FileID]*winnow.FingerprintSet) map[uint32][]int {
	index := make(map[uint32][]int)
	for i, id := range ids {
		for _, fp := range sets[id].Values() {
			index[fp] = append(index[fp], i)
		}
	}
	return index
}

func (c *comparer) scoreRow(i int, ids []corpus.FileID, sets map[corpus.FileID]*winnow.FingerprintSet, index map[uint32][]int, threshold float64) []Record {
	var candidates []int
	if index == nil {
		candidates = make([]int, 0, len(ids)-i-1)
		for j := i + 1; j < len(ids); j++ {
			candidates = append(candidates, j)
		}
	} else {
		seen := make(map[int]struct{})
		for _, fp := range sets[ids[i]].Values() {
			for _, j := range index[fp] {
				if j > i {
					seen[j] = struct{}{}
				}
			}
		}
		candidates = make([]int, 0, len(seen))
		for j := range seen {
			candidates = append(candidates, j)
		}
	}

	a := sets[ids[i]]
	var out []Record
	for _, j := range candidates {
		if !c.sameSubmission && ids[i].SubmissionID == ids[j].SubmissionID {
			continue
		}
		b := sets[ids[j]]
		score := Jaccard(a, b)
		if score < threshold {
			continue
		}
		out = append(out, Record{
			FileA:      ids[i],
			FileB:      ids[j],
			Similarity: Round(score, c.roundDigits),
			Shared:     a.IntersectionLen(b),
		})
	}
	return out
}

// Sort orders records by similarity descending, then FileA, then FileB.
func Sort(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.FileA != b.FileA {
			return a.FileA.Less(b.FileA)
		}
		return a.FileB.Less(b.FileB)
	})
}

// Round rounds v to digits decimals; negative digits leave v unchanged.
func Round(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
