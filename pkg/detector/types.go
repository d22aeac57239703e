package detector

import (
	"time"

	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/similarity"
	"github.com/panbanda/winnow/pkg/stats"
	"github.com/panbanda/winnow/pkg/winnow"
)

// CloneType classifies how closely the files of a cluster match.
type CloneType string

const (
	// CloneExact means every file in the cluster has the same text once line endings and
	// Unicode forms are unified.
	CloneExact CloneType = "exact"
	// CloneRenamed means the files are identical after normalization, so they differ
	// only in names, literals, comments or layout.
	CloneRenamed CloneType = "renamed"
	// ClonePartial covers everything else above the threshold.
	ClonePartial CloneType = "partial"
)

// String returns the string representation.
func (t CloneType) String() string {
	return string(t)
}

// Cluster is a connected group of files linked by flagged pairs.
type Cluster struct {
	ID                int             `json:"id" yaml:"id" toon:"id"`
	Type              CloneType       `json:"type" yaml:"type" toon:"type"`
	Files             []corpus.FileID `json:"files" yaml:"files" toon:"files"`
	Submissions       []string        `json:"submissions" yaml:"submissions" toon:"submissions"`
	Pairs             int             `json:"pairs" yaml:"pairs" toon:"pairs"`
	AverageSimilarity float64         `json:"average_similarity" yaml:"average_similarity" toon:"average_similarity"`
	MaxSimilarity     float64         `json:"max_similarity" yaml:"max_similarity" toon:"max_similarity"`
}

// Hotspot is a submission involved in many flagged pairs.
type Hotspot struct {
	Submission    string  `json:"submission" yaml:"submission" toon:"submission"`
	FlaggedPairs  int     `json:"flagged_pairs" yaml:"flagged_pairs" toon:"flagged_pairs"`
	FlaggedFiles  int     `json:"flagged_files" yaml:"flagged_files" toon:"flagged_files"`
	MaxSimilarity float64 `json:"max_similarity" yaml:"max_similarity" toon:"max_similarity"`
}

// Skipped records a file that could not be fingerprinted and why.
type Skipped struct {
	File   corpus.FileID `json:"file" yaml:"file" toon:"file"`
	Reason string        `json:"reason" yaml:"reason" toon:"reason"`
}

// Summary provides aggregate statistics of a run.
type Summary struct {
	FilesScanned       int           `json:"files_scanned" yaml:"files_scanned" toon:"files_scanned"`
	FilesFingerprinted int           `json:"files_fingerprinted" yaml:"files_fingerprinted" toon:"files_fingerprinted"`
	FilesSkipped       int           `json:"files_skipped" yaml:"files_skipped" toon:"files_skipped"`
	Submissions        int           `json:"submissions" yaml:"submissions" toon:"submissions"`
	CacheHits          int           `json:"cache_hits" yaml:"cache_hits" toon:"cache_hits"`
	PairsFlagged       int           `json:"pairs_flagged" yaml:"pairs_flagged" toon:"pairs_flagged"`
	Clusters           int           `json:"clusters" yaml:"clusters" toon:"clusters"`
	Similarity         stats.Summary `json:"similarity" yaml:"similarity" toon:"similarity"`
}

// Analysis is the full result of a detection run.
type Analysis struct {
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at" toon:"generated_at"`
	Params      winnow.Params       `json:"params" yaml:"params" toon:"params"`
	Threshold   float64             `json:"threshold" yaml:"threshold" toon:"threshold"`
	Records     []similarity.Record `json:"records" yaml:"records" toon:"records"`
	Clusters    []Cluster           `json:"clusters" yaml:"clusters" toon:"clusters"`
	Hotspots    []Hotspot           `json:"hotspots,omitempty" yaml:"hotspots,omitempty" toon:"hotspots,omitempty"`
	Skipped     []Skipped           `json:"skipped,omitempty" yaml:"skipped,omitempty" toon:"skipped,omitempty"`
	Summary     Summary             `json:"summary" yaml:"summary" toon:"summary"`
}
