// Package detector runs the near-duplicate pipeline over a corpus: it fingerprints every
// document, compares all pairs, and groups the flagged pairs into clusters.
package detector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/fileproc"
	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/normalize"
	"github.com/panbanda/winnow/pkg/similarity"
	"github.com/panbanda/winnow/pkg/stats"
	"github.com/panbanda/winnow/pkg/winnow"
)

// DefaultThreshold is the similarity at which a pair is flagged.
const DefaultThreshold = 0.6

// maxHotspots bounds the hotspot list.
const maxHotspots = 10

// Detector fingerprints documents and reports similar pairs.
type Detector struct {
	params         winnow.Params
	fingerprinter  *winnow.Fingerprinter
	threshold      float64
	workers        int
	cache          *cache.Cache
	fileTimeout    time.Duration
	sameSubmission bool
	roundDigits    int
	onProgress     fileproc.ProgressFunc
	logger         zerolog.Logger
	now            func() time.Time
}

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithParams sets the fingerprinting parameters.
func WithParams(p winnow.Params) Option {
	return func(d *Detector) {
		d.params = p
	}
}

// WithThreshold sets the minimum similarity of a reported pair.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithWorkers bounds the goroutines used per stage (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(d *Detector) {
		d.workers = n
	}
}

// WithCache reuses fingerprint results across runs.
func WithCache(c *cache.Cache) Option {
	return func(d *Detector) {
		d.cache = c
	}
}

// WithFileTimeout limits the time spent fingerprinting one file (0 = no limit).
func WithFileTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.fileTimeout = timeout
	}
}

// WithSameSubmission also compares files belonging to the same submission.
func WithSameSubmission(include bool) Option {
	return func(d *Detector) {
		d.sameSubmission = include
	}
}

// WithRoundDigits sets the decimals reported similarities are rounded to.
func WithRoundDigits(digits int) Option {
	return func(d *Detector) {
		d.roundDigits = digits
	}
}

// WithProgress is called after each file is fingerprinted.
func WithProgress(fn fileproc.ProgressFunc) Option {
	return func(d *Detector) {
		d.onProgress = fn
	}
}

// WithLogger sets the logger for per-file and run events.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// New creates a detector with default parameters, modified by opts.
func New(opts ...Option) (*Detector, error) {
	d := &Detector{
		params:      winnow.DefaultParams(),
		threshold:   DefaultThreshold,
		roundDigits: similarity.DefaultRoundDigits,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if math.IsNaN(d.threshold) || d.threshold < 0 || d.threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", similarity.ErrInvalidThreshold, d.threshold)
	}
	fp, err := winnow.NewFingerprinter(d.params)
	if err != nil {
		return nil, err
	}
	d.fingerprinter = fp
	return d, nil
}

// Params returns the fingerprinting parameters in use.
func (d *Detector) Params() winnow.Params {
	return d.params
}

// fingerprinted is the outcome of one document.
type fingerprinted struct {
	id     corpus.FileID
	result *winnow.Result
	raw    uint64
	cached bool
}

// RunSource reads every document of src and runs detection on them. Files the source
// could not read are reported in Analysis.Skipped.
func (d *Detector) RunSource(ctx context.Context, src corpus.Source) (*Analysis, error) {
	docs, failed, err := src.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return d.run(ctx, docs, failed)
}

// Run fingerprints docs, compares every pair of files and summarises the flagged pairs.
// Files that fail never abort the run; they are reported in Analysis.Skipped together
// with any read failures passed in failed.
func (d *Detector) Run(ctx context.Context, docs []corpus.Document, failed ...corpus.FileError) (*Analysis, error) {
	return d.run(ctx, docs, failed)
}

func (d *Detector) run(ctx context.Context, docs []corpus.Document, failed []corpus.FileError) (*Analysis, error) {
	started := d.now()
	analysis := &Analysis{
		GeneratedAt: started.UTC(),
		Params:      d.params,
		Threshold:   d.threshold,
		Records:     []similarity.Record{},
		Clusters:    []Cluster{},
	}

	for _, fe := range failed {
		d.skip(analysis, fe.ID, "", fe.Err)
	}

	byName := make(map[string]corpus.Document, len(docs))
	for _, doc := range docs {
		byName[doc.ID.String()] = doc
	}

	// Barrier: every document is fingerprinted before any pair is compared.
	results, errs := fileproc.Map(ctx, docs, func(doc corpus.Document) string { return doc.ID.String() },
		d.fingerprint,
		fileproc.Options{Workers: d.workers, Timeout: d.fileTimeout, OnProgress: d.onProgress})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs != nil {
		for _, e := range errs.Errors {
			doc := byName[e.Path]
			d.skip(analysis, doc.ID, doc.Language, e.Err)
		}
	}

	store := winnow.NewStore()
	raw := make(map[corpus.FileID]uint64, len(results))
	canonical := make(map[corpus.FileID]uint64, len(results))
	submissions := make(map[string]bool)
	for _, r := range results {
		if err := store.Put(r.id, r.result.Fingerprints); err != nil {
			d.skip(analysis, r.id, "", err)
			continue
		}
		raw[r.id] = r.raw
		canonical[r.id] = r.result.Digest
		submissions[r.id.SubmissionID] = true
		if r.cached {
			analysis.Summary.CacheHits++
		}
	}

	records, err := similarity.Compare(ctx, store.Snapshot(), d.threshold,
		similarity.WithWorkers(d.workers),
		similarity.WithSameSubmission(d.sameSubmission),
		similarity.WithRoundDigits(d.roundDigits))
	if err != nil {
		return nil, fmt.Errorf("compare fingerprints: %w", err)
	}

	analysis.Records = records
	analysis.Clusters = clusterRecords(records, raw, canonical, d.roundDigits)
	analysis.Hotspots = computeHotspots(records)

	sort.Slice(analysis.Skipped, func(i, j int) bool {
		return analysis.Skipped[i].File.Less(analysis.Skipped[j].File)
	})

	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.Similarity
	}
	analysis.Summary.FilesScanned = len(docs) + len(failed)
	analysis.Summary.FilesFingerprinted = store.Len()
	analysis.Summary.FilesSkipped = len(analysis.Skipped)
	analysis.Summary.Submissions = len(submissions)
	analysis.Summary.PairsFlagged = len(records)
	analysis.Summary.Clusters = len(analysis.Clusters)
	analysis.Summary.Similarity = stats.Summarize(scores)

	d.logger.Info().
		Int("files", analysis.Summary.FilesFingerprinted).
		Int("skipped", analysis.Summary.FilesSkipped).
		Int("pairs", analysis.Summary.PairsFlagged).
		Int("clusters", analysis.Summary.Clusters).
		Int("cache_hits", analysis.Summary.CacheHits).
		Dur("elapsed", d.now().Sub(started)).
		Msg("detection finished")

	return analysis, nil
}

// fingerprint computes or loads the fingerprint result of one document.
func (d *Detector) fingerprint(_ context.Context, doc corpus.Document) (fingerprinted, error) {
	out := fingerprinted{id: doc.ID, raw: xxhash.Sum64String(winnow.PrepareText(doc.Text))}

	var key string
	if d.cache.Enabled() {
		key = cache.Key(d.params, string(doc.Language), doc.Text)
		if res, ok := d.cache.LoadResult(key); ok {
			d.logger.Debug().Str("file", doc.ID.String()).Msg("fingerprint cache hit")
			out.result = res
			out.cached = true
			return out, nil
		}
	}

	res, err := d.fingerprinter.Analyze(doc.Text, doc.Language)
	if err != nil {
		return fingerprinted{}, err
	}
	out.result = res

	if key != "" {
		if err := d.cache.StoreResult(key, res); err != nil {
			d.logger.Debug().Err(err).Str("file", doc.ID.String()).Msg("fingerprint cache write failed")
		}
	}
	return out, nil
}

// skip records a per-file failure and logs it.
func (d *Detector) skip(analysis *Analysis, id corpus.FileID, lang normalize.Language, err error) {
	analysis.Skipped = append(analysis.Skipped, Skipped{File: id, Reason: err.Error()})

	switch {
	case errors.Is(err, normalize.ErrUnsupportedLanguage):
		d.logger.Warn().Str("file", id.String()).Str("language", string(lang)).Msg("skipping file in unsupported language")
	case errors.Is(err, winnow.ErrInconsistentLength):
		d.logger.Error().Err(err).Str("file", id.String()).Msg("fingerprinting failed")
	default:
		d.logger.Warn().Err(err).Str("file", id.String()).Msg("skipping file")
	}
}

// clusterRecords groups the files of flagged pairs with union-find. Clusters are ordered
// by size, then by their highest similarity, then by their first file, and numbered from
// one in that order.
func clusterRecords(records []similarity.Record, raw, canonical map[corpus.FileID]uint64, digits int) []Cluster {
	if len(records) == 0 {
		return []Cluster{}
	}

	index := make(map[corpus.FileID]int)
	var files []corpus.FileID
	indexOf := func(id corpus.FileID) int {
		if i, ok := index[id]; ok {
			return i
		}
		index[id] = len(files)
		files = append(files, id)
		return index[id]
	}
	for _, r := range records {
		indexOf(r.FileA)
		indexOf(r.FileB)
	}

	parent := make([]int, len(files))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}

	for _, r := range records {
		union(index[r.FileA], index[r.FileB])
	}

	type pairStats struct {
		count int
		sum   float64
		max   float64
	}
	byRoot := make(map[int]*pairStats)
	for _, r := range records {
		root := find(index[r.FileA])
		ps, ok := byRoot[root]
		if !ok {
			ps = &pairStats{}
			byRoot[root] = ps
		}
		ps.count++
		ps.sum += r.Similarity
		ps.max = math.Max(ps.max, r.Similarity)
	}

	members := make(map[int][]corpus.FileID)
	for i, id := range files {
		root := find(i)
		members[root] = append(members[root], id)
	}

	clusters := make([]Cluster, 0, len(members))
	for root, ids := range members {
		corpus.SortIDs(ids)
		ps := byRoot[root]
		clusters = append(clusters, Cluster{
			Type:              classify(ids, raw, canonical),
			Files:             ids,
			Submissions:       submissionsOf(ids),
			Pairs:             ps.count,
			AverageSimilarity: similarity.Round(ps.sum/float64(ps.count), digits),
			MaxSimilarity:     ps.max,
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if len(a.Files) != len(b.Files) {
			return len(a.Files) > len(b.Files)
		}
		if a.MaxSimilarity != b.MaxSimilarity {
			return a.MaxSimilarity > b.MaxSimilarity
		}
		return a.Files[0].Less(b.Files[0])
	})
	for i := range clusters {
		clusters[i].ID = i + 1
	}
	return clusters
}

// classify reports CloneExact when all files share one prepared text, CloneRenamed when
// they share one canonical text, and ClonePartial otherwise.
func classify(ids []corpus.FileID, raw, canonical map[corpus.FileID]uint64) CloneType {
	sameRaw, sameCanonical := true, true
	for _, id := range ids[1:] {
		if raw[id] != raw[ids[0]] {
			sameRaw = false
		}
		if canonical[id] != canonical[ids[0]] {
			sameCanonical = false
		}
	}
	switch {
	case sameRaw:
		return CloneExact
	case sameCanonical:
		return CloneRenamed
	default:
		return ClonePartial
	}
}

func submissionsOf(ids []corpus.FileID) []string {
	seen := make(map[string]bool)
	var subs []string
	for _, id := range ids {
		if !seen[id.SubmissionID] {
			seen[id.SubmissionID] = true
			subs = append(subs, id.SubmissionID)
		}
	}
	sort.Strings(subs)
	return subs
}

// computeHotspots ranks submissions by the number of flagged pairs they take part in.
func computeHotspots(records []similarity.Record) []Hotspot {
	type subStats struct {
		pairs int
		files map[corpus.FileID]bool
		max   float64
	}
	bySub := make(map[string]*subStats)
	add := func(sub string, r similarity.Record) {
		st, ok := bySub[sub]
		if !ok {
			st = &subStats{files: make(map[corpus.FileID]bool)}
			bySub[sub] = st
		}
		st.pairs++
		st.max = math.Max(st.max, r.Similarity)
		for _, id := range []corpus.FileID{r.FileA, r.FileB} {
			if id.SubmissionID == sub {
				st.files[id] = true
			}
		}
	}

	for _, r := range records {
		add(r.FileA.SubmissionID, r)
		if r.FileB.SubmissionID != r.FileA.SubmissionID {
			add(r.FileB.SubmissionID, r)
		}
	}

	hotspots := make([]Hotspot, 0, len(bySub))
	for sub, st := range bySub {
		hotspots = append(hotspots, Hotspot{
			Submission:    sub,
			FlaggedPairs:  st.pairs,
			FlaggedFiles:  len(st.files),
			MaxSimilarity: st.max,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		a, b := hotspots[i], hotspots[j]
		if a.FlaggedPairs != b.FlaggedPairs {
			return a.FlaggedPairs > b.FlaggedPairs
		}
		if a.MaxSimilarity != b.MaxSimilarity {
			return a.MaxSimilarity > b.MaxSimilarity
		}
		return a.Submission < b.Submission
	})

	if len(hotspots) > maxHotspots {
		hotspots = hotspots[:maxHotspots]
	}
	return hotspots
}
