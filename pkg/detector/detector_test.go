package detector

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/normalize"
	"github.com/panbanda/winnow/pkg/similarity"
	"github.com/panbanda/winnow/pkg/winnow"
)

const fibonacciC = `#include <stdio.h>

int fibonacci(int n) {
    if (n <= 1) return n;
    int a = 0, b = 1;
    for (int i = 2; i <= n; i++) {
        int next = a + b;
        a = b;
        b = next;
    }
    return b;
}

int main(void) {
    for (int i = 0; i < 20; i++) {
        printf("%d\n", fibonacci(i));
    }
    return 0;
}
`

const renamedFibonacciC = `#include <stdio.h>

/* iterative */
int fib(int k)
{
    if (k <= 1)
        return k;
    int x = 0, y = 1;
    for (int j = 2; j <= k; j++) { int tmp = x + y; x = y; y = tmp; }
    return y;
}

int main(void)
{
    // print the sequence
    for (int j = 0; j < 20; j++) { printf("%d\n", fib(j)); }
    return 0;
}
`

const factorialC = `
long factorial(int n) {
    long acc = 1;
    while (n > 1) {
        acc *= n;
        n--;
    }
    return acc;
}
`

const geometryC = `struct point { double x; double y; };

double dist2(struct point p, struct point q) {
    double dx = p.x - q.x;
    double dy = p.y - q.y;
    return dx * dx + dy * dy;
}

void classify(int code) {
    switch (code) {
    case 1: puts("one"); break;
    case 2: puts("two"); break;
    default: puts("many");
    }
}
`

func id(sub, path string) corpus.FileID {
	return corpus.FileID{SubmissionID: sub, Path: path}
}

func doc(sub, path, text string) corpus.Document {
	return corpus.Document{ID: id(sub, path), Language: normalize.LangC, Text: text}
}

func newDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()
	d, err := New(opts...)
	require.NoError(t, err)
	return d
}

func TestNew_Defaults(t *testing.T) {
	d := newDetector(t)
	assert.Equal(t, winnow.DefaultParams(), d.Params())
	assert.Equal(t, DefaultThreshold, d.threshold)
	assert.Equal(t, similarity.DefaultRoundDigits, d.roundDigits)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(WithThreshold(1.5))
	assert.ErrorIs(t, err, similarity.ErrInvalidThreshold)

	_, err = New(WithParams(winnow.Params{K: 5, W: 4, Base: 256, Prime: 1}))
	assert.ErrorIs(t, err, winnow.ErrInvalidParams)
}

func TestRun_RenamedCopiesFormOneCluster(t *testing.T) {
	var logs bytes.Buffer
	d := newDetector(t, WithLogger(zerolog.New(&logs)))

	docs := []corpus.Document{
		doc("alice", "fib.c", fibonacciC),
		doc("bob", "fib.c", fibonacciC),
		doc("carol", "main.c", renamedFibonacciC),
		doc("dave", "geo.c", geometryC),
		{ID: id("eve", "main.rs"), Language: "rust", Text: "fn main() {}"},
	}

	analysis, err := d.Run(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, analysis.Records, 3)
	for _, r := range analysis.Records {
		assert.Equal(t, 1.0, r.Similarity)
	}
	assert.Equal(t, id("alice", "fib.c"), analysis.Records[0].FileA)
	assert.Equal(t, id("bob", "fib.c"), analysis.Records[0].FileB)

	require.Len(t, analysis.Clusters, 1)
	cluster := analysis.Clusters[0]
	assert.Equal(t, 1, cluster.ID)
	assert.Equal(t, CloneRenamed, cluster.Type)
	assert.Equal(t, []corpus.FileID{id("alice", "fib.c"), id("bob", "fib.c"), id("carol", "main.c")}, cluster.Files)
	assert.Equal(t, []string{"alice", "bob", "carol"}, cluster.Submissions)
	assert.Equal(t, 3, cluster.Pairs)
	assert.Equal(t, 1.0, cluster.AverageSimilarity)

	require.Len(t, analysis.Skipped, 1)
	assert.Equal(t, id("eve", "main.rs"), analysis.Skipped[0].File)
	assert.Contains(t, analysis.Skipped[0].Reason, "unsupported language")
	assert.Contains(t, logs.String(), `"language":"rust"`)

	s := analysis.Summary
	assert.Equal(t, 5, s.FilesScanned)
	assert.Equal(t, 4, s.FilesFingerprinted)
	assert.Equal(t, 1, s.FilesSkipped)
	assert.Equal(t, 4, s.Submissions)
	assert.Equal(t, 3, s.PairsFlagged)
	assert.Equal(t, 1, s.Clusters)
	assert.Equal(t, 3, s.Similarity.Count)
	assert.Equal(t, 1.0, s.Similarity.Mean)

	require.Len(t, analysis.Hotspots, 3)
	for _, h := range analysis.Hotspots {
		assert.Equal(t, 2, h.FlaggedPairs)
		assert.Equal(t, 1, h.FlaggedFiles)
	}
	assert.Equal(t, "alice", analysis.Hotspots[0].Submission)
}

func TestRun_ClassifiesClusters(t *testing.T) {
	d := newDetector(t, WithThreshold(0.3))

	crlf := []byte(fibonacciC)
	crlf = bytes.ReplaceAll(crlf, []byte("\n"), []byte("\r\n"))

	exact, err := d.Run(context.Background(), []corpus.Document{
		doc("alice", "fib.c", fibonacciC),
		doc("bob", "fib.c", string(crlf)),
	})
	require.NoError(t, err)
	require.Len(t, exact.Clusters, 1)
	assert.Equal(t, CloneExact, exact.Clusters[0].Type)

	partial, err := d.Run(context.Background(), []corpus.Document{
		doc("alpha", "fib.c", fibonacciC),
		doc("beta", "fib.c", fibonacciC+factorialC),
		doc("gamma", "geo.c", geometryC),
	})
	require.NoError(t, err)
	require.Len(t, partial.Clusters, 1)
	assert.Equal(t, ClonePartial, partial.Clusters[0].Type)
	assert.Equal(t, []string{"alpha", "beta"}, partial.Clusters[0].Submissions)
	assert.Less(t, partial.Clusters[0].MaxSimilarity, 1.0)
}

func TestRun_SameSubmission(t *testing.T) {
	docs := []corpus.Document{
		doc("alice", "a.c", fibonacciC),
		doc("alice", "b.c", fibonacciC),
	}

	analysis, err := newDetector(t).Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Empty(t, analysis.Records)
	assert.Empty(t, analysis.Clusters)
	assert.Empty(t, analysis.Hotspots)

	analysis, err = newDetector(t, WithSameSubmission(true)).Run(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, analysis.Records, 1)
	require.Len(t, analysis.Hotspots, 1)
	assert.Equal(t, 1, analysis.Hotspots[0].FlaggedPairs)
	assert.Equal(t, 2, analysis.Hotspots[0].FlaggedFiles)
}

func TestRun_UsesCache(t *testing.T) {
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), time.Hour, true)
	require.NoError(t, err)

	docs := []corpus.Document{
		doc("alice", "fib.c", fibonacciC),
		doc("bob", "main.c", renamedFibonacciC),
		doc("carol", "geo.c", geometryC),
	}
	d := newDetector(t, WithCache(c))

	first, err := d.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Summary.CacheHits)

	second, err := d.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Summary.CacheHits)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Clusters, second.Clusters)

	// Different parameters never reuse entries.
	other := newDetector(t, WithCache(c), WithParams(winnow.Params{K: 10, W: 5, Base: 256, Prime: winnow.DefaultPrime}))
	third, err := other.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 0, third.Summary.CacheHits)
}

func TestRun_ReportsProgress(t *testing.T) {
	var ticks atomic.Int32
	d := newDetector(t, WithWorkers(2), WithProgress(func() { ticks.Add(1) }))

	_, err := d.Run(context.Background(), []corpus.Document{
		doc("a", "x.c", fibonacciC),
		doc("b", "x.c", geometryC),
		doc("c", "x.c", factorialC),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), ticks.Load())
}

func TestRun_DuplicateFileIsSkipped(t *testing.T) {
	analysis, err := newDetector(t).Run(context.Background(), []corpus.Document{
		doc("alice", "fib.c", fibonacciC),
		doc("alice", "fib.c", geometryC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.Summary.FilesFingerprinted)
	require.Len(t, analysis.Skipped, 1)
	assert.Contains(t, analysis.Skipped[0].Reason, "already stored")
}

func TestRun_Empty(t *testing.T) {
	analysis, err := newDetector(t).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, analysis.Records)
	assert.Empty(t, analysis.Records)
	assert.NotNil(t, analysis.Clusters)
	assert.Equal(t, Summary{}, analysis.Summary)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDetector(t).Run(ctx, []corpus.Document{doc("a", "x.c", fibonacciC)})
	assert.ErrorIs(t, err, context.Canceled)
}

type stubSource struct {
	docs   []corpus.Document
	failed []corpus.FileError
	err    error
}

func (s stubSource) Documents(context.Context) ([]corpus.Document, []corpus.FileError, error) {
	return s.docs, s.failed, s.err
}

func TestRunSource(t *testing.T) {
	src := stubSource{
		docs: []corpus.Document{
			doc("alice", "fib.c", fibonacciC),
			doc("bob", "fib.c", fibonacciC),
		},
		failed: []corpus.FileError{{ID: id("bob", "big.c"), Err: corpus.ErrFileTooLarge}},
	}

	analysis, err := newDetector(t).RunSource(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, analysis.Records, 1)
	assert.Equal(t, 3, analysis.Summary.FilesScanned)
	require.Len(t, analysis.Skipped, 1)
	assert.Equal(t, corpus.ErrFileTooLarge.Error(), analysis.Skipped[0].Reason)

	_, err = newDetector(t).RunSource(context.Background(), stubSource{err: corpus.ErrNoSubmissions})
	assert.True(t, errors.Is(err, corpus.ErrNoSubmissions))
}

func TestRun_ReportsReadFailures(t *testing.T) {
	docs := []corpus.Document{doc("alice", "fib.c", fibonacciC)}
	failed := corpus.FileError{ID: id("bob", "blob.c"), Err: corpus.ErrBinaryFile}

	analysis, err := newDetector(t).Run(context.Background(), docs, failed)
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.Summary.FilesScanned)
	assert.Equal(t, 1, analysis.Summary.FilesSkipped)
	assert.Equal(t, []Skipped{{File: id("bob", "blob.c"), Reason: corpus.ErrBinaryFile.Error()}}, analysis.Skipped)
}

func TestClusterRecords(t *testing.T) {
	records := []similarity.Record{
		{FileA: id("d", "x.c"), FileB: id("e", "x.c"), Similarity: 0.95},
		{FileA: id("a", "x.c"), FileB: id("b", "x.c"), Similarity: 0.9},
		{FileA: id("b", "x.c"), FileB: id("c", "x.c"), Similarity: 0.7},
	}
	raw := map[corpus.FileID]uint64{id("a", "x.c"): 1, id("b", "x.c"): 2, id("c", "x.c"): 3, id("d", "x.c"): 4, id("e", "x.c"): 4}
	canonical := map[corpus.FileID]uint64{id("a", "x.c"): 1, id("b", "x.c"): 1, id("c", "x.c"): 2, id("d", "x.c"): 4, id("e", "x.c"): 4}

	clusters := clusterRecords(records, raw, canonical, 4)
	require.Len(t, clusters, 2)

	assert.Equal(t, 1, clusters[0].ID)
	assert.Equal(t, []corpus.FileID{id("a", "x.c"), id("b", "x.c"), id("c", "x.c")}, clusters[0].Files)
	assert.Equal(t, ClonePartial, clusters[0].Type)
	assert.Equal(t, 2, clusters[0].Pairs)
	assert.Equal(t, 0.8, clusters[0].AverageSimilarity)
	assert.Equal(t, 0.9, clusters[0].MaxSimilarity)

	assert.Equal(t, 2, clusters[1].ID)
	assert.Equal(t, CloneExact, clusters[1].Type)
	assert.Equal(t, []string{"d", "e"}, clusters[1].Submissions)

	assert.Empty(t, clusterRecords(nil, nil, nil, 4))
}

func TestComputeHotspots(t *testing.T) {
	var records []similarity.Record
	for i := 0; i < 12; i++ {
		records = append(records, similarity.Record{
			FileA:      id("hub", "main.c"),
			FileB:      id(string(rune('a'+i)), "main.c"),
			Similarity: 0.7,
		})
	}

	hotspots := computeHotspots(records)
	require.Len(t, hotspots, maxHotspots)
	assert.Equal(t, Hotspot{Submission: "hub", FlaggedPairs: 12, FlaggedFiles: 1, MaxSimilarity: 0.7}, hotspots[0])
	assert.Equal(t, "a", hotspots[1].Submission)
}
