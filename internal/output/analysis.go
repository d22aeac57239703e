package output

import (
	"fmt"
	"strings"

	"github.com/panbanda/winnow/pkg/detector"
)

// AnalysisReport arranges a detection result as a report of tables. Structured formats
// serialise the analysis itself.
func AnalysisReport(a *detector.Analysis, colored bool) *Report {
	s := a.Summary

	summary := &Section{
		Title: "Summary",
		Content: strings.Join([]string{
			fmt.Sprintf("Parameters:          %s", a.Params),
			fmt.Sprintf("Threshold:           %.2f", a.Threshold),
			fmt.Sprintf("Files scanned:       %d", s.FilesScanned),
			fmt.Sprintf("Files fingerprinted: %d (%d from cache)", s.FilesFingerprinted, s.CacheHits),
			fmt.Sprintf("Files skipped:       %d", s.FilesSkipped),
			fmt.Sprintf("Submissions:         %d", s.Submissions),
			fmt.Sprintf("Pairs flagged:       %d", s.PairsFlagged),
			fmt.Sprintf("Clusters:            %d", s.Clusters),
		}, "\n"),
	}

	sections := []Renderable{summary}
	if len(a.Records) > 0 {
		sections = append(sections, pairsTable(a, colored), clustersTable(a))
	}
	if len(a.Hotspots) > 0 {
		sections = append(sections, hotspotsTable(a))
	}
	if len(a.Skipped) > 0 {
		sections = append(sections, skippedTable(a))
	}

	return &Report{Title: "Near-Duplicate Detection", Sections: sections, Data: a}
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func pairsTable(a *detector.Analysis, colored bool) *Table {
	rows := make([][]string, 0, len(a.Records))
	for _, r := range a.Records {
		sim := percent(r.Similarity)
		if colored {
			sim = SimilarityColor(r.Similarity, sim)
		}
		rows = append(rows, []string{r.FileA.String(), r.FileB.String(), sim, fmt.Sprintf("%d", r.Shared)})
	}

	sim := a.Summary.Similarity
	return NewTable("Flagged Pairs",
		[]string{"File A", "File B", "Similarity", "Shared"},
		rows,
		[]string{
			fmt.Sprintf("Pairs: %d", sim.Count),
			fmt.Sprintf("Mean: %s", percent(sim.Mean)),
			fmt.Sprintf("P50: %s", percent(sim.P50)),
			fmt.Sprintf("P95: %s", percent(sim.P95)),
		},
		a.Records)
}

func clustersTable(a *detector.Analysis) *Table {
	rows := make([][]string, 0, len(a.Clusters))
	for _, c := range a.Clusters {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.ID),
			c.Type.String(),
			fmt.Sprintf("%d", len(c.Files)),
			strings.Join(c.Submissions, ", "),
			percent(c.AverageSimilarity),
		})
	}
	return NewTable("Clusters",
		[]string{"ID", "Type", "Files", "Submissions", "Avg Similarity"},
		rows, nil, a.Clusters)
}

func hotspotsTable(a *detector.Analysis) *Table {
	rows := make([][]string, 0, len(a.Hotspots))
	for _, h := range a.Hotspots {
		rows = append(rows, []string{
			h.Submission,
			fmt.Sprintf("%d", h.FlaggedPairs),
			fmt.Sprintf("%d", h.FlaggedFiles),
			percent(h.MaxSimilarity),
		})
	}
	return NewTable("Hotspots",
		[]string{"Submission", "Pairs", "Files", "Max Similarity"},
		rows, nil, a.Hotspots)
}

func skippedTable(a *detector.Analysis) *Table {
	rows := make([][]string, 0, len(a.Skipped))
	for _, s := range a.Skipped {
		rows = append(rows, []string{s.File.String(), s.Reason})
	}
	return NewTable("Skipped Files", []string{"File", "Reason"}, rows, nil, a.Skipped)
}
