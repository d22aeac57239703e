package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/detector"
	"github.com/panbanda/winnow/pkg/similarity"
	"github.com/panbanda/winnow/pkg/stats"
	"github.com/panbanda/winnow/pkg/winnow"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"json", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{"toon", FormatTOON},
		{"", FormatText},
		{"invalid", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range Formats {
		if !ValidFormat(string(f)) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("ValidFormat(xml) = true")
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	f, err := NewFormatter(FormatJSON, path, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.Colored() {
		t.Error("file output should never be colored")
	}
	if err := f.Output(map[string]int{"pairs": 2}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"pairs": 2`) {
		t.Errorf("file content = %s", data)
	}
}

func TestNewFormatterInvalidPath(t *testing.T) {
	if _, err := NewFormatter(FormatText, filepath.Join(t.TempDir(), "missing", "x.txt"), false); err == nil {
		t.Error("NewFormatter() should fail for an unwritable path")
	}
}

func TestTableRenderText(t *testing.T) {
	table := NewTable("Flagged Pairs", []string{"File A", "File B"}, [][]string{{"alice/a.c", "bob/a.c"}}, []string{"Pairs: 1", ""}, nil)

	var buf bytes.Buffer
	if err := table.RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Flagged Pairs", "=============", "alice/a.c", "bob/a.c", "Pairs: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderText() missing %q in:\n%s", want, out)
		}
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	table := NewTable("Clusters", []string{"ID", "Type"}, [][]string{{"1", "exact"}}, nil, nil)

	var buf bytes.Buffer
	if err := table.RenderMarkdown(&buf); err != nil {
		t.Fatal(err)
	}
	want := "## Clusters\n\n| ID | Type |\n| --- | --- |\n| 1 | exact |\n\n"
	if buf.String() != want {
		t.Errorf("RenderMarkdown() = %q, want %q", buf.String(), want)
	}
}

func TestTableRenderData(t *testing.T) {
	table := NewTable("", []string{"A", "B"}, [][]string{{"1", "2"}, {"3"}}, nil, nil)
	rows, ok := table.RenderData().([]map[string]string)
	if !ok || len(rows) != 2 {
		t.Fatalf("RenderData() = %#v", table.RenderData())
	}
	if rows[0]["B"] != "2" || rows[1]["A"] != "3" || len(rows[1]) != 1 {
		t.Errorf("RenderData() rows = %v", rows)
	}

	withData := NewTable("", nil, nil, nil, []int{1})
	if _, ok := withData.RenderData().([]int); !ok {
		t.Error("RenderData() should prefer Data")
	}
}

func TestSectionRender(t *testing.T) {
	s := &Section{Title: "Summary", Content: "Pairs flagged: 3"}

	var text bytes.Buffer
	if err := s.RenderText(&text, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "Summary\n-------") || !strings.Contains(text.String(), "Pairs flagged: 3") {
		t.Errorf("RenderText() = %q", text.String())
	}

	var md bytes.Buffer
	if err := s.RenderMarkdown(&md); err != nil {
		t.Fatal(err)
	}
	if md.String() != "## Summary\n\nPairs flagged: 3\n\n" {
		t.Errorf("RenderMarkdown() = %q", md.String())
	}
}

func TestReportRenderData(t *testing.T) {
	r := &Report{Title: "R", Sections: []Renderable{&Section{Title: "S"}}}
	data, ok := r.RenderData().(map[string]any)
	if !ok || data["title"] != "R" {
		t.Fatalf("RenderData() = %#v", r.RenderData())
	}
	if parts := data["sections"].([]any); len(parts) != 1 {
		t.Errorf("sections = %v", parts)
	}
}

func sampleAnalysis() *detector.Analysis {
	a := corpus.FileID{SubmissionID: "alice", Path: "fib.c"}
	b := corpus.FileID{SubmissionID: "bob", Path: "fib.c"}
	return &detector.Analysis{
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Params:      winnow.DefaultParams(),
		Threshold:   0.6,
		Records:     []similarity.Record{{FileA: a, FileB: b, Similarity: 0.97, Shared: 14}},
		Clusters: []detector.Cluster{{
			ID: 1, Type: detector.CloneRenamed, Files: []corpus.FileID{a, b},
			Submissions: []string{"alice", "bob"}, Pairs: 1, AverageSimilarity: 0.97, MaxSimilarity: 0.97,
		}},
		Hotspots: []detector.Hotspot{{Submission: "alice", FlaggedPairs: 1, FlaggedFiles: 1, MaxSimilarity: 0.97}},
		Skipped:  []detector.Skipped{{File: corpus.FileID{SubmissionID: "eve", Path: "x.rs"}, Reason: "unsupported language"}},
		Summary: detector.Summary{
			FilesScanned: 3, FilesFingerprinted: 2, FilesSkipped: 1, Submissions: 2,
			PairsFlagged: 1, Clusters: 1, Similarity: stats.Summarize([]float64{0.97}),
		},
	}
}

func TestAnalysisReportText(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatterTo(&buf, FormatText, false)
	if err := f.Output(AnalysisReport(sampleAnalysis(), false)); err != nil {
		t.Fatalf("Output() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Near-Duplicate Detection",
		"Pairs flagged:       1",
		"alice/fib.c",
		"97.0%",
		"renamed",
		"Hotspots",
		"eve/x.rs",
		"unsupported language",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q in:\n%s", want, out)
		}
	}
}

func TestAnalysisReportMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatterTo(&buf, FormatMarkdown, false).Output(AnalysisReport(sampleAnalysis(), false)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# Near-Duplicate Detection", "## Flagged Pairs", "| alice/fib.c | bob/fib.c | 97.0% | 14 |", "## Clusters"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown report missing %q in:\n%s", want, out)
		}
	}
}

func TestAnalysisReportNoPairs(t *testing.T) {
	a := &detector.Analysis{Params: winnow.DefaultParams()}
	report := AnalysisReport(a, false)
	if len(report.Sections) != 1 {
		t.Errorf("report without pairs has %d sections, want only the summary", len(report.Sections))
	}
}

func TestAnalysisReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatterTo(&buf, FormatJSON, false).Output(AnalysisReport(sampleAnalysis(), false)); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Records []struct {
			FileA      string  `json:"file_a"`
			FileB      string  `json:"file_b"`
			Similarity float64 `json:"similarity"`
		} `json:"records"`
		Summary struct {
			PairsFlagged int `json:"pairs_flagged"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Records) != 1 || decoded.Records[0].FileA != "alice/fib.c" || decoded.Records[0].Similarity != 0.97 {
		t.Errorf("records = %+v", decoded.Records)
	}
	if decoded.Summary.PairsFlagged != 1 {
		t.Errorf("pairs_flagged = %d", decoded.Summary.PairsFlagged)
	}
}

func TestAnalysisReportYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatterTo(&buf, FormatYAML, false).Output(AnalysisReport(sampleAnalysis(), false)); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	records, ok := decoded["records"].([]any)
	if !ok || len(records) != 1 {
		t.Fatalf("records = %#v", decoded["records"])
	}
	if got := records[0].(map[string]any)["file_b"]; got != "bob/fib.c" {
		t.Errorf("file_b = %v", got)
	}
}

func TestAnalysisReportTOON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatterTo(&buf, FormatTOON, false).Output(AnalysisReport(sampleAnalysis(), false)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "alice/fib.c") || !strings.Contains(out, "pairs_flagged") {
		t.Errorf("TOON output = %s", out)
	}
}

func TestFormatterMarkdownRawData(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatterTo(&buf, FormatMarkdown, false).Output(map[string]int{"k": 25}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "```json\n") || !strings.HasSuffix(buf.String(), "```\n") {
		t.Errorf("markdown raw output = %q", buf.String())
	}
}

func TestFormatterMessages(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatterTo(&buf, FormatText, false)
	f.Success("done %d", 1)
	f.Warning("careful")
	f.Info("note")

	want := "done 1\nWARNING: careful\nnote\n"
	if buf.String() != want {
		t.Errorf("messages = %q, want %q", buf.String(), want)
	}
}

func TestSimilarityColor(t *testing.T) {
	if got := SimilarityColor(0.5, "50%"); got != "50%" {
		t.Errorf("SimilarityColor(0.5) = %q", got)
	}
}
