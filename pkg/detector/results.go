package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/panbanda/winnow/pkg/similarity"
)

// resultsTimeFormat is the UTC timestamp embedded in results file names.
const resultsTimeFormat = "20060102T150405Z"

// ResultRecord is one pair in a results file.
type ResultRecord struct {
	File1      string  `json:"file_1"`
	File2      string  `json:"file_2"`
	Similarity float64 `json:"similarity"`
}

// ResultsFileName returns plagiarism_results_<UTC timestamp>.json for t.
func ResultsFileName(t time.Time) string {
	return "plagiarism_results_" + t.UTC().Format(resultsTimeFormat) + ".json"
}

// ToResultRecords converts flagged pairs to the results file shape.
func ToResultRecords(records []similarity.Record) []ResultRecord {
	out := make([]ResultRecord, len(records))
	for i, r := range records {
		out[i] = ResultRecord{File1: r.FileA.String(), File2: r.FileB.String(), Similarity: r.Similarity}
	}
	return out
}

// WriteResults writes records as an indented JSON array into dir, creating it if needed,
// and returns the path written.
func WriteResults(dir string, records []similarity.Record, t time.Time) (string, error) {
	return writeResultRecords(filepath.Join(dir, ResultsFileName(t)), ToResultRecords(records))
}

// ReadResults loads a results file.
func ReadResults(path string) ([]ResultRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []ResultRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return records, nil
}

// RemapResults replaces the submission part of every file name using names, leaving
// unknown submissions untouched. It turns hashed submission ids back into readable ones.
func RemapResults(records []ResultRecord, names map[string]string) []ResultRecord {
	remap := func(file string) string {
		sub, rest, ok := strings.Cut(file, "/")
		if !ok {
			return file
		}
		if name, found := names[sub]; found {
			return name + "/" + rest
		}
		return file
	}

	out := make([]ResultRecord, len(records))
	for i, r := range records {
		out[i] = ResultRecord{File1: remap(r.File1), File2: remap(r.File2), Similarity: r.Similarity}
	}
	return out
}

// WriteRemapped writes records next to the results file at path, with _remapped added
// before the extension, and returns the path written.
func WriteRemapped(path string, records []ResultRecord) (string, error) {
	target := strings.TrimSuffix(path, ".json") + "_remapped.json"
	return writeResultRecords(target, records)
}

func writeResultRecords(path string, records []ResultRecord) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
