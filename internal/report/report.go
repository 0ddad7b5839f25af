// Package report serializes extraction results: per-category JSON tables, the
// combined database file, tabular CSV views and the run's quality report.
package report

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/ingest"
)

// Output file names.
const (
	DatabaseFile = "clean-database.json"
	QualityFile  = "quality-report.json"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a fresh, lexically sortable run identifier.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Stats are the counters a pipeline run collects before extraction.
type Stats struct {
	TotalRawEntries   int
	CleanedEntries    int
	DuplicatesRemoved int
	InvalidEntries    int
	FilesScanned      int
	FilesLoaded       int
	LoadErrors        []ingest.LoadError
}

// QualityReport summarizes one cleaning run.
type QualityReport struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Summary     Summary                    `json:"cleaning_summary"`
	Categories  map[string]CategorySummary `json:"category_breakdown"`
	LoadErrors  []ingest.LoadError         `json:"load_errors,omitempty"`
}

// Summary holds the run-wide counters.
type Summary struct {
	TotalRawEntries    int     `json:"total_raw_entries"`
	CleanedEntries     int     `json:"cleaned_entries"`
	DuplicatesRemoved  int     `json:"duplicates_removed"`
	InvalidEntries     int     `json:"invalid_entries"`
	CleaningEfficiency string  `json:"cleaning_efficiency"`
	AverageConfidence  float64 `json:"average_confidence"`
	FilesScanned       int     `json:"files_scanned"`
	FilesLoaded        int     `json:"files_loaded"`
}

// CategorySummary describes one category table.
type CategorySummary struct {
	Records           int     `json:"records"`
	Mentions          int     `json:"mentions"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Efficiency formats cleaned/total as a percentage; "0%" when total is zero.
func Efficiency(cleaned, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(cleaned)/float64(total)*100)
}

// BuildQualityReport assembles the report for a finished run. The average
// confidence is taken over every confidence score of every record combined.
func BuildQualityReport(stats Stats, tables []*extract.Table) *QualityReport {
	r := &QualityReport{
		RunID:       NewRunID(),
		GeneratedAt: time.Now().UTC(),
		Summary: Summary{
			TotalRawEntries:    stats.TotalRawEntries,
			CleanedEntries:     stats.CleanedEntries,
			DuplicatesRemoved:  stats.DuplicatesRemoved,
			InvalidEntries:     stats.InvalidEntries,
			CleaningEfficiency: Efficiency(stats.CleanedEntries, stats.TotalRawEntries),
			FilesScanned:       stats.FilesScanned,
			FilesLoaded:        stats.FilesLoaded,
		},
		Categories: make(map[string]CategorySummary, len(tables)),
		LoadErrors: stats.LoadErrors,
	}

	var all []float64
	for _, t := range tables {
		scores := t.ConfidenceScores()
		all = append(all, scores...)

		mentions := 0
		for _, rec := range t.Records {
			mentions += rec.Mentions
		}
		r.Categories[t.Category] = CategorySummary{
			Records:           t.Len(),
			Mentions:          mentions,
			AverageConfidence: extract.Mean(scores),
		}
	}
	r.Summary.AverageConfidence = extract.Mean(all)
	return r
}

// WriteQualityReport writes quality-report.json into dir.
func WriteQualityReport(dir string, r *QualityReport) error {
	return writeJSON(dir, QualityFile, r)
}

// QualityPath returns the quality report path inside dir.
func QualityPath(dir string) string {
	return filepath.Join(dir, QualityFile)
}

// ReadQualityReport loads a previously written report.
func ReadQualityReport(path string) (*QualityReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r QualityReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

// WriteTables writes one <category>.json per table plus the combined
// clean-database.json. It returns the paths written.
func WriteTables(dir string, tables []*extract.Table) ([]string, error) {
	combined := make(map[string]map[string]*extract.Record, len(tables))
	var written []string
	for _, t := range tables {
		name := t.Category + ".json"
		if err := writeJSON(dir, name, t.Records); err != nil {
			return written, err
		}
		written = append(written, filepath.Join(dir, name))
		combined[t.Category] = t.Records
	}
	if err := writeJSON(dir, DatabaseFile, combined); err != nil {
		return written, err
	}
	return append(written, filepath.Join(dir, DatabaseFile)), nil
}

// ReadDatabase loads clean-database.json back into tables, in category
// order. Unknown categories follow in name order.
func ReadDatabase(path string) ([]*extract.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading database: %w", err)
	}
	var combined map[string]map[string]*extract.Record
	if err := json.Unmarshal(data, &combined); err != nil {
		return nil, fmt.Errorf("parsing database %s: %w", path, err)
	}

	names := make([]string, 0, len(combined))
	for _, c := range extract.Categories {
		if _, ok := combined[c]; ok {
			names = append(names, c)
		}
	}
	var extra []string
	for c := range combined {
		if !slices.Contains(extract.Categories, c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	tables := make([]*extract.Table, 0, len(names))
	for _, c := range names {
		records := combined[c]
		if records == nil {
			records = map[string]*extract.Record{}
		}
		for name, r := range records {
			r.Name = name
		}
		tables = append(tables, &extract.Table{Category: c, Records: records})
	}
	return tables, nil
}

// writeJSON writes v as indented JSON via a temp file and rename.
func writeJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return writeAtomic(dir, name, func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	})
}

func writeAtomic(dir, name string, fill func(*os.File) error) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}
