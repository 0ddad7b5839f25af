// Package ingest loads scraped community content for loresmith.
// It reads JSON documents from one or more directories, recognizes the handful
// of nesting shapes the scrapers produce, and flattens them into Entry records
// with their provenance (source label, category, originating file).
package ingest

import (
	"fmt"
	"strings"
)

// Entry is one unit of scraped content. Entries are read-only after load.
type Entry struct {
	Content    string   `json:"content"`
	Source     string   `json:"source,omitempty"`
	Category   string   `json:"category,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"` // externally supplied, optional
	SourceFile string   `json:"source_file,omitempty"`
}

// SourceLabel returns the best available provenance label for the entry.
func (e Entry) SourceLabel() string {
	if s := strings.TrimSpace(e.Source); s != "" {
		return s
	}
	if f := strings.TrimSpace(e.SourceFile); f != "" {
		return f
	}
	return "unknown"
}

// LoadResult summarizes a load over one or more directories.
type LoadResult struct {
	Entries      []Entry
	FilesScanned int
	FilesLoaded  int
	Errors       []LoadError
}

// Add merges another LoadResult into this one, preserving order.
func (r *LoadResult) Add(other *LoadResult) {
	r.Entries = append(r.Entries, other.Entries...)
	r.FilesScanned += other.FilesScanned
	r.FilesLoaded += other.FilesLoaded
	r.Errors = append(r.Errors, other.Errors...)
}

// LoadError records a non-fatal problem with one file or directory.
type LoadError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}
