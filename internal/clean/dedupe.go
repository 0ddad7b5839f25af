package clean

import (
	"crypto/sha256"
	"fmt"

	"github.com/hurttlocker/loresmith/internal/ingest"
)

// Fingerprint returns the SHA-256 hex digest of already-normalized text.
func Fingerprint(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// DedupeResult is the outcome of one deduplication pass.
type DedupeResult struct {
	Unique            []ingest.Entry
	DuplicatesRemoved int
	// EmptyDropped counts entries with no usable text after normalization.
	// They are neither duplicates nor retained.
	EmptyDropped int
}

// Deduplicator keeps the first entry seen for each normalized-content
// fingerprint. Its index lives for one pipeline run.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator returns a deduplicator with an empty index.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Dedupe filters entries in input order.
func (d *Deduplicator) Dedupe(entries []ingest.Entry) DedupeResult {
	result := DedupeResult{Unique: make([]ingest.Entry, 0, len(entries))}
	for _, e := range entries {
		normalized := Normalize(e.Content)
		if normalized == "" {
			result.EmptyDropped++
			continue
		}
		fp := Fingerprint(normalized)
		if _, dup := d.seen[fp]; dup {
			result.DuplicatesRemoved++
			continue
		}
		d.seen[fp] = struct{}{}
		result.Unique = append(result.Unique, e)
	}
	return result
}

// Seen reports how many distinct fingerprints the index holds.
func (d *Deduplicator) Seen() int { return len(d.seen) }
