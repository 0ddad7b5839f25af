// Package extract turns cleaned community text into per-category knowledge
// tables.
//
// Every extractor follows the same shape:
//   - each deduplicated entry is normalized once and scored once
//   - each vocabulary term is tested against the normalized text
//   - on a match the term's Record gains a mention, a context snippet and the
//     entry's confidence
//   - category-specific attributes are parsed from the same text
//   - Finalize computes averages and applies category filters exactly once
//
// Vocabularies are data (see Vocabulary); nothing in this package holds
// state between runs.
package extract

import (
	"github.com/hurttlocker/loresmith/internal/clean"
	"github.com/hurttlocker/loresmith/internal/ingest"
)

// Observation is one scored, normalized entry handed to every extractor.
type Observation struct {
	Entry      ingest.Entry
	Text       string
	Confidence float64
}

// Extractor accumulates records for one category.
type Extractor interface {
	Category() string
	Observe(obs Observation)
	Finalize() *Table
}

// Run feeds every non-empty entry to every extractor and returns the
// finalized tables in extractor order.
func Run(entries []ingest.Entry, scorer *clean.Scorer, extractors ...Extractor) []*Table {
	for _, e := range entries {
		text := clean.Normalize(e.Content)
		if text == "" {
			continue
		}
		obs := Observation{Entry: e, Text: text, Confidence: scorer.Score(e)}
		for _, x := range extractors {
			x.Observe(obs)
		}
	}

	tables := make([]*Table, 0, len(extractors))
	for _, x := range extractors {
		tables = append(tables, x.Finalize())
	}
	return tables
}

// tally is the mapping of key -> Record each extractor owns.
type tally struct {
	category   string
	vocab      Vocabulary
	records    map[string]*Record
	contextLen int
	finalized  bool
}

func newTally(category string, vocab Vocabulary, contextLen int) tally {
	if contextLen <= 0 {
		contextLen = DefaultContextLength
	}
	return tally{
		category:   category,
		vocab:      vocab,
		records:    make(map[string]*Record),
		contextLen: contextLen,
	}
}

// record returns the record for key, creating it on first use.
func (t *tally) record(key string) *Record {
	r, ok := t.records[key]
	if !ok {
		r = newRecord(key)
		t.records[key] = r
	}
	return r
}

// matches returns the vocabulary terms found in text, in vocabulary order.
func (t *tally) matches(text string) []Term {
	var out []Term
	for _, term := range t.vocab {
		if term.Pattern.MatchString(text) {
			out = append(out, term)
		}
	}
	return out
}

func (t *tally) table() *Table {
	return &Table{Category: t.category, Records: t.records}
}

// Tables bundles the four standard extractor outputs of a run.
type Tables struct {
	Gear       *Table
	Runes      *Table
	Characters *Table
	Materials  *Table
}

// All returns the tables in category order, skipping nil ones.
func (ts Tables) All() []*Table {
	var out []*Table
	for _, t := range []*Table{ts.Gear, ts.Runes, ts.Characters, ts.Materials} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// TablesFrom sorts Run output into a Tables value by category name.
func TablesFrom(tables []*Table) Tables {
	var ts Tables
	for _, t := range tables {
		switch t.Category {
		case CategoryGear:
			ts.Gear = t
		case CategoryRunes:
			ts.Runes = t
		case CategoryCharacter:
			ts.Characters = t
		case CategoryMaterials:
			ts.Materials = t
		}
	}
	return ts
}
