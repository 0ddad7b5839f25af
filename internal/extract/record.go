package extract

import (
	"sort"
	"unicode/utf8"

	"github.com/hurttlocker/loresmith/internal/clean"
)

// Record accumulates everything observed about one category key.
// Mentions == len(Contexts) == len(ConfidenceScores) at all times.
type Record struct {
	Name             string    `json:"-"`
	Mentions         int       `json:"mentions"`
	Contexts         []string  `json:"contexts"`
	ConfidenceScores []float64 `json:"confidenceScores"`
	AvgConfidence    float64   `json:"avgConfidence"`
	Sources          []string  `json:"sources"`
	Classification   string    `json:"classification,omitempty"`

	// Gear sets.
	Pieces  map[string][]PieceMention `json:"pieces,omitempty"`
	Bonuses map[string]SetBonus       `json:"bonuses,omitempty"`

	// Runes.
	Effects []string `json:"effects,omitempty"`
	Costs   []string `json:"costs,omitempty"`

	// Characters.
	UsageTypes []string       `json:"usageTypes,omitempty"`
	Builds     []string       `json:"builds,omitempty"`
	Roles      map[string]int `json:"roles,omitempty"`

	// Materials. Nil for other categories so it is omitted from JSON.
	TotalQuantity *int64 `json:"totalQuantity,omitempty"`
}

// PieceMention is a gear sub-slot sighting.
type PieceMention struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// SetBonus is a parsed N-piece set bonus.
type SetBonus struct {
	Value      string  `json:"value"`
	Stat       string  `json:"stat"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func newRecord(name string) *Record {
	return &Record{
		Name:             name,
		Contexts:         []string{},
		ConfidenceScores: []float64{},
		Sources:          []string{},
	}
}

// observe appends one mention.
func (r *Record) observe(obs Observation, contextLen int) {
	r.Mentions++
	r.Contexts = append(r.Contexts, clean.Truncate(obs.Text, contextLen))
	r.ConfidenceScores = append(r.ConfidenceScores, obs.Confidence)
	r.Sources = appendUnique(r.Sources, obs.Entry.SourceLabel())
}

// finalizeAverage recomputes AvgConfidence from the raw scores.
func (r *Record) finalizeAverage() {
	r.AvgConfidence = Mean(r.ConfidenceScores)
}

// BestContext returns the representative snippet for the record.
func (r *Record) BestContext() string {
	return BestContext(r.Contexts)
}

// BestContext returns the longest context; the first one wins ties.
func BestContext(contexts []string) string {
	best := ""
	bestLen := -1
	for _, c := range contexts {
		if n := utf8.RuneCountInString(c); n > bestLen {
			best = c
			bestLen = n
		}
	}
	return best
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Table is the finalized output of one extractor.
type Table struct {
	Category string
	Records  map[string]*Record
}

// Keys returns record names in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.Records))
	for k := range t.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// ConfidenceScores flattens every score of every record, in key order.
func (t *Table) ConfidenceScores() []float64 {
	var out []float64
	for _, k := range t.Keys() {
		out = append(out, t.Records[k].ConfidenceScores...)
	}
	return out
}
