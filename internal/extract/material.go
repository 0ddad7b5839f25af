package extract

import (
	"strconv"
	"strings"
)

// MaterialExtractor sums quantities mentioned next to material unit words.
// Each vocabulary pattern must capture the quantity in group 1.
type MaterialExtractor struct {
	tally
}

// MaterialOptions tunes the material extractor. A zero ContextLen means
// DefaultContextLength.
type MaterialOptions struct {
	ContextLen int
}

// NewMaterialExtractor creates a material extractor over the given unit vocabulary.
func NewMaterialExtractor(vocab Vocabulary, opts MaterialOptions) *MaterialExtractor {
	return &MaterialExtractor{tally: newTally(CategoryMaterials, vocab, opts.ContextLen)}
}

func (x *MaterialExtractor) Category() string { return x.category }

func (x *MaterialExtractor) Observe(obs Observation) {
	for _, term := range x.vocab {
		found := term.Pattern.FindAllStringSubmatch(obs.Text, -1)
		if len(found) == 0 {
			continue
		}
		r := x.record(term.Key)
		r.observe(obs, x.contextLen)
		if r.TotalQuantity == nil {
			r.TotalQuantity = new(int64)
		}
		for _, m := range found {
			if len(m) < 2 {
				continue
			}
			n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
			if err != nil {
				continue
			}
			*r.TotalQuantity += n
		}
	}
}

func (x *MaterialExtractor) Finalize() *Table {
	if x.finalized {
		return x.table()
	}
	x.finalized = true

	for key, r := range x.records {
		r.finalizeAverage()
		if term, ok := x.vocab.Lookup(key); ok {
			r.Classification = term.Class
		}
	}
	return x.table()
}
