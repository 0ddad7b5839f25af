package extract

import (
	"regexp"
	"strings"
)

var defaultEffectPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// RuneOptions tunes the rune extractor.
type RuneOptions struct {
	Costs         Vocabulary     // group 1: amount; term key: unit
	EffectPattern *regexp.Regexp // group 1: percentage value
	ContextLen    int
}

// DefaultRuneOptions returns the stock rune settings.
func DefaultRuneOptions() RuneOptions {
	return RuneOptions{
		Costs:         MustCompile(DefaultRuneCosts()),
		EffectPattern: defaultEffectPattern,
		ContextLen:    DefaultContextLength,
	}
}

// RuneExtractor records rune mentions with their effects and costs.
type RuneExtractor struct {
	tally
	opts RuneOptions
}

// NewRuneExtractor creates a rune extractor over the given vocabulary.
func NewRuneExtractor(vocab Vocabulary, opts RuneOptions) *RuneExtractor {
	def := DefaultRuneOptions()
	if opts.Costs == nil {
		opts.Costs = def.Costs
	}
	if opts.EffectPattern == nil {
		opts.EffectPattern = def.EffectPattern
	}
	return &RuneExtractor{
		tally: newTally(CategoryRunes, vocab, opts.ContextLen),
		opts:  opts,
	}
}

func (x *RuneExtractor) Category() string { return x.category }

func (x *RuneExtractor) Observe(obs Observation) {
	terms := x.matches(obs.Text)
	if len(terms) == 0 {
		return
	}

	var effects, costs []string
	for _, m := range x.opts.EffectPattern.FindAllStringSubmatch(obs.Text, -1) {
		effects = append(effects, m[1]+"%")
	}
	for _, unit := range x.opts.Costs {
		for _, m := range unit.Pattern.FindAllStringSubmatch(obs.Text, -1) {
			if len(m) < 2 || m[1] == "" {
				continue
			}
			costs = append(costs, strings.ReplaceAll(m[1], ",", "")+" "+unit.Key)
		}
	}

	for _, term := range terms {
		r := x.record(term.Key)
		r.observe(obs, x.contextLen)
		r.Effects = append(r.Effects, effects...)
		r.Costs = append(r.Costs, costs...)
	}
}

func (x *RuneExtractor) Finalize() *Table {
	if x.finalized {
		return x.table()
	}
	x.finalized = true

	for key, r := range x.records {
		r.finalizeAverage()
		r.Effects = dedupeStrings(r.Effects)
		r.Costs = dedupeStrings(r.Costs)
		if term, ok := x.vocab.Lookup(key); ok {
			r.Classification = term.Class
		}
	}
	return x.table()
}
