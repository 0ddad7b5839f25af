package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hurttlocker/loresmith/internal/clean"
)

var (
	defaultTierPattern = regexp.MustCompile(`(?i)\b(\d)\s*-?\s*piece\b`)
	defaultStatPattern = regexp.MustCompile(`(?i)(\d+)(%?)\s*(attack|hp|crit|damage)\b`)
)

// GearOptions tunes the gear extractor. Zero values fall back to defaults.
type GearOptions struct {
	Slots           Vocabulary
	PieceThreshold  float64
	PieceContextLen int
	ContextLen      int
	TierPattern     *regexp.Regexp // group 1: piece count
	StatPattern     *regexp.Regexp // groups: value, optional %, stat
}

// DefaultGearOptions returns the stock gear settings.
func DefaultGearOptions() GearOptions {
	return GearOptions{
		Slots:           MustCompile(DefaultGearSlots()),
		PieceThreshold:  0.3,
		PieceContextLen: 100,
		ContextLen:      DefaultContextLength,
		TierPattern:     defaultTierPattern,
		StatPattern:     defaultStatPattern,
	}
}

// GearExtractor records gear-set mentions, slot pieces and set bonuses.
type GearExtractor struct {
	tally
	opts GearOptions
}

// NewGearExtractor creates a gear extractor over the given set vocabulary.
func NewGearExtractor(vocab Vocabulary, opts GearOptions) *GearExtractor {
	def := DefaultGearOptions()
	if opts.Slots == nil {
		opts.Slots = def.Slots
	}
	if opts.PieceThreshold <= 0 {
		opts.PieceThreshold = def.PieceThreshold
	}
	if opts.PieceContextLen <= 0 {
		opts.PieceContextLen = def.PieceContextLen
	}
	if opts.TierPattern == nil {
		opts.TierPattern = def.TierPattern
	}
	if opts.StatPattern == nil {
		opts.StatPattern = def.StatPattern
	}
	return &GearExtractor{
		tally: newTally(CategoryGear, vocab, opts.ContextLen),
		opts:  opts,
	}
}

func (g *GearExtractor) Category() string { return g.category }

func (g *GearExtractor) Observe(obs Observation) {
	terms := g.matches(obs.Text)
	if len(terms) == 0 {
		return
	}
	bonuses := parseBonuses(obs.Text, g.opts.TierPattern, g.opts.StatPattern)

	for _, term := range terms {
		r := g.record(term.Key)
		r.observe(obs, g.contextLen)

		for _, slot := range g.opts.Slots {
			if !slot.Pattern.MatchString(obs.Text) {
				continue
			}
			if r.Pieces == nil {
				r.Pieces = make(map[string][]PieceMention)
			}
			r.Pieces[slot.Key] = append(r.Pieces[slot.Key], PieceMention{
				Content:    clean.Truncate(obs.Text, g.opts.PieceContextLen),
				Confidence: obs.Confidence,
				Source:     obs.Entry.SourceLabel(),
			})
		}

		for tier, b := range bonuses {
			b.Confidence = obs.Confidence
			if r.Bonuses == nil {
				r.Bonuses = make(map[string]SetBonus)
			}
			if prev, ok := r.Bonuses[tier]; ok && prev.Confidence >= b.Confidence {
				continue
			}
			r.Bonuses[tier] = b
		}
	}
}

func (g *GearExtractor) Finalize() *Table {
	if g.finalized {
		return g.table()
	}
	g.finalized = true

	for key, r := range g.records {
		r.finalizeAverage()

		for slot, pieces := range r.Pieces {
			kept := pieces[:0]
			for _, p := range pieces {
				if p.Confidence > g.opts.PieceThreshold {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				delete(r.Pieces, slot)
				continue
			}
			r.Pieces[slot] = kept
		}
		if len(r.Pieces) == 0 {
			r.Pieces = nil
		}

		r.Classification = g.dominantSlot(r)
		if r.Classification == "" {
			if term, ok := g.vocab.Lookup(key); ok {
				r.Classification = term.Class
			}
		}
	}
	return g.table()
}

// dominantSlot returns the slot with the most retained pieces; slot
// vocabulary order breaks ties.
func (g *GearExtractor) dominantSlot(r *Record) string {
	best, bestN := "", 0
	for _, slot := range g.opts.Slots {
		if n := len(r.Pieces[slot.Key]); n > bestN {
			best, bestN = slot.Key, n
		}
	}
	return best
}

// parseBonuses pairs every "N-piece" tier in text with the nearest stat
// literal. The first tier occurrence wins within one text.
func parseBonuses(text string, tierRe, statRe *regexp.Regexp) map[string]SetBonus {
	tiers := tierRe.FindAllStringSubmatchIndex(text, -1)
	if len(tiers) == 0 {
		return nil
	}
	stats := statRe.FindAllStringSubmatchIndex(text, -1)
	if len(stats) == 0 {
		return nil
	}

	out := make(map[string]SetBonus)
	for _, tm := range tiers {
		tier := text[tm[2]:tm[3]] + "_piece"
		if _, ok := out[tier]; ok {
			continue
		}

		nearest, dist := -1, -1
		for i, sm := range stats {
			d := spanDistance(tm[0], tm[1], sm[0], sm[1])
			if nearest == -1 || d < dist {
				nearest, dist = i, d
			}
		}
		sm := stats[nearest]
		value := text[sm[2]:sm[3]]
		percent := sm[4] >= 0 && sm[5] > sm[4]
		stat := strings.ToLower(text[sm[6]:sm[7]])

		label := fmt.Sprintf("+%s %s", value, stat)
		if percent {
			label = fmt.Sprintf("+%s%% %s", value, stat)
		}
		out[tier] = SetBonus{Value: value, Stat: stat, Text: label}
	}
	return out
}

func spanDistance(aStart, aEnd, bStart, bEnd int) int {
	switch {
	case bStart >= aEnd:
		return bStart - aEnd
	case aStart >= bEnd:
		return aStart - bEnd
	default:
		return 0
	}
}
