package extract

import (
	"regexp"

	"github.com/hurttlocker/loresmith/internal/clean"
)

var defaultBuildPattern = regexp.MustCompile(`(?i)\b(?:build|strategy|guide)\b`)

// CharacterOptions tunes the character extractor.
type CharacterOptions struct {
	Usage        Vocabulary
	Roles        Vocabulary
	BuildPattern *regexp.Regexp
	MaxBuilds    int
	BuildLen     int
	ContextLen   int
}

// DefaultCharacterOptions returns the stock character settings.
func DefaultCharacterOptions() CharacterOptions {
	return CharacterOptions{
		Usage:        MustCompile(DefaultUsageTypes()),
		Roles:        MustCompile(DefaultRoles()),
		BuildPattern: defaultBuildPattern,
		MaxBuilds:    5,
		BuildLen:     150,
		ContextLen:   DefaultContextLength,
	}
}

// CharacterExtractor records hero mentions, game modes, builds and roles.
type CharacterExtractor struct {
	tally
	opts CharacterOptions
}

// NewCharacterExtractor creates a character extractor over the given vocabulary.
func NewCharacterExtractor(vocab Vocabulary, opts CharacterOptions) *CharacterExtractor {
	def := DefaultCharacterOptions()
	if opts.Usage == nil {
		opts.Usage = def.Usage
	}
	if opts.Roles == nil {
		opts.Roles = def.Roles
	}
	if opts.BuildPattern == nil {
		opts.BuildPattern = def.BuildPattern
	}
	if opts.MaxBuilds <= 0 {
		opts.MaxBuilds = def.MaxBuilds
	}
	if opts.BuildLen <= 0 {
		opts.BuildLen = def.BuildLen
	}
	return &CharacterExtractor{
		tally: newTally(CategoryCharacter, vocab, opts.ContextLen),
		opts:  opts,
	}
}

func (x *CharacterExtractor) Category() string { return x.category }

func (x *CharacterExtractor) Observe(obs Observation) {
	terms := x.matches(obs.Text)
	if len(terms) == 0 {
		return
	}

	var usage []string
	for _, u := range x.opts.Usage {
		if u.Pattern.MatchString(obs.Text) {
			usage = append(usage, u.Key)
		}
	}
	isBuild := x.opts.BuildPattern.MatchString(obs.Text)

	role := ""
	for _, r := range x.opts.Roles {
		if r.Pattern.MatchString(obs.Text) {
			role = r.Key
			break
		}
	}

	for _, term := range terms {
		r := x.record(term.Key)
		r.observe(obs, x.contextLen)
		for _, u := range usage {
			r.UsageTypes = appendUnique(r.UsageTypes, u)
		}
		if isBuild && len(r.Builds) < x.opts.MaxBuilds {
			r.Builds = append(r.Builds, clean.Truncate(obs.Text, x.opts.BuildLen))
		}
		if role != "" {
			if r.Roles == nil {
				r.Roles = make(map[string]int)
			}
			r.Roles[role]++
		}
	}
}

func (x *CharacterExtractor) Finalize() *Table {
	if x.finalized {
		return x.table()
	}
	x.finalized = true

	for key, r := range x.records {
		r.finalizeAverage()
		r.Classification = x.topRole(r)
		if r.Classification == "" {
			if term, ok := x.vocab.Lookup(key); ok {
				r.Classification = term.Class
			}
		}
	}
	return x.table()
}

// topRole returns the role with the most votes; role vocabulary order breaks
// ties.
func (x *CharacterExtractor) topRole(r *Record) string {
	best, bestN := "", 0
	for _, role := range x.opts.Roles {
		if n := r.Roles[role.Key]; n > bestN {
			best, bestN = role.Key, n
		}
	}
	return best
}
