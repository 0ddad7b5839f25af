package clean

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/loresmith/internal/ingest"
)

// ScoringRules are the tunable weights and vocabularies of the confidence
// heuristic. The defaults reproduce scores from earlier cleaning runs.
type ScoringRules struct {
	ShortLength int     `yaml:"short_length" json:"short_length"`
	ShortBonus  float64 `yaml:"short_bonus" json:"short_bonus"`
	LongLength  int     `yaml:"long_length" json:"long_length"`
	LongBonus   float64 `yaml:"long_bonus" json:"long_bonus"`

	ReputableMarkers []string `yaml:"reputable_markers" json:"reputable_markers"`
	ReputableBonus   float64  `yaml:"reputable_bonus" json:"reputable_bonus"`
	LowTrustMarkers  []string `yaml:"low_trust_markers" json:"low_trust_markers"`
	LowTrustBonus    float64  `yaml:"low_trust_bonus" json:"low_trust_bonus"`

	CombatKeywords   []string `yaml:"combat_keywords" json:"combat_keywords"`
	CombatBonus      float64  `yaml:"combat_bonus" json:"combat_bonus"`
	StrategyKeywords []string `yaml:"strategy_keywords" json:"strategy_keywords"`
	StrategyBonus    float64  `yaml:"strategy_bonus" json:"strategy_bonus"`

	PercentBonus   float64 `yaml:"percent_bonus" json:"percent_bonus"`
	ExternalWeight float64 `yaml:"external_weight" json:"external_weight"`
}

// DefaultScoringRules returns the stock heuristic.
func DefaultScoringRules() ScoringRules {
	return ScoringRules{
		ShortLength:      50,
		ShortBonus:       0.3,
		LongLength:       200,
		LongBonus:        0.2,
		ReputableMarkers: []string{"wiki"},
		ReputableBonus:   0.3,
		LowTrustMarkers:  []string{"discord"},
		LowTrustBonus:    0.1,
		CombatKeywords:   []string{"damage", "crit", "attack", "defense"},
		CombatBonus:      0.2,
		StrategyKeywords: []string{"build", "strategy", "guide"},
		StrategyBonus:    0.2,
		PercentBonus:     0.1,
		ExternalWeight:   0.2,
	}
}

var percentLiteralRE = regexp.MustCompile(`\d+%`)

// Scorer computes a bounded [0,1] quality estimate for an entry. It holds no
// mutable state; Score is safe to call repeatedly on the same input.
type Scorer struct {
	rules ScoringRules
}

// NewScorer builds a scorer. Keyword and marker lists are lower-cased once.
func NewScorer(rules ScoringRules) *Scorer {
	rules.ReputableMarkers = lowerAll(rules.ReputableMarkers)
	rules.LowTrustMarkers = lowerAll(rules.LowTrustMarkers)
	rules.CombatKeywords = lowerAll(rules.CombatKeywords)
	rules.StrategyKeywords = lowerAll(rules.StrategyKeywords)
	return &Scorer{rules: rules}
}

// Score operates on the raw entry content, not the normalized text.
func (s *Scorer) Score(e ingest.Entry) float64 {
	r := s.rules
	score := 0.0

	length := utf8.RuneCountInString(e.Content)
	if length > r.ShortLength {
		score += r.ShortBonus
	}
	if length > r.LongLength {
		score += r.LongBonus
	}

	source := strings.ToLower(e.Source)
	switch {
	case containsAny(source, r.ReputableMarkers):
		score += r.ReputableBonus
	case containsAny(source, r.LowTrustMarkers):
		score += r.LowTrustBonus
	}

	content := strings.ToLower(e.Content)
	if containsAny(content, r.CombatKeywords) {
		score += r.CombatBonus
	}
	if containsAny(content, r.StrategyKeywords) {
		score += r.StrategyBonus
	}
	if percentLiteralRE.MatchString(e.Content) {
		score += r.PercentBonus
	}

	if c := e.Confidence; c != nil && !math.IsNaN(*c) && !math.IsInf(*c, 0) {
		score += *c * r.ExternalWeight
	}

	return clamp01(score)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
