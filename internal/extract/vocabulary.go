package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Term is one recognizable key of a category: a gear set, rune, hero or
// material unit, plus its default classification.
type Term struct {
	Key     string
	Class   string
	Pattern *regexp.Regexp
}

// Vocabulary is an ordered pattern table. Order decides tie-breaks wherever
// terms compete (slot dominance, role votes).
type Vocabulary []Term

// TermSpec is the serializable form of a Term, as it appears in rules files.
type TermSpec struct {
	Key     string `yaml:"key" json:"key"`
	Class   string `yaml:"class,omitempty" json:"class,omitempty"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Compile turns specs into a Vocabulary. A spec without a pattern matches its
// key as a whole word, case-insensitively.
func Compile(specs []TermSpec) (Vocabulary, error) {
	vocab := make(Vocabulary, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		key := strings.ToLower(strings.TrimSpace(spec.Key))
		if key == "" {
			return nil, fmt.Errorf("term with empty key")
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate term %q", key)
		}
		seen[key] = struct{}{}

		pattern := spec.Pattern
		if strings.TrimSpace(pattern) == "" {
			pattern = `(?i)\b` + regexp.QuoteMeta(key) + `\b`
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", key, err)
		}
		vocab = append(vocab, Term{Key: key, Class: spec.Class, Pattern: re})
	}
	return vocab, nil
}

// MustCompile is Compile for built-in tables.
func MustCompile(specs []TermSpec) Vocabulary {
	v, err := Compile(specs)
	if err != nil {
		panic(err)
	}
	return v
}

// Specs converts a vocabulary back to its serializable form.
func (v Vocabulary) Specs() []TermSpec {
	out := make([]TermSpec, len(v))
	for i, t := range v {
		out[i] = TermSpec{Key: t.Key, Class: t.Class, Pattern: t.Pattern.String()}
	}
	return out
}

// Lookup returns the term for key.
func (v Vocabulary) Lookup(key string) (Term, bool) {
	for _, t := range v {
		if t.Key == key {
			return t, true
		}
	}
	return Term{}, false
}
