// Package dataset turns extracted lore tables into question/answer pairs and
// tokenized conversation sequences for fine-tuning a dialogue model.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hurttlocker/loresmith/internal/extract"
)

// Output file names.
const (
	TrainingFile  = "training-data.jsonl"
	TokenizedFile = "tokenized.jsonl"
)

// DefaultPersona answers every generated conversation.
const DefaultPersona = "XY Elder"

// QA is one generated training pair.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Example is a QA pair rendered as a persona conversation.
type Example struct {
	QA
	Text string `json:"text"`
}

var templates = map[string][]string{
	extract.CategoryGear: {
		"Tell me about the %s set",
		"What does the %s set do?",
	},
	extract.CategoryRunes: {
		"What does the %s rune do?",
		"Tell me about the %s rune",
	},
	extract.CategoryCharacter: {
		"Tell me about %s",
		"How good is %s?",
	},
	extract.CategoryMaterials: {
		"What is %s used for?",
	},
}

// generic is used for categories without their own templates.
var generic = []string{"Tell me about %s"}

// BuildQA generates question/answer pairs for every record that has at least
// one context. Records are visited in key order so output is stable.
func BuildQA(tables []*extract.Table) []QA {
	var out []QA
	for _, t := range tables {
		tmpl, ok := templates[t.Category]
		if !ok {
			tmpl = generic
		}
		for _, key := range t.Keys() {
			r := t.Records[key]
			answer := r.BestContext()
			if answer == "" {
				continue
			}
			subject := displayName(key)
			for _, q := range tmpl {
				out = append(out, QA{
					Question: fmt.Sprintf(q, subject),
					Answer:   answer,
					Category: t.Category,
				})
			}
			out = append(out, derived(t.Category, subject, r)...)
		}
	}
	return out
}

// derived adds pairs answered from structured attributes rather than raw
// context: set bonuses, usage fit and stock levels.
func derived(category, subject string, r *extract.Record) []QA {
	var out []QA
	switch category {
	case extract.CategoryGear:
		for _, tier := range sortedKeys(r.Bonuses) {
			b := r.Bonuses[tier]
			out = append(out, QA{
				Question: fmt.Sprintf("What is the %s bonus of the %s set?", strings.ReplaceAll(tier, "_", "-"), subject),
				Answer:   b.Text,
				Category: category,
			})
		}
	case extract.CategoryCharacter:
		for _, u := range r.UsageTypes {
			out = append(out, QA{
				Question: fmt.Sprintf("Is %s good for %s?", subject, usageLabel(u)),
				Answer:   BestContextFor(r, u),
				Category: category,
			})
		}
	}
	return out
}

// BestContextFor returns the longest context mentioning term, falling back to
// the record's best context.
func BestContextFor(r *extract.Record, term string) string {
	var hits []string
	for _, c := range r.Contexts {
		if strings.Contains(strings.ToLower(c), term) {
			hits = append(hits, c)
		}
	}
	if best := extract.BestContext(hits); best != "" {
		return best
	}
	return r.BestContext()
}

// Conversation renders a pair in the persona dialogue format.
func Conversation(qa QA, persona string) string {
	if persona == "" {
		persona = DefaultPersona
	}
	return "User: " + qa.Question + "\n" + persona + ": " + qa.Answer
}

// Examples renders every pair as a conversation.
func Examples(qas []QA, persona string) []Example {
	out := make([]Example, len(qas))
	for i, qa := range qas {
		out[i] = Example{QA: qa, Text: Conversation(qa, persona)}
	}
	return out
}

// WriteJSONL writes one JSON document per line, replacing path atomically.
func WriteJSONL[T any](path string, rows []T) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encoding row %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func displayName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func usageLabel(u string) string {
	switch u {
	case "pvp":
		return "PvP"
	case "pve":
		return "PvE"
	case "gvg":
		return "GvG"
	}
	return u
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
