package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/ingest"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRules_EmptyPathGivesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules.Gear.Sets) != 5 || len(rules.Runes.Terms) != 12 ||
		len(rules.Characters.Terms) != 9 || len(rules.Materials.Terms) != 7 {
		t.Errorf("unexpected default vocabulary sizes: %+v", rules)
	}
	if rules.Scoring.ReputableBonus != 0.3 {
		t.Errorf("unexpected default scoring %+v", rules.Scoring)
	}
}

func TestLoadRules_OverlaysDefaults(t *testing.T) {
	path := writeRules(t, `
context_length: 80
scoring:
  reputable_markers: [wiki, fandom]
gear:
  sets:
    - key: phoenix
      class: set
characters:
  max_builds: 2
`)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.ContextLength != 80 {
		t.Errorf("context_length not applied: %d", rules.ContextLength)
	}
	if len(rules.Gear.Sets) != 1 || rules.Gear.Sets[0].Key != "phoenix" {
		t.Errorf("gear sets not replaced: %+v", rules.Gear.Sets)
	}
	if len(rules.Gear.Slots) != 6 {
		t.Errorf("gear slots should keep defaults, got %d", len(rules.Gear.Slots))
	}
	if rules.Scoring.ReputableBonus != 0.3 || len(rules.Scoring.ReputableMarkers) != 2 {
		t.Errorf("scoring overlay wrong: %+v", rules.Scoring)
	}
	if rules.Characters.MaxBuilds != 2 || len(rules.Characters.Terms) != 9 {
		t.Errorf("characters overlay wrong: %+v", rules.Characters)
	}
}

func TestLoadRules_SchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown section", "pets:\n  terms: []\n"},
		{"unknown scoring field", "scoring:\n  wiki_bonus: 2\n"},
		{"bonus out of range", "scoring:\n  reputable_bonus: 1.5\n"},
		{"term without key", "runes:\n  terms:\n    - class: x\n"},
		{"wrong type", "context_length: long\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "schema validation failed") {
				t.Errorf("expected schema error, got %v", err)
			}
		})
	}
}

func TestLoadRules_Errors(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadRules(writeRules(t, "gear: [unclosed\n")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	rules, err := LoadRules(writeRules(t, "# nothing here\n"))
	if err != nil {
		t.Fatalf("comment-only file should load defaults: %v", err)
	}
	if len(rules.Runes.Terms) != 12 {
		t.Error("expected defaults for an empty document")
	}
}

func TestRules_Extractors(t *testing.T) {
	scorer, extractors, err := DefaultRules().Extractors()
	if err != nil {
		t.Fatalf("Extractors: %v", err)
	}
	if len(extractors) != 4 {
		t.Fatalf("expected 4 extractors, got %d", len(extractors))
	}
	for i, want := range extract.Categories {
		if extractors[i].Category() != want {
			t.Errorf("extractor %d: got %s want %s", i, extractors[i].Category(), want)
		}
	}

	entries := []ingest.Entry{{Content: "Oracle set with meteor rune", Source: "wiki"}}
	tables := extract.TablesFrom(extract.Run(entries, scorer, extractors...))
	if tables.Gear.Records["oracle"] == nil || tables.Runes.Records["meteor"] == nil {
		t.Errorf("default rules should extract oracle and meteor")
	}
}

func TestRules_ExtractorsCustomVocabulary(t *testing.T) {
	rules, err := LoadRules(writeRules(t, `
context_length: 20
scoring:
  reputable_markers: [fandom]
characters:
  terms:
    - key: kaelen
`))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	scorer, extractors, err := rules.Extractors()
	if err != nil {
		t.Fatalf("Extractors: %v", err)
	}
	tables := extract.TablesFrom(extract.Run([]ingest.Entry{
		{Content: "Kaelen is a tank", Source: "fandom"},
		{Content: "Thor is a tank"},
		{Content: "spent 500 gems on the weekly shop refresh again"},
	}, scorer, extractors...))

	if tables.Characters.Len() != 1 || tables.Characters.Records["kaelen"] == nil {
		t.Fatalf("expected only kaelen, got %v", tables.Characters.Keys())
	}
	if got := tables.Characters.Records["kaelen"].ConfidenceScores[0]; got != 0.3 {
		t.Errorf("expected fandom reputable bonus 0.3, got %f", got)
	}
	gems := tables.Materials.Records["gems"]
	if gems == nil {
		t.Fatalf("expected gems record, got %v", tables.Materials.Keys())
	}
	if got := gems.Contexts[0]; got != "spent 500 gems on th" {
		t.Errorf("expected material context cut to 20 runes, got %q", got)
	}
}

func TestRules_ExtractorsBadPattern(t *testing.T) {
	rules := DefaultRules()
	rules.Runes.Costs = []extract.TermSpec{{Key: "gems", Pattern: "(("}}
	if _, _, err := rules.Extractors(); err == nil || !strings.Contains(err.Error(), "runes.costs") {
		t.Errorf("expected runes.costs error, got %v", err)
	}
}
