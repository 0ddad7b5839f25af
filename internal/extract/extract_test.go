package extract

import (
	"math"
	"reflect"
	"testing"

	"github.com/hurttlocker/loresmith/internal/clean"
	"github.com/hurttlocker/loresmith/internal/ingest"
)

func defaultExtractors() []Extractor {
	return []Extractor{
		NewGearExtractor(MustCompile(DefaultGearSets()), GearOptions{}),
		NewRuneExtractor(MustCompile(DefaultRunes()), RuneOptions{}),
		NewCharacterExtractor(MustCompile(DefaultCharacters()), CharacterOptions{}),
		NewMaterialExtractor(MustCompile(DefaultMaterials()), MaterialOptions{}),
	}
}

func runDefault(entries ...ingest.Entry) Tables {
	scorer := clean.NewScorer(clean.DefaultScoringRules())
	return TablesFrom(Run(entries, scorer, defaultExtractors()...))
}

func TestGear_OracleScenario(t *testing.T) {
	tables := runDefault(ingest.Entry{
		Content: "The Oracle set gives +20% damage at 4-piece, great for PvE boss fights",
		Source:  "wiki",
	})

	r, ok := tables.Gear.Records["oracle"]
	if !ok {
		t.Fatalf("expected oracle record, got keys %v", tables.Gear.Keys())
	}
	if r.Mentions != 1 {
		t.Errorf("expected 1 mention, got %d", r.Mentions)
	}
	if r.ConfidenceScores[0] < 0.8 {
		t.Errorf("expected confidence >= 0.8, got %f", r.ConfidenceScores[0])
	}
	b, ok := r.Bonuses["4_piece"]
	if !ok {
		t.Fatalf("expected 4_piece bonus, got %+v", r.Bonuses)
	}
	if b.Value != "20" || b.Stat != "damage" {
		t.Errorf("unexpected bonus %+v", b)
	}
	if b.Text != "+20% damage" {
		t.Errorf("unexpected bonus text %q", b.Text)
	}
	if r.Classification != "set" {
		t.Errorf("expected classification set, got %q", r.Classification)
	}
	if tables.Gear.Len() != 1 {
		t.Errorf("expected only oracle, got %v", tables.Gear.Keys())
	}
}

func TestGear_NonBreakingSpaces(t *testing.T) {
	tables := runDefault(ingest.Entry{
		Content: "The Oracle\u00a0set gives +20%\u00a0damage at 4-piece",
		Source:  "wiki",
	})
	r, ok := tables.Gear.Records["oracle"]
	if !ok || r.Mentions != 1 {
		t.Fatalf("expected one oracle mention, got keys %v", tables.Gear.Keys())
	}
	if b := r.Bonuses["4_piece"]; b.Value != "20" || b.Stat != "damage" {
		t.Errorf("unexpected bonus %+v", r.Bonuses)
	}
}

func TestGear_PiecesFilteredAndDominantSlot(t *testing.T) {
	tables := runDefault(
		ingest.Entry{
			Content: "Dragoon set with the dragoon boots and helmet is the best damage build guide around",
			Source:  "wiki",
		},
		ingest.Entry{Content: "dragoon armor chest", Source: ""},
	)
	r := tables.Gear.Records["dragoon"]
	if r == nil {
		t.Fatal("expected dragoon record")
	}
	if r.Mentions != 2 {
		t.Errorf("expected 2 mentions, got %d", r.Mentions)
	}
	if _, ok := r.Pieces["chest"]; ok {
		t.Errorf("low-confidence chest piece should be dropped: %+v", r.Pieces["chest"])
	}
	if len(r.Pieces["boots"]) != 1 || len(r.Pieces["helmet"]) != 1 {
		t.Errorf("expected boots and helmet pieces, got %+v", r.Pieces)
	}
	if r.Classification != "boots" {
		t.Errorf("expected boots to win the tie by slot order, got %q", r.Classification)
	}
	for _, p := range r.Pieces["boots"] {
		if p.Confidence <= 0.3 {
			t.Errorf("retained piece below threshold: %+v", p)
		}
		if p.Source != "wiki" {
			t.Errorf("unexpected piece source %q", p.Source)
		}
	}
}

func TestGear_BonusHighestConfidenceWins(t *testing.T) {
	g := NewGearExtractor(MustCompile(DefaultGearSets()), GearOptions{})
	e := ingest.Entry{Source: "x"}
	g.Observe(Observation{Entry: e, Text: "oracle set 2-piece 10% attack", Confidence: 0.4})
	g.Observe(Observation{Entry: e, Text: "oracle set 2-piece 15% crit", Confidence: 0.9})
	g.Observe(Observation{Entry: e, Text: "oracle set 2-piece 99 hp", Confidence: 0.9})
	table := g.Finalize()

	b := table.Records["oracle"].Bonuses["2_piece"]
	if b.Value != "15" || b.Stat != "crit" {
		t.Errorf("expected first highest-confidence bonus, got %+v", b)
	}
}

func TestParseBonuses_NearestStat(t *testing.T) {
	got := parseBonuses("2-piece gives 10 attack, and the 4-piece gives 25% hp", defaultTierPattern, defaultStatPattern)
	if got["2_piece"].Stat != "attack" || got["2_piece"].Text != "+10 attack" {
		t.Errorf("unexpected 2-piece bonus %+v", got["2_piece"])
	}
	if got["4_piece"].Stat != "hp" || got["4_piece"].Value != "25" {
		t.Errorf("unexpected 4-piece bonus %+v", got["4_piece"])
	}
	if parseBonuses("4-piece bonus is nice", defaultTierPattern, defaultStatPattern) != nil {
		t.Error("expected nil without a stat literal")
	}
}

func TestRune_EffectsAndCosts(t *testing.T) {
	tables := runDefault(
		ingest.Entry{Content: "Meteor rune adds 30% damage and costs 500 gems or 1,000 gold", Source: "discord"},
		ingest.Entry{Content: "meteor rune 30% again, also 12.5% crit", Source: "reddit"},
	)
	r := tables.Runes.Records["meteor"]
	if r == nil {
		t.Fatalf("expected meteor record, got %v", tables.Runes.Keys())
	}
	if !reflect.DeepEqual(r.Effects, []string{"30%", "12.5%"}) {
		t.Errorf("unexpected effects %v", r.Effects)
	}
	if !reflect.DeepEqual(r.Costs, []string{"500 gems", "1000 gold"}) {
		t.Errorf("unexpected costs %v", r.Costs)
	}
	if r.Classification != "offensive" {
		t.Errorf("unexpected classification %q", r.Classification)
	}
	if !reflect.DeepEqual(r.Sources, []string{"discord", "reddit"}) {
		t.Errorf("unexpected sources %v", r.Sources)
	}
}

func TestRune_CostNeedsWordBoundary(t *testing.T) {
	tables := runDefault(ingest.Entry{Content: "sword rune gives 4 great hits"})
	r := tables.Runes.Records["sword"]
	if r == nil {
		t.Fatal("expected sword record")
	}
	if len(r.Costs) != 0 {
		t.Errorf("expected no costs, got %v", r.Costs)
	}
}

func TestCharacter_UsageBuildsRoles(t *testing.T) {
	entries := []ingest.Entry{
		{Content: "Thor build for PvP and arena, great tank"},
		{Content: "thor is a tank in gvg"},
		{Content: "thor damage dealer"},
	}
	for i := 0; i < 6; i++ {
		entries = append(entries, ingest.Entry{Content: "thor strategy number " + string(rune('a'+i))})
	}
	tables := runDefault(entries...)

	r := tables.Characters.Records["thor"]
	if r == nil {
		t.Fatal("expected thor record")
	}
	if !reflect.DeepEqual(r.UsageTypes, []string{"pvp", "arena", "gvg"}) {
		t.Errorf("unexpected usage types %v", r.UsageTypes)
	}
	if len(r.Builds) != 5 {
		t.Errorf("expected builds capped at 5, got %d", len(r.Builds))
	}
	if r.Roles["tank"] != 2 || r.Roles["dps"] != 1 {
		t.Errorf("unexpected roles %v", r.Roles)
	}
	if r.Classification != "tank" {
		t.Errorf("expected tank, got %q", r.Classification)
	}
	if _, ok := tables.Characters.Records["dracoola"]; ok {
		t.Error("dracoola must not match without mention")
	}
}

func TestCharacter_DefaultClassWithoutRole(t *testing.T) {
	tables := runDefault(ingest.Entry{Content: "dracoola is fun"})
	if _, ok := tables.Characters.Records["drac"]; ok {
		t.Error("drac should not match inside dracoola")
	}
	r := tables.Characters.Records["dracoola"]
	if r == nil || r.Classification != "hero" {
		t.Fatalf("expected dracoola classified as hero, got %+v", r)
	}
}

func TestMaterial_Quantities(t *testing.T) {
	tables := runDefault(
		ingest.Entry{Content: "I spent 1,200 gems and 50 gold plus 3 keys"},
		ingest.Entry{Content: "another 300 gems"},
		ingest.Entry{Content: "about 1.5 gems lost"},
	)
	gems := tables.Materials.Records["gems"]
	if gems == nil {
		t.Fatal("expected gems record")
	}
	if gems.Mentions != 3 {
		t.Errorf("expected 3 mentions, got %d", gems.Mentions)
	}
	if gems.TotalQuantity == nil || *gems.TotalQuantity != 1500 {
		t.Errorf("expected total 1500, got %v", gems.TotalQuantity)
	}
	if gems.Classification != "currency" {
		t.Errorf("unexpected classification %q", gems.Classification)
	}
	if k := tables.Materials.Records["keys"]; k == nil || *k.TotalQuantity != 3 {
		t.Errorf("expected keys total 3, got %+v", k)
	}
	if g := tables.Materials.Records["gold"]; g == nil || *g.TotalQuantity != 50 {
		t.Errorf("expected gold total 50, got %+v", g)
	}
}

func TestRun_NoVocabulary(t *testing.T) {
	tables := runDefault(ingest.Entry{Content: "hello there friends, nice weather"})
	for _, table := range tables.All() {
		if table.Len() != 0 {
			t.Errorf("%s: expected no records, got %v", table.Category, table.Keys())
		}
	}
	if len(tables.All()) != 4 {
		t.Errorf("expected four tables, got %d", len(tables.All()))
	}
}

func TestRun_SkipsEmptyAfterNormalize(t *testing.T) {
	tables := runDefault(ingest.Entry{Content: "<@1> https://x.y/oracle-set"})
	if tables.Gear.Len() != 0 {
		t.Errorf("expected no gear records, got %v", tables.Gear.Keys())
	}
}

func TestRecordCountsAgree(t *testing.T) {
	tables := runDefault(
		ingest.Entry{Content: "Oracle set and meteor rune with thor for 100 gems", Source: "wiki"},
		ingest.Entry{Content: "oracle gear again, thor and helix, 5 shards", Source: "discord"},
		ingest.Entry{Content: "griffin armor, fire rune, loki pvp build, 10 cores"},
	)
	for _, table := range tables.All() {
		for _, k := range table.Keys() {
			r := table.Records[k]
			if r.Mentions != len(r.ConfidenceScores) || r.Mentions != len(r.Contexts) {
				t.Errorf("%s/%s: mentions %d, scores %d, contexts %d",
					table.Category, k, r.Mentions, len(r.ConfidenceScores), len(r.Contexts))
			}
			if math.Abs(r.AvgConfidence-Mean(r.ConfidenceScores)) > 1e-12 {
				t.Errorf("%s/%s: avg %f does not match scores", table.Category, k, r.AvgConfidence)
			}
			for _, c := range r.Contexts {
				if len([]rune(c)) > DefaultContextLength {
					t.Errorf("%s/%s: context too long", table.Category, k)
				}
			}
		}
	}
}

func TestFinalize_ZeroMentionsAverage(t *testing.T) {
	r := newRecord("empty")
	r.finalizeAverage()
	if r.AvgConfidence != 0.0 {
		t.Errorf("expected 0.0, got %f", r.AvgConfidence)
	}
	if Mean(nil) != 0 {
		t.Error("Mean(nil) should be 0")
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	g := NewGearExtractor(MustCompile(DefaultGearSets()), GearOptions{})
	g.Observe(Observation{Entry: ingest.Entry{}, Text: "mythic set boots", Confidence: 0.2})
	first := g.Finalize()
	second := g.Finalize()
	if first.Records["mythic"] != second.Records["mythic"] {
		t.Error("expected the same record after a second finalize")
	}
	if first.Records["mythic"].Classification != "set" {
		t.Errorf("expected set, got %q", first.Records["mythic"].Classification)
	}
}

func TestBestContext(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"a", "bbb", "ccc", "dd"}, "bbb"},
		{[]string{"ééé", "abc"}, "ééé"},
		{[]string{"", ""}, ""},
	}
	for _, tt := range tests {
		if got := BestContext(tt.in); got != tt.want {
			t.Errorf("BestContext(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCustomVocabulary(t *testing.T) {
	vocab, err := Compile([]TermSpec{{Key: "Phoenix", Class: "set"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g := NewGearExtractor(vocab, GearOptions{})
	g.Observe(Observation{Text: "the phoenix shines", Confidence: 0.5})
	g.Observe(Observation{Text: "phoenixes are not a match", Confidence: 0.5})
	table := g.Finalize()
	if r := table.Records["phoenix"]; r == nil || r.Mentions != 1 {
		t.Errorf("expected exactly one phoenix mention, got %+v", r)
	}
}

func TestCompile_Errors(t *testing.T) {
	if _, err := Compile([]TermSpec{{Key: " "}}); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := Compile([]TermSpec{{Key: "a"}, {Key: "A"}}); err == nil {
		t.Error("expected error for duplicate key")
	}
	if _, err := Compile([]TermSpec{{Key: "a", Pattern: "("}}); err == nil {
		t.Error("expected error for bad pattern")
	}
	v := MustCompile(DefaultRunes())
	if len(v) != 12 {
		t.Errorf("expected 12 runes, got %d", len(v))
	}
	specs := v.Specs()
	if specs[0].Key != "meteor" || specs[0].Pattern == "" {
		t.Errorf("unexpected spec round trip %+v", specs[0])
	}
}
