package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hurttlocker/loresmith/internal/config"
	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/report"
	"github.com/hurttlocker/loresmith/internal/store"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func corpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "a_wiki.json", `[
		{"content": "The Oracle set gives +20% damage at 4-piece, great for PvE boss fights", "source": "wiki"},
		{"content": "Meteor rune costs 500 gems", "source": "wiki"},
		{"content": "", "source": "wiki"}
	]`)
	writeFile(t, dir, "b_discord.json", `{"data": [
		{"content": "The Oracle set gives +20% damage at 4-piece, great for PvE boss fights", "source": "discord"},
		{"content": "Thor is a tank for pvp", "source": "discord"},
		{"content": "nothing useful here", "source": "discord"}
	]}`)
	writeFile(t, dir, "c_broken.json", `{"data": [`)
	return dir
}

func TestRun(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	res, err := Run(Options{InputDirs: []string{corpus(t)}, Logger: &logger})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := res.Report.Summary
	if s.TotalRawEntries != 6 || s.CleanedEntries != 4 || s.DuplicatesRemoved != 1 || s.InvalidEntries != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.CleaningEfficiency != "66.7%" {
		t.Errorf("unexpected efficiency %q", s.CleaningEfficiency)
	}
	if len(res.LoadErrors) != 1 || !strings.Contains(res.LoadErrors[0].File, "c_broken.json") {
		t.Errorf("expected broken file recorded, got %v", res.LoadErrors)
	}
	if !strings.Contains(logs.String(), "skipping unreadable input") {
		t.Error("expected a warning for the broken file")
	}

	tables := res.ByCategory()
	oracle := tables.Gear.Records["oracle"]
	if oracle == nil || oracle.Mentions != 1 || oracle.Sources[0] != "wiki" {
		t.Fatalf("expected the wiki oracle entry to survive dedupe, got %+v", oracle)
	}
	if oracle.Bonuses["4_piece"].Value != "20" {
		t.Errorf("expected 4-piece bonus, got %+v", oracle.Bonuses)
	}
	if tables.Runes.Records["meteor"] == nil || tables.Characters.Records["thor"] == nil {
		t.Error("expected meteor and thor records")
	}
	if g := tables.Materials.Records["gems"]; g == nil || *g.TotalQuantity != 500 {
		t.Errorf("expected 500 gems, got %+v", g)
	}
}

func TestRun_EmptyDir(t *testing.T) {
	res, err := Run(Options{InputDirs: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := res.Report.Summary
	if s.TotalRawEntries != 0 || s.CleanedEntries != 0 || s.CleaningEfficiency != "0%" {
		t.Errorf("unexpected summary %+v", s)
	}
	for _, table := range res.Tables {
		if table.Len() != 0 {
			t.Errorf("%s: expected no records", table.Category)
		}
	}
	if len(res.Tables) != 4 {
		t.Errorf("expected four empty tables, got %d", len(res.Tables))
	}
}

func TestRun_BadRules(t *testing.T) {
	rules := config.DefaultRules()
	rules.Gear.Sets = append(rules.Gear.Sets, rules.Gear.Sets[0])
	if _, err := Run(Options{Rules: rules}); err == nil {
		t.Error("expected error for duplicate vocabulary key")
	}
}

func TestSave(t *testing.T) {
	res, err := Run(Options{InputDirs: []string{corpus(t)}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	out := filepath.Join(t.TempDir(), "processed")
	ctx := context.Background()
	saved, err := Save(ctx, res, SaveOptions{OutputDir: out, Store: st, KeepRuns: 1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.RunID != res.Report.RunID {
		t.Errorf("unexpected run id %s", saved.RunID)
	}
	// 4 tables + database + 4 csv + quality report
	if len(saved.Files) != 10 {
		t.Errorf("expected 10 files, got %d: %v", len(saved.Files), saved.Files)
	}
	for _, f := range saved.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing output %s: %v", f, err)
		}
	}

	qr, err := report.ReadQualityReport(filepath.Join(out, report.QualityFile))
	if err != nil {
		t.Fatalf("ReadQualityReport: %v", err)
	}
	if qr.RunID != res.Report.RunID {
		t.Errorf("report run id mismatch")
	}

	rec, err := st.GetRecord(ctx, extract.CategoryGear, "oracle")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.RunID != res.Report.RunID || rec.Mentions != 1 {
		t.Errorf("unexpected stored record %+v", rec)
	}

	// a second run replaces the first when only one is kept
	res2, _ := Run(Options{InputDirs: []string{corpus(t)}})
	if _, err := Save(ctx, res2, SaveOptions{OutputDir: out, Store: st, KeepRuns: 1, SkipCSV: true}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	stats, _ := st.Stats(ctx)
	if stats.RunCount != 1 {
		t.Errorf("expected a single retained run, got %d", stats.RunCount)
	}
}
