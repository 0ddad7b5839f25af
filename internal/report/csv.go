package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hurttlocker/loresmith/internal/extract"
)

// csvFiles maps a category to its tabular view file name.
var csvFiles = map[string]string{
	extract.CategoryGear:      "gear_table.csv",
	extract.CategoryRunes:     "rune_table.csv",
	extract.CategoryCharacter: "character_table.csv",
	extract.CategoryMaterials: "materials_table.csv",
}

// CSVFileName returns the tabular view file for a category.
func CSVFileName(category string) string {
	if name, ok := csvFiles[category]; ok {
		return name
	}
	return category + "_table.csv"
}

var baseColumns = []string{"name", "classification", "mention_count", "best_context", "sources"}

func extraColumns(category string) []string {
	switch category {
	case extract.CategoryGear:
		return []string{"pieces", "bonuses"}
	case extract.CategoryRunes:
		return []string{"effects", "costs"}
	case extract.CategoryCharacter:
		return []string{"usage_types", "builds"}
	case extract.CategoryMaterials:
		return []string{"total_quantity"}
	}
	return nil
}

func extraValues(category string, r *extract.Record) []string {
	switch category {
	case extract.CategoryGear:
		slots := make([]string, 0, len(r.Pieces))
		for slot := range r.Pieces {
			slots = append(slots, slot)
		}
		sort.Strings(slots)
		tiers := make([]string, 0, len(r.Bonuses))
		for tier := range r.Bonuses {
			tiers = append(tiers, tier)
		}
		sort.Strings(tiers)
		bonuses := make([]string, len(tiers))
		for i, tier := range tiers {
			bonuses[i] = strings.Replace(tier, "_", "-", 1) + ": " + r.Bonuses[tier].Text
		}
		return []string{strings.Join(slots, "; "), strings.Join(bonuses, "; ")}
	case extract.CategoryRunes:
		return []string{strings.Join(r.Effects, "; "), strings.Join(r.Costs, "; ")}
	case extract.CategoryCharacter:
		return []string{strings.Join(r.UsageTypes, "; "), strconv.Itoa(len(r.Builds))}
	case extract.CategoryMaterials:
		total := int64(0)
		if r.TotalQuantity != nil {
			total = *r.TotalQuantity
		}
		return []string{strconv.FormatInt(total, 10)}
	}
	return nil
}

// Rows renders a table as CSV rows, header first, records sorted by name.
func Rows(t *extract.Table) [][]string {
	header := append(append([]string{}, baseColumns...), extraColumns(t.Category)...)
	rows := [][]string{header}
	for _, name := range t.Keys() {
		r := t.Records[name]
		row := []string{
			name,
			r.Classification,
			strconv.Itoa(r.Mentions),
			r.BestContext(),
			strings.Join(r.Sources, "; "),
		}
		rows = append(rows, append(row, extraValues(t.Category, r)...))
	}
	return rows
}

// WriteCSV writes one tabular view per table and returns the paths written.
func WriteCSV(dir string, tables []*extract.Table) ([]string, error) {
	var written []string
	for _, t := range tables {
		name := CSVFileName(t.Category)
		rows := Rows(t)
		err := writeAtomic(dir, name, func(f *os.File) error {
			w := csv.NewWriter(f)
			if err := w.WriteAll(rows); err != nil {
				return err
			}
			return w.Error()
		})
		if err != nil {
			return written, err
		}
		written = append(written, filepath.Join(dir, name))
	}
	return written, nil
}
