package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestClassifyShape(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want Shape
	}{
		{"list", []interface{}{}, ShapeList},
		{"envelope", map[string]interface{}{"data": []interface{}{}}, ShapeEnvelope},
		{"data not a list", map[string]interface{}{"data": "x"}, ShapeGrouped},
		{"grouped", map[string]interface{}{"runes": []interface{}{}}, ShapeGrouped},
		{"single", map[string]interface{}{"content": "hi"}, ShapeSingle},
		{"scalar", 42.0, ShapeUnsupported},
		{"null", nil, ShapeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyShape(tt.raw); got != tt.want {
				t.Errorf("classifyShape = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFile_List(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.json", `[
		{"content": "Oracle set is great", "source": "wiki", "category": "gear", "confidence": 0.8},
		{"content": "Thor build", "source": "discord"}
	]`)

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	e := entries[0]
	if e.Content != "Oracle set is great" || e.Source != "wiki" || e.Category != "gear" {
		t.Errorf("unexpected first entry: %+v", e)
	}
	if e.Confidence == nil || *e.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", e.Confidence)
	}
	if e.SourceFile != "list.json" {
		t.Errorf("expected source file list.json, got %q", e.SourceFile)
	}
	if entries[1].Confidence != nil {
		t.Errorf("expected nil confidence, got %v", *entries[1].Confidence)
	}
}

func TestLoadFile_Envelope(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "env.json", `{"category": "runes", "data": [{"content": "Meteor rune"}, {"content": ""}]}`)

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("empty content must not be rejected by the loader; got %d entries", len(entries))
	}
	if entries[0].Category != "runes" {
		t.Errorf("expected envelope category, got %q", entries[0].Category)
	}
}

func TestLoadFile_GroupedFlattensOneLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "grouped.json", `{
		"runes": [{"content": "Sprite rune"}],
		"gear": ["Oracle set text", {"content": "Dragoon gear", "category": "override"}],
		"meta": {"nested": [{"content": "too deep"}]},
		"count": 3
	}`)

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	// Sorted keys: gear before runes.
	if entries[0].Content != "Oracle set text" || entries[0].Category != "gear" {
		t.Errorf("unexpected entry 0: %+v", entries[0])
	}
	if entries[1].Category != "override" {
		t.Errorf("entry category should win over group key, got %q", entries[1].Category)
	}
	if entries[2].Category != "runes" {
		t.Errorf("unexpected entry 2: %+v", entries[2])
	}
}

func TestLoadFile_FieldDecoding(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "odd.json", `[
		{"content": 12, "confidence": "0.5"},
		{"content": "x", "confidence": "high"},
		7
	]`)

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Content != "" {
		t.Errorf("non-string content should decode as empty, got %q", entries[0].Content)
	}
	if entries[0].Confidence == nil || *entries[0].Confidence != 0.5 {
		t.Errorf("numeric string confidence should parse, got %v", entries[0].Confidence)
	}
	if entries[1].Confidence != nil {
		t.Errorf("unparsable confidence should be absent")
	}
	if entries[2].Content != "" {
		t.Errorf("scalar element should yield empty content")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{"content": `)
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
	scalar := writeFile(t, dir, "scalar.json", `"just a string"`)
	if _, err := LoadFile(scalar); err == nil {
		t.Error("expected error for unsupported shape")
	}
	empty := writeFile(t, dir, "empty.json", "  \n")
	if _, err := LoadFile(empty); err == nil || !strings.Contains(err.Error(), "empty JSON document") {
		t.Errorf("expected empty document error, got %v", err)
	}
}

func TestLoadDirs_SkipsBadFilesAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"content": "first"}]`)
	writeFile(t, dir, "b.json", `not json`)
	writeFile(t, dir, "c.json", `{"data": [{"content": "third"}]}`)
	writeFile(t, dir, "d_blank.json", "\n\t ")
	writeFile(t, dir, "notes.txt", `ignored`)
	writeFile(t, dir, "sub/d.json", `[{"content": "nested"}]`)

	l := &Loader{}
	result := l.LoadDirs(dir)

	if result.FilesScanned != 4 {
		t.Errorf("expected 4 files scanned, got %d", result.FilesScanned)
	}
	if result.FilesLoaded != 2 {
		t.Errorf("expected 2 files loaded, got %d", result.FilesLoaded)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 load errors, got %d", len(result.Errors))
	}
	if filepath.Base(result.Errors[0].File) != "b.json" || filepath.Base(result.Errors[1].File) != "d_blank.json" {
		t.Errorf("unexpected error files %q, %q", result.Errors[0].File, result.Errors[1].File)
	}
	if len(result.Entries) != 2 || result.Entries[0].Content != "first" || result.Entries[1].Content != "third" {
		t.Errorf("unexpected entries: %+v", result.Entries)
	}
}

func TestLoadDirs_Recursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"content": "top"}]`)
	writeFile(t, dir, "sub/b.json", `[{"content": "nested"}]`)

	l := &Loader{Recursive: true}
	result := l.LoadDirs(dir)
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
}

func TestLoadDirs_EmptyAndMissing(t *testing.T) {
	l := &Loader{}
	result := l.LoadDirs(t.TempDir())
	if len(result.Entries) != 0 || len(result.Errors) != 0 {
		t.Errorf("empty directory should load nothing without errors: %+v", result)
	}

	result = l.LoadDirs(filepath.Join(t.TempDir(), "missing"))
	if len(result.Errors) != 1 {
		t.Errorf("missing directory should be a recorded error, got %d", len(result.Errors))
	}
}

func TestSourceLabel(t *testing.T) {
	if got := (Entry{Source: "wiki", SourceFile: "a.json"}).SourceLabel(); got != "wiki" {
		t.Errorf("got %q", got)
	}
	if got := (Entry{SourceFile: "a.json"}).SourceLabel(); got != "a.json" {
		t.Errorf("got %q", got)
	}
	if got := (Entry{}).SourceLabel(); got != "unknown" {
		t.Errorf("got %q", got)
	}
}
