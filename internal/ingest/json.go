package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Shape is the top-level layout of a scraped JSON document.
type Shape int

const (
	// ShapeUnsupported covers scalars and null.
	ShapeUnsupported Shape = iota
	// ShapeList is a top-level array of entries.
	ShapeList
	// ShapeEnvelope is an object carrying its entries under a "data" array.
	ShapeEnvelope
	// ShapeGrouped is an object mapping category -> array of entries.
	ShapeGrouped
	// ShapeSingle is a lone entry object (it has a "content" field).
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeEnvelope:
		return "envelope"
	case ShapeGrouped:
		return "grouped"
	case ShapeSingle:
		return "single"
	default:
		return "unsupported"
	}
}

// classifyShape inspects the decoded document once and names its layout.
func classifyShape(raw interface{}) Shape {
	switch v := raw.(type) {
	case []interface{}:
		return ShapeList
	case map[string]interface{}:
		if data, ok := v["data"]; ok {
			if _, isList := data.([]interface{}); isList {
				return ShapeEnvelope
			}
		}
		if _, ok := v["content"]; ok {
			return ShapeSingle
		}
		return ShapeGrouped
	default:
		return ShapeUnsupported
	}
}

// LoadFile parses one JSON file into entries.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("empty JSON document in %s", path)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	file := filepath.Base(path)
	shape := classifyShape(raw)

	switch shape {
	case ShapeList:
		return flattenList(raw.([]interface{}), "", file), nil
	case ShapeEnvelope:
		obj := raw.(map[string]interface{})
		return flattenList(obj["data"].([]interface{}), stringField(obj, "category"), file), nil
	case ShapeGrouped:
		return flattenGrouped(raw.(map[string]interface{}), file), nil
	case ShapeSingle:
		return []Entry{entryFromValue(raw, "", file)}, nil
	default:
		return nil, fmt.Errorf("unsupported top-level JSON shape in %s", path)
	}
}

func flattenList(items []interface{}, category, file string) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, entryFromValue(item, category, file))
	}
	return entries
}

// flattenGrouped descends exactly one level. Keys are visited in sorted
// order so output does not depend on map iteration.
func flattenGrouped(obj map[string]interface{}, file string) []Entry {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var entries []Entry
	for _, key := range keys {
		items, ok := obj[key].([]interface{})
		if !ok {
			continue
		}
		entries = append(entries, flattenList(items, key, file)...)
	}
	return entries
}

// entryFromValue never rejects an element: anything that is not an object or
// a string yields an entry with empty content, which is dropped downstream.
func entryFromValue(v interface{}, category, file string) Entry {
	e := Entry{Category: category, SourceFile: file}
	switch val := v.(type) {
	case map[string]interface{}:
		e.Content = stringField(val, "content")
		e.Source = stringField(val, "source")
		if c := stringField(val, "category"); c != "" {
			e.Category = c
		}
		e.Confidence = confidenceField(val["confidence"])
	case string:
		e.Content = val
	}
	return e
}

func stringField(obj map[string]interface{}, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

func confidenceField(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
