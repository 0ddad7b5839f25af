package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/loresmith/internal/clean"
	"github.com/hurttlocker/loresmith/internal/extract"
)

//go:embed rules.schema.json
var rulesSchemaJSON string

// Rules are the tunable extraction vocabularies and scoring weights.
type Rules struct {
	ContextLength int                `yaml:"context_length" json:"context_length"`
	Scoring       clean.ScoringRules `yaml:"scoring" json:"scoring"`
	Gear          GearRules          `yaml:"gear" json:"gear"`
	Runes         RuneRules          `yaml:"runes" json:"runes"`
	Characters    CharacterRules     `yaml:"characters" json:"characters"`
	Materials     MaterialRules      `yaml:"materials" json:"materials"`
}

// GearRules lists gear set and slot terms. Slot mentions at or below
// PieceThreshold confidence are dropped.
type GearRules struct {
	Sets           []extract.TermSpec `yaml:"sets" json:"sets"`
	Slots          []extract.TermSpec `yaml:"slots" json:"slots"`
	PieceThreshold float64            `yaml:"piece_threshold" json:"piece_threshold"`
}

// RuneRules lists rune terms and the cost units parsed from rune mentions.
type RuneRules struct {
	Terms []extract.TermSpec `yaml:"terms" json:"terms"`
	Costs []extract.TermSpec `yaml:"costs" json:"costs"`
}

// CharacterRules lists hero terms with the usage and role vocabularies
// matched alongside them.
type CharacterRules struct {
	Terms     []extract.TermSpec `yaml:"terms" json:"terms"`
	Usage     []extract.TermSpec `yaml:"usage" json:"usage"`
	Roles     []extract.TermSpec `yaml:"roles" json:"roles"`
	MaxBuilds int                `yaml:"max_builds" json:"max_builds"`
}

// MaterialRules lists material units; each pattern captures a quantity.
type MaterialRules struct {
	Terms []extract.TermSpec `yaml:"terms" json:"terms"`
}

// DefaultRules returns the built-in vocabularies and weights.
func DefaultRules() *Rules {
	return &Rules{
		ContextLength: extract.DefaultContextLength,
		Scoring:       clean.DefaultScoringRules(),
		Gear: GearRules{
			Sets:           extract.DefaultGearSets(),
			Slots:          extract.DefaultGearSlots(),
			PieceThreshold: 0.3,
		},
		Runes: RuneRules{
			Terms: extract.DefaultRunes(),
			Costs: extract.DefaultRuneCosts(),
		},
		Characters: CharacterRules{
			Terms:     extract.DefaultCharacters(),
			Usage:     extract.DefaultUsageTypes(),
			Roles:     extract.DefaultRoles(),
			MaxBuilds: 5,
		},
		Materials: MaterialRules{Terms: extract.DefaultMaterials()},
	}
}

// LoadRules reads a YAML rules file and overlays it on the defaults. Any
// section or field the file omits keeps its default. An empty path returns
// the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules %s: %w", path, err)
	}
	if err := ParseRules(b, rules); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules validates YAML against the rules schema, then decodes it onto
// dst.
func ParseRules(data []byte, dst *Rules) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if raw == nil {
		return nil
	}
	if err := validateRules(raw); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding rules: %w", err)
	}
	return nil
}

// Extractors compiles the vocabularies into a scorer and a fresh set of
// extractors, in category order.
func (r *Rules) Extractors() (*clean.Scorer, []extract.Extractor, error) {
	compile := func(name string, specs []extract.TermSpec) (extract.Vocabulary, error) {
		v, err := extract.Compile(specs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	sets, err := compile("gear.sets", r.Gear.Sets)
	if err != nil {
		return nil, nil, err
	}
	slots, err := compile("gear.slots", r.Gear.Slots)
	if err != nil {
		return nil, nil, err
	}
	runes, err := compile("runes.terms", r.Runes.Terms)
	if err != nil {
		return nil, nil, err
	}
	costs, err := compile("runes.costs", r.Runes.Costs)
	if err != nil {
		return nil, nil, err
	}
	heroes, err := compile("characters.terms", r.Characters.Terms)
	if err != nil {
		return nil, nil, err
	}
	usage, err := compile("characters.usage", r.Characters.Usage)
	if err != nil {
		return nil, nil, err
	}
	roles, err := compile("characters.roles", r.Characters.Roles)
	if err != nil {
		return nil, nil, err
	}
	materials, err := compile("materials.terms", r.Materials.Terms)
	if err != nil {
		return nil, nil, err
	}

	extractors := []extract.Extractor{
		extract.NewGearExtractor(sets, extract.GearOptions{
			Slots:          slots,
			PieceThreshold: r.Gear.PieceThreshold,
			ContextLen:     r.ContextLength,
		}),
		extract.NewRuneExtractor(runes, extract.RuneOptions{
			Costs:      costs,
			ContextLen: r.ContextLength,
		}),
		extract.NewCharacterExtractor(heroes, extract.CharacterOptions{
			Usage:      usage,
			Roles:      roles,
			MaxBuilds:  r.Characters.MaxBuilds,
			ContextLen: r.ContextLength,
		}),
		extract.NewMaterialExtractor(materials, extract.MaterialOptions{
			ContextLen: r.ContextLength,
		}),
	}
	return clean.NewScorer(r.Scoring), extractors, nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("rules.schema.json", strings.NewReader(rulesSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("rules.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})
	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	return compiledSchema, nil
}

// validateRules round-trips the YAML value through JSON so the validator
// sees json.Number values.
func validateRules(raw any) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("normalize rules: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("normalize rules: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
