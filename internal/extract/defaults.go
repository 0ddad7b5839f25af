package extract

import "fmt"

// Category names used for output files, tables and store rows.
const (
	CategoryGear      = "gear_sets"
	CategoryRunes     = "runes"
	CategoryCharacter = "characters"
	CategoryMaterials = "materials"
)

// Categories lists the categories in output order.
var Categories = []string{CategoryGear, CategoryRunes, CategoryCharacter, CategoryMaterials}

// DefaultContextLength caps every context snippet.
const DefaultContextLength = 200

func gearSetSpec(name string) TermSpec {
	return TermSpec{
		Key:     name,
		Class:   "set",
		Pattern: fmt.Sprintf(`(?i)\b%s\s+(?:set|gear|armor|weapon|amulet|ring|chest|boots|helmet)`, name),
	}
}

func runeSpec(name, class string) TermSpec {
	return TermSpec{
		Key:     name,
		Class:   class,
		Pattern: fmt.Sprintf(`(?i)\b%s\s+(?:rune|etched)`, name),
	}
}

// DefaultGearSets returns the stock gear-set vocabulary.
func DefaultGearSets() []TermSpec {
	return []TermSpec{
		gearSetSpec("oracle"),
		gearSetSpec("dragoon"),
		gearSetSpec("griffin"),
		gearSetSpec("chromatic"),
		gearSetSpec("mythic"),
	}
}

// DefaultGearSlots returns the sub-slot vocabulary checked inside gear mentions.
func DefaultGearSlots() []TermSpec {
	return []TermSpec{
		{Key: "weapon", Pattern: `(?i)\b(?:crossbow|xbow|spear|staff|bow)s?\b`},
		{Key: "amulet", Pattern: `(?i)\b(?:amulet|necklace)s?\b`},
		{Key: "ring", Pattern: `(?i)\b(?:ring|band)s?\b`},
		{Key: "chest", Pattern: `(?i)\b(?:chest|chestplate|armor|plate)s?\b`},
		{Key: "boots", Pattern: `(?i)\b(?:boots|shoes)\b`},
		{Key: "helmet", Pattern: `(?i)\b(?:helmet|helm|hat)s?\b`},
	}
}

// DefaultRunes returns the stock rune vocabulary.
func DefaultRunes() []TermSpec {
	return []TermSpec{
		runeSpec("meteor", "offensive"),
		runeSpec("sprite", "offensive"),
		runeSpec("elemental", "elemental"),
		{Key: "etched", Class: "modifier", Pattern: `(?i)\betched\s+rune`},
		runeSpec("circle", "offensive_aoe"),
		runeSpec("potion", "sustain"),
		runeSpec("sword", "offensive"),
		runeSpec("shield", "defensive"),
		runeSpec("freeze", "elemental_control"),
		runeSpec("ice", "elemental_control"),
		runeSpec("fire", "elemental_burst"),
		runeSpec("lightning", "elemental"),
	}
}

// DefaultRuneCosts returns the unit patterns recognized as rune costs. Group 1
// is the amount; the key is the canonical unit.
func DefaultRuneCosts() []TermSpec {
	return []TermSpec{
		{Key: "gems", Pattern: `(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*gems?\b`},
		{Key: "gold", Pattern: `(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:gold|g)\b`},
		{Key: "lures", Pattern: `(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*lures?\b`},
	}
}

// DefaultCharacters returns the stock hero vocabulary.
func DefaultCharacters() []TermSpec {
	names := []string{"thor", "otta", "helix", "drac", "rolla", "loki", "atreyus", "nyanja", "dracoola"}
	specs := make([]TermSpec, len(names))
	for i, n := range names {
		specs[i] = TermSpec{Key: n, Class: "hero"}
	}
	return specs
}

// DefaultRoles returns the role vocabulary. The first matching role wins for
// a given mention.
func DefaultRoles() []TermSpec {
	return []TermSpec{
		{Key: "tank", Pattern: `(?i)\btank\b`},
		{Key: "dps", Pattern: `(?i)\b(?:dps|damage)\b`},
		{Key: "support", Pattern: `(?i)\bsupport\b`},
	}
}

// DefaultMaterials returns the material-unit vocabulary. Group 1 is the
// quantity.
func DefaultMaterials() []TermSpec {
	return []TermSpec{
		{Key: "shards", Class: "upgrade", Pattern: `(?i)(\d+)\s*(?:shards?|fragments?)\b`},
		{Key: "gems", Class: "currency", Pattern: `(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*gems?\b`},
		{Key: "gold", Class: "currency", Pattern: `(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:gold|g)\b`},
		{Key: "lures", Class: "currency", Pattern: `(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*lures?\b`},
		{Key: "keys", Class: "upgrade", Pattern: `(?i)(\d+)\s*(?:keys?|tokens?)\b`},
		{Key: "cores", Class: "upgrade", Pattern: `(?i)(\d+)\s*(?:cores?|essence)\b`},
		{Key: "stones", Class: "upgrade", Pattern: `(?i)(\d+)\s*(?:stones?|crystals?)\b`},
	}
}

// DefaultUsageTypes returns the game-mode tags collected for characters.
func DefaultUsageTypes() []TermSpec {
	return []TermSpec{
		{Key: "pvp"},
		{Key: "pve"},
		{Key: "arena"},
		{Key: "gvg", Pattern: `(?i)\b(?:gvg|guild\s*vs\.?\s*guild)\b`},
	}
}
