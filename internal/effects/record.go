package effects

import (
	"encoding/json"
	"fmt"
)

// Category is the explicit behavior tag for an effect. Effects are matched by
// category, never by name prefix, so "Burn" and "Burning" can coexist without
// ambiguity.
type Category int

const (
	CategoryPassive Category = iota
	CategoryInstantDamage
	CategoryInstantHeal
	CategoryDamageOverTime
	CategoryHealOverTime
	CategoryShield
	CategoryThorns
	CategoryStun
	CategoryLimitBreak
)

var categoryNames = map[Category]string{
	CategoryPassive:        "PASSIVE",
	CategoryInstantDamage:  "INSTANT_DAMAGE",
	CategoryInstantHeal:    "INSTANT_HEAL",
	CategoryDamageOverTime: "DAMAGE_OVER_TIME",
	CategoryHealOverTime:   "HEAL_OVER_TIME",
	CategoryShield:         "SHIELD",
	CategoryThorns:         "THORNS",
	CategoryStun:           "STUN",
	CategoryLimitBreak:     "LIMIT_BREAK",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CATEGORY_%d", int(c))
}

// IsInstant reports whether the category resolves synchronously on add
// rather than persisting per-turn behavior.
func (c Category) IsInstant() bool {
	return c == CategoryInstantDamage || c == CategoryInstantHeal
}

// categoryTable maps well-known effect names to their behavior category.
// Unknown names default to CategoryPassive.
var categoryTable = map[string]Category{
	"Strike":       CategoryInstantDamage,
	"Mend":         CategoryInstantHeal,
	"Burn":         CategoryDamageOverTime,
	"Burning Soul": CategoryDamageOverTime,
	"Poison":       CategoryDamageOverTime,
	"Bleed":        CategoryDamageOverTime,
	"Regen":        CategoryHealOverTime,
	"Blessing":     CategoryHealOverTime,
	"Shield":       CategoryShield,
	"Barrier":      CategoryShield,
	"Thorns":       CategoryThorns,
	"Stun":         CategoryStun,
	"Limit Break":  CategoryLimitBreak,
}

// CategoryOf resolves the behavior category for an effect name.
func CategoryOf(name string) Category {
	if cat, ok := categoryTable[name]; ok {
		return cat
	}
	return CategoryPassive
}

// Record is one active status effect entry: name keyed per entity, with
// integer potency, remaining duration in turns, and the source entity for
// attribution (thorns reflection credits the original source).
type Record struct {
	Name     string `json:"name"`
	Potency  int    `json:"potency"`
	Duration int    `json:"duration"`
	SourceID int64  `json:"sourceId"`
}

// Validate checks the four-field schema. Duration must be positive while an
// entry exists; potency may be zero for marker effects like Stun.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("effect record: empty name")
	}
	if r.Duration <= 0 {
		return fmt.Errorf("effect record %q: non-positive duration %d", r.Name, r.Duration)
	}
	if r.Potency < 0 {
		return fmt.Errorf("effect record %q: negative potency %d", r.Name, r.Potency)
	}
	return nil
}

// Category resolves the record's behavior category.
func (r Record) Category() Category {
	return CategoryOf(r.Name)
}

// Encode serializes the record through the schema-checked codec.
func (r Record) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode effect record %q: %w", r.Name, err)
	}
	return data, nil
}

// DecodeRecord parses and validates a serialized record. Records failing the
// schema are rejected here so callers can skip them without corrupting the
// rest of the ledger.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode effect record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}
