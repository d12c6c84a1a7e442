// Package skillcode infers an actor's class and specialty slots from
// the skill codes observed on the wire, consuming a read-only JSON
// catalog (spec.md §6) when one is configured.
package skillcode

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// builtinClasses is the fallback origin-code -> class table from
// spec.md §6, used whenever no catalog file is configured or the
// catalog omits an origin code.
var builtinClasses = map[uint32]string{
	11020000: "GLADIATOR",
	12010000: "TEMPLAR",
	13010000: "ASSASSIN",
	14340000: "RANGER",
	15210000: "SORCERER",
	16010000: "ELEMENTALIST",
	17010000: "CLERIC",
	18010000: "CHANTER",
}

// Entry is one record of the skill-code catalog document.
type Entry struct {
	Code  uint32 `json:"code"`
	Class string `json:"class,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Catalog is an immutable, read-only view over the skill-code
// catalog plus the built-in class table. Safe for concurrent reads.
type Catalog struct {
	classByOrigin map[uint32]string
}

// Load reads a JSON catalog document from path. A missing or
// unreadable file is not fatal — Load falls back to the built-in
// class table alone, matching spec.md §7 kind 7 ("catalog absent"
// degrades actor_class inference, it never aborts startup).
func Load(path string) (*Catalog, error) {
	c := &Catalog{classByOrigin: cloneBuiltin()}

	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "skillcode: catalog unavailable, using built-in table")
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return c, errors.Wrap(err, "skillcode: catalog malformed, using built-in table")
	}

	for _, e := range entries {
		if e.Class != "" {
			c.classByOrigin[e.Code] = e.Class
		}
	}

	return c, nil
}

func cloneBuiltin() map[uint32]string {
	m := make(map[uint32]string, len(builtinClasses))
	for k, v := range builtinClasses {
		m[k] = v
	}
	return m
}

// OriginCode zeroes the low four decimal digits of a skill code, per
// spec.md §3's "original code" heuristic. Kept separate from
// ClassForOrigin so the inference failure and the specialty-slot
// parse (always possible) can be tracked independently.
func OriginCode(code uint32) uint32 {
	return code - code%10000
}

// SpecialtySlots extracts the three decimal digits encoded in the low
// four digits of a skill code (thousands, hundreds, tens position),
// dropping zeros and returning them sorted ascending.
func SpecialtySlots(code uint32) []int {
	last4 := code % 10000
	slot1 := int(last4/1000) % 10
	slot2 := int(last4/100) % 10
	slot3 := int(last4/10) % 10

	var slots []int
	for _, s := range []int{slot1, slot2, slot3} {
		if s > 0 {
			slots = append(slots, s)
		}
	}
	sortInts(slots)
	return slots
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ClassForOrigin looks up the class for an already-derived origin
// code. The bool is false when neither the catalog nor the built-in
// table recognizes the origin.
func (c *Catalog) ClassForOrigin(origin uint32) (string, bool) {
	class, ok := c.classByOrigin[origin]
	return class, ok
}
