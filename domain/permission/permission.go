// Package permission provides value types for permission tiers and the
// waterfall resolution of tier-scoped setting overrides.
package permission

import "sort"

// Tier is a single permission level. Higher Order means more privilege.
type Tier struct {
	ID    string
	Name  string
	Order int
}

// Catalog is the ordered set of tiers known to the bot.
type Catalog []Tier

// Well-known tier identifiers matching the default catalog.
const (
	Caster     = "casters"
	Moderator  = "moderators"
	Subscriber = "subscribers"
	Viewer     = "viewers"
)

// Default returns the built-in catalog. Viewers is the broadest tier and
// seeds command and parser permission defaults.
func Default() Catalog {
	return Catalog{
		{ID: Caster, Name: "Casters", Order: 4},
		{ID: Moderator, Name: "Moderators", Order: 3},
		{ID: Subscriber, Name: "Subscribers", Order: 2},
		{ID: Viewer, Name: "Viewers", Order: 1},
	}
}

// Sorted returns a copy ordered by Order descending, ties broken by ID.
func (c Catalog) Sorted() Catalog {
	out := make(Catalog, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order > out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Lowest returns the broadest tier (smallest Order). ok is false for an
// empty catalog.
func (c Catalog) Lowest() (Tier, bool) {
	if len(c) == 0 {
		return Tier{}, false
	}
	s := c.Sorted()
	return s[len(s)-1], true
}

// ByID looks a tier up by its identifier.
func (c Catalog) ByID(id string) (Tier, bool) {
	for _, t := range c {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Waterfall resolves one value per tier from sparse per-tier overrides.
//
// Tiers are walked from the broadest to the most privileged. The broadest
// tier resolves to its own override when present, otherwise to fallback.
// When fillDefaults is set, every other tier without an override inherits
// the value resolved immediately before it in the walk. When fillDefaults
// is unset only the broadest tier gets the fallback; any other tier
// without an override surfaces an explicit nil, never an inherited value.
//
// An empty catalog yields an empty map.
func Waterfall(c Catalog, overrides map[string]any, fallback any, fillDefaults bool) map[string]any {
	out := make(map[string]any, len(c))
	if len(c) == 0 {
		return out
	}

	sorted := c.Sorted()
	var last any
	for i := len(sorted) - 1; i >= 0; i-- {
		t := sorted[i]
		v, ok := overrides[t.ID]
		switch {
		case ok:
			out[t.ID] = v
		case i == len(sorted)-1:
			// Broadest tier always seeds from the module field value.
			out[t.ID] = fallback
		case fillDefaults:
			out[t.ID] = last
		default:
			out[t.ID] = nil
		}
		last = out[t.ID]
	}
	return out
}
