package forecast

import "strings"

// Archetype is a coarse seasonal demand profile used when a category lacks
// enough history for regression.
type Archetype int

const (
	ArchetypeNone Archetype = iota
	ArchetypeBeverage
	ArchetypeFrozen
	ArchetypeStationery
	ArchetypeSnacks
	ArchetypePerishable
	ArchetypeGeneral
)

var archetypeNames = map[Archetype]string{
	ArchetypeNone:       "none",
	ArchetypeBeverage:   "beverage",
	ArchetypeFrozen:     "frozen",
	ArchetypeStationery: "stationery",
	ArchetypeSnacks:     "snacks",
	ArchetypePerishable: "perishable",
	ArchetypeGeneral:    "general",
}

func (a Archetype) String() string {
	if name, ok := archetypeNames[a]; ok {
		return name
	}
	return "unknown"
}

// categoryArchetypes maps normalized category names to their profile.
var categoryArchetypes = map[string]Archetype{
	"soft drinks":           ArchetypeBeverage,
	"hard drinks":           ArchetypeBeverage,
	"beverages":             ArchetypeBeverage,
	"juices":                ArchetypeBeverage,
	"frozen foods":          ArchetypeFrozen,
	"ice cream":             ArchetypeFrozen,
	"stationery":            ArchetypeStationery,
	"books":                 ArchetypeStationery,
	"snack foods":           ArchetypeSnacks,
	"snacks":                ArchetypeSnacks,
	"fruits & vegetables":   ArchetypePerishable,
	"fruits and vegetables": ArchetypePerishable,
	"dairy":                 ArchetypePerishable,
	"meat":                  ArchetypePerishable,
	"seafood":               ArchetypePerishable,
	"breads":                ArchetypePerishable,
	"breakfast":             ArchetypePerishable,
	"baking goods":          ArchetypeGeneral,
	"starchy foods":         ArchetypeGeneral,
	"canned":                ArchetypeGeneral,
	"household":             ArchetypeGeneral,
	"health and hygiene":    ArchetypeGeneral,
	"others":                ArchetypeGeneral,
}

// seasonalMultipliers holds the January..December demand factor of each archetype.
var seasonalMultipliers = map[Archetype][12]float64{
	//                   Jan  Feb  Mar  Apr  May  Jun  Jul  Aug  Sep  Oct  Nov  Dec
	ArchetypeBeverage:   {0.6, 0.6, 1.0, 1.8, 1.8, 1.8, 1.8, 1.0, 1.0, 1.0, 1.0, 0.6},
	ArchetypeFrozen:     {0.5, 0.5, 0.5, 2.0, 2.0, 2.0, 2.0, 2.0, 0.5, 0.5, 0.5, 0.5},
	ArchetypeStationery: {1.0, 1.0, 1.5, 1.5, 1.0, 1.3, 1.0, 1.0, 1.0, 1.0, 1.5, 1.5},
	ArchetypeSnacks:     {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.2, 1.2, 1.2},
	ArchetypePerishable: {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.1, 1.1, 1.1},
	ArchetypeGeneral:    {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
}

// ArchetypeFor returns the profile registered for category, or ArchetypeNone.
func ArchetypeFor(category string) Archetype {
	return categoryArchetypes[normalize(category)]
}

// Multiplier returns the seasonal factor of a for month (1-12). Archetypes
// without a table are flat.
func (a Archetype) Multiplier(month int) float64 {
	table, ok := seasonalMultipliers[a]
	if !ok || month < 1 || month > 12 {
		return 1
	}
	return table[month-1]
}

func normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
