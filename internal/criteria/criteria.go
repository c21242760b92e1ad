// Package criteria provides the per-industry ESG criteria sets. Every
// industry resolves to an ordered list of exactly seven criteria; records are
// normalized and exported against this list, so resolution must always
// succeed (unrecognized industries fall back to the default set).
package criteria

import "strings"

// Criterion is one named ESG topic requiring ranked action bullet points.
type Criterion struct {
	ID          string
	DisplayName string
}

// Count is the fixed number of criteria per industry.
const Count = 7

// defaultSet applies when the industry tag matches nothing registered.
var defaultSet = []Criterion{
	{"carbon_footprint", "Carbon Footprint"},
	{"energy_efficiency", "Energy Efficiency"},
	{"renewable_energies", "Renewable Energies"},
	{"waste_management", "Waste Management"},
	{"water_usage", "Water Usage"},
	{"supply_chain_responsibility", "Supply Chain Responsibility"},
	{"employee_wellbeing", "Employee Wellbeing"},
}

// sets maps a registered industry tag to its ordered criteria. The
// construction set mirrors the fixed semantic slots of the specialized
// XML response format.
var sets = map[string][]Criterion{
	"construction": {
		{"buildings", "Buildings"},
		{"energy_efficiency", "Energy Efficiency"},
		{"renewable_energies", "Renewable Energies"},
		{"climate_neutral_operation", "Climate-Neutral Operation"},
		{"materials", "Materials"},
		{"occupational_safety_and_health", "Occupational Safety and Health"},
		{"carbon_footprint", "Carbon Footprint"},
	},
	"logistics": {
		{"fleet_emissions", "Fleet Emissions"},
		{"energy_efficiency", "Energy Efficiency"},
		{"renewable_energies", "Renewable Energies"},
		{"packaging", "Packaging"},
		{"warehouse_operations", "Warehouse Operations"},
		{"occupational_safety_and_health", "Occupational Safety and Health"},
		{"carbon_footprint", "Carbon Footprint"},
	},
	"finance": {
		{"sustainable_investment", "Sustainable Investment"},
		{"financed_emissions", "Financed Emissions"},
		{"energy_efficiency", "Energy Efficiency"},
		{"renewable_energies", "Renewable Energies"},
		{"business_travel", "Business Travel"},
		{"employee_wellbeing", "Employee Wellbeing"},
		{"carbon_footprint", "Carbon Footprint"},
	},
}

// ForIndustry resolves an industry tag to its criteria set. Matching tries,
// in order: exact, case-insensitive, substring (either direction), then the
// suffix after the tag's last underscore. The substring step can match short
// registered tags inside unrelated longer ones ("construction" inside
// "road_construction_services"); source lists rely on this, so the order and
// the looseness are both load-bearing.
func ForIndustry(tag string) []Criterion {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return defaultSet
	}

	if set, ok := sets[tag]; ok {
		return set
	}

	lower := strings.ToLower(tag)
	for key, set := range sets {
		if strings.ToLower(key) == lower {
			return set
		}
	}

	for key, set := range sets {
		keyLower := strings.ToLower(key)
		if strings.Contains(lower, keyLower) || strings.Contains(keyLower, lower) {
			return set
		}
	}

	if idx := strings.LastIndex(lower, "_"); idx >= 0 {
		suffix := lower[idx+1:]
		for key, set := range sets {
			if strings.ToLower(key) == suffix {
				return set
			}
		}
	}

	return defaultSet
}

// HasSpecializedPrompt reports whether the industry resolves to a set with a
// registered XML-oriented prompt template.
func HasSpecializedPrompt(tag string) bool {
	return sameSet(ForIndustry(tag), sets["construction"])
}

// IDs returns the ordered criterion IDs of a set.
func IDs(set []Criterion) []string {
	out := make([]string, len(set))
	for i, c := range set {
		out[i] = c.ID
	}
	return out
}

// DisplayName resolves a criterion ID within a set, falling back to the ID.
func DisplayName(set []Criterion, id string) string {
	for _, c := range set {
		if c.ID == id {
			return c.DisplayName
		}
	}
	return id
}

func sameSet(a, b []Criterion) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
