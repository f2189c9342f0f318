package catalog

import (
	"sort"

	"production-output-backend/internal/parse"
)

// MaterialSpec lists the sizes and pressure ratings offered for one material.
type MaterialSpec struct {
	Sizes           []string `json:"sizes"`
	PressureRatings []string `json:"pressureRatings"`
}

// Machines are the extrusion lines operators can pick from.
var Machines = []string{"MC 2", "MC 5", "MC 9", "MC 10", "Other"}

var materials = map[string]MaterialSpec{
	"HDPE": {
		Sizes: []string{"16MM", "20MM", "25MM", "32MM", "40MM", "50MM", "63MM", "75MM", "90MM", "110MM",
			"125MM", "140MM", "160MM", "180MM", "200MM", "225MM", "250MM", "280MM",
			"315MM", "355MM", "400MM", "450MM", "500MM", "560MM", "630MM"},
		PressureRatings: []string{"6", "8", "10", "12.5", "16", "20", "25"},
	},
	"PPR": {
		Sizes:           []string{"20MM", "25MM", "32MM", "40MM", "50MM", "63MM", "75MM", "90MM", "110MM"},
		PressureRatings: []string{"16", "20", "25"},
	},
	"PP": {},
}

// Materials returns the material names in a stable order.
func Materials() []string {
	names := make([]string, 0, len(materials))
	for name := range materials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec returns the spec for a material.
func Spec(material string) (MaterialSpec, bool) {
	spec, ok := materials[material]
	return spec, ok
}

// SizePNChoices returns every "SIZE PN RATING" descriptor for a material.
// A material without sizes or ratings yields the single choice "N/A".
func SizePNChoices(material string) []string {
	spec, ok := materials[material]
	if !ok || len(spec.Sizes) == 0 || len(spec.PressureRatings) == 0 {
		return []string{"N/A"}
	}
	choices := make([]string, 0, len(spec.Sizes)*len(spec.PressureRatings))
	for _, size := range spec.Sizes {
		for _, pn := range spec.PressureRatings {
			choices = append(choices, parse.FormatSizePN(size, pn))
		}
	}
	return choices
}
