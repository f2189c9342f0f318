package catalog

// SeedEntry is one default expected-output value.
type SeedEntry struct {
	Material       string
	Size           string
	PressureRating string
	MachineID      string
	Rate           float64
}

// pprExpected maps "SIZE PN RATING" -> machine -> expected output.
// PN 25 and the MC 10 large-diameter rows have no agreed rate and are absent.
var pprExpected = []struct {
	size, pn string
	rates    map[string]float64
}{
	{"20MM", "16", map[string]float64{"MC 2": 75, "MC 5": 75, "MC 9": 75, "MC 10": 100}},
	{"20MM", "20", map[string]float64{"MC 2": 85, "MC 5": 85, "MC 9": 85, "MC 10": 110}},
	{"25MM", "16", map[string]float64{"MC 2": 155, "MC 5": 130, "MC 9": 130, "MC 10": 170}},
	{"25MM", "20", map[string]float64{"MC 2": 160, "MC 5": 140, "MC 9": 140, "MC 10": 195}},
	{"32MM", "16", map[string]float64{"MC 2": 165, "MC 5": 150, "MC 9": 150, "MC 10": 195}},
	{"32MM", "20", map[string]float64{"MC 2": 170, "MC 5": 155, "MC 9": 150, "MC 10": 195}},
	{"40MM", "16", map[string]float64{"MC 2": 165, "MC 5": 150, "MC 9": 150, "MC 10": 195}},
	{"40MM", "20", map[string]float64{"MC 2": 165, "MC 5": 150, "MC 9": 150, "MC 10": 195}},
	{"50MM", "16", map[string]float64{"MC 2": 165, "MC 5": 150, "MC 9": 150, "MC 10": 195}},
	{"50MM", "20", map[string]float64{"MC 2": 165, "MC 5": 150, "MC 9": 150, "MC 10": 195}},
	{"63MM", "16", map[string]float64{"MC 2": 170, "MC 5": 165, "MC 9": 155, "MC 10": 200}},
	{"63MM", "20", map[string]float64{"MC 2": 175, "MC 5": 170, "MC 9": 165, "MC 10": 205}},
	{"75MM", "16", map[string]float64{"MC 2": 170, "MC 5": 165, "MC 9": 155}},
	{"75MM", "20", map[string]float64{"MC 2": 175, "MC 5": 170, "MC 9": 165}},
	{"90MM", "16", map[string]float64{"MC 2": 170, "MC 5": 165, "MC 9": 155}},
	{"90MM", "20", map[string]float64{"MC 2": 175, "MC 5": 170, "MC 9": 165}},
	{"110MM", "16", map[string]float64{"MC 2": 170, "MC 5": 165, "MC 9": 160}},
	{"110MM", "20", map[string]float64{"MC 2": 175, "MC 5": 170, "MC 9": 170}},
}

// DefaultReference flattens the plant's PPR expected-output table.
func DefaultReference() []SeedEntry {
	var out []SeedEntry
	for _, row := range pprExpected {
		for _, machine := range Machines {
			rate, ok := row.rates[machine]
			if !ok {
				continue
			}
			out = append(out, SeedEntry{
				Material:       "PPR",
				Size:           row.size,
				PressureRating: row.pn,
				MachineID:      machine,
				Rate:           rate,
			})
		}
	}
	return out
}
