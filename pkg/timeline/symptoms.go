package timeline

import "strings"

// SymptomGroup pairs the current and previous flag columns of one symptom.
// Either column may be empty.
type SymptomGroup struct {
	Base     string `json:"base"`
	Current  string `json:"current,omitempty"`
	Previous string `json:"previous,omitempty"`
}

var symptomOrder = []string{
	"wheezing", "shortness_of_breath", "chest_tightness", "coughing",
	"rapid_breathing", "exercise_induced_symptoms", "nocturnal_symptoms",
	"exacerbation", "general_asthma_symptoms_worsening",
}

// SymptomGroups groups columns by base name. Known symptoms come first in
// clinical order, others follow in column order. A column without a
// _current or _previous suffix is treated as current.
func SymptomGroups(columns []string) []SymptomGroup {
	groups := make(map[string]*SymptomGroup)
	var seen []string
	for _, c := range columns {
		base, previous := c, false
		switch {
		case strings.HasSuffix(c, "_current"):
			base = strings.TrimSuffix(c, "_current")
		case strings.HasSuffix(c, "_previous"):
			base, previous = strings.TrimSuffix(c, "_previous"), true
		}
		g, ok := groups[base]
		if !ok {
			g = &SymptomGroup{Base: base}
			groups[base] = g
			seen = append(seen, base)
		}
		if previous {
			g.Previous = c
		} else {
			g.Current = c
		}
	}

	out := make([]SymptomGroup, 0, len(groups))
	placed := make(map[string]bool, len(groups))
	for _, base := range symptomOrder {
		if g, ok := groups[base]; ok {
			out = append(out, *g)
			placed[base] = true
		}
	}
	for _, base := range seen {
		if !placed[base] {
			out = append(out, *groups[base])
		}
	}
	return out
}
