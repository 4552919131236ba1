package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cohort is the optional study cohort file. BiologicEvents is kept flat,
// alternating patient id and date offset.
type Cohort struct {
	Candidates     []string      `yaml:"candidates" json:"candidates"`
	BiologicEvents []interface{} `yaml:"biologic_events" json:"biologic_events"`
}

// LoadCohort returns an empty cohort when path is empty.
func LoadCohort(path string) (Cohort, error) {
	if path == "" {
		return Cohort{}, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Cohort{}, fmt.Errorf("reading cohort file: %w", err)
	}
	var c Cohort
	if err := yaml.Unmarshal(content, &c); err != nil {
		return Cohort{}, fmt.Errorf("parsing cohort file: %w", err)
	}
	return c, nil
}

// CandidateSet returns nil when no candidates are listed, meaning every
// patient is considered.
func (c Cohort) CandidateSet() map[string]struct{} {
	if len(c.Candidates) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.Candidates))
	for _, id := range c.Candidates {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
