package timeline

import (
	"context"

	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"github.com/synaptica-ai/timeline/pkg/ingestion"
	"github.com/synaptica-ai/timeline/pkg/terminology"
)

// LoadFunc produces a fully built timeline or a fatal error.
type LoadFunc func(ctx context.Context) (*Timeline, error)

type Paths struct {
	Notes       string
	Labs        string
	Medications string
}

// FileLoader reads the three exports from disk on every call. Notes and labs
// failures are fatal; medication problems surface as the timeline warning.
// The store runs it detached from request cancellation, so it reads to the end.
func FileLoader(paths Paths, cat terminology.Catalog, cohort ingestion.Cohort) LoadFunc {
	return func(ctx context.Context) (*Timeline, error) {
		notes, err := ingestion.LoadNotes(paths.Notes, cat, ingestion.NoteOptions{Candidates: cohort.CandidateSet()})
		if err != nil {
			return nil, err
		}
		labs, err := ingestion.LoadLabs(paths.Labs, cat)
		if err != nil {
			return nil, err
		}
		meds, warning := ingestion.LoadMedications(paths.Medications, cat)

		t := Build(Sources{
			Notes:             notes,
			Labs:              labs.Series,
			Demographics:      labs.Demographics,
			Medications:       meds,
			MedicationWarning: warning,
			BiologicEvents:    cohort.BiologicEvents,
		})
		logger.WithFields(map[string]interface{}{
			"note_patients":     len(notes),
			"lab_patients":      len(labs.Series),
			"eligible_patients": t.Len(),
		}).Info("timeline built")
		return t, nil
	}
}
