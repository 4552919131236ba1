package timeline

import (
	"math"

	"github.com/synaptica-ai/timeline/pkg/common/models"
)

// Dated is any series element carrying an optional date offset.
type Dated interface {
	Offset() (float64, bool)
}

// Closest returns the element of series nearest to query. Ties go to the
// element seen first; undated elements count as an exact match. ok is false
// only for an empty series.
func Closest[T Dated](series []T, query float64) (best T, ok bool) {
	bestDist := math.Inf(1)
	for _, item := range series {
		dist := 0.0
		if offset, dated := item.Offset(); dated {
			dist = math.Abs(offset - query)
		}
		if !ok || dist < bestDist {
			best, bestDist, ok = item, dist, true
		}
	}
	return best, ok
}

func (t *Timeline) ClosestLab(id string, query float64) (models.LabObservation, bool) {
	p, ok := t.patients[id]
	if !ok {
		return models.LabObservation{}, false
	}
	return Closest(p.Labs, query)
}

func (t *Timeline) ClosestMedication(id string, query float64) (models.MedicationEvent, bool) {
	p, ok := t.patients[id]
	if !ok {
		return models.MedicationEvent{}, false
	}
	return Closest(p.Medications, query)
}

func (t *Timeline) ClosestNote(id string, query float64) (models.Note, bool) {
	p, ok := t.patients[id]
	if !ok {
		return models.Note{}, false
	}
	return Closest(p.Notes, query)
}
