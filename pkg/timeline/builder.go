// Package timeline reconciles the loaded exports into per-patient timelines
// and answers nearest-date queries against them.
package timeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/common/models"
	"github.com/synaptica-ai/timeline/pkg/ingestion"
)

// Sources is everything the loaders produced for one build.
type Sources struct {
	Notes             map[string][]models.Note
	Labs              map[string][]models.LabObservation
	Demographics      map[string]models.Demographics
	Medications       map[string][]models.MedicationEvent
	MedicationWarning string
	// BiologicEvents alternates patient id and date offset.
	BiologicEvents []interface{}
}

// Timeline is an immutable reconciled view.
type Timeline struct {
	patients          map[string]*models.PatientTimeline
	ids               []string
	medicationWarning string
}

// Build restricts every source to the eligible set: patients with at least
// one note and one lab observation.
func Build(src Sources) *Timeline {
	eligible := EligibleSet(src.Notes, src.Labs)
	biologic := BiologicEvents(src.BiologicEvents, eligible)

	t := &Timeline{
		patients:          make(map[string]*models.PatientTimeline, len(eligible)),
		ids:               make([]string, 0, len(eligible)),
		medicationWarning: src.MedicationWarning,
	}
	for pid := range eligible {
		notes := src.Notes[pid]
		p := &models.PatientTimeline{
			PatientID:     pid,
			Notes:         notes,
			Labs:          src.Labs[pid],
			Medications:   src.Medications[pid],
			Demographics:  ingestion.DefaultDemographics(),
			BiologicDates: biologic[pid],
		}
		if demo, ok := src.Demographics[pid]; ok {
			p.Demographics = demo
		}
		if p.Medications == nil {
			p.Medications = []models.MedicationEvent{}
		}
		if p.BiologicDates == nil {
			p.BiologicDates = []float64{}
		}
		p.MinDate, p.MaxDate = offsetRange(notes)

		t.patients[pid] = p
		t.ids = append(t.ids, pid)
	}
	sort.Strings(t.ids)
	return t
}

// EligibleSet is the intersection of patient ids across notes and labs.
func EligibleSet(notes map[string][]models.Note, labs map[string][]models.LabObservation) map[string]struct{} {
	out := make(map[string]struct{})
	for pid, n := range notes {
		if len(n) == 0 {
			continue
		}
		if l, ok := labs[pid]; ok && len(l) > 0 {
			out[pid] = struct{}{}
		}
	}
	return out
}

// BiologicEvents walks flat [id, date, id, date, ...] pairs. Pairs whose date
// is not numeric are skipped, as are ids outside eligible. A trailing id
// without a date is ignored. Dates come back sorted and de-duplicated.
func BiologicEvents(flat []interface{}, eligible map[string]struct{}) map[string][]float64 {
	out := make(map[string][]float64)
	for i := 0; i+1 < len(flat); i += 2 {
		pid := strings.TrimSpace(fmt.Sprint(flat[i]))
		date, ok := numeric(flat[i+1])
		if !ok {
			continue
		}
		if _, ok := eligible[pid]; !ok {
			continue
		}
		out[pid] = append(out[pid], date)
	}

	for pid, dates := range out {
		sort.Float64s(dates)
		uniq := dates[:0]
		for i, d := range dates {
			if i == 0 || d != dates[i-1] {
				uniq = append(uniq, d)
			}
		}
		out[pid] = uniq
	}
	return out
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func offsetRange(notes []models.Note) (float64, float64) {
	if len(notes) == 0 {
		return 0, 0
	}
	lo, hi := notes[0].DateOffset, notes[0].DateOffset
	for _, n := range notes[1:] {
		if n.DateOffset < lo {
			lo = n.DateOffset
		}
		if n.DateOffset > hi {
			hi = n.DateOffset
		}
	}
	return lo, hi
}

// PatientIDs lists eligible patients in ascending order.
func (t *Timeline) PatientIDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *Timeline) Len() int {
	return len(t.ids)
}

// Patient returns a copy of one patient's timeline. Series and lab maps are
// copied so callers cannot reach the shared state.
func (t *Timeline) Patient(id string) (models.PatientTimeline, bool) {
	p, ok := t.patients[id]
	if !ok {
		return models.PatientTimeline{}, false
	}
	return clonePatient(p), true
}

func clonePatient(p *models.PatientTimeline) models.PatientTimeline {
	out := *p
	out.Notes = append([]models.Note(nil), p.Notes...)
	out.BiologicDates = append([]float64{}, p.BiologicDates...)

	out.Labs = make([]models.LabObservation, len(p.Labs))
	for i, l := range p.Labs {
		fields := make(map[string]models.Value, len(l.Fields))
		for k, v := range l.Fields {
			fields[k] = v
		}
		symptoms := make(map[string]models.TriState, len(l.Symptoms))
		for k, v := range l.Symptoms {
			symptoms[k] = v
		}
		out.Labs[i] = models.LabObservation{DateOffset: l.DateOffset, Fields: fields, Symptoms: symptoms}
	}

	out.Medications = make([]models.MedicationEvent, len(p.Medications))
	for i, m := range p.Medications {
		ev := models.MedicationEvent{Medications: append([]string(nil), m.Medications...)}
		if m.DateOffset != nil {
			d := *m.DateOffset
			ev.DateOffset = &d
		}
		out.Medications[i] = ev
	}
	return out
}

func (t *Timeline) MedicationWarning() string {
	return t.medicationWarning
}

func (t *Timeline) Summaries() []models.PatientSummary {
	out := make([]models.PatientSummary, 0, len(t.ids))
	for _, id := range t.ids {
		p := t.patients[id]
		out = append(out, models.PatientSummary{
			PatientID:   id,
			NoteCount:   len(p.Notes),
			LabCount:    len(p.Labs),
			MinDate:     p.MinDate,
			MaxDate:     p.MaxDate,
			HasBiologic: len(p.BiologicDates) > 0,
		})
	}
	return out
}
