package ingestion

import (
	"sort"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/coerce"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"github.com/synaptica-ai/timeline/pkg/common/models"
	"github.com/synaptica-ai/timeline/pkg/notetext"
	"github.com/synaptica-ai/timeline/pkg/schema"
	"github.com/synaptica-ai/timeline/pkg/terminology"
)

const (
	SourceNotes       = "notes"
	SourceLabs        = "labs"
	SourceMedications = "medications"
)

// NoteOptions restricts which patients are read from the notes export.
type NoteOptions struct {
	// Candidates, when non-empty, is the only set of patient ids kept.
	Candidates map[string]struct{}
}

// LoadNotes groups note rows by patient, ascending by encounter offset.
// Rows whose id or offset do not parse are dropped.
func LoadNotes(path string, cat terminology.Catalog, opts NoteOptions) (map[string][]models.Note, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, unreadable(SourceNotes, path, err)
	}
	return notesFromTable(table, path, cat, opts)
}

func notesFromTable(table *Table, path string, cat terminology.Catalog, opts NoteOptions) (map[string][]models.Note, error) {
	res := schema.Resolve(table.Headers, []schema.FieldSpec{cat.PatientID, cat.NoteDate, cat.NoteText})
	logCollisions(SourceNotes, path, res)

	idCol, ok := res.Header(cat.PatientID.Name)
	if !ok {
		return nil, missingColumn(SourceNotes, path, cat.PatientID.Name)
	}
	dateCol, ok := res.Header(cat.NoteDate.Name)
	if !ok {
		return nil, missingColumn(SourceNotes, path, cat.NoteDate.Name)
	}
	textCol, ok := res.Header(cat.NoteText.Name)
	if !ok {
		return nil, missingColumn(SourceNotes, path, cat.NoteText.Name)
	}

	patients := make(map[string][]models.Note)
	dropped := 0
	for _, row := range table.Rows {
		pid := strings.TrimSpace(table.Cell(row, idCol))
		if coerce.IsMissing(pid) {
			dropped++
			continue
		}
		if len(opts.Candidates) > 0 {
			if _, ok := opts.Candidates[pid]; !ok {
				continue
			}
		}
		offset, ok := coerce.Offset(table.Cell(row, dateCol))
		if !ok {
			dropped++
			continue
		}
		raw := table.Cell(row, textCol)
		patients[pid] = append(patients[pid], models.Note{
			DateOffset:   offset,
			RawText:      raw,
			FriendlyText: notetext.Prettify(raw),
		})
	}

	for _, notes := range patients {
		sort.SliceStable(notes, func(i, j int) bool { return notes[i].DateOffset < notes[j].DateOffset })
	}

	logger.WithSource(SourceNotes, path).WithFields(map[string]interface{}{
		"patients":     len(patients),
		"dropped_rows": dropped,
	}).Info("notes loaded")
	return patients, nil
}

func logCollisions(source, path string, res schema.Resolution) {
	for key, headers := range res.Collisions {
		logger.WithSource(source, path).WithFields(map[string]interface{}{
			"normalized": key,
			"headers":    headers,
			"kept":       headers[len(headers)-1],
		}).Warn("headers collide after normalization")
	}
}
