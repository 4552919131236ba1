package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/coerce"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"github.com/synaptica-ai/timeline/pkg/common/models"
	"github.com/synaptica-ai/timeline/pkg/medication"
	"github.com/synaptica-ai/timeline/pkg/schema"
	"github.com/synaptica-ai/timeline/pkg/terminology"
)

// LoadMedications never fails: a missing or unusable export yields an empty
// map and a warning that is surfaced next to the timeline.
func LoadMedications(path string, cat terminology.Catalog) (map[string][]models.MedicationEvent, string) {
	if _, err := os.Stat(filepath.Clean(path)); errors.Is(err, os.ErrNotExist) {
		return medicationWarning(path, fmt.Sprintf("Medications file not found at: %s", path))
	}
	table, err := ReadTable(path)
	if err != nil {
		return medicationWarning(path, fmt.Sprintf("Failed to read medications CSV: %v", err))
	}
	return medicationsFromTable(table, path, cat)
}

func medicationWarning(path, warning string) (map[string][]models.MedicationEvent, string) {
	logger.WithSource(SourceMedications, path).Warn(warning)
	return map[string][]models.MedicationEvent{}, warning
}

type medRow struct {
	pid    string
	offset *float64
	cells  []string
}

func medicationsFromTable(table *Table, path string, cat terminology.Catalog) (map[string][]models.MedicationEvent, string) {
	res := schema.Resolve(table.Headers, []schema.FieldSpec{cat.PatientID, cat.MedicationDate})
	logCollisions(SourceMedications, path, res)

	idCol, ok := res.Header(cat.PatientID.Name)
	if !ok {
		return medicationWarning(path, fmt.Sprintf("Medications CSV must include %s.", cat.PatientID.Name))
	}
	dateCol, hasDate := res.Header(cat.MedicationDate.Name)

	skip := []string{idCol}
	if hasDate {
		skip = append(skip, dateCol)
	}
	extractor := medication.Classify(table.Headers, table.Rows, skip...)

	grouped := make(map[string][]medRow)
	dated := make(map[string]bool)
	for _, row := range table.Rows {
		pid := strings.TrimSpace(table.Cell(row, idCol))
		if coerce.IsMissing(pid) {
			continue
		}
		r := medRow{pid: pid, cells: row}
		if hasDate {
			if offset, ok := coerce.Offset(table.Cell(row, dateCol)); ok {
				r.offset = &offset
				dated[pid] = true
			}
		}
		grouped[pid] = append(grouped[pid], r)
	}

	out := make(map[string][]models.MedicationEvent, len(grouped))
	for pid, rows := range grouped {
		if dated[pid] {
			kept := rows[:0]
			for _, r := range rows {
				if r.offset != nil {
					kept = append(kept, r)
				}
			}
			rows = kept
		}
		sort.SliceStable(rows, func(i, j int) bool { return offsetBefore(rows[i].offset, rows[j].offset) })

		series := make([]models.MedicationEvent, 0, len(rows))
		for _, r := range rows {
			series = append(series, models.MedicationEvent{
				DateOffset:  r.offset,
				Medications: extractor.RowMedications(r.cells),
			})
		}
		out[pid] = series
	}

	entry := logger.WithSource(SourceMedications, path).WithField("patients", len(out))
	for _, c := range extractor.Columns() {
		if c.Role != medication.Ignored {
			entry = entry.WithField("column."+c.Header, c.Role.String())
		}
	}
	entry.Info("medications loaded")
	return out, ""
}

// offsetBefore orders dated rows ascending with undated rows last.
func offsetBefore(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}
