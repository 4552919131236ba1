package ingestion

import (
	"sort"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/coerce"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"github.com/synaptica-ai/timeline/pkg/common/models"
	"github.com/synaptica-ai/timeline/pkg/schema"
	"github.com/synaptica-ai/timeline/pkg/terminology"
)

type LabsResult struct {
	Series       map[string][]models.LabObservation
	Demographics map[string]models.Demographics
	// Bindings records how each canonical lab column was found.
	Bindings map[string]schema.Binding
}

func DefaultDemographics() models.Demographics {
	return models.Demographics{Age: models.Null(), Sex: "", BMI: models.Null()}
}

// LoadLabs reads the spirometry/lab export. Missing optional columns become
// always-null fields; a missing id or date column is fatal.
func LoadLabs(path string, cat terminology.Catalog) (*LabsResult, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, unreadable(SourceLabs, path, err)
	}
	return labsFromTable(table, path, cat)
}

type labRow struct {
	offset float64
	cells  []string
}

func labsFromTable(table *Table, path string, cat terminology.Catalog) (*LabsResult, error) {
	specs := append(cat.LabSpecs(), cat.PatientID, cat.Demographics.Age, cat.Demographics.Sex, cat.Demographics.BMI)
	for _, s := range cat.Symptoms {
		specs = append(specs, schema.FieldSpec{Name: s, Aliases: []string{s}})
	}
	res := schema.Resolve(table.Headers, specs)
	logCollisions(SourceLabs, path, res)

	idCol, ok := res.Header(cat.PatientID.Name)
	if !ok {
		return nil, missingColumn(SourceLabs, path, cat.PatientID.Name)
	}
	dateCol, ok := res.Header(cat.LabDate.Name)
	if !ok {
		return nil, missingColumn(SourceLabs, path, cat.LabDate.Name)
	}

	grouped := make(map[string][]labRow)
	dropped := 0
	for _, row := range table.Rows {
		pid := strings.TrimSpace(table.Cell(row, idCol))
		offset, ok := coerce.Offset(table.Cell(row, dateCol))
		if coerce.IsMissing(pid) || !ok {
			dropped++
			continue
		}
		grouped[pid] = append(grouped[pid], labRow{offset: offset, cells: row})
	}

	out := &LabsResult{
		Series:       make(map[string][]models.LabObservation, len(grouped)),
		Demographics: make(map[string]models.Demographics, len(grouped)),
		Bindings:     make(map[string]schema.Binding, len(cat.LabFields)),
	}
	for _, f := range cat.LabFields {
		out.Bindings[f.Name] = res.Bindings[f.Name]
	}

	cell := func(row []string, field string) (string, bool) {
		header, ok := res.Header(field)
		if !ok {
			return "", false
		}
		return table.Cell(row, header), true
	}

	for pid, rows := range grouped {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].offset < rows[j].offset })

		series := make([]models.LabObservation, 0, len(rows))
		demo := DefaultDemographics()
		for _, r := range rows {
			obs := models.LabObservation{
				DateOffset: r.offset,
				Fields:     make(map[string]models.Value, len(cat.LabFields)),
				Symptoms:   make(map[string]models.TriState, len(cat.Symptoms)),
			}
			for _, f := range cat.LabFields {
				obs.Fields[f.Name] = models.Null()
				if raw, ok := cell(r.cells, f.Name); ok {
					obs.Fields[f.Name] = coerce.Numeric(raw)
				}
			}
			for _, s := range cat.Symptoms {
				obs.Symptoms[s] = models.Unknown
				if raw, ok := cell(r.cells, s); ok {
					obs.Symptoms[s] = coerce.TriState(raw)
				}
			}
			series = append(series, obs)

			// Rows are ascending, so the last row with any demographic wins.
			if snap, ok := demographicsOf(r.cells, cat, cell); ok {
				demo = snap
			}
		}
		out.Series[pid] = series
		out.Demographics[pid] = demo
	}

	logger.WithSource(SourceLabs, path).WithFields(map[string]interface{}{
		"patients":     len(out.Series),
		"dropped_rows": dropped,
	}).Info("labs loaded")
	return out, nil
}

func demographicsOf(row []string, cat terminology.Catalog, cell func([]string, string) (string, bool)) (models.Demographics, bool) {
	age, _ := cell(row, cat.Demographics.Age.Name)
	sex, _ := cell(row, cat.Demographics.Sex.Name)
	bmi, _ := cell(row, cat.Demographics.BMI.Name)
	if coerce.IsMissing(age) && coerce.IsMissing(sex) && coerce.IsMissing(bmi) {
		return models.Demographics{}, false
	}

	snap := DefaultDemographics()
	snap.Age = coerce.Numeric(age)
	snap.BMI = coerce.Numeric(bmi)
	if !coerce.IsMissing(sex) {
		snap.Sex = strings.TrimSpace(sex)
	}
	return snap, true
}
