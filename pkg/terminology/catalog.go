package terminology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/schema"
	"gopkg.in/yaml.v3"
)

type LabField struct {
	schema.FieldSpec `yaml:",inline"`
	ReferenceRange   string `yaml:"reference_range" json:"reference_range"`
}

type Demographics struct {
	Age schema.FieldSpec `yaml:"age" json:"age"`
	Sex schema.FieldSpec `yaml:"sex" json:"sex"`
	BMI schema.FieldSpec `yaml:"bmi" json:"bmi"`
}

// Catalog names the canonical columns of every export and the spellings each
// one is known by.
type Catalog struct {
	PatientID schema.FieldSpec `yaml:"patient_id" json:"patient_id"`

	NoteDate schema.FieldSpec `yaml:"note_date" json:"note_date"`
	NoteText schema.FieldSpec `yaml:"note_text" json:"note_text"`

	LabDate      schema.FieldSpec `yaml:"lab_date" json:"lab_date"`
	LabFields    []LabField       `yaml:"lab_fields" json:"lab_fields"`
	Symptoms     []string         `yaml:"symptoms" json:"symptoms"`
	Demographics Demographics     `yaml:"demographics" json:"demographics"`

	MedicationDate schema.FieldSpec `yaml:"medication_date" json:"medication_date"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.LabFields) == 0 {
		return Catalog{}, fmt.Errorf("terminology catalog has no lab fields")
	}
	cat.fillDefaults()
	return cat, nil
}

// fillDefaults keeps partial catalog files usable: any column spec left out
// falls back to the built-in one.
func (c *Catalog) fillDefaults() {
	def := DefaultCatalog()
	fill := func(dst *schema.FieldSpec, src schema.FieldSpec) {
		if dst.Name == "" {
			*dst = src
		}
	}
	fill(&c.PatientID, def.PatientID)
	fill(&c.NoteDate, def.NoteDate)
	fill(&c.NoteText, def.NoteText)
	fill(&c.LabDate, def.LabDate)
	fill(&c.MedicationDate, def.MedicationDate)
	fill(&c.Demographics.Age, def.Demographics.Age)
	fill(&c.Demographics.Sex, def.Demographics.Sex)
	fill(&c.Demographics.BMI, def.Demographics.BMI)
	if c.Symptoms == nil {
		c.Symptoms = def.Symptoms
	}
}

func (c Catalog) Lookup(name string) (LabField, bool) {
	for _, f := range c.LabFields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range c.LabFields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return LabField{}, false
}

func (c Catalog) LabSpecs() []schema.FieldSpec {
	specs := make([]schema.FieldSpec, 0, len(c.LabFields)+1)
	specs = append(specs, c.LabDate)
	for _, f := range c.LabFields {
		specs = append(specs, f.FieldSpec)
	}
	return specs
}

func (c Catalog) LabFieldNames() []string {
	names := make([]string, 0, len(c.LabFields))
	for _, f := range c.LabFields {
		names = append(names, f.Name)
	}
	return names
}

// ReferenceRanges maps lab field names to their adult reference range text.
func (c Catalog) ReferenceRanges() map[string]string {
	out := make(map[string]string, len(c.LabFields))
	for _, f := range c.LabFields {
		if f.ReferenceRange != "" {
			out[f.Name] = f.ReferenceRange
		}
	}
	return out
}

func DefaultCatalog() Catalog {
	return Catalog{
		PatientID: schema.FieldSpec{Name: "PATIENTHASHMRN", Aliases: []string{"PATIENTHASHMRN", "PATIENT_HASH_MRN"}},

		NoteDate: schema.FieldSpec{Name: "ENCDATEDIFFNO", Aliases: []string{"ENCDATEDIFFNO"}},
		NoteText: schema.FieldSpec{Name: "DEIDENTIFIED_TEXT", Aliases: []string{"DEIDENTIFIED_TEXT"}},

		LabDate: schema.FieldSpec{
			Name:    "DATE_DIF",
			Aliases: []string{"DATE_DIF", "ENCDATEDIFFNO", "DATE_DIFFNO", "DATE_DIFF"},
			Tokens:  []string{"date", "dif"},
		},
		LabFields: []LabField{
			{FieldSpec: schema.FieldSpec{Name: "Absolute Basophils", Aliases: []string{"Absolute Basophils"}, Tokens: []string{"baso", "abs"}}, ReferenceRange: "0.00 - 0.20 × 10³/µL"},
			{FieldSpec: schema.FieldSpec{Name: "Absolute Eosinophils", Aliases: []string{"Absolute Eosinophils"}, Tokens: []string{"eosin", "abs"}}, ReferenceRange: "0.00 - 0.50 × 10³/µL"},
			{FieldSpec: schema.FieldSpec{Name: "Absolute Lymphocytes", Aliases: []string{"Absolute Lymphocytes"}, Tokens: []string{"lymph", "abs"}}, ReferenceRange: "1.00 - 4.80 × 10³/µL"},
			{FieldSpec: schema.FieldSpec{Name: "Absolute Neutrophils", Aliases: []string{"Absolute Neutrophils"}, Tokens: []string{"neut", "abs"}}, ReferenceRange: "1.50 - 8.00 × 10³/µL"},
			{FieldSpec: schema.FieldSpec{Name: "FEV1 PRE", Aliases: []string{"FEV1 PRE", "FEV1_PRE"}, Tokens: []string{"fev1", "pre"}}, ReferenceRange: "Varies by individual"},
			{FieldSpec: schema.FieldSpec{Name: "FEV1/FVC PRE", Aliases: []string{"FEV1/FVC PRE", "FEV1_FVC PRE", "FEV1/FVC_PRE", "FEV1_FVC_PRE"}, Tokens: []string{"fev1", "fvc", "pre"}}, ReferenceRange: "> 70% (often > 75%)"},
			{FieldSpec: schema.FieldSpec{Name: "FEF25-75% PRE", Aliases: []string{"FEF25-75% PRE", "FEF25-75 PRE", "FEF25_75 PRE", "FEF2575 PRE"}, Tokens: []string{"fef", "25", "75", "pre"}}, ReferenceRange: "No single reference"},
			{FieldSpec: schema.FieldSpec{Name: "FEV1 %PRE PRED", Aliases: []string{"FEV1 %PRE PRED", "FEV1 % PRED PRE", "FEV1 PERCENT PRED PRE", "FEV1 %PRED PRE"}, Tokens: []string{"fev1", "pred", "pre"}}, ReferenceRange: "> 80% of predicted"},
		},
		Symptoms: []string{
			"wheezing_current", "wheezing_previous",
			"shortness_of_breath_current", "shortness_of_breath_previous",
			"chest_tightness_current", "chest_tightness_previous",
			"coughing_current", "coughing_previous",
			"rapid_breathing_current", "rapid_breathing_previous",
			"exercise_induced_symptoms_current", "exercise_induced_symptoms_previous",
			"nocturnal_symptoms_current", "nocturnal_symptoms_previous",
			"exacerbation_current", "exacerbation_previous",
			"general_asthma_symptoms_worsening_current",
		},
		Demographics: Demographics{
			Age: schema.FieldSpec{Name: "AGE", Aliases: []string{"AGE"}},
			Sex: schema.FieldSpec{Name: "SEX", Aliases: []string{"SEX"}},
			BMI: schema.FieldSpec{Name: "BMI", Aliases: []string{"BMI"}},
		},

		MedicationDate: schema.FieldSpec{Name: "DATE_DIF", Aliases: []string{"DATE_DIF", "ENCDATEDIFFNO", "DATE_DIFFNO", "DATE_DIFF"}},
	}
}
