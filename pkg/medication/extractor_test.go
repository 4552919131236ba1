package medication

import (
	"reflect"
	"testing"
)

func TestRowMedicationsMergesTextAndFlags(t *testing.T) {
	headers := []string{"PATIENTHASHMRN", "DATE_DIF", "MED_NAME", "Fluticasone", "Omalizumab"}
	rows := [][]string{
		{"p1", "10", "Albuterol; Albuterol, montelukast", "1", "0"},
		{"p1", "20", "", "0", "1"},
	}

	e := Classify(headers, rows, "PATIENTHASHMRN", "DATE_DIF")
	got := e.RowMedications(rows[0])
	want := []string{"Albuterol", "montelukast", "Fluticasone"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = e.RowMedications(rows[1])
	if !reflect.DeepEqual(got, []string{"Omalizumab"}) {
		t.Fatalf("expected [Omalizumab], got %v", got)
	}
}

func TestClassifyRoles(t *testing.T) {
	headers := []string{"PATIENTHASHMRN", "AGE", "ATS_SEVERE", "risk_score", "drug list", "rx_count", "Budesonide", "Dupilumab", "med_code"}
	rows := [][]string{
		{"p1", "1", "1", "0", "ICS/LABA", "1", "true", "", "12"},
		{"p2", "0", "0", "1", "albuterol", "0", "False", "1", "13"},
	}

	e := Classify(headers, rows)
	want := map[string]Role{
		"PATIENTHASHMRN": Ignored,
		"AGE":            Ignored,
		"ATS_SEVERE":     Ignored,
		"risk_score":     Ignored,
		"drug list":      FreeText,
		"rx_count":       Ignored,
		"Budesonide":     BinaryFlag,
		"Dupilumab":      BinaryFlag,
		"med_code":       Ignored,
	}
	for header, role := range want {
		if got := e.Role(header); got != role {
			t.Fatalf("column %q: expected %s, got %s", header, role, got)
		}
	}
}

func TestClassifyEmptyColumnIsNotBinary(t *testing.T) {
	e := Classify([]string{"Tezepelumab"}, [][]string{{""}, {"NA"}})
	if role := e.Role("Tezepelumab"); role != Ignored {
		t.Fatalf("expected an all-missing column to be ignored, got %s", role)
	}
}

func TestRowMedicationsSplitsOnSeparators(t *testing.T) {
	e := Classify([]string{"medications"}, [][]string{{"x"}})
	got := e.RowMedications([]string{"ICS | LABA/montelukast   prednisone  burst;;  ics"})
	want := []string{"ICS", "LABA", "montelukast", "prednisone", "burst"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRowMedicationsTextBeforeFlags(t *testing.T) {
	headers := []string{"Albuterol", "MED_NAME"}
	rows := [][]string{
		{"1", "albuterol; montelukast"},
		{"0", "budesonide"},
	}

	e := Classify(headers, rows)
	got := e.RowMedications(rows[0])
	want := []string{"albuterol", "montelukast"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestClassifyFreeTextOnNormalizedHeader(t *testing.T) {
	e := Classify([]string{"R-x list"}, [][]string{{"ICS/LABA"}})
	if role := e.Role("R-x list"); role != FreeText {
		t.Fatalf("expected free text, got %s", role)
	}
}
