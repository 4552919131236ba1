package terminology

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	if len(cat.LabFields) != 8 {
		t.Fatalf("expected 8 lab fields, got %d", len(cat.LabFields))
	}
	if len(cat.Symptoms) != 17 {
		t.Fatalf("expected 17 symptom columns, got %d", len(cat.Symptoms))
	}
	specs := cat.LabSpecs()
	if specs[0].Name != "DATE_DIF" {
		t.Fatalf("expected date spec first, got %s", specs[0].Name)
	}
	if _, ok := cat.Lookup("fev1 pre"); !ok {
		t.Fatal("expected case-insensitive lookup")
	}
	if cat.ReferenceRanges()["FEV1/FVC PRE"] == "" {
		t.Fatal("expected reference range for FEV1/FVC PRE")
	}
}

func TestLoadPartialCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
lab_fields:
  - name: IgE
    aliases: [IgE, Total IgE]
    tokens: [ige]
    reference_range: "< 100 IU/mL"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if names := cat.LabFieldNames(); len(names) != 1 || names[0] != "IgE" {
		t.Fatalf("expected only IgE, got %v", names)
	}
	if cat.PatientID.Name != "PATIENTHASHMRN" || cat.LabDate.Name != "DATE_DIF" {
		t.Fatalf("expected defaults for omitted specs, got %+v", cat)
	}
	if len(cat.Symptoms) != 17 {
		t.Fatalf("expected default symptoms, got %d", len(cat.Symptoms))
	}
}

func TestLoadRejectsEmptyLabFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("symptoms: [a_current]\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for catalog without lab fields")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.LabFields) != 8 {
		t.Fatalf("expected default catalog, got %d fields", len(cat.LabFields))
	}
}
