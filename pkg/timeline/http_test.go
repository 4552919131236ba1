package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/timeline/pkg/common/models"
	"github.com/synaptica-ai/timeline/pkg/terminology"
)

func newTestRouter(load LoadFunc) (*mux.Router, *Store) {
	store := NewStore(load)
	router := mux.NewRouter()
	NewHTTPHandler(store, terminology.DefaultCatalog()).Register(router)
	return router, store
}

func serve(t *testing.T, router http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json from %s: %v", target, err)
		}
	}
	return rec, body
}

func richTimeline(ctx context.Context) (*Timeline, error) {
	return Build(Sources{
		Notes: map[string][]models.Note{"p1": notesAt(10, 20)},
		Labs:  map[string][]models.LabObservation{"p1": labsAt(12, 30)},
		Medications: map[string][]models.MedicationEvent{
			"p1": {{DateOffset: offsetPtr(19), Medications: []string{"Albuterol"}}},
		},
	}), nil
}

func TestReadyReflectsStoreState(t *testing.T) {
	router, store := newTestRouter(richTimeline)

	rec, body := serve(t, router, "/ready")
	if rec.Code != http.StatusServiceUnavailable || body["state"] != "uninitialized" {
		t.Fatalf("expected 503 uninitialized, got %d %v", rec.Code, body)
	}

	if _, err := store.Ensure(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	rec, body = serve(t, router, "/ready")
	if rec.Code != http.StatusOK || body["patients"] != float64(1) {
		t.Fatalf("expected ready with one patient, got %d %v", rec.Code, body)
	}
}

func TestPatientsEndpoints(t *testing.T) {
	router, _ := newTestRouter(richTimeline)

	rec, body := serve(t, router, "/api/v1/patients")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	items := body["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["patient_id"] != "p1" {
		t.Fatalf("unexpected items %v", items)
	}
	if body["medication_warning"] != nil {
		t.Fatalf("expected no warning, got %v", body["medication_warning"])
	}

	rec, body = serve(t, router, "/api/v1/patients/p1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	patient := body["patient"].(map[string]interface{})
	if patient["min_date"] != float64(10) || patient["max_date"] != float64(20) {
		t.Fatalf("unexpected patient %v", patient)
	}

	if rec, _ := serve(t, router, "/api/v1/patients/nobody"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestClosestEndpoint(t *testing.T) {
	router, _ := newTestRouter(richTimeline)

	rec, body := serve(t, router, "/api/v1/patients/p1/closest?date=21")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lab := body["lab"].(map[string]interface{}); lab["date"] != float64(12) {
		t.Fatalf("expected lab at 12, got %v", lab)
	}
	if med := body["medication"].(map[string]interface{}); med["date"] != float64(19) {
		t.Fatalf("expected medication at 19, got %v", med)
	}
	if note := body["note"].(map[string]interface{}); note["date"] != float64(20) {
		t.Fatalf("expected note at 20, got %v", note)
	}

	if rec, _ := serve(t, router, "/api/v1/patients/p1/closest?date=soon"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClosestEndpointEmptySeries(t *testing.T) {
	router, _ := newTestRouter(func(ctx context.Context) (*Timeline, error) {
		return Build(Sources{
			Notes:             map[string][]models.Note{"p1": notesAt(10)},
			Labs:              map[string][]models.LabObservation{"p1": labsAt(12)},
			MedicationWarning: "Medications file not found at: meds.csv",
		}), nil
	})

	_, body := serve(t, router, "/api/v1/patients/p1/closest?date=0")
	if body["medication"] != nil {
		t.Fatalf("expected null medication, got %v", body["medication"])
	}
	if body["medication_warning"] != "Medications file not found at: meds.csv" {
		t.Fatalf("expected warning, got %v", body["medication_warning"])
	}
}

func TestFailedLoadAnswers503(t *testing.T) {
	router, _ := newTestRouter(func(ctx context.Context) (*Timeline, error) {
		return nil, errors.New("labs source missing column: DATE_DIF")
	})

	rec, body := serve(t, router, "/api/v1/patients")
	if rec.Code != http.StatusServiceUnavailable || body["error"] == nil {
		t.Fatalf("expected 503 with error, got %d %v", rec.Code, body)
	}
	rec, body = serve(t, router, "/ready")
	if rec.Code != http.StatusServiceUnavailable || body["state"] != "failed" {
		t.Fatalf("expected failed readiness, got %d %v", rec.Code, body)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	router, _ := newTestRouter(richTimeline)

	rec, body := serve(t, router, "/api/v1/catalog")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fields := body["lab_fields"].([]interface{}); len(fields) != 8 {
		t.Fatalf("expected 8 lab fields, got %v", fields)
	}
	groups := body["symptom_groups"].([]interface{})
	if len(groups) != 9 || groups[0].(map[string]interface{})["base"] != "wheezing" {
		t.Fatalf("unexpected symptom groups %v", groups)
	}
}
