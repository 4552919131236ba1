package timeline

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"github.com/synaptica-ai/timeline/pkg/terminology"
)

type HTTPHandler struct {
	store   *Store
	catalog terminology.Catalog
}

func NewHTTPHandler(store *Store, catalog terminology.Catalog) *HTTPHandler {
	return &HTTPHandler{store: store, catalog: catalog}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}", h.handleGetPatient).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}/closest", h.handleClosest).Methods(http.MethodGet)
	api.HandleFunc("/catalog", h.handleCatalog).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *HTTPHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	state, t, err := h.store.Snapshot()
	body := map[string]interface{}{"state": state.String()}
	if state != Ready {
		if err != nil {
			body["error"] = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["patients"] = t.Len()
	writeJSON(w, http.StatusOK, body)
}

// timeline loads on first use; a failed load answers 503 with the reason.
func (h *HTTPHandler) timeline(w http.ResponseWriter, r *http.Request) (*Timeline, bool) {
	t, err := h.store.Ensure(r.Context())
	if err != nil {
		logger.Log.WithError(err).Warn("timeline unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	return t, true
}

func (h *HTTPHandler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	t, ok := h.timeline(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":              t.Summaries(),
		"medication_warning": warningOrNil(t),
	})
}

func (h *HTTPHandler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	t, ok := h.timeline(w, r)
	if !ok {
		return
	}
	p, found := t.Patient(mux.Vars(r)["id"])
	if !found {
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient":            p,
		"medication_warning": warningOrNil(t),
	})
}

func (h *HTTPHandler) handleClosest(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	query, err := strconv.ParseFloat(raw, 64)
	if raw == "" || err != nil {
		http.Error(w, "date must be a numeric offset", http.StatusBadRequest)
		return
	}
	t, ok := h.timeline(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if _, found := t.Patient(id); !found {
		http.Error(w, "patient not found", http.StatusNotFound)
		return
	}

	body := map[string]interface{}{
		"date":               query,
		"lab":                nil,
		"medication":         nil,
		"note":               nil,
		"medication_warning": warningOrNil(t),
	}
	if lab, ok := t.ClosestLab(id, query); ok {
		body["lab"] = lab
	}
	if med, ok := t.ClosestMedication(id, query); ok {
		body["medication"] = med
	}
	if note, ok := t.ClosestNote(id, query); ok {
		body["note"] = note
	}
	writeJSON(w, http.StatusOK, body)
}

type catalogResponse struct {
	LabFields       []string          `json:"lab_fields"`
	ReferenceRanges map[string]string `json:"reference_ranges"`
	SymptomGroups   []SymptomGroup    `json:"symptom_groups"`
	Demographics    []string          `json:"demographics"`
}

func (h *HTTPHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		LabFields:       h.catalog.LabFieldNames(),
		ReferenceRanges: h.catalog.ReferenceRanges(),
		SymptomGroups:   SymptomGroups(h.catalog.Symptoms),
		Demographics: []string{
			h.catalog.Demographics.Age.Name,
			h.catalog.Demographics.Sex.Name,
			h.catalog.Demographics.BMI.Name,
		},
	})
}

func warningOrNil(t *Timeline) interface{} {
	if w := t.MedicationWarning(); w != "" {
		return w
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
