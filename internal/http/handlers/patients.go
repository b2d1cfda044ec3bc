package handlers

import (
	"net/http"

	"github.com/wolfman30/opd-frontdesk/internal/patients"
)

// PatientSuggester matches partial names against the patient roster.
type PatientSuggester interface {
	Suggest(partial string) []patients.Patient
}

// PatientsHandler serves stateless patient lookups.
type PatientsHandler struct {
	suggester PatientSuggester
}

// NewPatientsHandler constructs a PatientsHandler.
func NewPatientsHandler(suggester PatientSuggester) *PatientsHandler {
	return &PatientsHandler{suggester: suggester}
}

// Suggest handles GET /patients/suggest?q=.
func (h *PatientsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	out := h.suggester.Suggest(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}
