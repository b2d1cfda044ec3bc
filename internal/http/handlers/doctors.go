package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// DoctorCreator stores new doctors.
type DoctorCreator interface {
	Create(ctx context.Context, req doctors.CreateRequest) (doctors.Doctor, error)
}

// DoctorRoster exposes the live doctor roster.
type DoctorRoster interface {
	Doctors() []doctors.Doctor
}

// DoctorsHandler serves the doctor roster and the add-doctor form.
type DoctorsHandler struct {
	creator DoctorCreator
	roster  DoctorRoster
	logger  *logging.Logger
}

// NewDoctorsHandler constructs a DoctorsHandler.
func NewDoctorsHandler(creator DoctorCreator, roster DoctorRoster, logger *logging.Logger) *DoctorsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorsHandler{creator: creator, roster: roster, logger: logger}
}

// CreateDoctorResponse is returned after a doctor is added.
type CreateDoctorResponse struct {
	Doctor  doctors.Doctor `json:"doctor"`
	Message string         `json:"message"`
}

// Create handles POST /doctors.
func (h *DoctorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req doctors.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := h.creator.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, doctors.ErrInvalidDoctor) {
			jsonError(w, strings.TrimPrefix(err.Error(), doctors.ErrInvalidDoctor.Error()+": "), http.StatusBadRequest)
			return
		}
		h.logger.Error("add doctor failed", "error", err)
		jsonError(w, "failed to add doctor", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, CreateDoctorResponse{Doctor: doc, Message: "Doctor added successfully"})
}

// List handles GET /doctors.
func (h *DoctorsHandler) List(w http.ResponseWriter, r *http.Request) {
	roster := h.roster.Doctors()
	if roster == nil {
		roster = []doctors.Doctor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": roster})
}
