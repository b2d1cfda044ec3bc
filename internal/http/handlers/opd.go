package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// FrontDesk is the session API the OPD routes drive.
type FrontDesk interface {
	Open() opd.View
	Get(id string) (opd.View, error)
	Close(id string) error
	SetField(id string, field opd.Field, value string) (opd.View, error)
	SelectSuggestion(id, patientID string) (opd.View, error)
	StartVoice(id string) (opd.View, error)
	VoiceTranscript(id, text string) (opd.View, error)
	StopVoice(id string) (opd.VoiceOutcome, error)
	VoiceUtterance(id, utterance string) (opd.VoiceOutcome, error)
	Submit(ctx context.Context, id string) (opd.Receipt, opd.View, error)
}

// OPDHandler serves OPD booking form sessions.
type OPDHandler struct {
	desk   FrontDesk
	logger *logging.Logger
}

// NewOPDHandler constructs an OPDHandler.
func NewOPDHandler(desk FrontDesk, logger *logging.Logger) *OPDHandler {
	if desk == nil {
		panic("handlers: front desk required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OPDHandler{desk: desk, logger: logger}
}

// Routes mounts the session routes.
func (h *OPDHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.Open)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Put("/fields/{field}", h.SetField)
		r.Post("/suggestions/{patientID}", h.SelectSuggestion)
		r.Post("/voice/start", h.StartVoice)
		r.Post("/voice/stop", h.StopVoice)
		r.Post("/voice/transcript", h.VoiceTranscript)
		r.Post("/voice/utterance", h.VoiceUtterance)
		r.Get("/voice/stream", h.VoiceStream)
		r.Post("/submit", h.Submit)
	})
	return r
}

// FieldRequest carries a manual field edit.
type FieldRequest struct {
	Value string `json:"value"`
}

// SpeechRequest carries recognized speech.
type SpeechRequest struct {
	Text string `json:"text"`
}

// SubmitResponse is returned after a booking is stored.
type SubmitResponse struct {
	Receipt opd.Receipt `json:"receipt"`
	Session opd.View    `json:"session"`
}

// Open handles POST /opd/sessions.
func (h *OPDHandler) Open(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.desk.Open())
}

// Get handles GET /opd/sessions/{sessionID}.
func (h *OPDHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.desk.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDeskError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Close handles DELETE /opd/sessions/{sessionID}.
func (h *OPDHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeDeskError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetField handles PUT /opd/sessions/{sessionID}/fields/{field}.
func (h *OPDHandler) SetField(w http.ResponseWriter, r *http.Request) {
	field, err := opd.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		writeDeskError(w, err, nil)
		return
	}
	var req FieldRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respondView(w, http.StatusOK)(h.desk.SetField(chi.URLParam(r, "sessionID"), field, req.Value))
}

// SelectSuggestion handles POST /opd/sessions/{sessionID}/suggestions/{patientID}.
func (h *OPDHandler) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, http.StatusOK)(h.desk.SelectSuggestion(chi.URLParam(r, "sessionID"), chi.URLParam(r, "patientID")))
}

// StartVoice handles POST /opd/sessions/{sessionID}/voice/start.
func (h *OPDHandler) StartVoice(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, http.StatusOK)(h.desk.StartVoice(chi.URLParam(r, "sessionID")))
}

// VoiceTranscript handles POST /opd/sessions/{sessionID}/voice/transcript.
func (h *OPDHandler) VoiceTranscript(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respondView(w, http.StatusOK)(h.desk.VoiceTranscript(chi.URLParam(r, "sessionID"), req.Text))
}

// StopVoice handles POST /opd/sessions/{sessionID}/voice/stop.
func (h *OPDHandler) StopVoice(w http.ResponseWriter, r *http.Request) {
	h.respondVoice(w)(h.desk.StopVoice(chi.URLParam(r, "sessionID")))
}

// VoiceUtterance handles POST /opd/sessions/{sessionID}/voice/utterance.
func (h *OPDHandler) VoiceUtterance(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respondVoice(w)(h.desk.VoiceUtterance(chi.URLParam(r, "sessionID"), req.Text))
}

// Submit handles POST /opd/sessions/{sessionID}/submit.
func (h *OPDHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	receipt, view, err := h.desk.Submit(r.Context(), id)
	if err != nil {
		h.logger.Warn("opd submission rejected", "session_id", id, "error", err)
		writeDeskError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{Receipt: receipt, Session: view})
}

func (h *OPDHandler) respondView(w http.ResponseWriter, status int) func(opd.View, error) {
	return func(view opd.View, err error) {
		if err != nil {
			writeDeskError(w, err, &view)
			return
		}
		writeJSON(w, status, view)
	}
}

func (h *OPDHandler) respondVoice(w http.ResponseWriter) func(opd.VoiceOutcome, error) {
	return func(out opd.VoiceOutcome, err error) {
		if err != nil {
			writeDeskError(w, err, &out.View)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
