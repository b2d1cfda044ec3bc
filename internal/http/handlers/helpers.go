package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

// errorResponse is the body of a failed desk call.
type errorResponse struct {
	Error   string    `json:"error"`
	Fields  []string  `json:"fields,omitempty"`
	Session *opd.View `json:"session,omitempty"`
}

// statusFor maps desk errors onto HTTP statuses and operator messages.
func statusFor(err error) (int, errorResponse) {
	var (
		validation *opd.ValidationError
		lookup     *opd.LookupError
		idErr      *opd.IDGenerationError
		writeErr   *opd.StoreWriteError
	)
	switch {
	case errors.Is(err, opd.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Error: "session not found"}
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: capitalizeFirst(validation.Message), Fields: validation.Fields}
	case errors.As(err, &lookup):
		return http.StatusNotFound, errorResponse{Error: fmt.Sprintf("%s not found", capitalizeFirst(lookup.Kind))}
	case errors.Is(err, voice.ErrNotListening), errors.Is(err, voice.ErrWrongMode):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.As(err, &idErr):
		return http.StatusInternalServerError, errorResponse{Error: "could not allocate a record id"}
	case errors.As(err, &writeErr):
		return http.StatusBadGateway, errorResponse{Error: writeErr.Err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}

// writeDeskError writes err with the session state the operator should see.
// view is nil when the session is unknown.
func writeDeskError(w http.ResponseWriter, err error, view *opd.View) {
	status, body := statusFor(err)
	if status != http.StatusNotFound || !errors.Is(err, opd.ErrSessionNotFound) {
		body.Session = view
	}
	writeJSON(w, status, body)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
