package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
)

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode json response: %v", err)
	}
	if body["error"] != "oops" {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"session", opd.ErrSessionNotFound, http.StatusNotFound, "session not found"},
		{"validation", &opd.ValidationError{Message: "missing required fields", Fields: []string{"name"}}, http.StatusBadRequest, "Missing required fields"},
		{"lookup", &opd.LookupError{Kind: "doctor", ID: "doc-9"}, http.StatusNotFound, "Doctor not found"},
		{"not listening", voice.ErrNotListening, http.StatusConflict, voice.ErrNotListening.Error()},
		{"wrong mode", voice.ErrWrongMode, http.StatusConflict, voice.ErrWrongMode.Error()},
		{"id", &opd.IDGenerationError{Path: "patients", Err: errors.New("boom")}, http.StatusInternalServerError, "could not allocate a record id"},
		{"write", &opd.StoreWriteError{Path: "patients/p1", Err: errors.New("PERMISSION_DENIED: write rejected")}, http.StatusBadGateway, "PERMISSION_DENIED: write rejected"},
		{"other", errors.New("unexpected"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := statusFor(tc.err)
			if status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, status)
			}
			if body.Error != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, body.Error)
			}
		})
	}
}
