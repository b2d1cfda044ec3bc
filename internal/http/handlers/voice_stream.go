package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
)

// StreamInbound is what the speech client sends over the voice stream.
type StreamInbound struct {
	Type string `json:"type"` // "start", "transcript", "utterance", "stop", "ping"
	Text string `json:"text,omitempty"`
}

// StreamOutbound is what the desk sends back.
type StreamOutbound struct {
	Type    string        `json:"type"` // "session", "result", "error", "pong"
	Session *opd.View     `json:"session,omitempty"`
	Result  *voice.Result `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// VoiceStream handles GET /opd/sessions/{sessionID}/voice/stream. Interim
// transcripts update the session; each finalized utterance is interpreted
// and answered with the updated session and the interpreter result.
func (h *OPDHandler) VoiceStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := h.desk.Get(id); err != nil {
		writeDeskError(w, err, nil)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveVoice(conn, id)
	}).ServeHTTP(w, r)
}

func (h *OPDHandler) serveVoice(conn *websocket.Conn, id string) {
	view, err := h.desk.Get(id)
	if err != nil {
		h.sendError(conn, err)
		return
	}
	_ = websocket.JSON.Send(conn, StreamOutbound{Type: "session", Session: &view})
	h.logger.Info("voice stream opened", "session_id", id)

	for {
		var msg StreamInbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("voice stream closed", "session_id", id, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, StreamOutbound{Type: "pong"})
		case "start":
			h.sendView(conn)(h.desk.StartVoice(id))
		case "transcript":
			h.sendView(conn)(h.desk.VoiceTranscript(id, msg.Text))
		case "utterance":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			h.sendOutcome(conn)(h.desk.VoiceUtterance(id, msg.Text))
		case "stop":
			h.sendOutcome(conn)(h.desk.StopVoice(id))
		default:
			_ = websocket.JSON.Send(conn, StreamOutbound{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

func (h *OPDHandler) sendError(conn *websocket.Conn, err error) {
	_, body := statusFor(err)
	_ = websocket.JSON.Send(conn, StreamOutbound{Type: "error", Error: body.Error})
}

func (h *OPDHandler) sendView(conn *websocket.Conn) func(opd.View, error) {
	return func(view opd.View, err error) {
		if err != nil {
			h.sendError(conn, err)
			return
		}
		_ = websocket.JSON.Send(conn, StreamOutbound{Type: "session", Session: &view})
	}
}

func (h *OPDHandler) sendOutcome(conn *websocket.Conn) func(opd.VoiceOutcome, error) {
	return func(out opd.VoiceOutcome, err error) {
		if err != nil {
			h.sendError(conn, err)
			return
		}
		_ = websocket.JSON.Send(conn, StreamOutbound{Type: "result", Session: &out.View, Result: &out.Result})
	}
}
