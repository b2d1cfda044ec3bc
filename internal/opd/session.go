package opd

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/internal/patients"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
)

// Session is one open booking form. Every event on a session runs under its
// lock, so keystrokes, voice input, selection and submission never interleave.
type Session struct {
	id string

	mu          sync.Mutex
	form        FormState
	suggestions []patients.Patient
	capture     *voice.Capture
	openedAt    time.Time
	touchedAt   time.Time
}

// VoiceView is the capture state shown to the operator.
type VoiceView struct {
	Mode       voice.Mode `json:"mode"`
	Listening  bool       `json:"listening"`
	Transcript string     `json:"transcript"`
}

// View is a point-in-time copy of a session.
type View struct {
	ID          string             `json:"id"`
	Form        FormState          `json:"form"`
	Suggestions []patients.Patient `json:"suggestions"`
	Voice       VoiceView          `json:"voice"`
	OpenedAt    time.Time          `json:"openedAt"`
}

// env is the roster snapshot and helpers an event reads. It is loaded once
// per event, after the session lock is taken.
type env struct {
	doctors  []doctors.Doctor
	patients []patients.Patient
	matcher  patients.Matcher
}

func newSession(id string, mode voice.Mode, now time.Time) *Session {
	return &Session{
		id:          id,
		form:        NewFormState(),
		suggestions: []patients.Patient{},
		capture:     voice.NewCapture(mode),
		openedAt:    now,
		touchedAt:   now,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// View returns a copy of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	suggestions := make([]patients.Patient, len(s.suggestions))
	copy(suggestions, s.suggestions)
	return View{
		ID:          s.id,
		Form:        s.form,
		Suggestions: suggestions,
		Voice: VoiceView{
			Mode:       s.capture.Mode(),
			Listening:  s.capture.Listening(),
			Transcript: s.capture.Current(),
		},
		OpenedAt: s.openedAt,
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// typeName edits the name. Any patient match is dropped, but fields copied
// from that patient stay as they are.
func (s *Session) typeName(value string, e env) {
	s.form.Name = value
	s.form.MatchedPatientID = ""
	s.suggestions = e.matcher.Suggest(value, e.patients)
}

// selectDoctor picks a doctor by id and resets the amount to its charges.
// An empty id clears the selection.
func (s *Session) selectDoctor(id string, e env) error {
	id = strings.TrimSpace(id)
	if id == "" {
		s.form.SelectedDoctorID = ""
		return nil
	}
	doc, ok := doctors.FindByID(e.doctors, id)
	if !ok {
		return &LookupError{Kind: "doctor", ID: id}
	}
	s.form.SelectedDoctorID = doc.ID
	s.form.Amount = strconv.FormatFloat(doc.Charges, 'f', -1, 64)
	return nil
}

func (s *Session) setField(field Field, value string, e env) error {
	switch field {
	case FieldName:
		s.typeName(value, e)
	case FieldPhone:
		s.form.Phone = value
	case FieldEmail:
		s.form.Email = value
	case FieldAge:
		s.form.Age = value
	case FieldGender:
		s.form.Gender = value
	case FieldDoctor:
		return s.selectDoctor(value, e)
	case FieldAmount:
		s.form.Amount = value
	case FieldPayment:
		s.form.PaymentMethod = value
	case FieldNote:
		s.form.Note = value
	default:
		return &ValidationError{Message: "unknown field " + strconv.Quote(string(field))}
	}
	return nil
}

// selectSuggestion autofills the form from an existing patient.
func (s *Session) selectSuggestion(patientID string, e env) error {
	for _, p := range e.patients {
		if p.ID != patientID {
			continue
		}
		s.form.Name = p.Name
		s.form.Phone = p.Phone
		s.form.Email = p.Email
		s.form.Age = p.Age
		s.form.Gender = p.Gender
		s.form.MatchedPatientID = p.ID
		s.suggestions = []patients.Patient{}
		return nil
	}
	return &LookupError{Kind: "patient", ID: patientID}
}

// applyVoice writes interpreter updates into the form in order. A spoken
// name goes through the same path as a typed one.
func (s *Session) applyVoice(res voice.Result, e env) {
	for _, u := range res.Updates {
		switch u.Field {
		case voice.FieldName:
			s.typeName(u.Value, e)
		case voice.FieldPhone:
			s.form.Phone = u.Value
		case voice.FieldEmail:
			s.form.Email = u.Value
		case voice.FieldAge:
			s.form.Age = u.Value
		case voice.FieldGender:
			s.form.Gender = u.Value
		case voice.FieldDoctor:
			s.form.SelectedDoctorID = u.DoctorID
		case voice.FieldAmount:
			s.form.Amount = u.Value
		case voice.FieldPayment:
			s.form.PaymentMethod = u.Value
		case voice.FieldMessage:
			s.form.Note = u.Value
		}
	}
}

// reset returns the form to its defaults after a successful submission.
func (s *Session) reset() {
	s.form = NewFormState()
	s.suggestions = []patients.Patient{}
}
