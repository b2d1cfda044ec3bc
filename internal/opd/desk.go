// Package opd runs OPD booking form sessions: manual field edits, voice
// command input, returning-patient autofill and booking submission.
package opd

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/internal/patients"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// RosterSource exposes the latest roster snapshot.
type RosterSource[T any] interface {
	Load() []T
}

// DeskObserver records desk-level metrics.
type DeskObserver interface {
	ObserveSuggestions(count int)
	SetOpenSessions(n int)
}

// DeskConfig wires a Desk.
type DeskConfig struct {
	Doctors     RosterSource[doctors.Doctor]
	Patients    RosterSource[patients.Patient]
	Submitter   *Submitter
	Interpreter *voice.Interpreter
	Matcher     patients.Matcher
	VoiceMode   voice.Mode
	Observer    DeskObserver
	Logger      *logging.Logger
}

// VoiceOutcome is the result of handing speech to the interpreter.
type VoiceOutcome struct {
	View   View         `json:"session"`
	Result voice.Result `json:"result"`
}

// Desk owns the open form sessions.
type Desk struct {
	doctors   RosterSource[doctors.Doctor]
	patients  RosterSource[patients.Patient]
	submitter *Submitter
	interp    *voice.Interpreter
	matcher   patients.Matcher
	voiceMode voice.Mode
	observer  DeskObserver
	logger    *logging.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewDesk constructs a desk.
func NewDesk(cfg DeskConfig) *Desk {
	if cfg.Doctors == nil || cfg.Patients == nil {
		panic("opd: doctor and patient rosters required")
	}
	if cfg.Submitter == nil {
		panic("opd: submitter required")
	}
	if cfg.Interpreter == nil {
		cfg.Interpreter = voice.NewInterpreter()
	}
	if cfg.Matcher.MinChars < 1 {
		cfg.Matcher = patients.NewMatcher(patients.DefaultMinChars)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Desk{
		doctors:   cfg.Doctors,
		patients:  cfg.Patients,
		submitter: cfg.Submitter,
		interp:    cfg.Interpreter,
		matcher:   cfg.Matcher,
		voiceMode: voice.ParseMode(string(cfg.VoiceMode)),
		observer:  cfg.Observer,
		logger:    cfg.Logger.Component("opd.desk"),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

func (d *Desk) snapshot() env {
	return env{
		doctors:  d.doctors.Load(),
		patients: d.patients.Load(),
		matcher:  d.matcher,
	}
}

// Doctors returns the current doctor roster.
func (d *Desk) Doctors() []doctors.Doctor {
	return d.doctors.Load()
}

// Suggest matches partial against the current patient roster.
func (d *Desk) Suggest(partial string) []patients.Patient {
	out := d.matcher.Suggest(partial, d.patients.Load())
	d.observeSuggestions(out)
	return out
}

func (d *Desk) observeSuggestions(out []patients.Patient) {
	if d.observer != nil {
		d.observer.ObserveSuggestions(len(out))
	}
}

func (d *Desk) observeOpen() {
	if d.observer == nil {
		return
	}
	d.mu.RLock()
	n := len(d.sessions)
	d.mu.RUnlock()
	d.observer.SetOpenSessions(n)
}

// Open starts a new form session.
func (d *Desk) Open() View {
	s := newSession(uuid.NewString(), d.voiceMode, d.now())
	d.mu.Lock()
	d.sessions[s.id] = s
	d.mu.Unlock()
	d.observeOpen()
	d.logger.Info("form session opened", "session_id", s.id, "voice_mode", d.voiceMode)
	return s.View()
}

// Session looks up an open session.
func (d *Desk) Session(id string) (*Session, error) {
	d.mu.RLock()
	s, ok := d.sessions[id]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Get returns the current view of a session.
func (d *Desk) Get(id string) (View, error) {
	s, err := d.Session(id)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Close discards a session and its unsaved form.
func (d *Desk) Close(id string) error {
	d.mu.Lock()
	_, ok := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	d.observeOpen()
	d.logger.Info("form session closed", "session_id", id)
	return nil
}

// SweepIdle closes sessions untouched for longer than maxIdle and returns how
// many were closed.
func (d *Desk) SweepIdle(maxIdle time.Duration) int {
	cutoff := d.now().Add(-maxIdle)
	d.mu.RLock()
	var stale []string
	for id, s := range d.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	d.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if d.Close(id) == nil {
			closed++
		}
	}
	return closed
}

// update runs fn under the session lock with the roster snapshot current
// once the lock is held.
func (d *Desk) update(id string, fn func(s *Session, e env) error) (View, error) {
	s, err := d.Session(id)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := d.snapshot()
	s.touchedAt = d.now()
	if err := fn(s, e); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

// SetField applies a manual edit. Editing the name refreshes suggestions;
// choosing a doctor resets the amount to that doctor's charges.
func (d *Desk) SetField(id string, field Field, value string) (View, error) {
	view, err := d.update(id, func(s *Session, e env) error {
		return s.setField(field, value, e)
	})
	if err == nil && field == FieldName {
		d.observeSuggestions(view.Suggestions)
	}
	return view, err
}

// SelectSuggestion autofills the form from an existing patient.
func (d *Desk) SelectSuggestion(id, patientID string) (View, error) {
	return d.update(id, func(s *Session, e env) error {
		return s.selectSuggestion(patientID, e)
	})
}

// StartVoice begins a capture with an empty transcript.
func (d *Desk) StartVoice(id string) (View, error) {
	return d.update(id, func(s *Session, e env) error {
		s.capture.Start()
		return nil
	})
}

// VoiceTranscript replaces the running transcript.
func (d *Desk) VoiceTranscript(id, text string) (View, error) {
	return d.update(id, func(s *Session, e env) error {
		return s.capture.Transcript(text)
	})
}

// StopVoice ends the capture and, in batch mode, interprets the transcript.
func (d *Desk) StopVoice(id string) (VoiceOutcome, error) {
	return d.interpret(id, func(c *voice.Capture) (string, error) {
		return c.Stop()
	})
}

// VoiceUtterance interprets one finalized utterance in continuous mode.
func (d *Desk) VoiceUtterance(id, utterance string) (VoiceOutcome, error) {
	return d.interpret(id, func(c *voice.Capture) (string, error) {
		return c.Finalize(utterance)
	})
}

func (d *Desk) interpret(id string, take func(c *voice.Capture) (string, error)) (VoiceOutcome, error) {
	var res voice.Result
	view, err := d.update(id, func(s *Session, e env) error {
		text, err := take(s.capture)
		if err != nil {
			return err
		}
		res = d.interp.Interpret(text, e.doctors)
		s.applyVoice(res, e)
		return nil
	})
	if err != nil {
		return VoiceOutcome{View: view}, err
	}
	if len(res.Updates) > 0 {
		d.logger.Debug("voice command applied", "session_id", id, "updates", len(res.Updates), "notices", len(res.Notices))
	}
	return VoiceOutcome{View: view, Result: res}, nil
}

// Submit stores the session's booking and resets the form on success. The
// form is left untouched on failure so the operator can correct it.
func (d *Desk) Submit(ctx context.Context, id string) (Receipt, View, error) {
	var receipt Receipt
	view, err := d.update(id, func(s *Session, e env) error {
		r, err := d.submitter.Submit(ctx, s.form, e.doctors)
		if err != nil {
			return err
		}
		receipt = r
		s.reset()
		return nil
	})
	return receipt, view, err
}
