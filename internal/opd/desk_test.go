package opd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/internal/patients"
	"github.com/wolfman30/opd-frontdesk/internal/roster"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
)

type deskFixture struct {
	desk     *Desk
	store    *recordingStore
	doctors  *staticRoster[doctors.Doctor]
	patients *staticRoster[patients.Patient]
}

func newDeskFixture(t *testing.T, mode voice.Mode) *deskFixture {
	t.Helper()
	store := newRecordingStore()
	f := &deskFixture{
		store:    store,
		doctors:  &staticRoster[doctors.Doctor]{items: testDoctors()},
		patients: &staticRoster[patients.Patient]{items: testPatients()},
	}
	f.desk = NewDesk(DeskConfig{
		Doctors:   f.doctors,
		Patients:  f.patients,
		Submitter: newTestSubmitter(store),
		VoiceMode: mode,
	})
	return f
}

func suggestionNames(v View) []string {
	out := make([]string, 0, len(v.Suggestions))
	for _, p := range v.Suggestions {
		out = append(out, p.Name)
	}
	return out
}

func TestOpenDefaults(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	view := f.desk.Open()
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, NewFormState(), view.Form)
	assert.Equal(t, patients.PaymentCash, view.Form.PaymentMethod)
	assert.Empty(t, view.Suggestions)
	assert.Equal(t, voice.ModeBatch, view.Voice.Mode)

	got, err := f.desk.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
}

func TestUnknownSession(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	_, err := f.desk.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.desk.SetField("nope", FieldName, "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.desk.Close("nope"), ErrSessionNotFound)
}

func TestTypingNameSuggestsPatients(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID

	view, err := f.desk.SetField(id, FieldName, "j")
	require.NoError(t, err)
	assert.Empty(t, view.Suggestions)

	view, err = f.desk.SetField(id, FieldName, "jo")
	require.NoError(t, err)
	assert.Equal(t, []string{"John", "Joanna"}, suggestionNames(view))
}

func TestSelectSuggestionAutofills(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID
	_, err := f.desk.SetField(id, FieldName, "joa")
	require.NoError(t, err)

	view, err := f.desk.SelectSuggestion(id, joanna.ID)
	require.NoError(t, err)
	assert.Equal(t, joanna.ID, view.Form.MatchedPatientID)
	assert.Equal(t, joanna.Name, view.Form.Name)
	assert.Equal(t, joanna.Phone, view.Form.Phone)
	assert.Equal(t, joanna.Email, view.Form.Email)
	assert.Equal(t, joanna.Age, view.Form.Age)
	assert.Equal(t, joanna.Gender, view.Form.Gender)
	assert.Empty(t, view.Suggestions)

	_, err = f.desk.SelectSuggestion(id, "ghost")
	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "patient", lerr.Kind)
}

func TestEditingNameAfterMatchKeepsAutofill(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID
	_, err := f.desk.SelectSuggestion(id, john.ID)
	require.NoError(t, err)

	view, err := f.desk.SetField(id, FieldName, "Johnny")
	require.NoError(t, err)
	assert.Empty(t, view.Form.MatchedPatientID)
	assert.Equal(t, john.Phone, view.Form.Phone)
	assert.Equal(t, john.Email, view.Form.Email)
}

func TestManualDoctorSelectionSetsAmount(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID

	view, err := f.desk.SetField(id, FieldDoctor, drSunita.ID)
	require.NoError(t, err)
	assert.Equal(t, drSunita.ID, view.Form.SelectedDoctorID)
	assert.Equal(t, "700", view.Form.Amount)

	view, err = f.desk.SetField(id, FieldAmount, "650")
	require.NoError(t, err)
	assert.Equal(t, "650", view.Form.Amount)

	view, err = f.desk.SetField(id, FieldDoctor, drSunita.ID)
	require.NoError(t, err)
	assert.Equal(t, "700", view.Form.Amount)

	_, err = f.desk.SetField(id, FieldDoctor, "missing")
	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
}

func TestVoiceBatchFillsForm(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID

	_, err := f.desk.StartVoice(id)
	require.NoError(t, err)
	_, err = f.desk.VoiceTranscript(id, "name Priya")
	require.NoError(t, err)
	view, err := f.desk.VoiceTranscript(id, "name Priya phone 99887 76655 doctor mehta message review reports")
	require.NoError(t, err)
	assert.True(t, view.Voice.Listening)

	out, err := f.desk.StopVoice(id)
	require.NoError(t, err)
	form := out.View.Form
	assert.Equal(t, "Priya", form.Name)
	assert.Equal(t, "9988776655", form.Phone)
	assert.Equal(t, drMehta.ID, form.SelectedDoctorID)
	assert.Equal(t, "350", form.Amount)
	assert.Equal(t, "review reports", form.Note)
	assert.False(t, out.View.Voice.Listening)
	assert.NotEmpty(t, out.Result.Notices)
}

func TestVoiceDoctorResetsOverriddenAmount(t *testing.T) {
	f := newDeskFixture(t, voice.ModeContinuous)
	id := f.desk.Open().ID
	_, err := f.desk.StartVoice(id)
	require.NoError(t, err)

	out, err := f.desk.VoiceUtterance(id, "doctor sharma")
	require.NoError(t, err)
	assert.Equal(t, drSharma.ID, out.View.Form.SelectedDoctorID)
	assert.Equal(t, "500", out.View.Form.Amount)

	_, err = f.desk.SetField(id, FieldAmount, "100")
	require.NoError(t, err)

	out, err = f.desk.VoiceUtterance(id, "doctor anil")
	require.NoError(t, err)
	assert.Equal(t, "500", out.View.Form.Amount)
}

func TestVoiceUnknownDoctorLeavesForm(t *testing.T) {
	f := newDeskFixture(t, voice.ModeContinuous)
	id := f.desk.Open().ID
	_, err := f.desk.SetField(id, FieldDoctor, drMehta.ID)
	require.NoError(t, err)
	_, err = f.desk.StartVoice(id)
	require.NoError(t, err)

	out, err := f.desk.VoiceUtterance(id, "doctor gupta")
	require.NoError(t, err)
	assert.Equal(t, drMehta.ID, out.View.Form.SelectedDoctorID)
	assert.Equal(t, "350", out.View.Form.Amount)
	require.Len(t, out.Result.Notices, 1)
	assert.Equal(t, voice.LevelError, out.Result.Notices[0].Level)
}

func TestVoiceNameRefreshesSuggestions(t *testing.T) {
	f := newDeskFixture(t, voice.ModeContinuous)
	id := f.desk.Open().ID
	_, err := f.desk.SelectSuggestion(id, mike.ID)
	require.NoError(t, err)
	_, err = f.desk.StartVoice(id)
	require.NoError(t, err)

	out, err := f.desk.VoiceUtterance(id, "name jo")
	require.NoError(t, err)
	assert.Empty(t, out.View.Form.MatchedPatientID)
	assert.Equal(t, []string{"John", "Joanna"}, suggestionNames(out.View))
}

func TestVoiceModeErrors(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID

	_, err := f.desk.VoiceTranscript(id, "name x")
	assert.ErrorIs(t, err, voice.ErrNotListening)

	_, err = f.desk.StartVoice(id)
	require.NoError(t, err)
	_, err = f.desk.VoiceUtterance(id, "name x")
	assert.ErrorIs(t, err, voice.ErrWrongMode)
}

func TestSubmitResetsFormOnSuccess(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID
	_, err := f.desk.SelectSuggestion(id, john.ID)
	require.NoError(t, err)
	_, err = f.desk.SetField(id, FieldDoctor, drSharma.ID)
	require.NoError(t, err)
	_, err = f.desk.SetField(id, FieldPayment, "Online")
	require.NoError(t, err)

	receipt, view, err := f.desk.Submit(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, receipt.Mode)
	assert.Equal(t, john.ID, receipt.PatientID)
	assert.Equal(t, NewFormState(), view.Form)

	writes := f.store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, patients.BookingPath(john.ID, receipt.BookingID), writes[0].Path)
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID
	_, err := f.desk.SetField(id, FieldName, "Asha")
	require.NoError(t, err)

	_, view, err := f.desk.Submit(context.Background(), id)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Asha", view.Form.Name)
	assert.Empty(t, f.store.writes())
}

func TestSubmitUsesRosterAtSubmission(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	id := f.desk.Open().ID
	form := completeForm()
	for field, value := range map[Field]string{
		FieldName:   form.Name,
		FieldPhone:  form.Phone,
		FieldEmail:  form.Email,
		FieldAge:    form.Age,
		FieldGender: form.Gender,
		FieldDoctor: drSunita.ID,
	} {
		_, err := f.desk.SetField(id, field, value)
		require.NoError(t, err)
	}

	f.doctors.items = []doctors.Doctor{drSharma}
	_, _, err := f.desk.Submit(context.Background(), id)
	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Empty(t, f.store.writes())
}

func TestCloseAndSweep(t *testing.T) {
	f := newDeskFixture(t, voice.ModeBatch)
	now := time.Now()
	f.desk.now = func() time.Time { return now }

	stale := f.desk.Open().ID
	now = now.Add(time.Hour)
	fresh := f.desk.Open().ID

	assert.Equal(t, 1, f.desk.SweepIdle(30*time.Minute))
	_, err := f.desk.Get(stale)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, f.desk.Close(fresh))
	_, err = f.desk.Get(fresh)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestParseField(t *testing.T) {
	got, err := ParseField("Message")
	require.NoError(t, err)
	assert.Equal(t, FieldNote, got)

	_, err = ParseField("ssn")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestQueuedEventSeesRosterCurrentWhenItRuns(t *testing.T) {
	var doctorCell roster.Cell[doctors.Doctor]
	doctorCell.Store(testDoctors())
	desk := NewDesk(DeskConfig{
		Doctors:   &doctorCell,
		Patients:  &staticRoster[patients.Patient]{items: testPatients()},
		Submitter: newTestSubmitter(newRecordingStore()),
	})
	id := desk.Open().ID
	s, err := desk.Session(id)
	require.NoError(t, err)

	// Hold the session as a slow submission would.
	s.mu.Lock()
	type result struct {
		view View
		err  error
	}
	done := make(chan result, 1)
	go func() {
		view, err := desk.SetField(id, FieldDoctor, "doc-4")
		done <- result{view, err}
	}()

	time.Sleep(20 * time.Millisecond)
	drKapoor := doctors.Doctor{ID: "doc-4", Name: "Dr. Kapoor", Charges: 900, Type: doctors.TypeOPD}
	doctorCell.Store(append(testDoctors(), drKapoor))
	s.mu.Unlock()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "doc-4", r.view.Form.SelectedDoctorID)
		assert.Equal(t, "900", r.view.Form.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("queued edit never ran")
	}
}
