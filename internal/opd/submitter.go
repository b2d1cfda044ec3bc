package opd

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/internal/patients"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

var opdTracer = otel.Tracer("frontdesk.internal.opd")

const maxAge = 150

// Mode says whether a submission created a patient or extended one.
type Mode string

const (
	ModeAppend Mode = "append"
	ModeCreate Mode = "create"
)

// Receipt describes a stored booking.
type Receipt struct {
	Mode      Mode             `json:"mode"`
	PatientID string           `json:"patientId"`
	BookingID string           `json:"bookingId"`
	Message   string           `json:"message"`
	Booking   patients.Booking `json:"booking"`
}

// Confirmation is what a confirmation sender needs to notify the patient.
type Confirmation struct {
	Receipt     Receipt
	PatientName string
	Email       string
}

// ConfirmationSender notifies a patient after a booking is stored.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, c Confirmation) error
}

// SubmissionObserver records submission outcomes.
type SubmissionObserver interface {
	ObserveSubmission(mode, outcome string, elapsed time.Duration)
}

// Submitter validates a form and writes the booking.
type Submitter struct {
	store    docstore.Store
	logger   *logging.Logger
	now      func() time.Time
	confirm  ConfirmationSender
	observer SubmissionObserver
}

// SubmitterOption customizes a Submitter.
type SubmitterOption func(*Submitter)

// WithConfirmationSender sends a best-effort confirmation after each booking.
func WithConfirmationSender(sender ConfirmationSender) SubmitterOption {
	return func(s *Submitter) { s.confirm = sender }
}

// WithSubmissionObserver reports outcomes to obs.
func WithSubmissionObserver(obs SubmissionObserver) SubmitterOption {
	return func(s *Submitter) { s.observer = obs }
}

// WithClock overrides the booking timestamp source.
func WithClock(now func() time.Time) SubmitterOption {
	return func(s *Submitter) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSubmitter constructs a submitter on store.
func NewSubmitter(store docstore.Store, logger *logging.Logger, opts ...SubmitterOption) *Submitter {
	if store == nil {
		panic("opd: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Submitter{store: store, logger: logger.Component("opd.submitter"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validated is a form that passed every check.
type validated struct {
	form    FormState
	age     int
	amount  float64
	gender  string
	payment string
	doctor  doctors.Doctor
}

// validate checks form against the doctor roster without writing anything.
func (s *Submitter) validate(form FormState, roster []doctors.Doctor) (validated, error) {
	if missing := form.missingRequired(); len(missing) > 0 {
		return validated{}, &ValidationError{Message: "missing required fields", Fields: missing}
	}

	var invalid []string
	age, err := strconv.Atoi(strings.TrimSpace(form.Age))
	if err != nil || age < 0 || age > maxAge {
		invalid = append(invalid, "age")
	}
	gender, ok := normalizeGender(form.Gender)
	if !ok {
		invalid = append(invalid, "gender")
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(form.Amount), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		invalid = append(invalid, "amount")
	}
	payment, ok := normalizePayment(form.PaymentMethod)
	if !ok {
		invalid = append(invalid, "payment")
	}
	if len(invalid) > 0 {
		return validated{}, &ValidationError{Message: "invalid field values", Fields: invalid}
	}

	doc, ok := doctors.FindByID(roster, form.SelectedDoctorID)
	if !ok {
		return validated{}, &LookupError{Kind: "doctor", ID: form.SelectedDoctorID}
	}
	return validated{form: form, age: age, amount: amount, gender: gender, payment: payment, doctor: doc}, nil
}

func normalizeGender(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male":
		return patients.GenderMale, true
	case "female":
		return patients.GenderFemale, true
	case "other":
		return patients.GenderOther, true
	}
	return "", false
}

func normalizePayment(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cash":
		return patients.PaymentCash, true
	case "online":
		return patients.PaymentOnline, true
	}
	return "", false
}

// Submit stores the booking described by form. roster is the doctor roster
// snapshot current when the submission started. When form names a matched
// patient the booking is appended under that patient; otherwise a new patient
// is created with the booking embedded.
func (s *Submitter) Submit(ctx context.Context, form FormState, roster []doctors.Doctor) (Receipt, error) {
	began := time.Now()
	mode := ModeCreate
	if strings.TrimSpace(form.MatchedPatientID) != "" {
		mode = ModeAppend
	}

	ctx, span := opdTracer.Start(ctx, "opd.submit")
	defer span.End()
	span.SetAttributes(attribute.String("frontdesk.submit_mode", string(mode)))

	receipt, err := s.submit(ctx, mode, form, roster)
	s.observe(mode, err, time.Since(began))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		s.logger.Warn("booking submission failed", "mode", mode, "error", err)
		return Receipt{}, err
	}
	span.SetAttributes(
		attribute.String("frontdesk.patient_id", receipt.PatientID),
		attribute.String("frontdesk.booking_id", receipt.BookingID),
	)
	s.logger.Info("booking stored", "mode", mode, "patient_id", receipt.PatientID, "booking_id", receipt.BookingID, "doctor_id", receipt.Booking.DoctorID)
	s.sendConfirmation(ctx, receipt, form)
	return receipt, nil
}

func (s *Submitter) submit(ctx context.Context, mode Mode, form FormState, roster []doctors.Doctor) (Receipt, error) {
	v, err := s.validate(form, roster)
	if err != nil {
		return Receipt{}, err
	}

	booking := patients.Booking{
		CreatedAt:     s.now().UnixMilli(),
		Note:          strings.TrimSpace(v.form.Note),
		DoctorName:    v.doctor.Name,
		DoctorID:      v.doctor.ID,
		PaymentMethod: v.payment,
		Amount:        v.amount,
	}

	if mode == ModeAppend {
		patientID := strings.TrimSpace(v.form.MatchedPatientID)
		bookingsPath := patients.BookingsPath(patientID)
		bookingID, err := s.store.NewKey(ctx, bookingsPath)
		if err != nil {
			return Receipt{}, &IDGenerationError{Path: bookingsPath, Err: err}
		}
		booking.BookingID = bookingID
		path := patients.BookingPath(patientID, bookingID)
		if err := s.store.Set(ctx, path, booking); err != nil {
			return Receipt{}, &StoreWriteError{Path: path, Err: err}
		}
		return Receipt{
			Mode:      ModeAppend,
			PatientID: patientID,
			BookingID: bookingID,
			Message:   "OPD booking added for existing patient",
			Booking:   booking,
		}, nil
	}

	patientID, err := s.store.NewKey(ctx, patients.Collection)
	if err != nil {
		return Receipt{}, &IDGenerationError{Path: patients.Collection, Err: err}
	}
	bookingsPath := patients.BookingsPath(patientID)
	bookingID, err := s.store.NewKey(ctx, bookingsPath)
	if err != nil {
		return Receipt{}, &IDGenerationError{Path: bookingsPath, Err: err}
	}
	booking.BookingID = bookingID

	record := patients.Patient{
		Name:     strings.TrimSpace(v.form.Name),
		Phone:    strings.TrimSpace(v.form.Phone),
		Email:    strings.TrimSpace(v.form.Email),
		Age:      strconv.Itoa(v.age),
		Gender:   v.gender,
		Bookings: map[string]patients.Booking{bookingID: booking},
	}
	path := patients.Path(patientID)
	if err := s.store.Set(ctx, path, record); err != nil {
		return Receipt{}, &StoreWriteError{Path: path, Err: err}
	}
	return Receipt{
		Mode:      ModeCreate,
		PatientID: patientID,
		BookingID: bookingID,
		Message:   "New patient created and OPD booking submitted",
		Booking:   booking,
	}, nil
}

func (s *Submitter) observe(mode Mode, err error, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveSubmission(string(mode), outcomeOf(err), elapsed)
}

func outcomeOf(err error) string {
	var (
		validation *ValidationError
		lookup     *LookupError
		idGen      *IDGenerationError
		write      *StoreWriteError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &lookup):
		return "lookup_error"
	case errors.As(err, &idGen):
		return "id_error"
	case errors.As(err, &write):
		return "write_error"
	}
	return "error"
}

// sendConfirmation is best-effort: failures are logged, never returned.
func (s *Submitter) sendConfirmation(ctx context.Context, receipt Receipt, form FormState) {
	if s.confirm == nil {
		return
	}
	email := strings.TrimSpace(form.Email)
	if email == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := s.confirm.SendBookingConfirmation(ctx, Confirmation{
		Receipt:     receipt,
		PatientName: strings.TrimSpace(form.Name),
		Email:       email,
	})
	if err != nil {
		s.logger.Warn("booking confirmation not sent", "booking_id", receipt.BookingID, "error", err)
	}
}
