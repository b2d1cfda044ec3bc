// Package patients holds the patient record model and the name matcher used
// to autofill returning patients.
package patients

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
)

// Collection is the store path patients live under.
const Collection = "patients"

// BookingsField is the nested map holding a patient's bookings.
const BookingsField = "bookings"

// Payment methods.
const (
	PaymentCash   = "Cash"
	PaymentOnline = "Online"
)

// Genders.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Booking is one OPD visit. Bookings are append-only.
type Booking struct {
	BookingID     string  `json:"bookingId"`
	CreatedAt     int64   `json:"createdAt"`
	Note          string  `json:"note"`
	DoctorName    string  `json:"doctorName"`
	DoctorID      string  `json:"doctorId"`
	PaymentMethod string  `json:"paymentMethod"`
	Amount        float64 `json:"amount"`
}

// Patient is a stored patient record.
type Patient struct {
	ID       string             `json:"id,omitempty"`
	Name     string             `json:"name"`
	Phone    string             `json:"phone"`
	Email    string             `json:"email"`
	Age      string             `json:"age"`
	Gender   string             `json:"gender"`
	Bookings map[string]Booking `json:"bookings,omitempty"`
}

// Path returns the patient document path.
func Path(patientID string) string {
	return docstore.Join(Collection, patientID)
}

// BookingsPath returns the collection path bookings are keyed under.
func BookingsPath(patientID string) string {
	return docstore.Join(Collection, patientID, BookingsField)
}

// BookingPath returns the path of one booking.
func BookingPath(patientID, bookingID string) string {
	return docstore.Join(Collection, patientID, BookingsField, bookingID)
}

// FromChild decodes a patient from a collection snapshot child.
func FromChild(child docstore.Child) (Patient, error) {
	var p Patient
	if err := json.Unmarshal(child.Value, &p); err != nil {
		return Patient{}, fmt.Errorf("patients: decode %s: %w", child.Key, err)
	}
	p.ID = child.Key
	return p, nil
}

// SortedBookings returns bookings ordered by creation time, then id.
func (p Patient) SortedBookings() []Booking {
	out := make([]Booking, 0, len(p.Bookings))
	for _, b := range p.Bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].BookingID < out[j].BookingID
	})
	return out
}
