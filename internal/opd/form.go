package opd

import (
	"fmt"
	"strings"

	"github.com/wolfman30/opd-frontdesk/internal/patients"
)

// Field names a form input.
type Field string

const (
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldEmail   Field = "email"
	FieldAge     Field = "age"
	FieldGender  Field = "gender"
	FieldDoctor  Field = "doctor"
	FieldAmount  Field = "amount"
	FieldPayment Field = "payment"
	FieldNote    Field = "note"
)

// ParseField maps a path segment to a Field. "message" is accepted for note
// to match the spoken keyword.
func ParseField(raw string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(raw))); f {
	case FieldName, FieldPhone, FieldEmail, FieldAge, FieldGender, FieldDoctor, FieldAmount, FieldPayment, FieldNote:
		return f, nil
	case "message":
		return FieldNote, nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("unknown field %q", raw)}
}

// FormState is the working state of one booking form.
type FormState struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Age              string `json:"age"`
	Gender           string `json:"gender"`
	SelectedDoctorID string `json:"selectedDoctorId"`
	Amount           string `json:"amount"`
	PaymentMethod    string `json:"paymentMethod"`
	Note             string `json:"note"`
	MatchedPatientID string `json:"matchedPatientId,omitempty"`
}

// NewFormState returns an empty form with the default payment method.
func NewFormState() FormState {
	return FormState{PaymentMethod: patients.PaymentCash}
}

// missingRequired lists empty required fields in form order.
func (f FormState) missingRequired() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", f.Name)
	check("phone", f.Phone)
	check("email", f.Email)
	check("age", f.Age)
	check("gender", f.Gender)
	check("doctor", f.SelectedDoctorID)
	check("amount", f.Amount)
	return missing
}
