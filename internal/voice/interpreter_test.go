package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/opd-frontdesk/internal/doctors"
)

var testRoster = []doctors.Doctor{
	{ID: "d1", Name: "Dr. Anil Sharma", Charges: 500},
	{ID: "d2", Name: "Dr. Sunita Sharma", Charges: 700},
	{ID: "d3", Name: "Dr. Mehta", Charges: 350.5},
}

func updatesByField(res Result) map[Field]Update {
	out := make(map[Field]Update)
	for _, u := range res.Updates {
		out[u.Field] = u
	}
	return out
}

type recordingObserver struct {
	calls []string
}

func (r *recordingObserver) ObserveVoiceClause(field, outcome string) {
	r.calls = append(r.calls, field+":"+outcome)
}

func TestInterpretName(t *testing.T) {
	res := NewInterpreter().Interpret("name   John Smith  ", nil)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, Update{Field: FieldName, Value: "John Smith"}, res.Updates[0])
	require.Len(t, res.Notices, 1)
	assert.Equal(t, LevelInfo, res.Notices[0].Level)
	assert.Contains(t, res.Notices[0].Message, "John Smith")
}

func TestInterpretMultipleClauses(t *testing.T) {
	in := NewInterpreter()
	res := in.Interpret("Name Priya Nair phone 98765-43210 email priya@example.com age 34 gender female payment online message follow up visit", nil)
	got := updatesByField(res)

	assert.Equal(t, "Priya Nair", got[FieldName].Value)
	assert.Equal(t, "9876543210", got[FieldPhone].Value)
	assert.Equal(t, "priya@example.com", got[FieldEmail].Value)
	assert.Equal(t, "34", got[FieldAge].Value)
	assert.Equal(t, "Female", got[FieldGender].Value)
	assert.Equal(t, "Online", got[FieldPayment].Value)
	assert.Equal(t, "follow up visit", got[FieldMessage].Value)
}

func TestInterpretCanonicalOrder(t *testing.T) {
	res := NewInterpreter().Interpret("message hello age 40 name Ravi", nil)
	require.Len(t, res.Updates, 3)
	assert.Equal(t, FieldName, res.Updates[0].Field)
	assert.Equal(t, FieldAge, res.Updates[1].Field)
	assert.Equal(t, FieldMessage, res.Updates[2].Field)
}

func TestInterpretWholeWordKeywords(t *testing.T) {
	res := NewInterpreter().Interpret("message page me at noon", nil)
	got := updatesByField(res)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "page me at noon", got[FieldMessage].Value)
}

func TestInterpretFirstOccurrenceWins(t *testing.T) {
	res := NewInterpreter().Interpret("name John name Jack", nil)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "John", res.Updates[0].Value)
}

func TestInterpretKeywordPunctuation(t *testing.T) {
	res := NewInterpreter().Interpret("Name: John, Phone: 555 0100.", nil)
	got := updatesByField(res)
	assert.Equal(t, "John,", got[FieldName].Value)
	assert.Equal(t, "5550100", got[FieldPhone].Value)
}

func TestInterpretDoctorFirstMatchSetsAmount(t *testing.T) {
	res := NewInterpreter().Interpret("doctor sharma", testRoster)
	require.Len(t, res.Updates, 2)
	assert.Equal(t, Update{Field: FieldDoctor, Value: "Dr. Anil Sharma", DoctorID: "d1"}, res.Updates[0])
	assert.Equal(t, Update{Field: FieldAmount, Value: "500"}, res.Updates[1])
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0].Message, "Dr. Anil Sharma")
}

func TestInterpretExplicitAmountWinsOverCharges(t *testing.T) {
	res := NewInterpreter().Interpret("amount 200 doctor mehta", testRoster)
	require.Len(t, res.Updates, 3)
	assert.Equal(t, FieldDoctor, res.Updates[0].Field)
	assert.Equal(t, Update{Field: FieldAmount, Value: "350.5"}, res.Updates[1])
	assert.Equal(t, Update{Field: FieldAmount, Value: "200"}, res.Updates[2])
}

func TestInterpretDoctorNotFound(t *testing.T) {
	obs := &recordingObserver{}
	res := NewInterpreter(WithObserver(obs)).Interpret("doctor gupta name Asha", testRoster)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, FieldName, res.Updates[0].Field)

	var errNotice *Notice
	for i := range res.Notices {
		if res.Notices[i].Level == LevelError {
			errNotice = &res.Notices[i]
		}
	}
	require.NotNil(t, errNotice)
	assert.Equal(t, FieldDoctor, errNotice.Field)
	assert.Contains(t, errNotice.Message, `"gupta"`)
	assert.Equal(t, []string{"name:applied", "doctor:unmatched"}, obs.calls)
}

func TestInterpretEmptyValuesIgnored(t *testing.T) {
	obs := &recordingObserver{}
	in := NewInterpreter(WithObserver(obs))

	res := in.Interpret("name phone", nil)
	assert.Empty(t, res.Updates)
	assert.Empty(t, res.Notices)

	res = in.Interpret("phone call me", nil)
	assert.Empty(t, res.Updates)
	assert.Equal(t, []string{"name:empty", "phone:empty", "phone:empty"}, obs.calls)

	res = in.Interpret("   ", nil)
	assert.Empty(t, res.Updates)
}

func TestInterpretNoKeywords(t *testing.T) {
	res := NewInterpreter().Interpret("hello there", testRoster)
	assert.Empty(t, res.Updates)
	assert.Empty(t, res.Notices)
}

func TestInterpretPhoneVerbatim(t *testing.T) {
	res := NewInterpreter(WithPhonePolicy(PhoneVerbatim)).Interpret("phone +91 98765 43210", nil)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "+91 98765 43210", res.Updates[0].Value)
}

func TestInterpretLegacyPolicy(t *testing.T) {
	in := NewInterpreter(WithPolicy(PolicyLegacy))
	assert.Equal(t, PolicyLegacy, in.Policy())

	res := in.Interpret("name John", nil)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "John", res.Updates[0].Value)

	// The value runs to the next occurrence of the same keyword, so other
	// keywords are swallowed.
	res = in.Interpret("Name John phone 123", nil)
	got := updatesByField(res)
	assert.Equal(t, "John phone 123", got[FieldName].Value)
	assert.Equal(t, "123", got[FieldPhone].Value)

	res = in.Interpret("name Ann name Bob", nil)
	assert.Equal(t, "Ann", updatesByField(res)[FieldName].Value)

	res = in.Interpret("message stage", nil)
	got = updatesByField(res)
	assert.Equal(t, "stage", got[FieldMessage].Value)
}

func TestParsers(t *testing.T) {
	assert.Equal(t, PolicyLegacy, ParsePolicy(" LEGACY "))
	assert.Equal(t, PolicyGrammar, ParsePolicy(""))
	assert.Equal(t, PhoneVerbatim, ParsePhonePolicy("verbatim"))
	assert.Equal(t, PhoneDigits, ParsePhonePolicy("other"))
	assert.Equal(t, ModeContinuous, ParseMode("Continuous"))
	assert.Equal(t, ModeBatch, ParseMode(""))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Male", capitalize("male"))
	assert.Equal(t, "ÉLan", capitalize("éLan"))
	assert.Equal(t, "", capitalize(""))
}
