// Package voice turns spoken booking commands into form field updates.
//
// An utterance is a run of keyword clauses such as
// "name John Smith phone 98765 43210 doctor sharma". Each recognized keyword
// fills one form field; a "doctor" clause also selects a roster doctor and
// sets the amount to that doctor's charges.
package voice

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/opd-frontdesk/internal/doctors"
)

// Field is a form field a keyword fills.
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
	FieldMessage Field = "message"
)

// Keywords lists the recognized keywords in the order updates are applied.
var Keywords = []Field{
	FieldName,
	FieldPhone,
	FieldEmail,
	FieldAge,
	FieldGender,
	FieldDoctor,
	FieldAmount,
	FieldPayment,
	FieldMessage,
}

func isKeyword(token string) (Field, bool) {
	for _, kw := range Keywords {
		if string(kw) == token {
			return kw, true
		}
	}
	return "", false
}

// Policy selects how clauses are cut out of an utterance.
type Policy string

const (
	// PolicyGrammar segments on whole-word keywords.
	PolicyGrammar Policy = "grammar"
	// PolicyLegacy takes the text between the first and second substring
	// occurrence of each keyword. Values containing another keyword misparse.
	PolicyLegacy Policy = "legacy"
)

// ParsePolicy maps a config value to a Policy, defaulting to grammar.
func ParsePolicy(raw string) Policy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicyLegacy)) {
		return PolicyLegacy
	}
	return PolicyGrammar
}

// PhonePolicy controls how spoken phone numbers are normalized.
type PhonePolicy string

const (
	PhoneDigits   PhonePolicy = "digits"
	PhoneVerbatim PhonePolicy = "verbatim"
)

// ParsePhonePolicy maps a config value to a PhonePolicy, defaulting to digits.
func ParsePhonePolicy(raw string) PhonePolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PhoneVerbatim)) {
		return PhoneVerbatim
	}
	return PhoneDigits
}

// Update sets one form field. DoctorID is set for doctor updates only.
type Update struct {
	Field    Field  `json:"field"`
	Value    string `json:"value"`
	DoctorID string `json:"doctorId,omitempty"`
}

// Level grades a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice acknowledges a clause to the operator.
type Notice struct {
	Level   Level  `json:"level"`
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of interpreting one utterance.
type Result struct {
	Updates []Update `json:"updates"`
	Notices []Notice `json:"notices"`
}

// LookupError reports a spoken doctor name that matched no roster entry.
type LookupError struct {
	Query string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("voice: no doctor matches %q", e.Query)
}

// ClauseObserver records clause outcomes.
type ClauseObserver interface {
	ObserveVoiceClause(field, outcome string)
}

// Clause outcomes reported to a ClauseObserver.
const (
	OutcomeApplied   = "applied"
	OutcomeEmpty     = "empty"
	OutcomeUnmatched = "unmatched"
)

// Interpreter extracts field updates from utterances. It holds no per-call
// state and is safe for concurrent use.
type Interpreter struct {
	policy   Policy
	phone    PhonePolicy
	observer ClauseObserver
}

// Option customizes an Interpreter.
type Option func(*Interpreter)

// WithPolicy selects the segmentation policy.
func WithPolicy(p Policy) Option {
	return func(i *Interpreter) { i.policy = p }
}

// WithPhonePolicy selects phone normalization.
func WithPhonePolicy(p PhonePolicy) Option {
	return func(i *Interpreter) { i.phone = p }
}

// WithObserver reports every clause outcome to obs.
func WithObserver(obs ClauseObserver) Option {
	return func(i *Interpreter) { i.observer = obs }
}

// NewInterpreter returns a grammar/digits interpreter unless overridden.
func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{policy: PolicyGrammar, phone: PhoneDigits}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Policy reports the active segmentation policy.
func (i *Interpreter) Policy() Policy {
	return i.policy
}

// Interpret parses utterance against the doctor roster snapshot. Updates come
// out in keyword order, so an explicit amount follows, and wins over, the
// charges a doctor clause sets.
func (i *Interpreter) Interpret(utterance string, roster []doctors.Doctor) Result {
	res := Result{Updates: []Update{}, Notices: []Notice{}}
	if strings.TrimSpace(utterance) == "" {
		return res
	}

	var clauses map[Field]string
	if i.policy == PolicyLegacy {
		clauses = legacyClauses(utterance)
	} else {
		clauses = grammarClauses(utterance)
	}

	for _, kw := range Keywords {
		raw, ok := clauses[kw]
		if !ok {
			continue
		}
		i.apply(&res, kw, strings.TrimSpace(raw), roster)
	}
	return res
}

func (i *Interpreter) apply(res *Result, field Field, value string, roster []doctors.Doctor) {
	switch field {
	case FieldPhone:
		if i.phone == PhoneDigits {
			value = digitsOnly(value)
		}
	case FieldGender, FieldPayment:
		value = capitalize(value)
	}
	if value == "" {
		i.observe(field, OutcomeEmpty)
		return
	}

	if field == FieldDoctor {
		doc, ok := doctors.MatchName(roster, value)
		if !ok {
			err := &LookupError{Query: value}
			res.Notices = append(res.Notices, Notice{Level: LevelError, Field: field, Message: err.Error()})
			i.observe(field, OutcomeUnmatched)
			return
		}
		charges := formatCharges(doc.Charges)
		res.Updates = append(res.Updates,
			Update{Field: FieldDoctor, Value: doc.Name, DoctorID: doc.ID},
			Update{Field: FieldAmount, Value: charges},
		)
		res.Notices = append(res.Notices, Notice{
			Level:   LevelInfo,
			Field:   field,
			Message: fmt.Sprintf("doctor set to %s (charges %s)", doc.Name, charges),
		})
		i.observe(field, OutcomeApplied)
		return
	}

	res.Updates = append(res.Updates, Update{Field: field, Value: value})
	res.Notices = append(res.Notices, Notice{
		Level:   LevelInfo,
		Field:   field,
		Message: fmt.Sprintf("%s set to %s", field, value),
	})
	i.observe(field, OutcomeApplied)
}

func (i *Interpreter) observe(field Field, outcome string) {
	if i.observer != nil {
		i.observer.ObserveVoiceClause(string(field), outcome)
	}
}

// grammarClauses maps each keyword's first whole-token occurrence to the text
// up to the next keyword token of any kind.
func grammarClauses(utterance string) map[Field]string {
	tokens := strings.Fields(utterance)
	type mark struct {
		field Field
		pos   int
	}
	var marks []mark
	for pos, tok := range tokens {
		norm := strings.ToLower(strings.TrimFunc(tok, unicode.IsPunct))
		if kw, ok := isKeyword(norm); ok {
			marks = append(marks, mark{field: kw, pos: pos})
		}
	}

	clauses := make(map[Field]string, len(marks))
	for n, m := range marks {
		if _, seen := clauses[m.field]; seen {
			continue
		}
		end := len(tokens)
		if n+1 < len(marks) {
			end = marks[n+1].pos
		}
		clauses[m.field] = strings.Join(tokens[m.pos+1:end], " ")
	}
	return clauses
}

// legacyClauses splits on case-insensitive substring occurrences.
func legacyClauses(utterance string) map[Field]string {
	clauses := make(map[Field]string)
	for _, kw := range Keywords {
		k := string(kw)
		first := indexFold(utterance, k)
		if first < 0 {
			continue
		}
		start := first + len(k)
		end := len(utterance)
		if next := indexFold(utterance[start:], k); next >= 0 {
			end = start + next
		}
		clauses[kw] = utterance[start:end]
	}
	return clauses
}

// indexFold is strings.Index with ASCII case folding. Byte offsets stay valid
// for the original string.
func indexFold(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func formatCharges(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
