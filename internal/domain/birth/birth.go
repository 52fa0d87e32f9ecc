// Package birth defines the birth-detail records collected by the site's
// forms and the validation rules applied to them before any scoring call.
package birth

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Layouts of the values produced by <input type="date"> and <input type="time">.
// Time inputs with a step below one minute submit seconds.
const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	TimeLayoutSeconds = "15:04:05"
)

// MinTextLength is the minimum trimmed length of names and places.
const MinTextLength = 3

// Field names a form input. The values double as JSON keys.
type Field string

const (
	FieldName         Field = "name"
	FieldDOB          Field = "dob"
	FieldTOB          Field = "tob"
	FieldPlaceOfBirth Field = "place_of_birth"
)

// User-facing validation messages.
const (
	MsgAllRequired   = "All fields are required."
	MsgNameShort     = "Name must be at least 3 characters."
	MsgDOBRequired   = "Date of birth is required."
	MsgDOBInvalid    = "Date of birth must be a valid date."
	MsgTOBRequired   = "Time of birth is required."
	MsgTOBInvalid    = "Time of birth must be a valid time."
	MsgPlaceTooShort = "Place of birth must be at least 3 characters."
)

// Person is one set of birth details.
type Person struct {
	Name         string `json:"name"`
	DOB          string `json:"dob"`
	TOB          string `json:"tob"`
	PlaceOfBirth string `json:"place_of_birth"`
}

// MoonQuery is the input of the Moon sign finder. TOB is optional.
type MoonQuery struct {
	DOB          string `json:"dob"`
	TOB          string `json:"tob,omitempty"`
	PlaceOfBirth string `json:"place_of_birth"`
}

// FieldErrors maps a field to its message. An empty map means valid.
type FieldErrors map[Field]string

// Has reports whether f carries an error.
func (e FieldErrors) Has(f Field) bool {
	_, ok := e[f]
	return ok
}

// Get returns the message for f, or "".
func (e FieldErrors) Get(f Field) string { return e[f] }

// Normalize trims free-text fields. Dates and times are passed through
// apart from surrounding whitespace.
func Normalize(p Person) Person {
	return Person{
		Name:         strings.TrimSpace(p.Name),
		DOB:          strings.TrimSpace(p.DOB),
		TOB:          strings.TrimSpace(p.TOB),
		PlaceOfBirth: strings.TrimSpace(p.PlaceOfBirth),
	}
}

// NormalizeMoon trims the fields of q.
func NormalizeMoon(q MoonQuery) MoonQuery {
	return MoonQuery{
		DOB:          strings.TrimSpace(q.DOB),
		TOB:          strings.TrimSpace(q.TOB),
		PlaceOfBirth: strings.TrimSpace(q.PlaceOfBirth),
	}
}

// ValidateToday applies the single-message rules of the daily form. The
// returned error's text is shown to the reader verbatim.
func ValidateToday(p Person, now time.Time) error {
	p = Normalize(p)
	if p.Name == "" || p.DOB == "" || p.TOB == "" || p.PlaceOfBirth == "" {
		return errors.New(MsgAllRequired)
	}
	if !longEnough(p.Name) {
		return errors.New(MsgNameShort)
	}
	if !validDate(p.DOB, now) {
		return errors.New(MsgDOBInvalid)
	}
	if !validTime(p.TOB) {
		return errors.New(MsgTOBInvalid)
	}
	return nil
}

// ValidatePerson returns one message per failing field.
func ValidatePerson(p Person, now time.Time) FieldErrors {
	p = Normalize(p)
	errs := FieldErrors{}
	if !longEnough(p.Name) {
		errs[FieldName] = MsgNameShort
	}
	switch {
	case p.DOB == "":
		errs[FieldDOB] = MsgDOBRequired
	case !validDate(p.DOB, now):
		errs[FieldDOB] = MsgDOBInvalid
	}
	switch {
	case p.TOB == "":
		errs[FieldTOB] = MsgTOBRequired
	case !validTime(p.TOB):
		errs[FieldTOB] = MsgTOBInvalid
	}
	if !longEnough(p.PlaceOfBirth) {
		errs[FieldPlaceOfBirth] = MsgPlaceTooShort
	}
	return errs
}

// ValidateMoonQuery checks the finder input. Time of birth is optional but
// must parse when given.
func ValidateMoonQuery(q MoonQuery, now time.Time) FieldErrors {
	q = NormalizeMoon(q)
	errs := FieldErrors{}
	switch {
	case q.DOB == "":
		errs[FieldDOB] = MsgDOBRequired
	case !validDate(q.DOB, now):
		errs[FieldDOB] = MsgDOBInvalid
	}
	if q.TOB != "" && !validTime(q.TOB) {
		errs[FieldTOB] = MsgTOBInvalid
	}
	if !longEnough(q.PlaceOfBirth) {
		errs[FieldPlaceOfBirth] = MsgPlaceTooShort
	}
	return errs
}

// IsPersonComplete reports whether p would pass the form's submit gate:
// name and place of at least three characters, date and time present.
func IsPersonComplete(p Person) bool {
	p = Normalize(p)
	return longEnough(p.Name) && p.DOB != "" && p.TOB != "" && longEnough(p.PlaceOfBirth)
}

// Today returns the calendar date of now as used for the date input's max.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(s) >= MinTextLength
}

func validDate(s string, now time.Time) bool {
	d, err := time.ParseInLocation(DateLayout, s, now.Location())
	if err != nil {
		return false
	}
	y, m, day := now.Date()
	return !d.After(time.Date(y, m, day, 0, 0, 0, 0, now.Location()))
}

// validTime accepts zero-padded hh:mm or hh:mm:ss; "9:05" is rejected.
func validTime(s string) bool {
	layout := TimeLayout
	switch len(s) {
	case len(TimeLayout):
	case len(TimeLayoutSeconds):
		layout = TimeLayoutSeconds
	default:
		return false
	}
	_, err := time.Parse(layout, s)
	return err == nil
}
